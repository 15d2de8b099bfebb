package model

import (
	"context"
	"fmt"
	"time"
)

// ToolFunc is a callable function a worker may use while producing its output.
type ToolFunc func(ctx context.Context, args map[string]string) (string, error)

// Tool represents a named tool function available to a worker.
type Tool struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Func        ToolFunc `json:"-" yaml:"-"`
}

// Call invokes the tool function.
func (t *Tool) Call(ctx context.Context, args map[string]string) (string, error) {
	if t == nil || t.Func == nil {
		return "", fmt.Errorf("tool has no function")
	}
	return t.Func(ctx, args)
}

// Worker describes one autonomous worker (agent). A definition is built
// fresh for every run and is not modified once the run starts.
type Worker struct {
	Name         string        `json:"name" yaml:"name"`
	Description  string        `json:"description,omitempty" yaml:"description,omitempty"`
	Instructions string        `json:"instructions,omitempty" yaml:"instructions,omitempty"`
	Fallback     string        `json:"fallback" yaml:"fallback"` // substituted on timeout or failure
	Timeout      time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Tools        []*Tool       `json:"tools,omitempty" yaml:"-"`
}

// Tool returns the named tool or nil.
func (w *Worker) Tool(name string) *Tool {
	for _, tool := range w.Tools {
		if tool.Name == name {
			return tool
		}
	}
	return nil
}

// Validate checks the worker definition.
func (w *Worker) Validate() error {
	if w == nil {
		return fmt.Errorf("worker is nil")
	}
	if w.Name == "" {
		return fmt.Errorf("worker name is required")
	}
	if w.Fallback == "" {
		return fmt.Errorf("worker %s: fallback is required", w.Name)
	}
	seen := map[string]bool{}
	for _, tool := range w.Tools {
		if tool == nil || tool.Name == "" {
			return fmt.Errorf("worker %s: tool name is required", w.Name)
		}
		if seen[tool.Name] {
			return fmt.Errorf("worker %s: duplicate tool %s", w.Name, tool.Name)
		}
		seen[tool.Name] = true
	}
	return nil
}

// Pipeline worker names.
const (
	WorkerResearch  = "Research"
	WorkerPolicy    = "Policy"
	WorkerBudget    = "Budget"
	WorkerOptimizer = "Optimizer"
	WorkerBooking   = "Booking"
)

// PipelineOrder is the fixed Sequential order.
var PipelineOrder = []string{WorkerResearch, WorkerPolicy, WorkerBudget, WorkerOptimizer, WorkerBooking}
