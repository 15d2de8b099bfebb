package orchestrator

import (
	"fmt"
	"time"

	"github.com/jongalloway/travel-booking-agents/model"
	"github.com/jongalloway/travel-booking-agents/service/approval"
	"github.com/jongalloway/travel-booking-agents/service/executor"
)

// DefaultApprovalPhase names the checkpoint placed after the Policy step.
const DefaultApprovalPhase = "policy-review"

// Config controls orchestration.
type Config struct {
	// StepTimeout bounds each worker step unless the worker overrides it.
	StepTimeout time.Duration `yaml:"stepTimeout" json:"stepTimeout"`
	// ApprovalTimeout is how long a checkpoint waits before approving automatically.
	ApprovalTimeout time.Duration `yaml:"approvalTimeout" json:"approvalTimeout"`
	// MaxRounds is the number of Round-Robin passes over the roster.
	MaxRounds int `yaml:"maxRounds" json:"maxRounds"`
	// SummaryLimit caps step_complete summaries, in characters.
	SummaryLimit int `yaml:"summaryLimit" json:"summaryLimit"`
	// MaxConcurrency limits Concurrent fan-out; 0 means unbounded.
	MaxConcurrency int `yaml:"maxConcurrency" json:"maxConcurrency"`
	// ApprovalPhase labels the Policy checkpoint.
	ApprovalPhase string `yaml:"approvalPhase" json:"approvalPhase"`
}

// DefaultConfig returns the standard orchestration settings.
func DefaultConfig() *Config {
	return &Config{
		StepTimeout:     executor.DefaultTimeout,
		ApprovalTimeout: approval.DefaultTimeout,
		MaxRounds:       1,
		SummaryLimit:    model.DefaultSummaryLimit,
		ApprovalPhase:   DefaultApprovalPhase,
	}
}

// Init fills unset fields with defaults.
func (c *Config) Init() {
	defaults := DefaultConfig()
	if c.StepTimeout <= 0 {
		c.StepTimeout = defaults.StepTimeout
	}
	if c.ApprovalTimeout <= 0 {
		c.ApprovalTimeout = defaults.ApprovalTimeout
	}
	if c.MaxRounds <= 0 {
		c.MaxRounds = defaults.MaxRounds
	}
	if c.SummaryLimit <= 0 {
		c.SummaryLimit = defaults.SummaryLimit
	}
	if c.ApprovalPhase == "" {
		c.ApprovalPhase = defaults.ApprovalPhase
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.StepTimeout < 0 {
		return fmt.Errorf("stepTimeout must not be negative")
	}
	if c.ApprovalTimeout < 0 {
		return fmt.Errorf("approvalTimeout must not be negative")
	}
	if c.MaxRounds < 0 {
		return fmt.Errorf("maxRounds must not be negative")
	}
	if c.SummaryLimit < 0 {
		return fmt.Errorf("summaryLimit must not be negative")
	}
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("maxConcurrency must not be negative")
	}
	return nil
}
