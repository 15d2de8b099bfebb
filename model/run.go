package model

import (
	"time"

	"github.com/jongalloway/travel-booking-agents/internal/clock"
	"github.com/jongalloway/travel-booking-agents/internal/idgen"
)

// RunContext holds the state owned by a single orchestrator invocation.
type RunContext struct {
	ID               string      `json:"id"`
	Request          string      `json:"request"`
	Topology         Topology    `json:"topology"`
	ApprovalRequired bool        `json:"approvalRequired"`
	Diagnostics      bool        `json:"diagnostics"`
	Transcript       *Transcript `json:"-"`
	StartedAt        time.Time   `json:"startedAt"`
}

// NewRunContext creates a run context with a fresh id and empty transcript.
func NewRunContext(request string, topology Topology) *RunContext {
	if !topology.IsValid() {
		topology = ParseTopology(string(topology))
	}
	return &RunContext{
		ID:         idgen.Prefixed("run"),
		Request:    request,
		Topology:   topology,
		Transcript: NewTranscript(),
		StartedAt:  clock.Now(),
	}
}
