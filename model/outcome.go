package model

import "time"

// OutcomeKind classifies how a worker step ended.
type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeTimeout OutcomeKind = "timeout"
	OutcomeFailure OutcomeKind = "failure"
)

// Degraded reports whether the output is a fallback substitute.
func (k OutcomeKind) Degraded() bool {
	return k == OutcomeTimeout || k == OutcomeFailure
}

// StepOutcome is the normalised result of one worker invocation.
type StepOutcome struct {
	Worker  string        `json:"worker"`
	Output  string        `json:"output"`
	Elapsed time.Duration `json:"elapsed"`
	Kind    OutcomeKind   `json:"kind"`
	Err     string        `json:"error,omitempty"`
}
