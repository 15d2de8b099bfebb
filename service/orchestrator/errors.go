package orchestrator

import "errors"

var (
	// ErrUnknownTopology is returned for a topology outside the closed set.
	ErrUnknownTopology = errors.New("orchestrator: unknown topology")

	// ErrMissingWorker is returned when a topology needs a worker the roster lacks.
	ErrMissingWorker = errors.New("orchestrator: missing worker")

	// ErrApprovalServiceRequired is returned when a gated run has no approval service.
	ErrApprovalServiceRequired = errors.New("orchestrator: approval service required")
)
