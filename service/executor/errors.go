package executor

import "errors"

var (
	ErrWorkerRequired = errors.New("worker is required")
	ErrRunnerRequired = errors.New("runner is required")
)

// EmptyOutput is substituted when a worker succeeds with empty text.
const EmptyOutput = "(no output)"
