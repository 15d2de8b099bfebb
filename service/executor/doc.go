// Package executor implements the worker invoker: it runs a single worker call
// under a deadline and normalises success, timeout and failure into one
// model.StepOutcome. The invoker never publishes events or touches the run
// transcript; that is left to the orchestrator.
package executor
