// Package tracing wires OpenTelemetry into the orchestrator so that runs and
// worker invocations appear as spans. Tracing is opt-in; when no provider is
// installed spans are no-ops.
package tracing
