// Package orchestrator drives a run through one of four topologies:
// Round-Robin, Sequential, Concurrent and Handoff.
//
// Every run starts with a working/system "Initializing..." event and ends
// with exactly one complete or error event. A cancelled approval checkpoint
// emits cancelled followed by complete. A worker timeout or failure degrades
// that step to the worker's fallback and never aborts the run; only
// orchestrator faults end it with an error event.
package orchestrator
