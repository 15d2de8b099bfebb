// Package event delivers the ordered progress event stream of a run.
//
// An Emitter assigns per-run sequence numbers and hands events to a single
// consumer in exactly that order. Publishing applies back-pressure instead of
// dropping events; the stream ends after the first complete or error event.
package event
