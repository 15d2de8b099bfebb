package model

import (
	"time"
	"unicode/utf8"
)

// EventKind discriminates progress events.
type EventKind string

const (
	EventWorking       EventKind = "working"
	EventStepComplete  EventKind = "step_complete"
	EventAwaitingInput EventKind = "awaiting_input"
	EventResumed       EventKind = "resumed"
	EventCancelled     EventKind = "cancelled"
	EventComplete      EventKind = "complete"
	EventError         EventKind = "error"
)

// IsTerminal reports whether no further events follow this kind.
func (k EventKind) IsTerminal() bool {
	return k == EventComplete || k == EventError
}

// DefaultSummaryLimit caps event summaries, in characters.
const DefaultSummaryLimit = 600

// Event describes run progress. Events of one run are consumed in Seq order.
type Event struct {
	RunID        string      `json:"runId"`
	Seq          int         `json:"seq"`
	Kind         EventKind   `json:"kind"`
	Worker       string      `json:"worker"`
	Step         int         `json:"step,omitempty"`
	Summary      string      `json:"summary,omitempty"`
	Outcome      OutcomeKind `json:"outcome,omitempty"`
	ElapsedMs    int64       `json:"elapsedMs,omitempty"`
	CheckpointID string      `json:"checkpointId,omitempty"`
	Phase        string      `json:"phase,omitempty"`
	Result       string      `json:"result,omitempty"`
	Cancelled    bool        `json:"cancelled,omitempty"`
	Error        string      `json:"error,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// IsTerminal reports whether e ends the run's event stream.
func (e *Event) IsTerminal() bool {
	return e != nil && e.Kind.IsTerminal()
}

// NewWorkingEvent announces that worker (or the system) is busy.
func NewWorkingEvent(worker string, step int, summary string) *Event {
	return &Event{Kind: EventWorking, Worker: worker, Step: step, Summary: summary}
}

// NewStepCompleteEvent reports a finished step; the summary is truncated to limit characters.
func NewStepCompleteEvent(step int, outcome *StepOutcome, limit int) *Event {
	return &Event{
		Kind:      EventStepComplete,
		Worker:    outcome.Worker,
		Step:      step,
		Summary:   Truncate(outcome.Output, limit),
		Outcome:   outcome.Kind,
		ElapsedMs: outcome.Elapsed.Milliseconds(),
		Error:     outcome.Err,
	}
}

// NewAwaitingInputEvent reports a run paused at an approval checkpoint.
func NewAwaitingInputEvent(checkpointID, phase, summary string) *Event {
	return &Event{Kind: EventAwaitingInput, Worker: SystemWorker, CheckpointID: checkpointID, Phase: phase, Summary: summary}
}

// NewResumedEvent reports that an approval checkpoint let the run continue.
func NewResumedEvent(checkpointID, phase, note string) *Event {
	return &Event{Kind: EventResumed, Worker: SystemWorker, CheckpointID: checkpointID, Phase: phase, Summary: note}
}

// NewCancelledEvent reports that an approval checkpoint cancelled the run.
func NewCancelledEvent(checkpointID, phase, note string) *Event {
	return &Event{Kind: EventCancelled, Worker: SystemWorker, CheckpointID: checkpointID, Phase: phase, Summary: note}
}

// NewCompleteEvent carries the final aggregated result.
func NewCompleteEvent(result string, cancelled bool) *Event {
	return &Event{Kind: EventComplete, Worker: SystemWorker, Result: result, Cancelled: cancelled}
}

// NewErrorEvent reports an orchestrator fault.
func NewErrorEvent(err error) *Event {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return &Event{Kind: EventError, Worker: SystemWorker, Error: msg, Summary: msg}
}

// Truncate shortens text to at most limit characters, ending with "..." when cut.
func Truncate(text string, limit int) string {
	if limit <= 0 {
		limit = DefaultSummaryLimit
	}
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	const ellipsis = "..."
	if limit <= len(ellipsis) {
		return string([]rune(text)[:limit])
	}
	return string([]rune(text)[:limit-len(ellipsis)]) + ellipsis
}
