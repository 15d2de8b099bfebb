package progress

import (
	"context"
	"sync"
	"time"

	"github.com/jongalloway/travel-booking-agents/internal/clock"
	"github.com/jongalloway/travel-booking-agents/model"
)

// Delta represents an incremental counter change. Fields are signed.
type Delta struct {
	Total     int
	Completed int
	TimedOut  int
	Failed    int
	Running   int
}

// Counters is a point-in-time view of a run's progress.
type Counters struct {
	RunID     string         `json:"runId"`
	Topology  model.Topology `json:"topology"`
	StartedAt time.Time      `json:"startedAt"`
	Total     int            `json:"total"`
	Completed int            `json:"completed"`
	TimedOut  int            `json:"timedOut"`
	Failed    int            `json:"failed"`
	Running   int            `json:"running"`
	Awaiting  bool           `json:"awaiting,omitempty"`
}

// Done returns the number of finished steps regardless of outcome.
func (c Counters) Done() int { return c.Completed + c.TimedOut + c.Failed }

// Progress tracks a run. It is safe for concurrent use.
type Progress struct {
	mu       sync.Mutex
	counters Counters
	onChange func(Counters)
}

// New creates a tracker for a run.
func New(runID string, topology model.Topology) *Progress {
	return &Progress{counters: Counters{RunID: runID, Topology: topology, StartedAt: clock.Now()}}
}

// Update applies the supplied delta. The onChange callback, if any, is
// invoked with a snapshot outside the critical section.
func (p *Progress) Update(d Delta) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.counters.Total += d.Total
	p.counters.Completed += d.Completed
	p.counters.TimedOut += d.TimedOut
	p.counters.Failed += d.Failed
	p.counters.Running += d.Running
	snapshot := p.counters
	cb := p.onChange
	p.mu.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

// StepStarted records a dispatched step.
func (p *Progress) StepStarted() { p.Update(Delta{Total: 1, Running: 1}) }

// StepFinished records a step outcome.
func (p *Progress) StepFinished(kind model.OutcomeKind) {
	d := Delta{Running: -1}
	switch kind {
	case model.OutcomeTimeout:
		d.TimedOut = 1
	case model.OutcomeFailure:
		d.Failed = 1
	default:
		d.Completed = 1
	}
	p.Update(d)
}

// SetAwaiting flags whether the run waits at an approval checkpoint.
func (p *Progress) SetAwaiting(awaiting bool) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.counters.Awaiting = awaiting
	p.mu.Unlock()
}

// Snapshot returns a copy of the counters.
func (p *Progress) Snapshot() Counters {
	if p == nil {
		return Counters{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counters
}

// OnChange registers a callback invoked after every Update. Only one
// callback can be active.
func (p *Progress) OnChange(cb func(Counters)) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.onChange = cb
	p.mu.Unlock()
}

type trackerKeyT struct{}

var trackerKey trackerKeyT

// WithTracker embeds tracker in a derived context.
func WithTracker(ctx context.Context, tracker *Progress) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, trackerKey, tracker)
}

// FromContext extracts the tracker from ctx.
func FromContext(ctx context.Context) (*Progress, bool) {
	if ctx == nil {
		return nil, false
	}
	tr, ok := ctx.Value(trackerKey).(*Progress)
	return tr, ok
}

// UpdateCtx applies d to the tracker carried by ctx, if any.
func UpdateCtx(ctx context.Context, d Delta) {
	if tr, ok := FromContext(ctx); ok {
		tr.Update(d)
	}
}
