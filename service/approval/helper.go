package approval

import (
	"context"
	"sync"
	"time"
)

// DecisionFunc decides what to do with a pending checkpoint.
type DecisionFunc func(cp *Checkpoint) (action Action, note string)

// AutoDecider starts a goroutine that polls ListPending and applies fn to
// every checkpoint. It returns stop(); call it (or cancel ctx) to exit.
func AutoDecider(ctx context.Context,
	svc Service,
	fn DecisionFunc,
	interval time.Duration) (stop func()) {

	if interval <= 0 {
		interval = 20 * time.Millisecond
	}
	done := make(chan struct{})
	var once sync.Once

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				pending, _ := svc.ListPending(ctx)
				for _, cp := range pending {
					action, note := fn(cp)
					svc.Resolve(ctx, cp.ID, &Decision{Action: action, Note: note})
				}
			}
		}
	}()
	return func() { once.Do(func() { close(done) }) }
}

// AutoApprove approves every pending checkpoint.
func AutoApprove(ctx context.Context, svc Service, interval time.Duration) func() {
	return AutoDecider(ctx, svc,
		func(*Checkpoint) (Action, string) { return ActionApprove, "" }, interval)
}

// AutoCancel cancels every pending checkpoint with the given note.
func AutoCancel(ctx context.Context, svc Service, note string, interval time.Duration) func() {
	return AutoDecider(ctx, svc,
		func(*Checkpoint) (Action, string) { return ActionCancel, note }, interval)
}

// PendingFilter selects checkpoints in ListPending.
type PendingFilter func(*Checkpoint) bool

// WithRunID keeps checkpoints raised by runID.
func WithRunID(runID string) PendingFilter {
	return func(cp *Checkpoint) bool { return cp.RunID == runID }
}

// WithPhase keeps checkpoints raised at phase.
func WithPhase(phase string) PendingFilter {
	return func(cp *Checkpoint) bool { return cp.Phase == phase }
}

// ListPending returns the pending checkpoints that satisfy all filters.
func ListPending(ctx context.Context, svc Service, filters ...PendingFilter) ([]*Checkpoint, error) {
	all, err := svc.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	if len(filters) == 0 {
		return all, nil
	}
	out := make([]*Checkpoint, 0, len(all))
outer:
	for _, cp := range all {
		for _, f := range filters {
			if !f(cp) {
				continue outer
			}
		}
		out = append(out, cp)
	}
	return out, nil
}
