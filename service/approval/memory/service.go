package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jongalloway/travel-booking-agents/internal/clock"
	"github.com/jongalloway/travel-booking-agents/internal/idgen"
	"github.com/jongalloway/travel-booking-agents/service/approval"
	"github.com/jongalloway/travel-booking-agents/service/dao/store"
	"github.com/jongalloway/travel-booking-agents/service/messaging"
)

// entry tracks the single waiter of a checkpoint.
type entry struct {
	cp       *approval.Checkpoint
	decision chan *approval.Decision // cap 1, written at most once
	done     bool
}

type service struct {
	mu sync.Mutex
	// open checkpoints; removed on the first resolution
	pending *store.MemoryStore[string, approval.Checkpoint]
	entries map[string]*entry
	events  messaging.Queue[approval.Event]
	timeout time.Duration
}

func checkpointKey(cp *approval.Checkpoint) string { return cp.ID }

// New creates a process-wide in-memory approval registry.
func New(options ...Option) approval.Service {
	ret := &service{
		pending: store.NewMemoryStore[string, approval.Checkpoint](checkpointKey),
		entries: make(map[string]*entry),
		timeout: approval.DefaultTimeout,
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

func (s *service) Open(ctx context.Context, runID, phase, snapshot string) (*approval.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cp := &approval.Checkpoint{
		ID:        idgen.New(),
		RunID:     runID,
		Phase:     phase,
		Snapshot:  snapshot,
		State:     approval.StateOpen,
		CreatedAt: clock.Now(),
	}
	s.mu.Lock()
	s.entries[cp.ID] = &entry{cp: cp, decision: make(chan *approval.Decision, 1)}
	_ = s.pending.Save(ctx, cp)
	snap := *cp
	s.mu.Unlock()
	s.publish(ctx, approval.TopicCheckpointOpened, &snap)
	return cp, nil
}

func (s *service) Await(ctx context.Context, cp *approval.Checkpoint, timeout time.Duration) (*approval.Decision, error) {
	if cp == nil {
		return nil, approval.ErrUnknownCheckpoint
	}
	s.mu.Lock()
	e, ok := s.entries[cp.ID]
	if ok && e.cp.ExpiresAt.IsZero() {
		if timeout <= 0 {
			timeout = s.timeout
		}
		e.cp.ExpiresAt = clock.Now().Add(timeout)
	}
	s.mu.Unlock()
	if !ok {
		return nil, approval.ErrUnknownCheckpoint
	}
	if timeout <= 0 {
		timeout = s.timeout
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case d := <-e.decision:
		s.forget(cp.ID)
		return d, nil
	case <-timer.C:
		d, resolved := s.settle(ctx, e, approval.StateAutoApproved)
		if resolved {
			return d, nil
		}
		d = &approval.Decision{
			ID:        cp.ID,
			Action:    approval.ActionApprove,
			Note:      approval.AutoTimeoutNote,
			Auto:      true,
			DecidedAt: clock.Now(),
		}
		s.publish(ctx, approval.TopicCheckpointExpired, d)
		return d, nil
	case <-ctx.Done():
		if d, resolved := s.settle(ctx, e, approval.StateAbandoned); resolved {
			return d, nil
		}
		return nil, ctx.Err()
	}
}

// settle closes an entry that was not resolved by a submitter. When a
// submitter won the race it returns that decision instead.
func (s *service) settle(ctx context.Context, e *entry, state approval.State) (*approval.Decision, bool) {
	s.mu.Lock()
	if e.done {
		s.mu.Unlock()
		d := <-e.decision
		s.forget(e.cp.ID)
		return d, true
	}
	e.done = true
	e.cp.State = state
	_, _ = s.pending.LoadAndDelete(ctx, e.cp.ID)
	delete(s.entries, e.cp.ID)
	s.mu.Unlock()
	return nil, false
}

func (s *service) Resolve(ctx context.Context, id string, decision *approval.Decision) bool {
	if id == "" || decision == nil {
		return false
	}
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok || e.done {
		s.mu.Unlock()
		return false
	}
	if _, loaded := s.pending.LoadAndDelete(ctx, id); !loaded {
		s.mu.Unlock()
		return false
	}
	resolved := *decision
	resolved.ID = id
	if resolved.DecidedAt.IsZero() {
		resolved.DecidedAt = clock.Now()
	}
	e.done = true
	e.cp.State = approval.StateResolved
	e.decision <- &resolved
	s.mu.Unlock()

	s.publish(ctx, approval.TopicCheckpointResolved, &resolved)
	return true
}

func (s *service) Abandon(ctx context.Context, id string) bool {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok || e.done {
		s.mu.Unlock()
		return false
	}
	e.done = true
	e.cp.State = approval.StateAbandoned
	_, _ = s.pending.LoadAndDelete(ctx, id)
	delete(s.entries, id)
	snap := *e.cp
	s.mu.Unlock()

	s.publish(ctx, approval.TopicCheckpointAbandoned, &snap)
	return true
}

func (s *service) ListPending(ctx context.Context) ([]*approval.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.pending.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*approval.Checkpoint, 0, len(all))
	for _, cp := range all {
		snap := *cp
		out = append(out, &snap)
	}
	return out, nil
}

func (s *service) Queue() messaging.Queue[approval.Event] { return s.events }

func (s *service) forget(id string) {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
}

func (s *service) publish(ctx context.Context, topic string, data interface{}) {
	if s.events == nil {
		return
	}
	_ = s.events.Publish(context.WithoutCancel(ctx), &approval.Event{Topic: topic, Data: data})
}

var _ approval.Service = (*service)(nil)
