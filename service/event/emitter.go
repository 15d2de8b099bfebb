package event

import (
	"context"
	"fmt"
	"sync"

	"github.com/jongalloway/travel-booking-agents/internal/clock"
	"github.com/jongalloway/travel-booking-agents/model"
	"github.com/jongalloway/travel-booking-agents/service/messaging"
	"github.com/jongalloway/travel-booking-agents/service/messaging/memory"
)

// Observer receives every published event.
type Observer func(*model.Event)

// Emitter is the progress event channel of one run. It is safe for
// concurrent producers; sequence order always equals delivery order.
type Emitter struct {
	runID     string
	buffer    int
	queue     messaging.Queue[model.Event]
	observers []Observer

	mu     sync.Mutex
	seq    int
	closed bool

	consumed sync.Once
}

// NewEmitter creates an emitter for runID.
func NewEmitter(runID string, opts ...Option) *Emitter {
	ret := &Emitter{runID: runID, buffer: DefaultBuffer}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.queue == nil {
		ret.queue = memory.NewQueue[model.Event](memory.StreamConfig(ret.buffer))
	}
	return ret
}

// RunID returns the run the emitter belongs to.
func (e *Emitter) RunID() string { return e.runID }

// Publish stamps and enqueues an event. It blocks while the buffer is full
// and fails with ErrClosed after a terminal event.
func (e *Emitter) Publish(ctx context.Context, evt *model.Event) error {
	if evt == nil {
		return fmt.Errorf("event: nil event")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	evt.RunID = e.runID
	evt.Seq = e.seq + 1
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = clock.Now()
	}
	for _, observer := range e.observers {
		observer(evt)
	}
	if err := e.queue.Publish(ctx, evt); err != nil {
		return fmt.Errorf("failed to publish %v event: %w", evt.Kind, err)
	}
	e.seq = evt.Seq
	if evt.IsTerminal() {
		e.closed = true
		_ = e.queue.Close()
	}
	return nil
}

// Closed reports whether a terminal event was published.
func (e *Emitter) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Seq returns the sequence number of the last published event.
func (e *Emitter) Seq() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seq
}

// Stream attaches the single consumer. The returned channel closes after the
// terminal event, or when ctx ends.
func (e *Emitter) Stream(ctx context.Context) (<-chan *model.Event, error) {
	first := false
	e.consumed.Do(func() { first = true })
	if !first {
		return nil, ErrAlreadyConsumed
	}
	out := make(chan *model.Event)
	go func() {
		defer close(out)
		for {
			msg, err := e.queue.Consume(ctx)
			if err != nil {
				return
			}
			_ = msg.Ack()
			evt := msg.T()
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			}
			if evt.IsTerminal() {
				return
			}
		}
	}()
	return out, nil
}
