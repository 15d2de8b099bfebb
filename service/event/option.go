package event

import (
	"github.com/jongalloway/travel-booking-agents/model"
	"github.com/jongalloway/travel-booking-agents/service/messaging"
)

// DefaultBuffer is the number of events held before Publish blocks.
const DefaultBuffer = 256

type Option func(e *Emitter)

// WithBuffer sets the memory queue capacity.
func WithBuffer(size int) Option {
	return func(e *Emitter) {
		if size > 0 {
			e.buffer = size
		}
	}
}

// WithQueue replaces the default memory queue.
func WithQueue(queue messaging.Queue[model.Event]) Option {
	return func(e *Emitter) { e.queue = queue }
}

// WithObserver registers a callback invoked synchronously, in emission
// order, before each event is handed to the queue. An event whose delivery
// then fails has still been observed. Observers must not publish.
func WithObserver(observer Observer) Option {
	return func(e *Emitter) {
		if observer != nil {
			e.observers = append(e.observers, observer)
		}
	}
}
