package memory

import (
	"time"

	"github.com/jongalloway/travel-booking-agents/service/approval"
	"github.com/jongalloway/travel-booking-agents/service/messaging"
)

type Option func(*service)

// WithEventQueue publishes checkpoint lifecycle events on q. Publishing
// blocks while q is full, so attach a consumer.
func WithEventQueue(q messaging.Queue[approval.Event]) Option {
	return func(s *service) { s.events = q }
}

// WithDefaultTimeout overrides the await timeout used when Await is called
// with a non-positive timeout.
func WithDefaultTimeout(timeout time.Duration) Option {
	return func(s *service) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}
