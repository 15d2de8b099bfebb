package approval

import (
	"context"
	"time"

	"github.com/jongalloway/travel-booking-agents/service/messaging"
)

// Service is the approval checkpoint registry.
type Service interface {
	// Open registers a new open checkpoint with a fresh id.
	Open(ctx context.Context, runID, phase, snapshot string) (*Checkpoint, error)

	// Await blocks the caller until the checkpoint is resolved or timeout
	// elapses, in which case it returns an automatic approval.
	Await(ctx context.Context, cp *Checkpoint, timeout time.Duration) (*Decision, error)

	// Resolve applies a decision. It returns false for unknown or already
	// resolved ids.
	Resolve(ctx context.Context, id string, decision *Decision) bool

	// Abandon withdraws an open checkpoint whose run can no longer wait for
	// it. It returns false for unknown or already resolved ids.
	Abandon(ctx context.Context, id string) bool

	// ListPending returns open checkpoints in creation order.
	ListPending(ctx context.Context) ([]*Checkpoint, error)

	// Queue returns the lifecycle event queue, or nil when none is attached.
	Queue() messaging.Queue[Event]
}
