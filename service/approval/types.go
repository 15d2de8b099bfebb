package approval

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrUnknownCheckpoint is returned by Await for ids that are not registered.
	ErrUnknownCheckpoint = errors.New("approval: unknown checkpoint")

	// ErrInvalidAction is returned by ParseAction.
	ErrInvalidAction = errors.New("approval: invalid action")
)

// DefaultTimeout bounds how long Await waits before approving automatically.
const DefaultTimeout = 5 * time.Minute

// AutoTimeoutNote annotates decisions produced by the await timeout.
const AutoTimeoutNote = "auto-timeout"

// Lifecycle event topics published on the optional service queue.
const (
	TopicCheckpointOpened    = "checkpoint.opened"
	TopicCheckpointResolved  = "checkpoint.resolved"
	TopicCheckpointExpired   = "checkpoint.expired"
	TopicCheckpointAbandoned = "checkpoint.abandoned"
)

// Action is the decision applied to a checkpoint.
type Action string

const (
	ActionApprove Action = "approve"
	ActionCancel  Action = "cancel"
)

// ParseAction maps a submitted action name to an Action.
func ParseAction(name string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case string(ActionApprove):
		return ActionApprove, nil
	case string(ActionCancel):
		return ActionCancel, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAction, name)
}

// State of a checkpoint.
type State string

const (
	StateOpen         State = "open"
	StateResolved     State = "resolved"
	StateAutoApproved State = "auto_approved"
	StateAbandoned    State = "abandoned"
)

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool { return s != StateOpen }

// Checkpoint is a pending approval request raised by a run.
type Checkpoint struct {
	ID        string    `json:"id"`
	RunID     string    `json:"runId"`
	Phase     string    `json:"phase"`
	Snapshot  string    `json:"snapshot,omitempty"` // transcript rendered at the time of the request
	State     State     `json:"state"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// Decision is the resolution of a checkpoint.
type Decision struct {
	ID        string    `json:"id"` // same as Checkpoint.ID
	Action    Action    `json:"action"`
	Note      string    `json:"note,omitempty"`
	Auto      bool      `json:"auto,omitempty"`
	DecidedAt time.Time `json:"decidedAt"`
}

// Approved reports whether the run may continue.
func (d *Decision) Approved() bool {
	return d != nil && d.Action == ActionApprove
}

// Event is published on the service queue on every checkpoint transition.
type Event struct {
	Topic string      `json:"topic"`
	Data  interface{} `json:"data"` // *Checkpoint | *Decision
}
