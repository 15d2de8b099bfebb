package event

import "errors"

var (
	// ErrClosed is returned by Publish once a terminal event was emitted.
	ErrClosed = errors.New("event: emitter closed")

	// ErrAlreadyConsumed is returned by Stream when a consumer already attached.
	ErrAlreadyConsumed = errors.New("event: stream already consumed")
)
