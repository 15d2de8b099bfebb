package event

import (
	"context"

	"github.com/jongalloway/travel-booking-agents/model"
)

// Listen consumes the emitter stream and calls handler for every event. It
// returns the terminal event, or nil when ctx ended first.
func Listen(ctx context.Context, emitter *Emitter, handler func(*model.Event)) (*model.Event, error) {
	stream, err := emitter.Stream(ctx)
	if err != nil {
		return nil, err
	}
	var last *model.Event
	for evt := range stream {
		if handler != nil {
			handler(evt)
		}
		last = evt
	}
	if last == nil || !last.IsTerminal() {
		return nil, ctx.Err()
	}
	return last, nil
}

// Collect gathers all events of a stream.
func Collect(stream <-chan *model.Event) []*model.Event {
	var ret []*model.Event
	for evt := range stream {
		ret = append(ret, evt)
	}
	return ret
}
