package orchestrator

import (
	"context"

	"github.com/jongalloway/travel-booking-agents/model"
)

// sequential runs the fixed pipeline with an optional checkpoint after Policy.
func sequential(ctx context.Context, r *run) error {
	pipeline, err := r.workers(model.PipelineOrder...)
	if err != nil {
		return err
	}
	for _, w := range pipeline {
		if _, err = r.execute(ctx, w, r.transcriptContext()); err != nil {
			return err
		}
		if w.Name != model.WorkerPolicy {
			continue
		}
		cancelled, err := r.checkpoint(ctx, r.config.ApprovalPhase)
		if err != nil {
			return err
		}
		if cancelled {
			return r.complete(ctx, r.rc.Transcript.Format(), true)
		}
	}
	return r.complete(ctx, r.rc.Transcript.Format(), false)
}
