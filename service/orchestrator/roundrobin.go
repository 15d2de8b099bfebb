package orchestrator

import (
	"context"
)

// roundRobin gives every roster worker one turn per round, in roster order,
// each seeing the request and the full shared transcript.
func roundRobin(ctx context.Context, r *run) error {
	for round := 0; round < r.config.MaxRounds; round++ {
		for _, w := range r.roster {
			if _, err := r.execute(ctx, w, r.transcriptContext()); err != nil {
				return err
			}
		}
	}
	return r.complete(ctx, r.rc.Transcript.Format(), false)
}
