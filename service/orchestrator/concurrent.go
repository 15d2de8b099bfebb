package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/jongalloway/travel-booking-agents/model"
)

// concurrent dispatches every roster worker at once with only the request
// and its own role. Outcomes are folded by the run goroutine in arrival
// order, which also assigns the step index.
func concurrent(ctx context.Context, r *run) error {
	for _, w := range r.roster {
		if err := r.announce(ctx, w, 0); err != nil {
			return err
		}
	}

	outcomes := make(chan *model.StepOutcome, len(r.roster))
	group := &errgroup.Group{}
	if r.config.MaxConcurrency > 0 {
		group.SetLimit(r.config.MaxConcurrency)
	}
	go func() {
		for _, w := range r.roster {
			w := w
			group.Go(func() error {
				outcomes <- r.invoker.Invoke(ctx, w, roleContext(r.rc.Request, w), r.deadline(w))
				return nil
			})
		}
		_ = group.Wait()
		close(outcomes)
	}()

	var foldErr error
	for outcome := range outcomes {
		if foldErr != nil {
			continue
		}
		r.step++
		foldErr = r.fold(ctx, r.step, outcome)
	}
	if foldErr != nil {
		return foldErr
	}
	return r.complete(ctx, aggregate(r.rc.Transcript.Entries()), false)
}

// aggregate lists outcomes in completion order with elapsed seconds.
func aggregate(entries []model.Entry) string {
	var b strings.Builder
	for i, entry := range entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "## %d. %s (%.2fs)", entry.Step, entry.Worker, entry.Elapsed.Seconds())
		if entry.Kind.Degraded() {
			fmt.Fprintf(&b, " [%s]", entry.Kind)
		}
		b.WriteString("\n")
		b.WriteString(entry.Output)
	}
	return b.String()
}
