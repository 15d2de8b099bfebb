package orchestrator

import (
	"context"
	"strings"

	"github.com/jongalloway/travel-booking-agents/model"
)

var violationMarkers = []string{"violation", "non-compliant"}

// IsViolation reports whether a Policy output flags the itinerary.
func IsViolation(policyOutput string) bool {
	text := strings.ToLower(policyOutput)
	for _, marker := range violationMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// handoff runs Research and Policy, then branches once on the Policy output:
// a violation runs Optimizer before Budget, otherwise Budget before
// Optimizer. Booking always runs last.
func handoff(ctx context.Context, r *run) error {
	pipeline, err := r.workers(model.PipelineOrder...)
	if err != nil {
		return err
	}
	research, policy, budget, optimizer, booking := pipeline[0], pipeline[1], pipeline[2], pipeline[3], pipeline[4]
	request := r.rc.Request

	if _, err = r.execute(ctx, research, model.ComposeContext(request)); err != nil {
		return err
	}
	policyOutcome, err := r.execute(ctx, policy, model.ComposeContext(request, r.sections(research.Name)))
	if err != nil {
		return err
	}
	cancelled, err := r.checkpoint(ctx, r.config.ApprovalPhase)
	if err != nil {
		return err
	}
	if cancelled {
		return r.complete(ctx, r.rc.Transcript.Format(), true)
	}

	branch := []*model.Worker{budget, optimizer}
	note := "Policy compliant: routing to Budget, then Optimizer"
	if IsViolation(policyOutcome.Output) {
		branch = []*model.Worker{optimizer, budget}
		note = "Policy violation detected: routing to Optimizer, then Budget"
	}
	if err = r.emit(ctx, model.NewWorkingEvent(model.SystemWorker, 0, note)); err != nil {
		return err
	}

	seen := []string{research.Name, policy.Name}
	for _, w := range branch {
		if _, err = r.execute(ctx, w, model.ComposeContext(request, r.sections(seen...))); err != nil {
			return err
		}
		seen = append(seen, w.Name)
	}
	if _, err = r.execute(ctx, booking, model.ComposeContext(request, r.sections(seen...))); err != nil {
		return err
	}
	return r.complete(ctx, r.rc.Transcript.Format(), false)
}
