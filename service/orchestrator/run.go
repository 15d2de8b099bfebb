package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jongalloway/travel-booking-agents/model"
	"github.com/jongalloway/travel-booking-agents/progress"
	"github.com/jongalloway/travel-booking-agents/service/event"
)

// run is the state of one orchestrator invocation. It is driven by a single
// goroutine, the only writer of the transcript and the emitter.
type run struct {
	*Service
	rc      *model.RunContext
	emitter *event.Emitter
	tracker *progress.Progress
	logger  *slog.Logger
	roster  []*model.Worker
	byName  map[string]*model.Worker
	step    int
	result  string
}

func (r *run) bind(roster []*model.Worker) error {
	r.roster = roster
	r.byName = make(map[string]*model.Worker, len(roster))
	for _, w := range roster {
		if err := w.Validate(); err != nil {
			return fmt.Errorf("invalid roster: %w", err)
		}
		if _, ok := r.byName[w.Name]; ok {
			return fmt.Errorf("invalid roster: duplicate worker %s", w.Name)
		}
		r.byName[w.Name] = w
	}
	if len(roster) == 0 {
		return fmt.Errorf("%w: roster is empty", ErrMissingWorker)
	}
	return nil
}

func (r *run) worker(name string) (*model.Worker, error) {
	if w, ok := r.byName[name]; ok {
		return w, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrMissingWorker, name)
}

// workers resolves names up front so a run never starts with a hole in its roster.
func (r *run) workers(names ...string) ([]*model.Worker, error) {
	ret := make([]*model.Worker, 0, len(names))
	for _, name := range names {
		w, err := r.worker(name)
		if err != nil {
			return nil, err
		}
		ret = append(ret, w)
	}
	return ret, nil
}

func (r *run) emit(ctx context.Context, evt *model.Event) error {
	if err := r.emitter.Publish(ctx, evt); err != nil {
		return err
	}
	level := slog.LevelDebug
	if r.rc.Diagnostics {
		level = slog.LevelInfo
	}
	r.logger.Log(ctx, level, "event", "seq", evt.Seq, "kind", evt.Kind, "worker", evt.Worker, "step", evt.Step)
	return nil
}

func (r *run) deadline(w *model.Worker) time.Duration {
	if w.Timeout > 0 {
		return w.Timeout
	}
	return r.config.StepTimeout
}

// announce emits working/<worker> for a step about to start.
func (r *run) announce(ctx context.Context, w *model.Worker, step int) error {
	r.tracker.StepStarted()
	return r.emit(ctx, model.NewWorkingEvent(w.Name, step, w.Description))
}

// fold records a finished step in the transcript and reports it.
func (r *run) fold(ctx context.Context, step int, outcome *model.StepOutcome) error {
	r.tracker.StepFinished(outcome.Kind)
	r.metrics.StepFinished(outcome.Worker, string(outcome.Kind), outcome.Elapsed)
	if outcome.Kind.Degraded() {
		r.logger.Warn("step degraded", "worker", outcome.Worker, "outcome", outcome.Kind, "error", outcome.Err)
	}
	r.rc.Transcript.AppendOutcome(step, outcome)
	return r.emit(ctx, model.NewStepCompleteEvent(step, outcome, r.config.SummaryLimit))
}

// execute runs one worker step synchronously.
func (r *run) execute(ctx context.Context, w *model.Worker, input string) (*model.StepOutcome, error) {
	r.step++
	step := r.step
	if err := r.announce(ctx, w, step); err != nil {
		return nil, err
	}
	outcome := r.invoker.Invoke(ctx, w, input, r.deadline(w))
	if err := r.fold(ctx, step, outcome); err != nil {
		return nil, err
	}
	return outcome, nil
}

// checkpoint pauses at phase when the run requires approval. It returns true
// when the decision cancelled the run; the cancellation marker is then
// already in the transcript.
func (r *run) checkpoint(ctx context.Context, phase string) (bool, error) {
	if !r.rc.ApprovalRequired {
		return false, nil
	}
	if r.approvals == nil {
		return false, ErrApprovalServiceRequired
	}
	snapshot := model.Truncate(r.rc.Transcript.Format(), r.config.SummaryLimit)
	cp, err := r.approvals.Open(ctx, r.rc.ID, phase, snapshot)
	if err != nil {
		return false, fmt.Errorf("failed to open %s checkpoint: %w", phase, err)
	}
	// no-op once decided; withdraws the checkpoint when awaiting_input was never delivered
	defer r.approvals.Abandon(context.WithoutCancel(ctx), cp.ID)
	if err = r.emit(ctx, model.NewAwaitingInputEvent(cp.ID, phase, snapshot)); err != nil {
		return false, err
	}
	r.tracker.SetAwaiting(true)
	decision, err := r.approvals.Await(ctx, cp, r.config.ApprovalTimeout)
	r.tracker.SetAwaiting(false)
	if err != nil {
		return false, fmt.Errorf("approval %s: %w", cp.ID, err)
	}
	r.metrics.Decision(string(decision.Action), decision.Auto)
	r.logger.Info("checkpoint resolved", "checkpoint", cp.ID, "phase", phase, "action", decision.Action, "auto", decision.Auto)

	if decision.Approved() {
		note := decision.Note
		if note == "" {
			note = "approved"
		}
		return false, r.emit(ctx, model.NewResumedEvent(cp.ID, phase, note))
	}
	marker := fmt.Sprintf("%s Run cancelled at %s", model.CancelledMarker, phase)
	if decision.Note != "" {
		marker += ": " + decision.Note
	}
	r.rc.Transcript.Append(model.Entry{Worker: model.SystemWorker, Output: marker})
	return true, r.emit(ctx, model.NewCancelledEvent(cp.ID, phase, decision.Note))
}

// complete publishes the terminal complete event.
func (r *run) complete(ctx context.Context, result string, cancelled bool) error {
	r.result = "complete"
	if cancelled {
		r.result = "cancelled"
	}
	return r.emit(ctx, model.NewCompleteEvent(result, cancelled))
}

// sections renders the latest transcript entries of the named workers, in
// transcript order.
func (r *run) sections(names ...string) string {
	wanted := map[string]bool{}
	for _, name := range names {
		wanted[name] = true
	}
	entries := r.rc.Transcript.Entries()
	latest := map[string]int{}
	for i, entry := range entries {
		if wanted[entry.Worker] {
			latest[entry.Worker] = i
		}
	}
	var selected []model.Entry
	for i, entry := range entries {
		if idx, ok := latest[entry.Worker]; ok && idx == i {
			selected = append(selected, entry)
		}
	}
	return model.FormatEntries(selected)
}

// transcriptContext is the request plus the full accumulated transcript.
func (r *run) transcriptContext() string {
	return model.ComposeContext(r.rc.Request, r.rc.Transcript.Format())
}

func roleContext(request string, w *model.Worker) string {
	role := strings.TrimSpace(w.Name + ": " + w.Description)
	if w.Instructions != "" {
		role += "\n" + w.Instructions
	}
	return model.ComposeContext(request, "Role: "+role)
}
