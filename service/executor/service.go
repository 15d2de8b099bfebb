package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jongalloway/travel-booking-agents/internal/clock"
	"github.com/jongalloway/travel-booking-agents/model"
	"github.com/jongalloway/travel-booking-agents/tracing"
)

// DefaultTimeout is the per-step deadline used when neither the caller nor
// the worker definition specifies one.
const DefaultTimeout = 12 * time.Second

// Runner is the external worker collaborator: given a textual context it
// produces textual output, possibly slowly and possibly failing. The invoker
// does not assume a runner honours ctx deadlines.
type Runner interface {
	Run(ctx context.Context, worker *model.Worker, input string) (string, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, worker *model.Worker, input string) (string, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, worker *model.Worker, input string) (string, error) {
	return f(ctx, worker, input)
}

// Listener is invoked after every invocation with the outcome.
type Listener func(worker *model.Worker, input string, outcome *model.StepOutcome)

// Option customises the invoker.
type Option func(*Service)

// WithTimeout overrides the default per-step deadline.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithListener registers a callback run after every invocation.
func WithListener(listener Listener) Option {
	return func(s *Service) {
		s.listener = listener
	}
}

// Service invokes workers under a deadline.
type Service struct {
	runner   Runner
	timeout  time.Duration
	listener Listener
}

type result struct {
	text string
	err  error
}

// Invoke runs worker with input and races it against deadline. A deadline of
// zero selects the worker's own timeout, then the service default.
func (s *Service) Invoke(ctx context.Context, worker *model.Worker, input string, deadline time.Duration) *model.StepOutcome {
	if worker == nil {
		return &model.StepOutcome{Kind: model.OutcomeFailure, Output: ErrWorkerRequired.Error(), Err: ErrWorkerRequired.Error()}
	}
	deadline = s.deadline(worker, deadline)

	ctx, span := tracing.StartSpan(ctx, "executor.Invoke "+worker.Name, "CLIENT")
	span.WithAttributes(map[string]string{"worker.name": worker.Name, "worker.deadline": deadline.String()})

	started := clock.Now()
	outcome := s.invoke(ctx, worker, input, deadline)
	outcome.Worker = worker.Name
	outcome.Elapsed = clock.Since(started)

	span.WithAttributes(map[string]string{"outcome.kind": string(outcome.Kind)})
	var spanErr error
	if outcome.Err != "" {
		spanErr = fmt.Errorf("%s", outcome.Err)
	}
	tracing.EndSpan(span, spanErr)

	if s.listener != nil {
		s.listener(worker, input, outcome)
	}
	return outcome
}

func (s *Service) invoke(ctx context.Context, worker *model.Worker, input string, deadline time.Duration) *model.StepOutcome {
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				results <- result{err: fmt.Errorf("worker %s panicked: %v", worker.Name, r)}
			}
		}()
		text, err := s.runner.Run(callCtx, worker, input)
		results <- result{text: text, err: err}
	}()

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case res := <-results:
		if res.err != nil {
			return failure(worker, res.err)
		}
		text := strings.TrimSpace(res.text)
		if text == "" {
			text = EmptyOutput
		}
		return &model.StepOutcome{Kind: model.OutcomeSuccess, Output: text}
	case <-timer.C:
		return &model.StepOutcome{
			Kind:   model.OutcomeTimeout,
			Output: worker.Fallback,
			Err:    fmt.Sprintf("worker %s timed out after %s", worker.Name, deadline),
		}
	case <-ctx.Done():
		return failure(worker, ctx.Err())
	}
}

func (s *Service) deadline(worker *model.Worker, deadline time.Duration) time.Duration {
	if deadline > 0 {
		return deadline
	}
	if worker.Timeout > 0 {
		return worker.Timeout
	}
	return s.timeout
}

func failure(worker *model.Worker, err error) *model.StepOutcome {
	return &model.StepOutcome{
		Kind:   model.OutcomeFailure,
		Output: fmt.Sprintf("%v: %s", err, worker.Fallback),
		Err:    err.Error(),
	}
}

// New creates an invoker backed by runner.
func New(runner Runner, opts ...Option) (*Service, error) {
	if runner == nil {
		return nil, ErrRunnerRequired
	}
	s := &Service{
		runner:  runner,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}
