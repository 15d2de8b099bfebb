package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jongalloway/travel-booking-agents/internal/clock"
	"github.com/jongalloway/travel-booking-agents/model"
	"github.com/jongalloway/travel-booking-agents/progress"
	"github.com/jongalloway/travel-booking-agents/service/approval"
	"github.com/jongalloway/travel-booking-agents/service/event"
	"github.com/jongalloway/travel-booking-agents/service/executor"
	"github.com/jongalloway/travel-booking-agents/service/metrics"
	"github.com/jongalloway/travel-booking-agents/tracing"
)

// terminalGrace bounds delivery of the error event once the run context ended.
const terminalGrace = 5 * time.Second

// topologyFunc drives one run to its final transcript.
type topologyFunc func(ctx context.Context, r *run) error

// Option customises the orchestrator.
type Option func(*Service)

// WithConfig replaces the default configuration.
func WithConfig(config *Config) Option {
	return func(s *Service) {
		if config != nil {
			s.config = config
		}
	}
}

// WithApprovalService sets the checkpoint registry used by gated topologies.
func WithApprovalService(approvals approval.Service) Option {
	return func(s *Service) { s.approvals = approvals }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the measurement recorder.
func WithMetrics(recorder metrics.Recorder) Option {
	return func(s *Service) { s.metrics = recorder }
}

// Service runs workflow topologies.
type Service struct {
	invoker    *executor.Service
	approvals  approval.Service
	config     *Config
	logger     *slog.Logger
	metrics    metrics.Recorder
	topologies map[model.Topology]topologyFunc
}

// New creates an orchestrator over invoker.
func New(invoker *executor.Service, opts ...Option) (*Service, error) {
	if invoker == nil {
		return nil, fmt.Errorf("orchestrator: invoker is required")
	}
	ret := &Service{
		invoker: invoker,
		config:  DefaultConfig(),
		logger:  slog.Default(),
		metrics: (*metrics.Metrics)(nil),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.metrics == nil {
		ret.metrics = (*metrics.Metrics)(nil)
	}
	if err := ret.config.Validate(); err != nil {
		return nil, fmt.Errorf("orchestrator: invalid config: %w", err)
	}
	ret.config.Init()
	ret.topologies = map[model.Topology]topologyFunc{
		model.TopologyRoundRobin: roundRobin,
		model.TopologySequential: sequential,
		model.TopologyConcurrent: concurrent,
		model.TopologyHandoff:    handoff,
	}
	return ret, nil
}

// Config returns the effective configuration.
func (s *Service) Config() *Config { return s.config }

// Run drives rc through its topology, publishing progress on emitter. It
// returns nil when the run completed (including a cancelled completion) and
// the fault otherwise; a fault is also published as an error event.
func (s *Service) Run(ctx context.Context, rc *model.RunContext, roster []*model.Worker, emitter *event.Emitter) (err error) {
	if rc == nil || emitter == nil {
		return fmt.Errorf("orchestrator: run context and emitter are required")
	}
	ctx, span := tracing.StartSpan(ctx, "orchestrator.Run "+string(rc.Topology), "INTERNAL")
	span.WithAttributes(map[string]string{"run.id": rc.ID, "run.topology": string(rc.Topology)})

	tracker, ok := progress.FromContext(ctx)
	if !ok {
		tracker = progress.New(rc.ID, rc.Topology)
		ctx = progress.WithTracker(ctx, tracker)
	}
	r := &run{Service: s, rc: rc, emitter: emitter, tracker: tracker, logger: s.logger.With("run", rc.ID, "topology", rc.Topology)}
	started := clock.Now()
	s.metrics.RunStarted(string(rc.Topology))
	r.logger.Info("run started", "approval", rc.ApprovalRequired)

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("orchestrator panic: %v", p)
		}
		result := r.result
		if err != nil {
			result = "error"
			r.fail(ctx, err)
		}
		s.metrics.RunFinished(string(rc.Topology), result, clock.Since(started))
		r.logger.Info("run finished", "result", result, "steps", r.step, "elapsed", clock.Since(started))
		tracing.EndSpan(span, err)
	}()

	if err = r.emit(ctx, model.NewWorkingEvent(model.SystemWorker, 0, "Initializing...")); err != nil {
		return err
	}
	fn, ok := s.topologies[rc.Topology]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTopology, rc.Topology)
	}
	if err = r.bind(roster); err != nil {
		return err
	}
	return fn(ctx, r)
}

func (r *run) fail(ctx context.Context, cause error) {
	r.logger.Error("run failed", "error", cause)
	if r.emitter.Closed() {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), terminalGrace)
	defer cancel()
	if err := r.emit(ctx, model.NewErrorEvent(cause)); err != nil && !errors.Is(err, event.ErrClosed) {
		r.logger.Error("failed to publish error event", "error", err)
	}
}
