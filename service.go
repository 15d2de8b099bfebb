package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jongalloway/travel-booking-agents/model"
	"github.com/jongalloway/travel-booking-agents/policy"
	"github.com/jongalloway/travel-booking-agents/progress"
	"github.com/jongalloway/travel-booking-agents/service/approval"
	amemory "github.com/jongalloway/travel-booking-agents/service/approval/memory"
	"github.com/jongalloway/travel-booking-agents/service/dao"
	"github.com/jongalloway/travel-booking-agents/service/dao/store"
	"github.com/jongalloway/travel-booking-agents/service/event"
	"github.com/jongalloway/travel-booking-agents/service/executor"
	mmemory "github.com/jongalloway/travel-booking-agents/service/messaging/memory"
	"github.com/jongalloway/travel-booking-agents/service/metrics"
	"github.com/jongalloway/travel-booking-agents/service/orchestrator"
	"github.com/jongalloway/travel-booking-agents/service/worker"
	"github.com/jongalloway/travel-booking-agents/tracing"
)

// Version is the service version reported by the CLI and tracing.
const Version = "0.1.0"

// ErrEmptyRequest is returned by StartRun for a blank travel request.
var ErrEmptyRequest = errors.New("booking: request is empty")

// ErrToolAskUnset is returned by New when the tool policy mode is ask but no
// ask function was supplied with WithToolAsk.
var ErrToolAskUnset = errors.New("booking: tool policy mode ask needs an ask function")

// RunRequest describes a run to start.
type RunRequest struct {
	Request          string `json:"request" yaml:"request"`
	Topology         string `json:"topology,omitempty" yaml:"topology"`
	ApprovalRequired bool   `json:"approvalRequired,omitempty" yaml:"approvalRequired"`
	Diagnostics      bool   `json:"diagnostics,omitempty" yaml:"diagnostics"`
	// DryRun blocks the reservation tool for this run.
	DryRun bool `json:"dryRun,omitempty" yaml:"dryRun"`
}

// Run is a started run. Events is closed after the terminal event.
type Run struct {
	ID       string
	Topology model.Topology
	Events   <-chan *model.Event
}

// RunStatus describes an in-flight run.
type RunStatus struct {
	ID               string            `json:"id"`
	Request          string            `json:"request"`
	Topology         model.Topology    `json:"topology"`
	ApprovalRequired bool              `json:"approvalRequired"`
	StartedAt        time.Time         `json:"startedAt"`
	LastEvent        model.EventKind   `json:"lastEvent,omitempty"`
	Progress         progress.Counters `json:"progress"`
}

type activeRun struct {
	rc      *model.RunContext
	tracker *progress.Progress
	mu      sync.Mutex
	last    model.EventKind
}

func (a *activeRun) observe(evt *model.Event) {
	a.mu.Lock()
	a.last = evt.Kind
	a.mu.Unlock()
}

func (a *activeRun) status() *RunStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return &RunStatus{
		ID:               a.rc.ID,
		Request:          a.rc.Request,
		Topology:         a.rc.Topology,
		ApprovalRequired: a.rc.ApprovalRequired,
		StartedAt:        a.rc.StartedAt,
		LastEvent:        a.last,
		Progress:         a.tracker.Snapshot(),
	}
}

// matchRun filters the run registry by "topology".
func matchRun(run *activeRun, parameters []*dao.Parameter) bool {
	for _, param := range parameters {
		if param.Name == "topology" && !param.Matches(string(run.rc.Topology)) {
			return false
		}
	}
	return true
}

// Service is the travel-booking facade.
type Service struct {
	config       *Config
	logger       *slog.Logger
	catalog      *worker.Catalog
	runner       executor.Runner
	roster       func() []*model.Worker
	approvals    approval.Service
	policy       *policy.Policy
	ask          policy.AskFunc
	metrics      *metrics.Metrics
	orchestrator *orchestrator.Service
	// lifecycle events of the default approval registry
	approvalEvents *mmemory.Queue[approval.Event]
	watchDone      chan struct{}
	runs           *store.MemoryStore[string, activeRun]
	wg             sync.WaitGroup
}

// New creates a service.
func New(options ...Option) (*Service, error) {
	ret := &Service{config: DefaultConfig(), logger: slog.Default()}
	for _, option := range options {
		option(ret)
	}
	if ret.policy != nil {
		ret.config.Tools = *policy.ToConfig(ret.policy)
		if ret.ask == nil {
			ret.ask = ret.policy.Ask
		}
	}
	if err := ret.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if strings.EqualFold(ret.config.Tools.Mode, policy.ModeAsk) && ret.ask == nil {
		return nil, ErrToolAskUnset
	}
	ret.config.Init()
	if err := ret.ensureBaseSetup(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *Service) ensureBaseSetup() error {
	cfg := s.config
	if cfg.Tracing.Enabled {
		if err := tracing.Init(cfg.Tracing.ServiceName, Version, cfg.Tracing.Output); err != nil {
			return fmt.Errorf("failed to init tracing: %w", err)
		}
	}
	if s.catalog == nil {
		s.catalog = worker.DefaultCatalog()
	}
	if s.runner == nil {
		s.runner = worker.NewScripted(s.catalog, &cfg.Workers)
	}
	if s.roster == nil {
		s.roster = func() []*model.Worker { return worker.Roster(s.catalog, &cfg.Workers) }
	}
	if s.approvals == nil {
		s.approvalEvents = mmemory.NewQueue[approval.Event](mmemory.DefaultConfig())
		s.approvals = amemory.New(
			amemory.WithDefaultTimeout(cfg.Orchestrator.ApprovalTimeout),
			amemory.WithEventQueue(s.approvalEvents))
	}
	if s.metrics == nil {
		s.metrics = metrics.New(false)
	}
	invoker, err := executor.New(s.runner,
		executor.WithTimeout(cfg.Orchestrator.StepTimeout),
		executor.WithListener(s.onStep))
	if err != nil {
		return err
	}
	s.orchestrator, err = orchestrator.New(invoker,
		orchestrator.WithConfig(&cfg.Orchestrator),
		orchestrator.WithApprovalService(s.approvals),
		orchestrator.WithLogger(s.logger),
		orchestrator.WithMetrics(s.metrics))
	if err != nil {
		return err
	}
	s.runs = store.NewMemoryStore[string, activeRun](func(r *activeRun) string { return r.rc.ID }).WithMatcher(matchRun)
	if s.approvalEvents != nil {
		s.watchDone = make(chan struct{})
		go s.watchApprovals(s.approvalEvents)
	}
	return nil
}

// watchApprovals logs and counts checkpoint lifecycle events until the
// queue is closed. Events it cannot handle are nacked.
func (s *Service) watchApprovals(queue *mmemory.Queue[approval.Event]) {
	defer close(s.watchDone)
	for {
		msg, err := queue.Consume(context.Background())
		if err != nil {
			return
		}
		if err = s.onApprovalEvent(msg.T()); err != nil {
			_ = msg.Nack(err)
			s.logger.Warn("approval event rejected", "topic", msg.T().Topic, "error", err, "deadLettered", queue.DLQSize())
			continue
		}
		_ = msg.Ack()
	}
}

func (s *Service) onApprovalEvent(evt *approval.Event) error {
	switch data := evt.Data.(type) {
	case *approval.Checkpoint:
		s.logger.Info(evt.Topic, "checkpoint", data.ID, "run", data.RunID, "phase", data.Phase, "state", data.State)
	case *approval.Decision:
		s.logger.Info(evt.Topic, "checkpoint", data.ID, "action", data.Action, "auto", data.Auto)
	default:
		return fmt.Errorf("unexpected %s payload %T", evt.Topic, evt.Data)
	}
	s.metrics.CheckpointEvent(evt.Topic)
	return nil
}

func (s *Service) onStep(w *model.Worker, _ string, outcome *model.StepOutcome) {
	s.logger.Debug("step finished", "worker", w.Name, "outcome", outcome.Kind, "elapsed", outcome.Elapsed)
}

// StartRun validates req and starts the run in the background. The run is
// bound to ctx: cancelling it aborts the run with an error event.
func (s *Service) StartRun(ctx context.Context, req *RunRequest) (*Run, error) {
	if req == nil || strings.TrimSpace(req.Request) == "" {
		return nil, ErrEmptyRequest
	}
	rc := model.NewRunContext(strings.TrimSpace(req.Request), model.ParseTopology(req.Topology))
	rc.ApprovalRequired = req.ApprovalRequired
	rc.Diagnostics = req.Diagnostics

	entry := &activeRun{rc: rc, tracker: progress.New(rc.ID, rc.Topology)}
	if rc.Diagnostics {
		entry.tracker.OnChange(func(c progress.Counters) {
			s.logger.Debug("run progress", "run", c.RunID, "done", c.Done(), "total", c.Total, "running", c.Running)
		})
	}
	emitter := event.NewEmitter(rc.ID,
		event.WithBuffer(s.config.EventBuffer),
		event.WithObserver(entry.observe))
	stream, err := emitter.Stream(ctx)
	if err != nil {
		return nil, err
	}
	if err = s.runs.Save(ctx, entry); err != nil {
		return nil, err
	}
	runCtx := progress.WithTracker(ctx, entry.tracker)
	if toolPolicy := s.toolPolicy(req); toolPolicy != nil {
		runCtx = policy.WithPolicy(runCtx, toolPolicy)
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { _ = s.runs.Delete(context.Background(), rc.ID) }()
		if err := s.orchestrator.Run(runCtx, rc, s.roster(), emitter); err != nil {
			s.logger.Warn("run ended with error", "run", rc.ID, "error", err)
		}
	}()
	return &Run{ID: rc.ID, Topology: rc.Topology, Events: stream}, nil
}

// toolPolicy combines the configured tool policy with per-request restrictions.
func (s *Service) toolPolicy(req *RunRequest) *policy.Policy {
	ret := policy.FromConfig(&s.config.Tools)
	if ret != nil {
		ret.Ask = s.ask
	}
	if !req.DryRun {
		return ret
	}
	dryRun := &policy.Policy{BlockList: []string{worker.ToolReserve}}
	if ret != nil {
		dryRun.Mode = ret.Mode
		dryRun.Ask = ret.Ask
		dryRun.AllowList = ret.AllowList
		dryRun.BlockList = append(dryRun.BlockList, ret.BlockList...)
	}
	return dryRun
}

// SubmitDecision resolves a checkpoint. It reports false when the id is
// unknown or already decided, and an error for an invalid action.
func (s *Service) SubmitDecision(ctx context.Context, checkpointID, action, note string) (bool, error) {
	act, err := approval.ParseAction(action)
	if err != nil {
		return false, err
	}
	ok := s.approvals.Resolve(ctx, checkpointID, &approval.Decision{Action: act, Note: note})
	s.logger.Info("decision submitted", "checkpoint", checkpointID, "action", act, "accepted", ok)
	return ok, nil
}

// PendingApprovals returns checkpoints awaiting a decision, optionally for one run.
func (s *Service) PendingApprovals(ctx context.Context, runID string) ([]*approval.Checkpoint, error) {
	if runID == "" {
		return s.approvals.ListPending(ctx)
	}
	return approval.ListPending(ctx, s.approvals, approval.WithRunID(runID))
}

// ActiveRuns returns in-flight runs in start order, optionally restricted to topologies.
func (s *Service) ActiveRuns(ctx context.Context, topologies ...string) ([]*RunStatus, error) {
	var params []*dao.Parameter
	if len(topologies) > 0 {
		params = append(params, dao.NewParameter("topology", topologies...))
	}
	runs, err := s.runs.List(ctx, params...)
	if err != nil {
		return nil, err
	}
	ret := make([]*RunStatus, 0, len(runs))
	for _, run := range runs {
		ret = append(ret, run.status())
	}
	return ret, nil
}

// Approvals returns the checkpoint registry.
func (s *Service) Approvals() approval.Service { return s.approvals }

// Metrics returns the Prometheus recorder.
func (s *Service) Metrics() *metrics.Metrics { return s.metrics }

// Config returns the effective configuration.
func (s *Service) Config() *Config { return s.config }

// Shutdown waits for in-flight runs to finish or ctx to end, drains the
// approval lifecycle queue, then flushes traces.
func (s *Service) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if s.approvalEvents != nil {
		_ = s.approvalEvents.Close()
		select {
		case <-s.watchDone:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return tracing.Shutdown(ctx)
}
