package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jongalloway/travel-booking-agents/model"
	"github.com/jongalloway/travel-booking-agents/service/approval"
	memApproval "github.com/jongalloway/travel-booking-agents/service/approval/memory"
	"github.com/jongalloway/travel-booking-agents/service/event"
	"github.com/jongalloway/travel-booking-agents/service/executor"
	"github.com/jongalloway/travel-booking-agents/service/messaging"
	"github.com/jongalloway/travel-booking-agents/service/messaging/memory"
)

// scriptRunner answers "<worker> output" unless overridden, records inputs
// and optionally blocks a worker until its gate is closed.
type scriptRunner struct {
	mu      sync.Mutex
	outputs map[string]string
	errs    map[string]error
	gates   map[string]chan struct{}
	inputs  map[string][]string
}

func newScriptRunner() *scriptRunner {
	return &scriptRunner{
		outputs: map[string]string{},
		errs:    map[string]error{},
		gates:   map[string]chan struct{}{},
		inputs:  map[string][]string{},
	}
}

func (s *scriptRunner) Run(ctx context.Context, w *model.Worker, input string) (string, error) {
	s.mu.Lock()
	s.inputs[w.Name] = append(s.inputs[w.Name], input)
	gate := s.gates[w.Name]
	output, ok := s.outputs[w.Name]
	err := s.errs[w.Name]
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	if !ok {
		output = w.Name + " output"
	}
	return output, nil
}

func (s *scriptRunner) input(worker string, i int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i >= len(s.inputs[worker]) {
		return ""
	}
	return s.inputs[worker][i]
}

func testRoster(names ...string) []*model.Worker {
	if len(names) == 0 {
		names = model.PipelineOrder
	}
	ret := make([]*model.Worker, 0, len(names))
	for _, name := range names {
		ret = append(ret, &model.Worker{Name: name, Description: name + " role", Fallback: name + " fallback"})
	}
	return ret
}

func newTestService(t *testing.T, runner executor.Runner, config *Config, opts ...Option) *Service {
	t.Helper()
	invoker, err := executor.New(runner)
	require.NoError(t, err)
	if config == nil {
		config = DefaultConfig()
	}
	srv, err := New(invoker, append([]Option{WithConfig(config)}, opts...)...)
	require.NoError(t, err)
	return srv
}

func runAndCollect(t *testing.T, srv *Service, rc *model.RunContext, roster []*model.Worker) ([]*model.Event, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	emitter := event.NewEmitter(rc.ID)
	stream, err := emitter.Stream(ctx)
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, rc, roster, emitter) }()
	events := event.Collect(stream)
	return events, <-done
}

type step struct {
	kind   model.EventKind
	worker string
}

func steps(events []*model.Event) []step {
	ret := make([]step, 0, len(events))
	for _, e := range events {
		ret = append(ret, step{kind: e.Kind, worker: e.Worker})
	}
	return ret
}

func completedWorkers(events []*model.Event) []string {
	var ret []string
	for _, e := range events {
		if e.Kind == model.EventStepComplete {
			ret = append(ret, e.Worker)
		}
	}
	return ret
}

func assertWellFormed(t *testing.T, events []*model.Event) {
	t.Helper()
	require.NotEmpty(t, events)
	assert.Equal(t, model.EventWorking, events[0].Kind)
	assert.Equal(t, model.SystemWorker, events[0].Worker)
	assert.Equal(t, "Initializing...", events[0].Summary)
	terminals := 0
	for i, e := range events {
		assert.Equal(t, i+1, e.Seq)
		if e.IsTerminal() {
			terminals++
		}
	}
	assert.Equal(t, 1, terminals)
	assert.True(t, events[len(events)-1].IsTerminal())
}

func TestSequentialPipeline(t *testing.T) {
	runner := newScriptRunner()
	srv := newTestService(t, runner, nil)
	rc := model.NewRunContext("Seattle to New York", model.TopologySequential)

	events, err := runAndCollect(t, srv, rc, testRoster())
	require.NoError(t, err)
	assertWellFormed(t, events)

	expected := []step{{model.EventWorking, model.SystemWorker}}
	for _, name := range model.PipelineOrder {
		expected = append(expected, step{model.EventWorking, name}, step{model.EventStepComplete, name})
	}
	expected = append(expected, step{model.EventComplete, model.SystemWorker})
	assert.Equal(t, expected, steps(events))

	for i, name := range completedWorkers(events) {
		assert.Equal(t, model.PipelineOrder[i], name)
	}
	last := events[len(events)-1]
	assert.False(t, last.Cancelled)
	assert.Contains(t, last.Result, "## Step 5: Booking\nBooking output")
	assert.Equal(t, 5, rc.Transcript.Len())

	budgetInput := runner.input(model.WorkerBudget, 0)
	assert.True(t, strings.HasPrefix(budgetInput, "Request: Seattle to New York"))
	assert.Contains(t, budgetInput, "Research output")
	assert.Contains(t, budgetInput, "Policy output")
}

func TestSequentialApprovalGate(t *testing.T) {
	tests := []struct {
		name            string
		decide          func(ctx context.Context, svc approval.Service) func()
		approvalTimeout time.Duration
		expectCancelled bool
		expectNote      string
	}{
		{
			name: "cancel stops the pipeline",
			decide: func(ctx context.Context, svc approval.Service) func() {
				return approval.AutoCancel(ctx, svc, "over budget", 5*time.Millisecond)
			},
			approvalTimeout: time.Minute,
			expectCancelled: true,
			expectNote:      "over budget",
		},
		{
			name: "approve resumes",
			decide: func(ctx context.Context, svc approval.Service) func() {
				return approval.AutoApprove(ctx, svc, 5*time.Millisecond)
			},
			approvalTimeout: time.Minute,
			expectNote:      "approved",
		},
		{
			name:            "timeout approves automatically",
			approvalTimeout: 20 * time.Millisecond,
			expectNote:      approval.AutoTimeoutNote,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			approvals := memApproval.New()
			if tc.decide != nil {
				stop := tc.decide(ctx, approvals)
				defer stop()
			}
			config := DefaultConfig()
			config.ApprovalTimeout = tc.approvalTimeout
			srv := newTestService(t, newScriptRunner(), config, WithApprovalService(approvals))
			rc := model.NewRunContext("Seattle to New York", model.TopologySequential)
			rc.ApprovalRequired = true

			events, err := runAndCollect(t, srv, rc, testRoster())
			require.NoError(t, err)
			assertWellFormed(t, events)

			var awaiting, decision *model.Event
			for i, e := range events {
				if e.Kind == model.EventAwaitingInput {
					awaiting = e
					require.Greater(t, len(events), i+1)
					decision = events[i+1]
					assert.Equal(t, model.EventStepComplete, events[i-1].Kind)
					assert.Equal(t, model.WorkerPolicy, events[i-1].Worker)
				}
			}
			require.NotNil(t, awaiting)
			assert.NotEmpty(t, awaiting.CheckpointID)
			assert.Equal(t, DefaultApprovalPhase, awaiting.Phase)
			assert.Equal(t, awaiting.CheckpointID, decision.CheckpointID)

			last := events[len(events)-1]
			if tc.expectCancelled {
				assert.Equal(t, model.EventCancelled, decision.Kind)
				assert.Equal(t, tc.expectNote, decision.Summary)
				assert.Equal(t, []string{model.WorkerResearch, model.WorkerPolicy}, completedWorkers(events))
				assert.Equal(t, model.EventComplete, last.Kind)
				assert.True(t, last.Cancelled)
				assert.Contains(t, last.Result, model.CancelledMarker)
				assert.True(t, rc.Transcript.Cancelled())
				for _, e := range events {
					assert.NotEqual(t, model.WorkerBudget, e.Worker)
				}
				return
			}
			assert.Equal(t, model.EventResumed, decision.Kind)
			assert.Equal(t, tc.expectNote, decision.Summary)
			assert.Equal(t, model.PipelineOrder, completedWorkers(events))
			assert.False(t, last.Cancelled)
			assert.NotContains(t, last.Result, model.CancelledMarker)
		})
	}
}

func TestHandoffBranching(t *testing.T) {
	tests := []struct {
		name         string
		policyOutput string
		expected     []string
	}{
		{
			name:         "normal branch",
			policyOutput: "Policy review: compliant.",
			expected:     []string{model.WorkerResearch, model.WorkerPolicy, model.WorkerBudget, model.WorkerOptimizer, model.WorkerBooking},
		},
		{
			name:         "violation branch",
			policyOutput: "Found a Violation: hotel over cap.",
			expected:     []string{model.WorkerResearch, model.WorkerPolicy, model.WorkerOptimizer, model.WorkerBudget, model.WorkerBooking},
		},
		{
			name:         "non-compliant branch",
			policyOutput: "Itinerary is NON-COMPLIANT.",
			expected:     []string{model.WorkerResearch, model.WorkerPolicy, model.WorkerOptimizer, model.WorkerBudget, model.WorkerBooking},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			runner := newScriptRunner()
			runner.outputs[model.WorkerPolicy] = tc.policyOutput
			srv := newTestService(t, runner, nil)
			rc := model.NewRunContext("Seattle to San Francisco", model.TopologyHandoff)

			events, err := runAndCollect(t, srv, rc, testRoster())
			require.NoError(t, err)
			assertWellFormed(t, events)
			assert.Equal(t, tc.expected, completedWorkers(events))

			policyInput := runner.input(model.WorkerPolicy, 0)
			assert.Contains(t, policyInput, "Research output")

			bookingInput := runner.input(model.WorkerBooking, 0)
			for _, fragment := range []string{"Research output", tc.policyOutput, "Budget output", "Optimizer output"} {
				assert.Contains(t, bookingInput, fragment)
			}
			second := runner.input(tc.expected[3], 0)
			assert.Contains(t, second, tc.expected[2]+" output")
		})
	}
}

func TestHandoffApprovalCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	approvals := memApproval.New()
	stop := approval.AutoCancel(ctx, approvals, "", 5*time.Millisecond)
	defer stop()

	srv := newTestService(t, newScriptRunner(), nil, WithApprovalService(approvals))
	rc := model.NewRunContext("trip", model.TopologyHandoff)
	rc.ApprovalRequired = true

	events, err := runAndCollect(t, srv, rc, testRoster())
	require.NoError(t, err)
	assertWellFormed(t, events)
	assert.Equal(t, []string{model.WorkerResearch, model.WorkerPolicy}, completedWorkers(events))
	n := len(events)
	assert.Equal(t, model.EventCancelled, events[n-2].Kind)
	assert.True(t, events[n-1].Cancelled)
}

func TestConcurrentCompletionOrder(t *testing.T) {
	runner := newScriptRunner()
	for _, name := range model.PipelineOrder {
		runner.gates[name] = make(chan struct{})
	}
	srv := newTestService(t, runner, nil)
	rc := model.NewRunContext("Seattle to New York", model.TopologyConcurrent)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	emitter := event.NewEmitter(rc.ID)
	stream, err := emitter.Stream(ctx)
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, rc, testRoster(), emitter) }()

	var events []*model.Event
	next := func(kind model.EventKind) *model.Event {
		for evt := range stream {
			events = append(events, evt)
			if evt.Kind == kind {
				return evt
			}
		}
		t.Fatalf("stream ended before %v", kind)
		return nil
	}

	release := []string{model.WorkerBooking, model.WorkerResearch, model.WorkerBudget, model.WorkerPolicy, model.WorkerOptimizer}
	for i, name := range release {
		close(runner.gates[name])
		completed := next(model.EventStepComplete)
		assert.Equal(t, name, completed.Worker)
		assert.Equal(t, i+1, completed.Step)
	}
	last := next(model.EventComplete)
	require.NoError(t, <-done)
	assertWellFormed(t, events)

	for i := 1; i <= len(model.PipelineOrder); i++ {
		assert.Equal(t, model.EventWorking, events[i].Kind)
	}
	positions := make([]int, 0, len(release))
	for i, name := range release {
		idx := strings.Index(last.Result, name+" (")
		require.GreaterOrEqual(t, idx, 0)
		assert.Contains(t, last.Result, "## "+string(rune('1'+i))+". "+name)
		positions = append(positions, idx)
	}
	for i := 1; i < len(positions); i++ {
		assert.Less(t, positions[i-1], positions[i])
	}

	for _, name := range model.PipelineOrder {
		input := runner.input(name, 0)
		assert.Contains(t, input, "Role: "+name+": "+name+" role")
		for _, other := range model.PipelineOrder {
			assert.NotContains(t, input, other+" output")
		}
	}
}

func TestConcurrentMaxConcurrency(t *testing.T) {
	var mu sync.Mutex
	running, peak := 0, 0
	runner := executor.RunnerFunc(func(ctx context.Context, w *model.Worker, input string) (string, error) {
		mu.Lock()
		running++
		if running > peak {
			peak = running
		}
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		running--
		mu.Unlock()
		return "ok", nil
	})
	config := DefaultConfig()
	config.MaxConcurrency = 2
	srv := newTestService(t, runner, config)

	events, err := runAndCollect(t, srv, model.NewRunContext("trip", model.TopologyConcurrent), testRoster())
	require.NoError(t, err)
	assertWellFormed(t, events)
	assert.Len(t, completedWorkers(events), 5)
	assert.LessOrEqual(t, peak, 2)
}

func TestRoundRobinRounds(t *testing.T) {
	runner := newScriptRunner()
	config := DefaultConfig()
	config.MaxRounds = 2
	srv := newTestService(t, runner, config)
	roster := testRoster("Planner", "Critic")
	rc := model.NewRunContext("Seattle to New York", model.TopologyRoundRobin)

	events, err := runAndCollect(t, srv, rc, roster)
	require.NoError(t, err)
	assertWellFormed(t, events)
	assert.Equal(t, []string{"Planner", "Critic", "Planner", "Critic"}, completedWorkers(events))
	assert.Contains(t, runner.input("Critic", 0), "Planner output")
	assert.Contains(t, runner.input("Planner", 1), "Critic output")
	for _, e := range events {
		assert.NotEqual(t, model.EventAwaitingInput, e.Kind)
	}
}

func TestRoundRobinIgnoresApprovalFlag(t *testing.T) {
	srv := newTestService(t, newScriptRunner(), nil)
	rc := model.NewRunContext("trip", model.TopologyRoundRobin)
	rc.ApprovalRequired = true

	events, err := runAndCollect(t, srv, rc, testRoster())
	require.NoError(t, err)
	assert.Len(t, completedWorkers(events), 5)
}

func TestDegradedStepsDoNotAbort(t *testing.T) {
	runner := newScriptRunner()
	runner.gates[model.WorkerPolicy] = make(chan struct{})
	runner.errs[model.WorkerBudget] = errors.New("rate service unavailable")
	config := DefaultConfig()
	config.StepTimeout = 20 * time.Millisecond
	srv := newTestService(t, runner, config)
	rc := model.NewRunContext("trip", model.TopologySequential)

	events, err := runAndCollect(t, srv, rc, testRoster())
	require.NoError(t, err)
	assertWellFormed(t, events)

	outcomes := map[string]*model.Event{}
	for _, e := range events {
		if e.Kind == model.EventStepComplete {
			outcomes[e.Worker] = e
		}
	}
	require.Len(t, outcomes, 5)
	assert.Equal(t, model.OutcomeTimeout, outcomes[model.WorkerPolicy].Outcome)
	assert.Equal(t, "Policy fallback", outcomes[model.WorkerPolicy].Summary)
	assert.Equal(t, model.OutcomeFailure, outcomes[model.WorkerBudget].Outcome)
	assert.Equal(t, "rate service unavailable: Budget fallback", outcomes[model.WorkerBudget].Summary)
	assert.Equal(t, model.EventComplete, events[len(events)-1].Kind)
	assert.Contains(t, events[len(events)-1].Result, "## Step 2: Policy (timeout)")
}

func TestStepSummaryTruncated(t *testing.T) {
	runner := newScriptRunner()
	runner.outputs[model.WorkerResearch] = strings.Repeat("x", 1000)
	srv := newTestService(t, runner, nil)

	events, err := runAndCollect(t, srv, model.NewRunContext("trip", model.TopologySequential), testRoster())
	require.NoError(t, err)
	for _, e := range events {
		if e.Kind == model.EventStepComplete && e.Worker == model.WorkerResearch {
			assert.Equal(t, model.DefaultSummaryLimit, len([]rune(e.Summary)))
		}
	}
	assert.Contains(t, events[len(events)-1].Result, strings.Repeat("x", 1000))
}

func TestRunFaults(t *testing.T) {
	tests := []struct {
		name      string
		topology  model.Topology
		roster    []*model.Worker
		approval  bool
		expectErr error
	}{
		{name: "missing worker", topology: model.TopologySequential, roster: testRoster(model.WorkerResearch, model.WorkerPolicy), expectErr: ErrMissingWorker},
		{name: "missing handoff worker", topology: model.TopologyHandoff, roster: testRoster(model.WorkerResearch), expectErr: ErrMissingWorker},
		{name: "empty roster", topology: model.TopologyRoundRobin, expectErr: ErrMissingWorker, roster: []*model.Worker{}},
		{name: "unknown topology", topology: model.Topology("mesh"), roster: testRoster(), expectErr: ErrUnknownTopology},
		{name: "gate without approval service", topology: model.TopologySequential, roster: testRoster(), approval: true, expectErr: ErrApprovalServiceRequired},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestService(t, newScriptRunner(), nil)
			rc := model.NewRunContext("trip", model.TopologySequential)
			rc.Topology = tc.topology
			rc.ApprovalRequired = tc.approval

			events, err := runAndCollect(t, srv, rc, tc.roster)
			assert.ErrorIs(t, err, tc.expectErr)
			assertWellFormed(t, events)
			last := events[len(events)-1]
			assert.Equal(t, model.EventError, last.Kind)
			assert.Equal(t, model.SystemWorker, last.Worker)
			assert.Equal(t, err.Error(), last.Error)
			for _, e := range events {
				assert.NotEqual(t, model.EventComplete, e.Kind)
			}
		})
	}
}

// rejectingQueue fails to publish events of one kind.
type rejectingQueue struct {
	messaging.Queue[model.Event]
	reject model.EventKind
}

func (q *rejectingQueue) Publish(ctx context.Context, evt *model.Event) error {
	if evt.Kind == q.reject {
		return errors.New("queue unavailable")
	}
	return q.Queue.Publish(ctx, evt)
}

func TestCheckpointWithdrawnWhenAwaitingEventFails(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	approvals := memApproval.New()
	srv := newTestService(t, newScriptRunner(), nil, WithApprovalService(approvals))
	rc := model.NewRunContext("Seattle to New York", model.TopologySequential)
	rc.ApprovalRequired = true

	queue := &rejectingQueue{Queue: memory.NewQueue[model.Event](memory.StreamConfig(64)), reject: model.EventAwaitingInput}
	emitter := event.NewEmitter(rc.ID, event.WithQueue(queue))
	stream, err := emitter.Stream(ctx)
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, rc, testRoster(), emitter) }()
	events := event.Collect(stream)

	require.Error(t, <-done)
	assertWellFormed(t, events)
	assert.Equal(t, model.EventError, events[len(events)-1].Kind)
	for _, e := range events {
		assert.NotEqual(t, model.EventAwaitingInput, e.Kind)
	}
	pending, err := approvals.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRunRecoversPanic(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv := newTestService(t, newScriptRunner(), nil)
	rc := model.NewRunContext("Seattle to New York", model.TopologySequential)

	var once sync.Once
	emitter := event.NewEmitter(rc.ID, event.WithObserver(func(e *model.Event) {
		if e.Kind == model.EventStepComplete {
			once.Do(func() { panic("observer exploded") })
		}
	}))
	stream, err := emitter.Stream(ctx)
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, rc, testRoster(), emitter) }()
	events := event.Collect(stream)

	err = <-done
	require.Error(t, err)
	assert.Contains(t, err.Error(), "observer exploded")
	assertWellFormed(t, events)
	last := events[len(events)-1]
	assert.Equal(t, model.EventError, last.Kind)
	assert.Contains(t, last.Error, "observer exploded")
	for _, e := range events {
		assert.NotEqual(t, model.EventComplete, e.Kind)
		assert.NotEqual(t, model.EventStepComplete, e.Kind)
	}
}

func TestInvalidRosterWorker(t *testing.T) {
	srv := newTestService(t, newScriptRunner(), nil)
	roster := testRoster()
	roster[2].Fallback = ""
	events, err := runAndCollect(t, srv, model.NewRunContext("trip", model.TopologySequential), roster)
	require.Error(t, err)
	assert.Equal(t, model.EventError, events[len(events)-1].Kind)
}

func TestIsViolation(t *testing.T) {
	tests := []struct {
		text     string
		expected bool
	}{
		{text: "compliant", expected: false},
		{text: "Policy VIOLATION found", expected: true},
		{text: "the hotel is non-compliant", expected: true},
		{text: "", expected: false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.expected, IsViolation(tc.text), tc.text)
	}
}

func TestConfig(t *testing.T) {
	config := &Config{}
	assert.NoError(t, config.Validate())
	config.Init()
	assert.Equal(t, DefaultConfig(), config)

	_, err := New(nil)
	assert.Error(t, err)

	invoker, err := executor.New(newScriptRunner())
	require.NoError(t, err)
	_, err = New(invoker, WithConfig(&Config{MaxConcurrency: -1}))
	assert.Error(t, err)
}
