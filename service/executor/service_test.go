package executor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jongalloway/travel-booking-agents/model"
)

func testWorker() *model.Worker {
	return &model.Worker{Name: "Research", Fallback: "assume economy fares"}
}

func TestInvoke(t *testing.T) {
	type testCase struct {
		name           string
		runner         RunnerFunc
		deadline       time.Duration
		expectKind     model.OutcomeKind
		expectOutput   string
		expectContains string
	}

	tests := []testCase{
		{
			name: "success",
			runner: func(ctx context.Context, w *model.Worker, input string) (string, error) {
				return "found 3 flights for " + input, nil
			},
			deadline:     time.Second,
			expectKind:   model.OutcomeSuccess,
			expectOutput: "found 3 flights for Seattle",
		},
		{
			name: "empty output uses placeholder",
			runner: func(ctx context.Context, w *model.Worker, input string) (string, error) {
				return "   ", nil
			},
			deadline:     time.Second,
			expectKind:   model.OutcomeSuccess,
			expectOutput: EmptyOutput,
		},
		{
			name: "deadline elapses first",
			runner: func(ctx context.Context, w *model.Worker, input string) (string, error) {
				time.Sleep(500 * time.Millisecond)
				return "too late", nil
			},
			deadline:     20 * time.Millisecond,
			expectKind:   model.OutcomeTimeout,
			expectOutput: "assume economy fares",
		},
		{
			name: "failure prefixes fallback with message",
			runner: func(ctx context.Context, w *model.Worker, input string) (string, error) {
				return "", errors.New("search backend down")
			},
			deadline:     time.Second,
			expectKind:   model.OutcomeFailure,
			expectOutput: "search backend down: assume economy fares",
		},
		{
			name: "panic is contained",
			runner: func(ctx context.Context, w *model.Worker, input string) (string, error) {
				panic("boom")
			},
			deadline:       time.Second,
			expectKind:     model.OutcomeFailure,
			expectContains: "panicked: boom",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv, err := New(tc.runner)
			require.NoError(t, err)

			outcome := srv.Invoke(context.Background(), testWorker(), "Seattle", tc.deadline)
			assert.EqualValues(t, tc.expectKind, outcome.Kind)
			assert.Equal(t, "Research", outcome.Worker)
			if tc.expectOutput != "" {
				assert.Equal(t, tc.expectOutput, outcome.Output)
			}
			if tc.expectContains != "" {
				assert.True(t, strings.Contains(outcome.Output, tc.expectContains), outcome.Output)
				assert.True(t, strings.HasSuffix(outcome.Output, "assume economy fares"))
			}
		})
	}
}

func TestInvokeDeadlineSelection(t *testing.T) {
	block := RunnerFunc(func(ctx context.Context, w *model.Worker, input string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	srv, err := New(block, WithTimeout(time.Hour))
	require.NoError(t, err)

	worker := testWorker()
	worker.Timeout = 15 * time.Millisecond
	started := time.Now()
	outcome := srv.Invoke(context.Background(), worker, "", 0)
	assert.EqualValues(t, model.OutcomeTimeout, outcome.Kind)
	assert.Less(t, time.Since(started), time.Second)
}

func TestInvokeCallerCancelled(t *testing.T) {
	block := RunnerFunc(func(ctx context.Context, w *model.Worker, input string) (string, error) {
		time.Sleep(time.Second)
		return "late", nil
	})
	srv, err := New(block)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcome := srv.Invoke(ctx, testWorker(), "", time.Minute)
	assert.EqualValues(t, model.OutcomeFailure, outcome.Kind)
	assert.Equal(t, context.Canceled.Error(), outcome.Err)
}

func TestInvokeListener(t *testing.T) {
	var seen *model.StepOutcome
	srv, err := New(RunnerFunc(func(ctx context.Context, w *model.Worker, input string) (string, error) {
		return "ok", nil
	}), WithListener(func(w *model.Worker, input string, outcome *model.StepOutcome) {
		seen = outcome
	}))
	require.NoError(t, err)

	outcome := srv.Invoke(context.Background(), testWorker(), "", time.Second)
	assert.Same(t, outcome, seen)
}

func TestNewRequiresRunner(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrRunnerRequired)
}
