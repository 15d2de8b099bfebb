package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jongalloway/travel-booking-agents/service/messaging"
)

type testPayload struct {
	ID    string
	Count int
}

func TestQueue(t *testing.T) {
	queue := NewQueue[testPayload](DefaultConfig())
	ctx := context.Background()

	require.NoError(t, queue.Publish(ctx, &testPayload{ID: "itinerary-1", Count: 1}))
	assert.Equal(t, 1, queue.Size())

	message, err := queue.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, queue.Size())
	assert.Equal(t, "itinerary-1", message.T().ID)

	assert.NoError(t, message.Ack())
	assert.Error(t, message.Ack())
}

func TestQueuePreservesPublishOrder(t *testing.T) {
	queue := NewQueue[testPayload](StreamConfig(4))
	ctx := context.Background()

	go func() {
		for i := 0; i < 50; i++ {
			_ = queue.Publish(ctx, &testPayload{Count: i})
		}
		_ = queue.Close()
	}()

	var got []int
	for {
		msg, err := queue.Consume(ctx)
		if err != nil {
			assert.ErrorIs(t, err, messaging.ErrQueueClosed)
			break
		}
		got = append(got, msg.T().Count)
	}
	require.Len(t, got, 50)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestQueueRetries(t *testing.T) {
	config := DefaultConfig()
	config.MaxRetries = 1
	config.RetryDelay = 5 * time.Millisecond
	queue := NewQueue[testPayload](config)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, queue.Publish(ctx, &testPayload{ID: "retry"}))

	message, err := queue.Consume(ctx)
	require.NoError(t, err)
	require.NoError(t, message.Nack(fmt.Errorf("transient")))

	message, err = queue.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, "retry", message.T().ID)
	require.NoError(t, message.Nack(fmt.Errorf("again")))

	assert.Equal(t, 0, queue.Size())
	assert.Equal(t, 1, queue.DLQSize())
}

func TestQueueStreamConfigDeadLettersNack(t *testing.T) {
	queue := NewQueue[testPayload](StreamConfig(2))
	ctx := context.Background()
	require.NoError(t, queue.Publish(ctx, &testPayload{ID: "a"}))
	message, err := queue.Consume(ctx)
	require.NoError(t, err)
	require.NoError(t, message.Nack(nil))
	assert.Equal(t, 1, queue.DLQSize())
	assert.Equal(t, 0, queue.Size())
}

func TestQueueConcurrency(t *testing.T) {
	queue := NewQueue[testPayload](DefaultConfig())
	ctx := context.Background()
	producers, perProducer := 8, 25

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				assert.NoError(t, queue.Publish(ctx, &testPayload{ID: fmt.Sprintf("p%d-%d", p, i)}))
			}
		}(p)
	}

	seen := map[string]bool{}
	for i := 0; i < producers*perProducer; i++ {
		msg, err := queue.Consume(ctx)
		require.NoError(t, err)
		seen[msg.T().ID] = true
		assert.NoError(t, msg.Ack())
	}
	wg.Wait()
	assert.Len(t, seen, producers*perProducer)
}

func TestQueueClose(t *testing.T) {
	queue := NewQueue[testPayload](DefaultConfig())
	ctx := context.Background()
	require.NoError(t, queue.Publish(ctx, &testPayload{ID: "pending"}))
	require.NoError(t, queue.Close())
	require.NoError(t, queue.Close())

	assert.ErrorIs(t, queue.Publish(ctx, &testPayload{}), messaging.ErrQueueClosed)

	msg, err := queue.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pending", msg.T().ID)

	_, err = queue.Consume(ctx)
	assert.ErrorIs(t, err, messaging.ErrQueueClosed)
}

func TestQueueContextCancellation(t *testing.T) {
	queue := NewQueue[testPayload](DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, queue.Publish(ctx, &testPayload{ID: "x"}))

	timeoutCtx, cancelTimeout := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelTimeout()
	_, err := queue.Consume(timeoutCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
