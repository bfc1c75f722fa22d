package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesTasks(t *testing.T) {
	var processed int32
	done := make(chan struct{}, 3)
	q := NewQueue("test", func(ctx context.Context, task Task) error {
		atomic.AddInt32(&processed, 1)
		done <- struct{}{}
		return nil
	}, QueueConfig{Workers: 2, BufferSize: 4})
	q.Start(context.Background())
	defer q.Stop()

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(context.Background(), Task{ID: "t", Kind: "audit"}))
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("task not processed")
		}
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&processed))
}

func TestQueueRetriesFailedTask(t *testing.T) {
	var attempts int32
	done := make(chan struct{})
	q := NewQueue("retry", func(ctx context.Context, task Task) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("boom")
		}
		close(done)
		return nil
	}, QueueConfig{MaxRetries: 3, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.TryEnqueue(Task{ID: "r"}))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task never succeeded")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestTryEnqueueRejectsWhenStopped(t *testing.T) {
	q := NewQueue("idle", func(context.Context, Task) error { return nil }, QueueConfig{})
	err := q.TryEnqueue(Task{ID: "x"})
	assert.ErrorIs(t, err, ErrQueueStopped)
}

func TestTryEnqueueRejectsWhenFull(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{}, 1)
	q := NewQueue("full", func(ctx context.Context, task Task) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())

	require.NoError(t, q.TryEnqueue(Task{ID: "1"}))
	<-started
	require.NoError(t, q.TryEnqueue(Task{ID: "2"}))
	err := q.TryEnqueue(Task{ID: "3"})
	assert.ErrorIs(t, err, ErrQueueFull)

	close(block)
	q.Stop()
}

func TestStopDrainsBufferedTasks(t *testing.T) {
	var processed int32
	gate := make(chan struct{})
	q := NewQueue("drain", func(ctx context.Context, task Task) error {
		if task.ID == "first" {
			<-gate
		}
		atomic.AddInt32(&processed, 1)
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 4})
	q.Start(context.Background())

	require.NoError(t, q.TryEnqueue(Task{ID: "first"}))
	require.NoError(t, q.TryEnqueue(Task{ID: "second"}))
	require.NoError(t, q.TryEnqueue(Task{ID: "third"}))

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(gate)
	}()
	q.Stop()
	assert.Equal(t, int32(3), atomic.LoadInt32(&processed))
}
