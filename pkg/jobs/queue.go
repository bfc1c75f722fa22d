package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrQueueFull is returned by TryEnqueue when the buffer has no room.
var ErrQueueFull = errors.New("queue full")

// ErrQueueStopped is returned when enqueueing into a queue that is not running.
var ErrQueueStopped = errors.New("queue not running")

// Task is one unit of background work.
type Task struct {
	ID       string
	Kind     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a task. A returned error schedules a retry.
type Handler func(context.Context, Task) error

// QueueConfig configures the worker pool.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Queue dispatches tasks to a fixed set of goroutines. Tasks still buffered
// when Stop is called are handed to the handler once before workers exit.
type Queue struct {
	name    string
	handler Handler
	cfg     QueueConfig
	logger  *zap.Logger

	tasks   chan Task
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	running bool
}

// NewQueue builds a queue; call Start before enqueueing.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Queue{
		name:    name,
		handler: handler,
		cfg:     cfg,
		logger:  cfg.Logger.With(zap.String("queue", name)),
		tasks:   make(chan Task, cfg.BufferSize),
	}
}

// Start launches the workers. Subsequent calls are no-ops.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
	q.running = true
	q.logger.Info("queue started", zap.Int("workers", q.cfg.Workers))
}

// Stop cancels the workers and waits for them to drain the buffer.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()
	q.logger.Info("queue stopped")
}

// Len reports the number of buffered tasks.
func (q *Queue) Len() int {
	return len(q.tasks)
}

// Enqueue blocks until the task is buffered or ctx ends.
func (q *Queue) Enqueue(ctx context.Context, task Task) error {
	qctx, err := q.runningContext()
	if err != nil {
		return err
	}
	if task.Enqueued.IsZero() {
		task.Enqueued = time.Now().UTC()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-qctx.Done():
		return fmt.Errorf("%w: %s", ErrQueueStopped, q.name)
	case q.tasks <- task:
		return nil
	}
}

// TryEnqueue buffers the task without blocking.
func (q *Queue) TryEnqueue(task Task) error {
	if _, err := q.runningContext(); err != nil {
		return err
	}
	if task.Enqueued.IsZero() {
		task.Enqueued = time.Now().UTC()
	}
	select {
	case q.tasks <- task:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrQueueFull, q.name)
	}
}

func (q *Queue) runningContext() (context.Context, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if !q.running {
		return nil, fmt.Errorf("%w: %s", ErrQueueStopped, q.name)
	}
	return q.ctx, nil
}

func (q *Queue) work() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			q.drain()
			return
		case task := <-q.tasks:
			q.run(q.ctx, task)
		}
	}
}

func (q *Queue) drain() {
	for {
		select {
		case task := <-q.tasks:
			// the queue context is gone; give the handler a fresh one
			if err := q.handler(context.Background(), task); err != nil {
				q.logger.Error("task dropped during shutdown", zap.String("task_id", task.ID), zap.String("kind", task.Kind), zap.Error(err))
			}
		default:
			return
		}
	}
}

func (q *Queue) run(ctx context.Context, task Task) {
	err := q.handler(ctx, task)
	if err == nil {
		return
	}
	task.Attempt++
	if task.Attempt > q.cfg.MaxRetries {
		q.logger.Error("task exceeded retries", zap.String("task_id", task.ID), zap.String("kind", task.Kind), zap.Error(err))
		return
	}
	q.logger.Warn("task failed, retrying", zap.String("task_id", task.ID), zap.String("kind", task.Kind), zap.Int("attempt", task.Attempt), zap.Error(err))

	go func(t Task) {
		timer := time.NewTimer(q.cfg.RetryDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
			if err := q.TryEnqueue(t); err != nil {
				q.logger.Error("failed to requeue task", zap.String("task_id", t.ID), zap.Error(err))
			}
		}
	}(task)
}
