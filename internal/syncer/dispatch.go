package syncer

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Dispatcher runs directory calls off the caller's goroutine.
// Dispatch must not block; it reports false when the job was dropped.
type Dispatcher interface {
	Dispatch(name string, fn func(context.Context)) bool
}

type job struct {
	name string
	fn   func(context.Context)
}

// Queue is a FIFO drained by a single worker, so deltas reach the directory
// in the order they were dispatched.
type Queue struct {
	log  *zap.Logger
	jobs chan job
	done chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
	closed  bool
}

func NewQueue(size int, log *zap.Logger) *Queue {
	if size <= 0 {
		size = 256
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		log:    log.Named("dispatch"),
		jobs:   make(chan job, size),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the worker. Calling it more than once has no effect.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true

	go func() {
		defer close(q.done)
		for j := range q.jobs {
			q.run(j)
		}
	}()
}

func (q *Queue) run(j job) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("dispatched job panicked", zap.String("job", j.name), zap.Any("panic", r))
		}
	}()
	j.fn(q.ctx)
}

// Dispatch enqueues fn without blocking. A full or stopped queue drops the job.
func (q *Queue) Dispatch(name string, fn func(context.Context)) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.log.Warn("queue stopped, dropping job", zap.String("job", name))
		return false
	}
	select {
	case q.jobs <- job{name: name, fn: fn}:
		return true
	default:
		q.log.Warn("queue full, dropping job", zap.String("job", name), zap.Int("capacity", cap(q.jobs)))
		return false
	}
}

// Stop refuses new jobs and waits for accepted ones to finish. If ctx expires
// first, in-flight calls are cancelled and ctx's error is returned.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	started := q.started
	close(q.jobs)
	q.mu.Unlock()

	if !started {
		q.cancel()
		return nil
	}

	defer q.cancel()
	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
