package services

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrQueueFull        = errors.New("job queue is full")
	ErrDispatcherClosed = errors.New("dispatcher is shut down")
)

// Task is the body of a background job. It receives a context carrying the
// job deadline.
type Task func(ctx context.Context) error

type queuedTask struct {
	jobID string
	run   Task
}

// Dispatcher runs tasks on a fixed pool of workers fed by a bounded queue.
type Dispatcher struct {
	jobs    *JobService
	lggr    *zap.Logger
	workers int
	timeout time.Duration

	queue chan queuedTask

	mu     sync.RWMutex
	closed bool

	baseCtx context.Context
	cancel  context.CancelFunc
	group   *errgroup.Group
}

func NewDispatcher(jobs *JobService, workers, queueSize int, timeout time.Duration, lggr *zap.Logger) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		jobs:    jobs,
		lggr:    lggr,
		workers: workers,
		timeout: timeout,
		queue:   make(chan queuedTask, queueSize),
		baseCtx: ctx,
		cancel:  cancel,
		group:   &errgroup.Group{},
	}
}

// Start launches the workers.
func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		worker := i + 1
		d.group.Go(func() error {
			for t := range d.queue {
				d.run(worker, t)
			}
			return nil
		})
	}
	d.lggr.Info("job workers started", zap.Int("workers", d.workers), zap.Int("queue_size", cap(d.queue)))
}

// Submit enqueues task for jobID without blocking.
func (d *Dispatcher) Submit(jobID string, task Task) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case d.queue <- queuedTask{jobID: jobID, run: task}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (d *Dispatcher) run(worker int, t queuedTask) {
	ctx := d.baseCtx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	lggr := d.lggr.With(zap.String("job_id", t.jobID), zap.Int("worker", worker))
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			lggr.Error("job panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			d.jobs.Fail(ctx, t.jobID, fmt.Sprintf("Error inesperado: %v", r))
		}
	}()

	err := t.run(ctx)
	if err == nil {
		lggr.Info("job finished", zap.Duration("elapsed", time.Since(started)))
		return
	}

	lggr.Warn("job finished with error", zap.Duration("elapsed", time.Since(started)), zap.Error(err))
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		d.jobs.Fail(ctx, t.jobID, fmt.Sprintf("Tiempo de procesamiento excedido (%s)", d.timeout))
		return
	}
	// tasks normally record their own failure; make sure the job is final
	if job, getErr := d.jobs.Get(context.WithoutCancel(ctx), t.jobID); getErr == nil && !job.Status.IsFinal() {
		d.jobs.Fail(ctx, t.jobID, fmt.Sprintf("Error inesperado: %v", err))
	}
}

// Shutdown stops intake and waits for queued and running tasks. When ctx
// expires first, running tasks are cancelled and ctx's error is returned.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- d.group.Wait() }()

	select {
	case err := <-done:
		d.cancel()
		return err
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}
