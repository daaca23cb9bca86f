package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrStopped is reported to futures whose job never ran because the queue stopped.
var ErrStopped = errors.New("queue stopped")

// Job represents a queued task.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Enqueued time.Time

	future *Future
}

// Handler processes a job and returns its result.
type Handler func(context.Context, Job) (interface{}, error)

// Result is the outcome delivered to a Future.
type Result struct {
	Value interface{}
	Err   error
}

// Future resolves once the job it was issued for has finished.
type Future struct {
	once sync.Once
	done chan Result
}

func newFuture() *Future {
	return &Future{done: make(chan Result, 1)}
}

func (f *Future) resolve(r Result) {
	if f == nil {
		return
	}
	f.once.Do(func() { f.done <- r })
}

// Await blocks until the job finishes or ctx is done. Abandoning the wait does
// not cancel a job that already started.
func (f *Future) Await(ctx context.Context) (interface{}, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-f.done:
		return r.Value, r.Err
	}
}

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers    int
	BufferSize int
	Logger     *zap.Logger
}

// Queue is a lightweight in-memory job dispatcher backed by goroutines.
type Queue struct {
	name    string
	handler Handler

	workers int
	logger  *zap.Logger

	jobs    chan Job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewQueue builds a new queue with the provided handler.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue{
		name:    name,
		handler: handler,
		workers: cfg.Workers,
		logger:  cfg.Logger,
		jobs:    make(chan Job, cfg.BufferSize),
	}
}

// Start begins worker consumption. Safe to call once.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i + 1)
	}
	q.started = true
	q.logger.Sugar().Infow("queue started", "queue", q.name, "workers", q.workers)
}

// Stop cancels workers, waits for them to exit and fails any job still queued.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()
	for {
		select {
		case job := <-q.jobs:
			job.future.resolve(Result{Err: ErrStopped})
		default:
			q.logger.Sugar().Infow("queue stopped", "queue", q.name)
			return
		}
	}
}

// Submit queues job and returns a Future for its result. Submit waits for
// buffer space until ctx is done.
func (q *Queue) Submit(ctx context.Context, job Job) (*Future, error) {
	job.future = newFuture()
	if err := q.push(ctx, job); err != nil {
		return nil, err
	}
	return job.future, nil
}

func (q *Queue) push(ctx context.Context, job Job) error {
	q.mu.Lock()
	qctx := q.ctx
	started := q.started
	q.mu.Unlock()

	if !started {
		return fmt.Errorf("queue %s not started", q.name)
	}
	if qctx.Err() != nil {
		return fmt.Errorf("queue %s: %w", q.name, ErrStopped)
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	select {
	case <-qctx.Done():
		return fmt.Errorf("queue %s: %w", q.name, ErrStopped)
	case <-ctx.Done():
		return ctx.Err()
	case q.jobs <- job:
		return nil
	}
}

func (q *Queue) worker(workerID int) {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			if q.ctx.Err() != nil {
				job.future.resolve(Result{Err: ErrStopped})
				return
			}
			value, err := q.run(job)
			if err != nil {
				q.logger.Sugar().Warnw("job failed", "queue", q.name, "worker", workerID, "job_id", job.ID, "type", job.Type, "error", err)
			}
			job.future.resolve(Result{Value: value, Err: err})
		}
	}
}

func (q *Queue) run(job Job) (value interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.ID, r)
		}
	}()
	return q.handler(q.ctx, job)
}
