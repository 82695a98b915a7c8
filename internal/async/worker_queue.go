package async

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// WorkerQueue fans jobs out to a fixed number of workers.
type WorkerQueue struct {
	handle  Handler
	base    context.Context
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch      chan Job
	results chan Result
	wg      sync.WaitGroup
	once    sync.Once

	mu      sync.RWMutex
	closed  bool
	pending sync.WaitGroup
}

type Option func(*WorkerQueue)

func WithWorkers(n int) Option {
	return func(q *WorkerQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *WorkerQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

// WithJobTimeout bounds each handler call.
func WithJobTimeout(d time.Duration) Option {
	return func(q *WorkerQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithBaseContext derives every job context from ctx, so cancelling it stops running jobs.
func WithBaseContext(ctx context.Context) Option {
	return func(q *WorkerQueue) {
		if ctx != nil {
			q.base = ctx
		}
	}
}

// WithResults delivers every job outcome on ch, which the caller must keep draining.
// The queue closes ch after Shutdown drains.
func WithResults(ch chan Result) Option {
	return func(q *WorkerQueue) {
		q.results = ch
	}
}

func NewWorkerQueue(handle Handler, logger *slog.Logger, opts ...Option) *WorkerQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &WorkerQueue{
		handle:  handle,
		base:    context.Background(),
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *WorkerQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("async.worker.started", "worker_id", workerID)

				for job := range q.ch {
					q.run(workerID, job)
				}

				q.logger.Debug("async.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *WorkerQueue) run(workerID int, job Job) {
	ctx, cancel := context.WithTimeout(q.base, q.timeout)
	start := time.Now()
	err := q.handle(ctx, job)
	cancel()
	elapsed := time.Since(start)

	if err != nil {
		q.logger.Error("async.job.failed", "worker_id", workerID, "job_id", job.ID, "path", job.Path, "error", err)
	} else {
		q.logger.Info("async.job.ok", "worker_id", workerID, "job_id", job.ID, "elapsed_ms", elapsed.Milliseconds())
	}
	if q.results != nil {
		q.results <- Result{Job: job, Err: err, Duration: elapsed}
	}
}

// Enqueue blocks while the queue is full, until ctx is done.
func (q *WorkerQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		q.logger.Warn("async.enqueue.closed", "job_id", job.ID)
		return ErrClosed
	}
	q.pending.Add(1)
	q.mu.RUnlock()
	defer q.pending.Done()

	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		q.logger.Debug("async.enqueued", "job_id", job.ID)
		return nil
	default:
	}
	q.logger.Warn("async.queue.full", "job_id", job.ID)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish or ctx to end.
func (q *WorkerQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		q.pending.Wait()
		close(q.ch)
		q.wg.Wait()
		if q.results != nil {
			close(q.results)
		}
	}()

	select {
	case <-ctx.Done():
		q.logger.Warn("async.shutdown.interrupted")
	case <-done:
		q.logger.Info("async.shutdown.drained")
	}
}
