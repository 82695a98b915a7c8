package async

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerQueueRunsEveryJob(t *testing.T) {
	var running, peak atomic.Int32
	handler := func(ctx context.Context, job Job) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		running.Add(-1)
		if job.ID == "job-3" {
			return errors.New("boom")
		}
		return nil
	}

	results := make(chan Result, 16)
	q := NewWorkerQueue(handler, nil, WithWorkers(2), WithQueueSize(1), WithResults(results))

	var collected []Result
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for r := range results {
			collected = append(collected, r)
		}
	}()

	for i := 0; i < 6; i++ {
		if err := q.Enqueue(context.Background(), Job{ID: fmt.Sprintf("job-%d", i)}); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	q.Shutdown(context.Background())
	wg.Wait()

	if len(collected) != 6 {
		t.Fatalf("results = %d, want 6", len(collected))
	}
	failed := 0
	for _, r := range collected {
		if r.Err != nil {
			failed++
			if r.Job.ID != "job-3" {
				t.Errorf("unexpected failure for %s", r.Job.ID)
			}
		}
		if r.Job.SubmittedAt.IsZero() {
			t.Errorf("%s has no SubmittedAt", r.Job.ID)
		}
	}
	if failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
	if peak.Load() > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak.Load())
	}
}

func TestWorkerQueueRejectsAfterShutdown(t *testing.T) {
	q := NewWorkerQueue(func(context.Context, Job) error { return nil }, nil)
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())

	if err := q.Enqueue(context.Background(), Job{ID: "late"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestWorkerQueueEnqueueHonorsContext(t *testing.T) {
	release := make(chan struct{})
	q := NewWorkerQueue(func(context.Context, Job) error {
		<-release
		return nil
	}, nil, WithWorkers(1), WithQueueSize(1))
	defer func() {
		close(release)
		q.Shutdown(context.Background())
	}()

	// "b" waits for the worker to take "a", then fills the buffer
	_ = q.Enqueue(context.Background(), Job{ID: "a"})
	_ = q.Enqueue(context.Background(), Job{ID: "b"})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := q.Enqueue(ctx, Job{ID: "c"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestWorkerQueueJobTimeout(t *testing.T) {
	results := make(chan Result, 1)
	q := NewWorkerQueue(func(ctx context.Context, _ Job) error {
		<-ctx.Done()
		return ctx.Err()
	}, nil, WithWorkers(1), WithJobTimeout(10*time.Millisecond), WithResults(results))

	if err := q.Enqueue(context.Background(), Job{ID: "slow"}); err != nil {
		t.Fatal(err)
	}
	q.Shutdown(context.Background())
	r := <-results
	if !errors.Is(r.Err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", r.Err)
	}
}
