// Package async runs intake jobs on a bounded worker pool.
package async

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by Enqueue after Shutdown.
var ErrClosed = errors.New("queue is shutting down")

// Job is one poster to run through an intake session.
type Job struct {
	ID          string
	Path        string
	Filename    string
	Data        []byte
	SubmittedAt time.Time
	TraceID     string
}

// Handler processes a job. Its error is logged and reported through the results channel.
type Handler func(ctx context.Context, job Job) error

// Result is the outcome of one job.
type Result struct {
	Job      Job
	Err      error
	Duration time.Duration
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
