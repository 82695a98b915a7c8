// Package batch runs a directory of posters through intake sessions.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/missing-persons-intake/internal/async"
	"github.com/joseph-ayodele/missing-persons-intake/internal/export"
	"github.com/joseph-ayodele/missing-persons-intake/internal/ingest"
	"github.com/joseph-ayodele/missing-persons-intake/internal/ocr"
	"github.com/joseph-ayodele/missing-persons-intake/internal/pipeline"
	"github.com/joseph-ayodele/missing-persons-intake/internal/validate"
)

// Factory builds a fresh orchestrator for one poster.
type Factory func() *pipeline.Orchestrator

type Config struct {
	Workers    int
	Persist    bool      // submit valid drafts
	ReporterID uuid.UUID // recorded as reported_by on submitted drafts
	JobTimeout time.Duration
}

// Runner turns each poster into one review row.
type Runner struct {
	factory Factory
	cfg     Config
	logger  *slog.Logger
}

func NewRunner(factory Factory, cfg Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	return &Runner{factory: factory, cfg: cfg, logger: logger}
}

// Process runs one poster: the poster is both the photo and the recognition input.
func (r *Runner) Process(ctx context.Context, p ingest.Poster) export.Row {
	row := export.Row{Source: p.Path}
	orch := r.factory()

	orch.UploadPoster(ocr.Image{Filename: p.Filename, Data: p.Data})
	done := make(chan struct{})
	go func() {
		orch.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		orch.Close()
		row.Draft = orch.Draft().Snapshot()
		row.Err = ctx.Err().Error()
		return row
	}
	defer orch.Close()

	row.Draft = orch.Draft().Snapshot()
	row.Message = orch.Status().Message

	if _, err := validate.Validate(row.Draft); err != nil {
		var failure *validate.Failure
		if errors.As(err, &failure) {
			row.MissingFields = failure.MissingFields
		} else {
			row.Err = err.Error()
		}
		r.logger.Info("batch.poster.incomplete", "path", p.Path, "missing", row.MissingFields)
		return row
	}
	if !r.cfg.Persist {
		return row
	}

	report, err := orch.Submit(ctx, r.cfg.ReporterID)
	if err != nil {
		row.Err = err.Error()
		r.logger.Error("batch.poster.submit_failed", "path", p.Path, "error", err)
		return row
	}
	row.ReportID = report.ID.String()
	row.PhotoURL = report.PhotoURL
	r.logger.Info("batch.poster.submitted", "path", p.Path, "report_id", report.ID)
	return row
}

// Run processes posters on the worker pool. Rows keep the input order.
func (r *Runner) Run(ctx context.Context, posters []ingest.Poster) ([]export.Row, error) {
	rows := make([]export.Row, len(posters))
	var mu sync.Mutex

	handler := func(jobCtx context.Context, job async.Job) error {
		i, err := strconv.Atoi(job.ID)
		if err != nil || i < 0 || i >= len(posters) {
			return fmt.Errorf("unknown job %q", job.ID)
		}
		row := r.Process(jobCtx, posters[i])
		mu.Lock()
		rows[i] = row
		mu.Unlock()
		if row.Err != "" {
			return errors.New(row.Err)
		}
		return nil
	}

	q := async.NewWorkerQueue(handler, r.logger,
		async.WithWorkers(r.cfg.Workers),
		async.WithQueueSize(r.cfg.Workers),
		async.WithBaseContext(ctx),
		async.WithJobTimeout(r.cfg.JobTimeout))
	var enqueueErr error
	for i, p := range posters {
		err := q.Enqueue(ctx, async.Job{ID: strconv.Itoa(i), Path: p.Path, Filename: p.Filename, Data: p.Data, TraceID: p.HashHex})
		if err != nil {
			enqueueErr = err
			break
		}
	}
	q.Shutdown(context.WithoutCancel(ctx))
	return rows, enqueueErr
}
