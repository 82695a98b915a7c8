package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/missing-persons-intake/internal/app"
	"github.com/joseph-ayodele/missing-persons-intake/internal/batch"
	"github.com/joseph-ayodele/missing-persons-intake/internal/common"
	"github.com/joseph-ayodele/missing-persons-intake/internal/export"
	"github.com/joseph-ayodele/missing-persons-intake/internal/ingest"
	"github.com/joseph-ayodele/missing-persons-intake/internal/pipeline"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir        = flag.String("dir", "", "directory of poster images (required)")
		out        = flag.String("out", "", "output XLSX file path (optional, defaults to parent directory)")
		workers    = flag.Int("workers", 2, "posters processed concurrently")
		inmem      = flag.Bool("inmem", false, "use in-memory SQLite database")
		persist    = flag.Bool("persist", false, "submit drafts that pass validation")
		reporter   = flag.String("reporter", "", "reporter UUID recorded on submitted reports")
		reportsOut = flag.String("reports-out", "", "also export stored reports to this XLSX path")
		watch      = flag.Bool("watch", false, "keep watching --dir and process new posters")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(*dir), "drafts.xlsx")
	}
	reporterID := uuid.New()
	if *reporter != "" {
		parsed, err := uuid.Parse(*reporter)
		if err != nil {
			printError("Error: invalid --reporter, must be a UUID: %v\n", err)
			os.Exit(1)
		}
		reporterID = parsed
	}

	_ = godotenv.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Init(ctx, cfg, app.Options{InMemory: *inmem, NoUpload: !*persist}, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Cleanup()

	runner := batch.NewRunner(func() *pipeline.Orchestrator { return a.NewOrchestrator() }, batch.Config{
		Workers:    *workers,
		Persist:    *persist,
		ReporterID: reporterID,
		JobTimeout: cfg.OCR.Timeout + cfg.LLM.Timeout + cfg.Geocoder.Timeout,
	}, logger)
	exporter := export.NewService(a.Reports, logger)
	ingestor := ingest.NewFSIngestor(logger)

	logger.Info("starting ingestion", "dir", *dir)
	posters, _, stats, err := ingestor.IngestDirectory(ctx, *dir, true)
	if err != nil {
		logger.Error("failed to ingest directory", "error", err)
		os.Exit(1)
	}
	logger.Info("ingestion complete",
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"deduplicated", stats.Deduplicated)

	rows, err := runner.Run(ctx, posters)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("batch run failed", "error", err)
	}
	if err := writeDrafts(exporter, rows, *out); err != nil {
		logger.Error("failed to write output file", "error", err)
		os.Exit(1)
	}
	printSummary(rows, *out)

	if *watch {
		rows = watchLoop(ctx, logger, ingestor, runner, exporter, *dir, *out, rows)
		printSummary(rows, *out)
	}

	if *reportsOut != "" {
		xlsx, err := exporter.ReportsXLSX(context.WithoutCancel(ctx), 0)
		if err != nil {
			logger.Error("failed to export reports", "error", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*reportsOut, xlsx, 0644); err != nil {
			logger.Error("failed to write reports file", "error", err)
			os.Exit(1)
		}
		fmt.Printf("- Reports: %s\n", *reportsOut)
	}
}

// watchLoop processes posters written under dir until interrupted, rewriting the
// drafts workbook after each one.
func watchLoop(ctx context.Context, logger *slog.Logger, ingestor *ingest.FSIngestor, runner *batch.Runner,
	exporter *export.Service, dir, out string, rows []export.Row) []export.Row {
	paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:      []string{dir},
		SkipHidden: true,
		Debounce:   500 * time.Millisecond,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("failed to watch directory", "error", err)
		return rows
	}
	logger.Info("watching for posters", "dir", dir)

	for {
		select {
		case p, ok := <-paths:
			if !ok {
				return rows
			}
			poster, res, err := ingestor.IngestPath(ctx, p)
			if err != nil || res.Deduplicated {
				logger.Info("watch.skip", "path", p, "deduplicated", res.Deduplicated, "error", err)
				continue
			}
			rows = append(rows, runner.Process(ctx, poster))
			if err := writeDrafts(exporter, rows, out); err != nil {
				logger.Error("failed to write output file", "error", err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("watch.error", "error", err)
		case <-ctx.Done():
			return rows
		}
	}
}

func writeDrafts(exporter *export.Service, rows []export.Row, out string) error {
	xlsx, err := exporter.DraftsXLSX(rows)
	if err != nil {
		return err
	}
	return os.WriteFile(out, xlsx, 0644)
}

func printSummary(rows []export.Row, out string) {
	var submitted, incomplete, failures int
	for _, r := range rows {
		switch {
		case r.Err != "":
			failures++
		case r.ReportID != "":
			submitted++
		case len(r.MissingFields) > 0:
			incomplete++
		}
	}
	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Posters processed: %d\n", len(rows))
	fmt.Printf("- Submitted: %d\n", submitted)
	fmt.Printf("- Incomplete: %d\n", incomplete)
	fmt.Printf("- Failures: %d\n", failures)
	fmt.Printf("- Output: %s\n", out)
}
