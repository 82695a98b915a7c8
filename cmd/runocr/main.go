package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/missing-persons-intake/internal/common"
	"github.com/joseph-ayodele/missing-persons-intake/internal/ocr"
)

func main() {
	_ = godotenv.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "runocr <poster-image>")
		os.Exit(2)
	}
	path := os.Args[1]
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("read image", "path", path, "error", err)
		os.Exit(1)
	}

	cfg := common.LoadConfig()
	var engine ocr.Engine
	if cfg.OCR.Engine == common.OCREngineGosseract && ocr.InProcessAvailable {
		engine, err = ocr.NewInProcessEngine(cfg.OCR.TessdataDir, logger)
		if err != nil {
			logger.Error("init ocr", "error", err)
			os.Exit(1)
		}
	} else {
		engine = ocr.NewCLIEngine(ocr.CLIConfig{
			Tesseract:     cfg.OCR.TesseractBin,
			TessdataDir:   cfg.OCR.TessdataDir,
			HeicConverter: cfg.OCR.HeicConverter,
			ArtifactDir:   cfg.OCR.ArtifactDir,
		}, logger)
	}
	rec := ocr.NewRecognizer(engine, cfg.OCR.Language, logger)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.OCR.Timeout)
	defer cancel()

	start := time.Now()
	job := rec.Recognize(ctx, ocr.Image{Filename: filepath.Base(path), Data: data}, "")
	for p := range job.Progress() {
		fmt.Fprintf(os.Stderr, "\rReading image: %d%%", int(p*100))
	}
	fmt.Fprintln(os.Stderr)

	res, err := job.Wait()
	if err != nil {
		logger.Error("text recognition failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		os.Exit(1)
	}
	logger.Info("text recognition OK",
		"language", res.Language,
		"chars", len(res.Text),
		"duration_ms", res.Duration.Milliseconds(),
	)
	fmt.Println(res.Text)
}
