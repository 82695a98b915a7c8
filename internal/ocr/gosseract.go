//go:build gosseract

package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// InProcessAvailable reports whether the binary was built with libtesseract.
const InProcessAvailable = true

// LibEngine runs tesseract in process through gosseract. A client is not safe for
// concurrent use, so runs are serialized.
type LibEngine struct {
	mu          sync.Mutex
	client      *gosseract.Client
	tessdataDir string
	logger      *slog.Logger
}

// NewInProcessEngine creates an engine backed by libtesseract.
func NewInProcessEngine(tessdataDir string, logger *slog.Logger) (Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client := gosseract.NewClient()
	if tessdataDir != "" {
		if err := client.SetTessdataPrefix(tessdataDir); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set tessdata prefix: %w", err)
		}
	}
	return &LibEngine{client: client, tessdataDir: tessdataDir, logger: logger}, nil
}

func (e *LibEngine) Recognize(ctx context.Context, img Image, lang string, report func(float64)) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.client.SetLanguage(lang); err != nil {
		return "", fmt.Errorf("failed to set OCR language: %w", err)
	}
	if err := e.client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		return "", fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if err := e.client.SetImageFromBytes(img.Data); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}
	report(0.2)
	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}
	report(0.9)
	return text, nil
}

// Close releases the tesseract client.
func (e *LibEngine) Close() error {
	return e.client.Close()
}
