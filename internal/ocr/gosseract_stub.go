//go:build !gosseract

package ocr

import (
	"errors"
	"log/slog"
)

// InProcessAvailable reports whether the binary was built with libtesseract.
const InProcessAvailable = false

// NewInProcessEngine needs the gosseract build tag.
func NewInProcessEngine(string, *slog.Logger) (Engine, error) {
	return nil, errors.New("in-process OCR not compiled in: rebuild with -tags gosseract")
}
