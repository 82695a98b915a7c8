package ocr

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"

	"github.com/joseph-ayodele/missing-persons-intake/constants"
)

// CLIConfig configures the tesseract command line engine.
type CLIConfig struct {
	Tesseract     string // binary name or absolute path; if empty -> "tesseract"
	TessdataDir   string
	HeicConverter string
	ArtifactDir   string // HEIC conversions are cached here by content hash
}

// CLIEngine shells out to tesseract.
type CLIEngine struct {
	cfg    CLIConfig
	runner Runner
	logger *slog.Logger
}

func NewCLIEngine(cfg CLIConfig, logger *slog.Logger) *CLIEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return NewCLIEngineWithRunner(cfg, execRunner{logger: logger}, logger)
}

// NewCLIEngineWithRunner is NewCLIEngine with an explicit command runner.
func NewCLIEngineWithRunner(cfg CLIConfig, r Runner, logger *slog.Logger) *CLIEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	return &CLIEngine{cfg: cfg, runner: r, logger: logger}
}

func (e *CLIEngine) Recognize(ctx context.Context, img Image, lang string, report func(float64)) (string, error) {
	if len(img.Data) == 0 {
		return "", fmt.Errorf("empty image")
	}
	ext := DetectExt(img)
	if _, ok := constants.AllowedExtensions[ext]; !ok {
		return "", fmt.Errorf("unsupported image type %q", ext)
	}

	tmpDir, err := os.MkdirTemp("", "intake-ocr-*")
	if err != nil {
		return "", err
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	path := filepath.Join(tmpDir, "poster."+ext)
	if err := os.WriteFile(path, img.Data, 0o600); err != nil {
		return "", err
	}
	report(0.1)

	if constants.IsHEICExt(ext) {
		sum := sha256.Sum256(img.Data)
		out, cleanup, err := convertHEICtoPNG(ctx, e.runner, e.logger, e.cfg.HeicConverter, path, e.cfg.ArtifactDir, hex.EncodeToString(sum[:]))
		if err != nil {
			e.logger.Error("heic conversion failed", "filename", img.Filename, "error", err)
			return "", err
		}
		if cleanup != nil {
			defer cleanup()
		}
		path = out
		report(0.3)
	}

	// tesseract <file> stdout -l <lang>
	args := []string{path, "stdout", "-l", lang}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, truncate(string(errb), 512))
	}
	report(0.9)
	return string(out), nil
}

// DetectExt picks the file extension for an image: the filename's when it is an
// accepted one, otherwise the one implied by the sniffed content type.
func DetectExt(img Image) string {
	ext := constants.NormalizeExt(filepath.Ext(img.Filename))
	if _, ok := constants.AllowedExtensions[ext]; ok {
		return ext
	}
	return constants.NormalizeExt(mimetype.Detect(img.Data).Extension())
}

// DetectContentType sniffs the MIME type of the image bytes.
func DetectContentType(data []byte) string {
	return mimetype.Detect(data).String()
}
