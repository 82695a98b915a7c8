package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/missing-persons-intake/internal/common"
)

// ErrExists is returned when an upload would overwrite a stored file.
var ErrExists = errors.New("file already exists")

// LocalUploader stores photos in a directory and returns their public URL.
type LocalUploader struct {
	dir     string
	baseURL string
	logger  *slog.Logger
}

func NewLocalUploader(dir, publicBaseURL string, logger *slog.Logger) (*LocalUploader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("%w: upload dir is required", common.ErrInvalidInput)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create upload dir: %w", common.ErrUpload, err)
	}
	return &LocalUploader{
		dir:     dir,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:  logger,
	}, nil
}

// Dir is the directory files are written to.
func (u *LocalUploader) Dir() string { return u.dir }

// Upload writes data under filename. Existing files are never overwritten.
func (u *LocalUploader) Upload(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrUpload, err)
	}
	if filename == "" || filepath.Base(filename) != filename || strings.HasPrefix(filename, ".") {
		return "", fmt.Errorf("%w: invalid filename %q", common.ErrUpload, filename)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty file", common.ErrUpload)
	}

	tmp, err := os.CreateTemp(u.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrUpload, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("%w: %w", common.ErrUpload, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrUpload, err)
	}

	dst := filepath.Join(u.dir, filename)
	// link fails when dst exists, unlike rename
	if err := os.Link(tmpName, dst); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%w: %s: %w", common.ErrUpload, filename, ErrExists)
		}
		return "", fmt.Errorf("%w: %w", common.ErrUpload, err)
	}

	url := u.baseURL + "/" + filename
	u.logger.Info("storage.upload.ok", "file", filename, "content_type", contentType, "bytes", len(data), "url", url)
	return url, nil
}
