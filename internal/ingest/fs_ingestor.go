package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joseph-ayodele/missing-persons-intake/constants"
)

// DefaultMaxBytes bounds a single poster read.
const DefaultMaxBytes = 15 << 20

var (
	ErrUnsupportedExt = errors.New("unsupported or missing extension")
	ErrTooLarge       = errors.New("file too large")
)

// FSIngestor reads posters from the local filesystem. Files with content already
// seen by this ingestor are reported as duplicates and not returned again.
type FSIngestor struct {
	AllowedExts map[string]struct{} // lowercased sans '.'; nil -> constants.AllowedExtensions
	MaxBytes    int64
	logger      *slog.Logger

	mu   sync.Mutex
	seen map[string]string // hash hex -> first path
}

func NewFSIngestor(logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSIngestor{
		MaxBytes: DefaultMaxBytes,
		logger:   logger,
		seen:     make(map[string]string),
	}
}

// AllowedExt reports whether ext is accepted.
func (i *FSIngestor) AllowedExt(ext string) bool {
	allow := i.AllowedExts
	if allow == nil {
		allow = constants.AllowedExtensions
	}
	_, ok := allow[constants.NormalizeExt(ext)]
	return ok
}

// IngestPath reads and hashes one file. A duplicate returns a zero Poster with
// result.Deduplicated set.
func (i *FSIngestor) IngestPath(ctx context.Context, path string) (Poster, IngestionResult, error) {
	res := IngestionResult{SourcePath: path}
	if err := ctx.Err(); err != nil {
		return Poster{}, res, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return Poster{}, res, err
	}
	res.SourcePath = abs

	ext := constants.NormalizeExt(filepath.Ext(abs))
	res.FileExt = ext
	if ext == "" || !i.AllowedExt(ext) {
		return Poster{}, res, fmt.Errorf("%w: %q", ErrUnsupportedExt, ext)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return Poster{}, res, err
	}
	if i.MaxBytes > 0 && info.Size() > i.MaxBytes {
		return Poster{}, res, fmt.Errorf("%w: %d bytes", ErrTooLarge, info.Size())
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return Poster{}, res, err
	}
	sum := sha256.Sum256(data)
	res.HashHex = hex.EncodeToString(sum[:])

	i.mu.Lock()
	first, dup := i.seen[res.HashHex]
	if !dup {
		i.seen[res.HashHex] = abs
	}
	i.mu.Unlock()
	if dup {
		res.Deduplicated, res.DuplicateOf = true, first
		i.logger.Info("ingest.duplicate", "path", abs, "duplicate_of", first)
		return Poster{}, res, nil
	}

	return Poster{
		Path:     abs,
		Filename: filepath.Base(abs),
		Ext:      ext,
		Data:     data,
		HashHex:  res.HashHex,
		ModTime:  info.ModTime(),
	}, res, nil
}

// IngestDirectory walks root, skips hidden entries if requested, and reads every
// allowed file. Returns the new posters, per-file results and aggregate stats.
func (i *FSIngestor) IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]Poster, []IngestionResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, nil, DirStats{}, errors.New("root path is required")
	}

	var posters []Poster
	var results []IngestionResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !i.AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		p, r, err := i.IngestPath(ctx, path)
		if err != nil {
			r.Err = err.Error()
			results = append(results, r)
			stats.Failed++
			i.logger.Warn("ingest.failed", "path", path, "error", err)
			return nil
		}
		results = append(results, r)
		stats.Succeeded++
		if r.Deduplicated {
			stats.Deduplicated++
			return nil
		}
		posters = append(posters, p)
		return nil
	})
	if err != nil {
		return posters, results, stats, fmt.Errorf("walk: %w", err)
	}

	i.logger.Info("ingest.directory.done", "root", root, "scanned", stats.Scanned, "matched", stats.Matched,
		"succeeded", stats.Succeeded, "deduplicated", stats.Deduplicated, "failed", stats.Failed)
	return posters, results, stats, nil
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
