// Package ingest finds poster images on disk for batch intake.
package ingest

import (
	"context"
	"time"
)

// Poster is one image file read from disk.
type Poster struct {
	Path     string
	Filename string
	Ext      string
	Data     []byte
	HashHex  string
	ModTime  time.Time
}

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	SourcePath   string
	HashHex      string
	FileExt      string
	Deduplicated bool
	DuplicateOf  string
	Err          string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// Ingestor reads posters from a path or a directory tree.
type Ingestor interface {
	IngestPath(ctx context.Context, path string) (Poster, IngestionResult, error)
	IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]Poster, []IngestionResult, DirStats, error)
}
