package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// convertHEICtoPNG converts a HEIC/HEIF file with the configured converter
// ("heif-convert" | "magick" | "sips"). When cacheDir and hashHex are set the PNG
// is kept at {cacheDir}/{hashHex}.png and reused by later runs over the same bytes.
//
// Returns (outPath, cleanup, err). cleanup is nil for cached artifacts.
func convertHEICtoPNG(ctx context.Context, r Runner, logger *slog.Logger, converter, in, cacheDir, hashHex string) (string, func(), error) {
	var out string
	var cleanup func()
	if cacheDir != "" && hashHex != "" {
		out = filepath.Join(cacheDir, hashHex+".png")
		if st, err := os.Stat(out); err == nil && !st.IsDir() {
			logger.Debug("using cached heic->png", "cache", out)
			return out, nil, nil
		}
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			return "", nil, err
		}
	} else {
		tmpDir, err := os.MkdirTemp("", "intake-heic-*")
		if err != nil {
			return "", nil, err
		}
		cleanup = func() { _ = os.RemoveAll(tmpDir) }
		out = filepath.Join(tmpDir, "poster.png")
	}

	fail := func(err error) (string, func(), error) {
		if cleanup != nil {
			cleanup()
		}
		return "", nil, err
	}

	var args []string
	switch converter {
	case "heif-convert", "magick":
		args = []string{in, out}
	case "sips":
		args = []string{"-s", "format", "png", in, "--out", out}
	default:
		return fail(fmt.Errorf("HEIC not supported: set HEIC_CONVERTER to one of: heif-convert | magick | sips"))
	}
	if _, errb, err := r.Run(ctx, converter, args...); err != nil {
		return fail(fmt.Errorf("%s failed: %w: %s", converter, err, truncate(string(errb), 512)))
	}
	if _, err := os.Stat(out); err != nil {
		return fail(fmt.Errorf("HEIC conversion produced no output: %v", err))
	}
	return out, cleanup, nil
}
