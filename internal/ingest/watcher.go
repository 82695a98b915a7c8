package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/joseph-ayodele/missing-persons-intake/constants"
)

type WatchConfig struct {
	Roots       []string            // directories to watch (recursive)
	AllowedExts map[string]struct{} // nil -> constants.AllowedExtensions
	InitialScan bool                // emit files already present
	SkipHidden  bool
	Debounce    time.Duration // coalesce rapid write/rename bursts per file
	Logger      *slog.Logger
}

// StartWatcher emits paths of poster files created or modified under the roots.
// Both channels close when ctx is done.
func StartWatcher(ctx context.Context, cfg WatchConfig) (<-chan string, <-chan error, error) {
	if len(cfg.Roots) == 0 {
		return nil, nil, errors.New("no roots provided")
	}
	if cfg.AllowedExts == nil {
		cfg.AllowedExts = constants.AllowedExtensions
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("ingest.watch.failed", "error", err)
		return nil, nil, err
	}

	evCh := make(chan string, 256)
	errCh := make(chan error, 1)
	var initial []string

	addDir := func(root string, onFile func(string)) error {
		return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if cfg.SkipHidden && path != root && IsHidden(path) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return w.Add(path)
			}
			if onFile != nil && allowed(path, cfg.AllowedExts) {
				onFile(path)
			}
			return nil
		})
	}
	var collect func(string)
	if cfg.InitialScan {
		collect = func(p string) { initial = append(initial, p) }
	}
	for _, r := range cfg.Roots {
		if err := addDir(r, collect); err != nil {
			logger.Error("ingest.watch.add_root_failed", "root", r, "error", err)
			_ = w.Close()
			return nil, nil, err
		}
	}

	go func() {
		defer close(errCh)
		defer close(evCh)
		defer func() {
			if err := w.Close(); err != nil {
				logger.Warn("ingest.watch.close_failed", "error", err)
			}
		}()

		emit := func(p string) {
			select {
			case evCh <- p:
			case <-ctx.Done():
			}
		}
		for _, p := range initial {
			emit(p)
		}

		schedule := emit
		if cfg.Debounce > 0 {
			d := newDebouncer(cfg.Debounce, emit)
			defer d.stop()
			schedule = d.schedule
		}

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if cfg.SkipHidden && IsHidden(e.Name) {
					continue
				}
				if e.Has(fsnotify.Create) {
					if info, err := os.Stat(e.Name); err == nil && info.IsDir() {
						// files copied in together with the directory get no events of their own
						if err := addDir(e.Name, schedule); err != nil {
							logger.Warn("ingest.watch.add_dir_failed", "path", e.Name, "error", err)
						}
						continue
					}
				}
				if allowed(e.Name, cfg.AllowedExts) && (e.Has(fsnotify.Create) || e.Has(fsnotify.Write) || e.Has(fsnotify.Rename)) {
					schedule(e.Name)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("ingest.watch.error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

// debouncer fires once per path after delay has passed without a new schedule.
type debouncer struct {
	delay time.Duration
	fire  func(string)

	mu     sync.Mutex
	timers map[string]*time.Timer
	wg     sync.WaitGroup
}

func newDebouncer(delay time.Duration, fire func(string)) *debouncer {
	return &debouncer{delay: delay, fire: fire, timers: make(map[string]*time.Timer)}
}

func (d *debouncer) schedule(p string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scheduleLocked(p)
}

func (d *debouncer) scheduleLocked(p string) {
	if t, ok := d.timers[p]; ok && t.Stop() {
		d.wg.Done()
	}
	d.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(d.delay, func() {
		defer d.wg.Done()
		d.mu.Lock()
		// a re-arm may already have replaced this timer
		if d.timers[p] == t {
			delete(d.timers, p)
		}
		d.mu.Unlock()
		d.fire(p)
	})
	d.timers[p] = t
}

func (d *debouncer) pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

// stop cancels pending timers and waits for callbacks already running.
func (d *debouncer) stop() {
	d.mu.Lock()
	for p, t := range d.timers {
		if t.Stop() {
			d.wg.Done()
		}
		delete(d.timers, p)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func allowed(path string, exts map[string]struct{}) bool {
	_, ok := exts[constants.NormalizeExt(filepath.Ext(path))]
	return ok
}
