// Package ocr turns poster images into text. Engines are substitutable; the
// Recognizer adds normalization, the minimum-length rule and a progress stream.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/joseph-ayodele/missing-persons-intake/constants"
	"github.com/joseph-ayodele/missing-persons-intake/internal/common"
)

// ErrInsufficientText marks a run whose text is empty or too short to be useful.
var ErrInsufficientText = fmt.Errorf("%w: insufficient text", common.ErrRecognition)

// Image is the raw input of a recognition run.
type Image struct {
	Filename string
	Data     []byte
}

// Engine performs the actual recognition. report may be called with fractions in
// [0,1]; it never blocks.
type Engine interface {
	Recognize(ctx context.Context, img Image, lang string, report func(float64)) (string, error)
}

// Result is the outcome of a successful run.
type Result struct {
	Text     string
	Language string
	Duration time.Duration
}

// Job is a single, non-restartable recognition run. Progress yields increasing
// fractions and is closed once the run finishes; Wait blocks for the result.
type Job struct {
	progress chan float64
	done     chan struct{}

	mu     sync.Mutex
	sent   bool
	last   float64
	closed bool

	result Result
	err    error
}

func newJob() *Job {
	return &Job{
		progress: make(chan float64, 32),
		done:     make(chan struct{}),
	}
}

// Progress returns the progress stream.
func (j *Job) Progress() <-chan float64 { return j.progress }

// Done is closed when the result is available.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the run finishes.
func (j *Job) Wait() (Result, error) {
	<-j.done
	return j.result, j.err
}

func (j *Job) report(p float64) {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed || (j.sent && p <= j.last) {
		return
	}
	j.sent, j.last = true, p
	select {
	case j.progress <- p:
	default: // slow observers miss intermediate values
	}
}

func (j *Job) finish(res Result, err error) {
	j.mu.Lock()
	j.result, j.err = res, err
	j.closed = true
	close(j.progress)
	j.mu.Unlock()
	close(j.done)
}

// Recognizer wraps an Engine.
type Recognizer struct {
	engine   Engine
	language string
	minChars int
	logger   *slog.Logger
}

// NewRecognizer returns a recognizer using lang when the caller gives no hint.
func NewRecognizer(engine Engine, lang string, logger *slog.Logger) *Recognizer {
	if logger == nil {
		logger = slog.Default()
	}
	if lang == "" {
		lang = "por"
	}
	return &Recognizer{engine: engine, language: lang, minChars: constants.MinRecognizedChars, logger: logger}
}

// Recognize starts a run in the background. languageHint may be empty.
func (r *Recognizer) Recognize(ctx context.Context, img Image, languageHint string) *Job {
	lang := languageHint
	if lang == "" {
		lang = r.language
	}
	job := newJob()
	go func() {
		res, err := r.run(ctx, img, lang, job.report)
		job.finish(res, err)
	}()
	return job
}

func (r *Recognizer) run(ctx context.Context, img Image, lang string, report func(float64)) (Result, error) {
	start := time.Now()
	r.logger.Info("ocr.start", "filename", img.Filename, "bytes", len(img.Data), "lang", lang)
	report(0)

	raw, err := r.engine.Recognize(ctx, img, lang, report)
	if err != nil {
		r.logger.Warn("ocr.failed", "filename", img.Filename, "error", err)
		return Result{}, fmt.Errorf("%w: %v", common.ErrRecognition, err)
	}
	txt := Normalize(raw)
	if utf8.RuneCountInString(txt) < r.minChars {
		r.logger.Info("ocr.insufficient_text", "filename", img.Filename, "chars", utf8.RuneCountInString(txt))
		return Result{}, ErrInsufficientText
	}
	report(1)

	res := Result{Text: txt, Language: lang, Duration: time.Since(start)}
	r.logger.Info("ocr.done", "filename", img.Filename, "chars", len(txt), "duration_ms", res.Duration.Milliseconds())
	return res, nil
}
