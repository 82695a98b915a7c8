// Package pipeline drives one intake session: poster recognition and extraction,
// location resolution, and submission.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/missing-persons-intake/constants"
	"github.com/joseph-ayodele/missing-persons-intake/internal/common"
	"github.com/joseph-ayodele/missing-persons-intake/internal/draft"
	"github.com/joseph-ayodele/missing-persons-intake/internal/entity"
	"github.com/joseph-ayodele/missing-persons-intake/internal/llm"
	"github.com/joseph-ayodele/missing-persons-intake/internal/location"
	"github.com/joseph-ayodele/missing-persons-intake/internal/metrics"
	"github.com/joseph-ayodele/missing-persons-intake/internal/ocr"
	"github.com/joseph-ayodele/missing-persons-intake/internal/storage"
	"github.com/joseph-ayodele/missing-persons-intake/internal/validate"
)

// Recognizer starts a text recognition run.
type Recognizer interface {
	Recognize(ctx context.Context, img ocr.Image, languageHint string) *ocr.Job
}

// LocationResolver maps place text to coordinates and never fails.
type LocationResolver interface {
	Resolve(ctx context.Context, text string) location.Resolution
}

// Uploader stores a photo under filename and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, filename, contentType string, data []byte) (string, error)
}

// ReportStore persists a report.
type ReportStore interface {
	CreateReport(ctx context.Context, r entity.Report) error
}

// Status is the user-facing feedback state.
type Status struct {
	State      constants.PipelineState `json:"state"`
	Progress   float64                 `json:"progress"`
	Message    string                  `json:"message"`
	Generation uint64                  `json:"generation"`
}

// Observer receives every status change. Observers run synchronously and must not
// call back into the Orchestrator.
type Observer func(Status)

// SubmitError carries a collaborator's message, meant to be shown verbatim.
type SubmitError struct {
	Kind    error // common.ErrUpload or common.ErrPersist
	Message string
	Err     error
}

func (e *SubmitError) Error() string   { return e.Message }
func (e *SubmitError) Unwrap() []error { return []error{e.Kind, e.Err} }

// maxUploadAttempts bounds the suffixed retries after a filename collision.
const maxUploadAttempts = 5

const (
	msgReading          = "Reading image: %d%%"
	msgExtracting       = "Extracting poster data..."
	msgResolving        = "Locating on the map..."
	msgVerify           = "Data extracted from the poster. Please check every field before submitting."
	msgRecognitionError = "Could not read enough text from the image. Please fill in the form manually."
	msgExtractionError  = "Automatic extraction did not fully succeed. Please fill in the form manually."
	msgSubmitted        = "Report submitted."
)

type Orchestrator struct {
	recognizer Recognizer
	extractor  llm.FieldExtractor
	resolver   LocationResolver
	uploader   Uploader
	store      ReportStore
	draft      *draft.Reconciler
	logger     *slog.Logger

	language         string
	recognizeTimeout time.Duration
	extractTimeout   time.Duration
	now              func() time.Time

	base context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu          sync.Mutex
	observers   []Observer
	imageGen    uint64
	imageState  constants.PipelineState
	progress    float64
	message     string
	cancelImage context.CancelFunc
	locTicket   draft.Ticket
	locActive   bool
}

type Option func(*Orchestrator)

func WithLanguage(lang string) Option {
	return func(o *Orchestrator) {
		if lang != "" {
			o.language = lang
		}
	}
}

func WithTimeouts(recognize, extract time.Duration) Option {
	return func(o *Orchestrator) {
		if recognize > 0 {
			o.recognizeTimeout = recognize
		}
		if extract > 0 {
			o.extractTimeout = extract
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithObserver(fn Observer) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.observers = append(o.observers, fn)
		}
	}
}

// New creates an orchestrator around a fresh draft. uploader and store may be nil
// when the session never submits.
func New(rec Recognizer, ext llm.FieldExtractor, res LocationResolver, uploader Uploader, store ReportStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		recognizer:       rec,
		extractor:        ext,
		resolver:         res,
		uploader:         uploader,
		store:            store,
		draft:            draft.NewReconciler(),
		logger:           slog.Default(),
		language:         "por",
		recognizeTimeout: 60 * time.Second,
		extractTimeout:   45 * time.Second,
		now:              time.Now,
		imageState:       constants.StateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.base, o.stop = context.WithCancel(context.Background())
	return o
}

// Draft exposes the reconciler for manual edits.
func (o *Orchestrator) Draft() *draft.Reconciler { return o.draft }

// Status returns the current feedback state.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.statusLocked()
}

func (o *Orchestrator) statusLocked() Status {
	s := Status{State: o.imageState, Progress: o.progress, Message: o.message, Generation: o.imageGen}
	if s.State == constants.StateIdle && o.locActive {
		s.State = constants.StateResolvingLocation
		s.Message = msgResolving
	}
	return s
}

func (o *Orchestrator) publishLocked() {
	s := o.statusLocked()
	for _, fn := range o.observers {
		fn(s)
	}
}

// setImageState moves the image channel, ignoring runs that were superseded.
func (o *Orchestrator) setImageState(gen uint64, state constants.PipelineState, progress float64, msg string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.imageGen {
		return false
	}
	o.imageState, o.progress, o.message = state, progress, msg
	o.publishLocked()
	return true
}

// fail passes through the transient error state back to idle.
func (o *Orchestrator) fail(gen uint64, msg string) {
	if o.setImageState(gen, constants.StateError, 0, msg) {
		o.setImageState(gen, constants.StateIdle, 0, msg)
	}
}

// UploadPoster sets img as the photo and analyzes it in the background. Any run
// still in flight for an earlier image is cancelled and its results discarded.
func (o *Orchestrator) UploadPoster(img ocr.Image) uint64 {
	photo := &entity.Photo{Filename: img.Filename, ContentType: ocr.DetectContentType(img.Data), Data: img.Data}
	ctx, cancel := context.WithCancel(o.base)
	ctx = common.WithRequestID(ctx, uuid.New().String())

	o.mu.Lock()
	gen := o.draft.BeginImage(photo)
	if o.cancelImage != nil {
		o.cancelImage()
	}
	o.cancelImage = cancel
	o.imageGen = gen
	o.imageState, o.progress, o.message = constants.StateRecognizing, 0, fmt.Sprintf(msgReading, 0)
	o.publishLocked()
	o.mu.Unlock()

	o.logger.Info("pipeline.image.start", "generation", gen, "filename", img.Filename, "bytes", len(img.Data))
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer cancel()
		o.runImage(ctx, gen, img)
	}()
	return gen
}

// SetPhoto replaces the photo without analysis.
func (o *Orchestrator) SetPhoto(img ocr.Image) {
	o.draft.SetPhoto(&entity.Photo{Filename: img.Filename, ContentType: ocr.DetectContentType(img.Data), Data: img.Data})
}

func (o *Orchestrator) stale(gen uint64, stage string) bool {
	if o.draft.Generation() == gen {
		return false
	}
	metrics.RecordStale("image")
	o.logger.Info("pipeline.image.stale", "generation", gen, "stage", stage)
	return true
}

func (o *Orchestrator) runImage(ctx context.Context, gen uint64, img ocr.Image) {
	text, err := o.recognize(ctx, gen, img)
	if o.stale(gen, "recognize") {
		return
	}
	if err != nil {
		o.logger.Info("pipeline.image.recognition_failed", "generation", gen, "error", err)
		o.fail(gen, msgRecognitionError)
		return
	}

	o.setImageState(gen, constants.StateExtracting, 1, msgExtracting)
	ectx, cancel := common.WithTimeout(ctx, o.extractTimeout)
	start := time.Now()
	fields, err := o.extractor.Extract(ectx, text)
	cancel()
	metrics.ObserveStage("extract", err, time.Since(start))
	if o.stale(gen, "extract") {
		return
	}
	if err != nil {
		o.logger.Warn("pipeline.image.extraction_failed", "generation", gen, "error", err)
		o.fail(gen, msgExtractionError)
		return
	}

	merged := o.draft.Merge(gen, fields)
	if !merged.Applied {
		o.stale(gen, "merge")
		return
	}
	o.logger.Info("pipeline.image.merged", "generation", gen, "empty", fields.Empty(), "location", merged.LocationText)

	if merged.LocationText != "" {
		o.mu.Lock()
		ticket := o.draft.BeginLocation(true)
		o.locTicket, o.locActive = ticket, false
		o.mu.Unlock()
		if !o.setImageState(gen, constants.StateResolvingLocation, 1, msgResolving) {
			return
		}
		res := o.resolver.Resolve(ctx, merged.LocationText)
		if !o.draft.ApplyCoordinates(ticket, res.Coordinate) {
			metrics.RecordStale("location")
			o.logger.Info("pipeline.location.stale", "query", merged.LocationText)
		}
	}
	o.setImageState(gen, constants.StateIdle, 1, msgVerify)
}

func (o *Orchestrator) recognize(ctx context.Context, gen uint64, img ocr.Image) (string, error) {
	rctx, cancel := common.WithTimeout(ctx, o.recognizeTimeout)
	defer cancel()
	start := time.Now()
	job := o.recognizer.Recognize(rctx, img, o.language)
	for p := range job.Progress() {
		o.setImageState(gen, constants.StateRecognizing, p, fmt.Sprintf(msgReading, int(p*100)))
	}
	res, err := job.Wait()
	metrics.ObserveStage("recognize", err, time.Since(start))
	return res.Text, err
}

// SelectLocation picks a preset. Every preset except the sentinel resolves at once.
func (o *Orchestrator) SelectLocation(preset string) error {
	text, resolve, err := o.draft.SelectLocationPreset(preset)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}
	if resolve {
		o.resolveLocation(text)
	}
	return nil
}

// TypeManualLocation records manual location text without resolving it.
func (o *Orchestrator) TypeManualLocation(text string) {
	o.draft.SetManualLocation(text)
}

// CommitManualLocation records manual location text and resolves it. Callers use
// it when the field loses focus or the user asks for a search.
func (o *Orchestrator) CommitManualLocation(text string) {
	o.draft.SetManualLocation(text)
	o.resolveLocation(text)
}

func (o *Orchestrator) resolveLocation(text string) {
	o.mu.Lock()
	ticket := o.draft.BeginLocation(false)
	o.locTicket, o.locActive = ticket, true
	o.publishLocked()
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		res := o.resolver.Resolve(o.base, text)
		applied := o.draft.ApplyCoordinates(ticket, res.Coordinate)
		if !applied {
			metrics.RecordStale("location")
			o.logger.Info("pipeline.location.stale", "query", text)
		}
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.locTicket == ticket {
			o.locActive = false
			o.publishLocked()
		}
	}()
}

// Submit validates the draft, uploads the photo, persists the report and resets
// the draft. On any failure the draft is left as it was.
func (o *Orchestrator) Submit(ctx context.Context, reporterID uuid.UUID) (entity.Report, error) {
	payload, err := validate.Validate(o.draft.Snapshot())
	if err != nil {
		metrics.RecordSubmission("invalid")
		return entity.Report{}, err
	}
	if o.uploader == nil || o.store == nil {
		return entity.Report{}, fmt.Errorf("%w: submission is not configured", common.ErrInternal)
	}

	now := o.now()
	photo := payload.Photo
	ext := ocr.DetectExt(ocr.Image{Filename: photo.Filename, Data: photo.Data})
	filename := fmt.Sprintf("%d.%s", now.UnixMilli(), ext)
	url, err := o.uploader.Upload(ctx, filename, photo.ContentType, photo.Data)
	// concurrent submits can land on the same millisecond
	for n := 1; n <= maxUploadAttempts && errors.Is(err, storage.ErrExists); n++ {
		filename = fmt.Sprintf("%d-%d.%s", now.UnixMilli(), n, ext)
		url, err = o.uploader.Upload(ctx, filename, photo.ContentType, photo.Data)
	}
	if err != nil {
		metrics.RecordSubmission("upload_failed")
		o.logger.Error("pipeline.submit.upload_failed", "filename", filename, "error", err)
		return entity.Report{}, &SubmitError{Kind: common.ErrUpload, Message: "Photo upload failed: " + err.Error(), Err: err}
	}

	report := entity.Report{
		ID:         uuid.New(),
		Payload:    payload,
		PhotoURL:   url,
		Status:     constants.CaseMissing,
		ReportedBy: reporterID,
		CreatedAt:  now.UTC(),
	}
	if err := o.store.CreateReport(ctx, report); err != nil {
		metrics.RecordSubmission("persist_failed")
		o.logger.Error("pipeline.submit.persist_failed", "report_id", report.ID, "error", err)
		return entity.Report{}, &SubmitError{Kind: common.ErrPersist, Message: err.Error(), Err: err}
	}

	o.mu.Lock()
	o.draft.Reset()
	if o.cancelImage != nil {
		o.cancelImage()
		o.cancelImage = nil
	}
	o.imageGen = o.draft.Generation()
	o.imageState, o.progress, o.message = constants.StateIdle, 0, msgSubmitted
	o.locActive = false
	o.publishLocked()
	o.mu.Unlock()

	metrics.RecordSubmission("ok")
	o.logger.Info("pipeline.submit.ok", "report_id", report.ID, "photo_url", url)
	return report, nil
}

// Wait blocks until every run started so far has finished.
func (o *Orchestrator) Wait() { o.wg.Wait() }

// Close cancels in-flight runs and waits for them.
func (o *Orchestrator) Close() {
	o.stop()
	o.wg.Wait()
}
