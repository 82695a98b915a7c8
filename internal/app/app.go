// Package app wires the intake stack from configuration for the binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joseph-ayodele/missing-persons-intake/internal/cache"
	"github.com/joseph-ayodele/missing-persons-intake/internal/common"
	"github.com/joseph-ayodele/missing-persons-intake/internal/geocode"
	"github.com/joseph-ayodele/missing-persons-intake/internal/llm"
	"github.com/joseph-ayodele/missing-persons-intake/internal/llm/function"
	"github.com/joseph-ayodele/missing-persons-intake/internal/llm/openai"
	"github.com/joseph-ayodele/missing-persons-intake/internal/location"
	"github.com/joseph-ayodele/missing-persons-intake/internal/ocr"
	"github.com/joseph-ayodele/missing-persons-intake/internal/pipeline"
	"github.com/joseph-ayodele/missing-persons-intake/internal/repository"
	"github.com/joseph-ayodele/missing-persons-intake/internal/storage"
)

type Options struct {
	InMemory bool // force the in-memory SQLite store even if DB_URL is set
	NoUpload bool // skip the photo store; sessions cannot submit
}

// App holds the shared collaborators. Orchestrators are cheap and made per session.
type App struct {
	Config     *common.Config
	Recognizer *ocr.Recognizer
	Extractor  llm.FieldExtractor
	Resolver   *location.Resolver
	Uploader   *storage.LocalUploader
	Reports    repository.ReportRepository
	DB         *entsql.Driver

	pool    *pgxpool.Pool
	closers []func()
	logger  *slog.Logger
}

// Init builds the stack. On error everything opened so far is released.
func Init(ctx context.Context, cfg *common.Config, opts Options, logger *slog.Logger) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Cleanup()
		}
	}()

	if err := a.initDatabase(ctx, opts.InMemory); err != nil {
		return nil, err
	}
	if err := a.initRecognizer(); err != nil {
		return nil, err
	}
	if a.Extractor, err = NewExtractor(cfg.LLM, logger); err != nil {
		return nil, err
	}
	if err := a.initResolver(ctx); err != nil {
		return nil, err
	}
	if !opts.NoUpload {
		if a.Uploader, err = storage.NewLocalUploader(cfg.Storage.UploadDir, cfg.Storage.PublicBaseURL, logger); err != nil {
			return nil, fmt.Errorf("photo store: %w", err)
		}
	}
	return a, nil
}

func (a *App) initDatabase(ctx context.Context, inMemory bool) error {
	db := a.Config.Database
	if db.DSN == "" || inMemory {
		drv, err := repository.OpenSQLite("", a.logger)
		if err != nil {
			return err
		}
		a.DB = drv
		a.logger.Info("app.db.sqlite", "dsn", ":memory:")
	} else {
		drv, pool, err := repository.Open(ctx, repository.Config{
			DSN:             db.DSN,
			MaxConns:        db.MaxConns,
			MinConns:        db.MinConns,
			MaxConnLifetime: db.MaxConnLifetime,
			MaxConnIdleTime: db.MaxConnIdleTime,
			DialTimeout:     db.DialTimeout,
		}, a.logger)
		if err != nil {
			return err
		}
		a.DB, a.pool = drv, pool
	}
	a.closers = append(a.closers, func() { repository.Close(a.DB, a.pool, a.logger) })

	a.Reports = repository.NewReportRepository(a.DB, a.logger)
	if err := a.Reports.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (a *App) initRecognizer() error {
	o := a.Config.OCR
	var engine ocr.Engine
	switch o.Engine {
	case common.OCREngineGosseract:
		e, err := ocr.NewInProcessEngine(o.TessdataDir, a.logger)
		if err != nil {
			return err
		}
		if c, ok := e.(interface{ Close() error }); ok {
			a.closers = append(a.closers, func() { _ = c.Close() })
		}
		engine = e
	default:
		engine = ocr.NewCLIEngine(ocr.CLIConfig{
			Tesseract:     o.TesseractBin,
			TessdataDir:   o.TessdataDir,
			HeicConverter: o.HeicConverter,
			ArtifactDir:   o.ArtifactDir,
		}, a.logger)
	}
	a.Recognizer = ocr.NewRecognizer(engine, o.Language, a.logger)
	a.logger.Info("app.ocr.ready", "engine", o.Engine, "language", o.Language)
	return nil
}

// NewExtractor picks the field extraction client for the configured provider.
func NewExtractor(cfg common.LLMConfig, logger *slog.Logger) (llm.FieldExtractor, error) {
	switch cfg.Provider {
	case common.ProviderOpenAI:
		return openai.NewClient(openai.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger), nil
	case common.ProviderFunction:
		return function.NewClient(function.Config{
			URL:     cfg.FunctionURL,
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
		}, logger), nil
	}
	return nil, fmt.Errorf("%w: unknown LLM provider %q", common.ErrInvalidInput, cfg.Provider)
}

func (a *App) initResolver(ctx context.Context) error {
	g := a.Config.Geocoder
	var c cache.GeocodeCache
	if url := a.Config.Cache.RedisURL; url != "" {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		rc, err := cache.NewRedisCache(pingCtx, url, a.Config.Cache.TTL, a.logger)
		cancel()
		if err != nil {
			return fmt.Errorf("geocode cache: %w", err)
		}
		a.closers = append(a.closers, func() { _ = rc.Close() })
		c = rc
	} else {
		c = cache.NewMemoryCache(a.Config.Cache.TTL)
	}

	geo := geocode.NewClient(geocode.Config{BaseURL: g.BaseURL, UserAgent: g.UserAgent, Timeout: g.Timeout}, a.logger)
	a.Resolver = location.NewResolver(geo, c, location.Config{CountryQualifier: g.CountryQualifier, Timeout: g.Timeout}, a.logger)
	return nil
}

// NewOrchestrator builds a session orchestrator on the shared collaborators.
func (a *App) NewOrchestrator(opts ...pipeline.Option) *pipeline.Orchestrator {
	base := []pipeline.Option{
		pipeline.WithLanguage(a.Config.OCR.Language),
		pipeline.WithTimeouts(a.Config.OCR.Timeout, a.Config.LLM.Timeout),
		pipeline.WithLogger(a.logger),
	}
	var up pipeline.Uploader
	if a.Uploader != nil {
		up = a.Uploader
	}
	return pipeline.New(a.Recognizer, a.Extractor, a.Resolver, up, a.Reports, append(base, opts...)...)
}

func (a *App) HealthCheck(ctx context.Context) error {
	if a.DB == nil {
		return errors.New("database not initialized")
	}
	return repository.HealthCheck(ctx, a.DB, 3*time.Second)
}

// Cleanup releases resources in reverse order of acquisition.
func (a *App) Cleanup() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
