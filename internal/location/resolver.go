// Package location resolves free-text place names to coordinates: gazetteer first,
// then the cache, then one external geocoding lookup. Resolution never fails; the
// worst outcome is "unresolved".
package location

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/joseph-ayodele/missing-persons-intake/constants"
	"github.com/joseph-ayodele/missing-persons-intake/internal/cache"
	"github.com/joseph-ayodele/missing-persons-intake/internal/entity"
	"github.com/joseph-ayodele/missing-persons-intake/internal/gazetteer"
	"github.com/joseph-ayodele/missing-persons-intake/internal/geocode"
	"github.com/joseph-ayodele/missing-persons-intake/internal/metrics"
)

// Source names who answered a resolution.
type Source string

const (
	SourceGazetteer  Source = "gazetteer"
	SourceCache      Source = "cache"
	SourceGeocoder   Source = "geocoder"
	SourceUnresolved Source = "unresolved"
)

// Resolution is the outcome of Resolve. Coordinate is nil when unresolved.
type Resolution struct {
	Query      string
	Coordinate *entity.Coordinate
	Source     Source
}

func (r Resolution) Resolved() bool { return r.Coordinate != nil }

type Config struct {
	CountryQualifier string        // appended to geocoder queries, default "Mozambique"
	Timeout          time.Duration // per geocoder lookup, default 10s
}

type Resolver struct {
	geocoder geocode.Geocoder
	cache    cache.GeocodeCache
	cfg      Config
	group    singleflight.Group
	logger   *slog.Logger
}

// NewResolver builds a resolver. c may be nil to disable caching.
func NewResolver(g geocode.Geocoder, c cache.GeocodeCache, cfg Config, logger *slog.Logger) *Resolver {
	if cfg.CountryQualifier == "" {
		cfg.CountryQualifier = constants.CountryQualifier
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{geocoder: g, cache: c, cfg: cfg, logger: logger}
}

// Resolve maps text to a coordinate.
func (r *Resolver) Resolve(ctx context.Context, text string) Resolution {
	res := r.resolve(ctx, text)
	metrics.RecordResolution(string(res.Source))
	return res
}

func (r *Resolver) resolve(ctx context.Context, text string) Resolution {
	if c, ok := gazetteer.Lookup(text); ok {
		return Resolution{Query: text, Coordinate: &c, Source: SourceGazetteer}
	}
	q := strings.TrimSpace(text)
	if q == "" || q == constants.Other {
		return Resolution{Query: text, Source: SourceUnresolved}
	}
	if c, ok := gazetteer.Lookup(q); ok {
		return Resolution{Query: text, Coordinate: &c, Source: SourceGazetteer}
	}

	if r.cache != nil {
		c, ok, err := r.cache.Get(ctx, q)
		if err != nil {
			r.logger.Warn("location.cache.get_error", "query", q, "error", err)
		} else if ok {
			return Resolution{Query: text, Coordinate: &c, Source: SourceCache}
		}
	}

	if r.geocoder == nil {
		return Resolution{Query: text, Source: SourceUnresolved}
	}

	// identical lookups in flight share one request, detached from any single caller
	ch := r.group.DoChan(cache.Key(q), func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.Timeout)
		defer cancel()
		start := time.Now()
		c, err := r.geocoder.Geocode(fctx, q+", "+r.cfg.CountryQualifier)
		metrics.ObserveStage("geocode", err, time.Since(start))
		if err != nil {
			return nil, err
		}
		if r.cache != nil {
			if err := r.cache.Set(fctx, q, c); err != nil {
				r.logger.Warn("location.cache.set_error", "query", q, "error", err)
			}
		}
		return c, nil
	})

	select {
	case <-ctx.Done():
		r.logger.Info("location.resolve.abandoned", "query", q, "error", ctx.Err())
		return Resolution{Query: text, Source: SourceUnresolved}
	case out := <-ch:
		if out.Err != nil {
			r.logger.Info("location.resolve.unresolved", "query", q, "error", out.Err)
			return Resolution{Query: text, Source: SourceUnresolved}
		}
		c := out.Val.(entity.Coordinate)
		return Resolution{Query: text, Coordinate: &c, Source: SourceGeocoder}
	}
}
