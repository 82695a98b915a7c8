// Package geocode talks to a Nominatim-compatible search endpoint.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/missing-persons-intake/internal/common"
	"github.com/joseph-ayodele/missing-persons-intake/internal/entity"
)

// ErrNoCandidates is returned when the service answers with an empty list.
var ErrNoCandidates = fmt.Errorf("%w: no candidates", common.ErrGeocode)

// Geocoder resolves a free-text query to the first candidate coordinate.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (entity.Coordinate, error)
}

type Config struct {
	BaseURL   string // default https://nominatim.openstreetmap.org
	UserAgent string // default MissingPeopleMozambique/1.0
	Timeout   time.Duration
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://nominatim.openstreetmap.org"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "MissingPeopleMozambique/1.0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

type candidate struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode issues GET {base}/search?format=json&q=<query>. Errors wrap common.ErrGeocode.
func (c *Client) Geocode(ctx context.Context, query string) (entity.Coordinate, error) {
	start := time.Now()
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/search?" + url.Values{
		"format": {"json"},
		"q":      {query},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return entity.Coordinate{}, fmt.Errorf("%w: build request: %v", common.ErrGeocode, err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("geocode.http.send_error", "query", query, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return entity.Coordinate{}, fmt.Errorf("%w: %v", common.ErrGeocode, err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.logger.Warn("geocode.http.response_body_close_error", "error", err)
		}
	}(resp.Body)

	if resp.StatusCode/100 != 2 {
		c.logger.Warn("geocode.http.status", "query", query, "status", resp.StatusCode)
		return entity.Coordinate{}, fmt.Errorf("%w: non-2xx status: %d", common.ErrGeocode, resp.StatusCode)
	}

	var list []candidate
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return entity.Coordinate{}, fmt.Errorf("%w: decode: %v", common.ErrGeocode, err)
	}
	if len(list) == 0 {
		c.logger.Info("geocode.no_candidates", "query", query, "elapsed_ms", time.Since(start).Milliseconds())
		return entity.Coordinate{}, ErrNoCandidates
	}

	coord, err := list[0].coordinate()
	if err != nil {
		return entity.Coordinate{}, fmt.Errorf("%w: %v", common.ErrGeocode, err)
	}
	c.logger.Info("geocode.ok",
		"query", query,
		"display_name", list[0].DisplayName,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return coord, nil
}

func (c candidate) coordinate() (entity.Coordinate, error) {
	lat, err1 := strconv.ParseFloat(c.Lat, 64)
	lon, err2 := strconv.ParseFloat(c.Lon, 64)
	if err := errors.Join(err1, err2); err != nil {
		return entity.Coordinate{}, fmt.Errorf("parse coordinate %q,%q: %w", c.Lat, c.Lon, err)
	}
	return entity.Coordinate{Latitude: lat, Longitude: lon}, nil
}
