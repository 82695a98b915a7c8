// Package function calls a hosted extraction function that takes {"text": ...} and
// answers with the fields object, optionally wrapped in {"data": ...}.
package function

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/joseph-ayodele/missing-persons-intake/internal/common"
	"github.com/joseph-ayodele/missing-persons-intake/internal/llm"
)

type Config struct {
	URL     string
	APIKey  string // sent as a bearer token when set
	Timeout time.Duration
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

func (c *Client) Extract(ctx context.Context, text string) (llm.ExtractedFields, error) {
	start := time.Now()
	c.logger.Info("llm.extract.start", "provider", "function", "text_len", len(text))

	var headers map[string]string
	if c.cfg.APIKey != "" {
		headers = map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	}
	raw, status, err := llm.SendJSON(ctx, c.http, c.cfg.URL, map[string]string{"text": text}, headers, c.logger)
	if err != nil {
		c.logger.Error("llm.extract.http_error", "status", status, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return llm.ExtractedFields{}, fmt.Errorf("%w: function: %v", common.ErrExtraction, err)
	}

	out, err := llm.DecodeFields(unwrapData(raw), c.logger)
	if err != nil {
		return llm.ExtractedFields{}, err
	}
	c.logger.Info("llm.extract.ok", "provider", "function", "empty", out.Empty(), "elapsed_ms", time.Since(start).Milliseconds())
	return out, nil
}

func unwrapData(raw []byte) []byte {
	var env map[string]json.RawMessage
	if err := json.Unmarshal(raw, &env); err != nil || len(env) != 1 {
		return raw
	}
	if inner, ok := env["data"]; ok && len(inner) > 0 && inner[0] == '{' {
		return inner
	}
	return raw
}
