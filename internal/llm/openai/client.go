package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/joseph-ayodele/missing-persons-intake/internal/common"
	"github.com/joseph-ayodele/missing-persons-intake/internal/llm"
)

// Extract implements llm.FieldExtractor with a text-only chat/completions call.
func (c *Client) Extract(ctx context.Context, text string) (llm.ExtractedFields, error) {
	start := time.Now()
	c.logger.Info("llm.extract.start", "provider", "openai", "model", c.cfg.Model, "text_len", len(text))

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": llm.BuildSystemPrompt()},
			{"role": "user", "content": llm.BuildUserPrompt(text)},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(llm.BuildExtractionJSONSchema())},
		},
	}
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, status, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		c.logger.Error("llm.extract.http_error", "status", status, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return llm.ExtractedFields{}, fmt.Errorf("%w: openai: %v", common.ErrExtraction, err)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.extract.decode_error", "error", err, "raw_bytes", len(raw))
		return llm.ExtractedFields{}, fmt.Errorf("%w: decode openai response: %v", common.ErrExtraction, err)
	}
	if len(cc.Choices) == 0 {
		c.logger.Error("llm.extract.no_choices", "raw", string(raw))
		return llm.ExtractedFields{}, fmt.Errorf("%w: no choices in openai response", common.ErrExtraction)
	}

	out, err := llm.DecodeFields([]byte(strings.TrimSpace(cc.Choices[0].Message.Content)), c.logger)
	if err != nil {
		return llm.ExtractedFields{}, err
	}
	c.logger.Info("llm.extract.ok", "provider", "openai", "empty", out.Empty(), "elapsed_ms", time.Since(start).Milliseconds())
	return out, nil
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
