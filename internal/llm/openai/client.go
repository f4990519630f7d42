package openai

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/studynotes/internal/codec"
	"github.com/joseph-ayodele/studynotes/internal/llm"
)

var _ llm.Extractor = (*Client)(nil)

// IsAvailable implements llm.Extractor.
func (c *Client) IsAvailable() bool {
	return llm.ResolveKey(c.cfg.KeySource, c.cfg.APIKey) != ""
}

// Extract implements llm.Extractor using vision chat/completions: one user
// message with the instruction text and the image as a data URL.
func (c *Client) Extract(ctx context.Context, payload codec.EncodedPayload) (string, error) {
	key := llm.ResolveKey(c.cfg.KeySource, c.cfg.APIKey)
	if key == "" {
		return "", llm.ErrUnavailable
	}
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.extract.start",
		"req_id", rid,
		"provider", "openai",
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"mime_type", payload.MIMEType,
		"payload_len", len(payload.Data),
	)

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": llm.ExtractionInstruction},
					{"type": "image_url", "image_url": map[string]any{
						"url":    codec.DataURL(payload),
						"detail": c.cfg.Detail,
					}},
				},
			},
		},
	}

	headers := map[string]string{"Authorization": "Bearer " + key}
	raw, status, err := llm.SendJSON(ctx, c.httpClient, c.cfg.BaseURL+"/chat/completions", body, headers, c.log)
	if err != nil {
		c.log.Error("llm.extract.http_error",
			"req_id", rid, "status", status, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Warn("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", nil
	}
	if len(cc.Choices) == 0 {
		c.log.Warn("llm.extract.no_choices",
			"req_id", rid, "elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", nil
	}

	content := cc.Choices[0].Message.Content
	c.log.Info("llm.extract.ok",
		"req_id", rid,
		"text_len", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}
