package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/studynotes/internal/codec"
	"github.com/joseph-ayodele/studynotes/internal/llm"
)

var _ llm.Extractor = (*Client)(nil)

// IsAvailable implements llm.Extractor.
func (c *Client) IsAvailable() bool {
	return c.key() != ""
}

func (c *Client) key() string {
	return llm.ResolveKey(c.cfg.KeySource, c.cfg.APIKey)
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents         []content      `json:"contents"`
	GenerationConfig map[string]any `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Extract implements llm.Extractor with a single generateContent call.
func (c *Client) Extract(ctx context.Context, payload codec.EncodedPayload) (string, error) {
	key := c.key()
	if key == "" {
		return "", llm.ErrUnavailable
	}
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.extract.start",
		"req_id", rid,
		"provider", "gemini",
		"model", c.cfg.Model,
		"mime_type", payload.MIMEType,
		"payload_len", len(payload.Data),
	)

	body := generateRequest{
		Contents: []content{{Parts: []part{
			{Text: llm.ExtractionInstruction},
			{InlineData: &inlineData{MimeType: payload.MIMEType, Data: payload.Data}},
		}}},
		GenerationConfig: map[string]any{"temperature": c.cfg.Temperature},
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.cfg.BaseURL, url.PathEscape(c.cfg.Model), url.QueryEscape(key))
	raw, status, err := llm.SendJSON(ctx, c.httpClient, endpoint, body, nil, c.log)
	if err != nil {
		c.log.Error("llm.extract.http_error",
			"req_id", rid, "status", status, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", err
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		// unexpected shape counts as empty text
		c.log.Warn("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", nil
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		c.log.Warn("llm.extract.no_candidates",
			"req_id", rid, "elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", nil
	}

	text := out.Candidates[0].Content.Parts[0].Text
	c.log.Info("llm.extract.ok",
		"req_id", rid,
		"text_len", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}
