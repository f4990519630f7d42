// Package googleai extracts note fields through the generative-ai-go SDK.
package googleai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/joseph-ayodele/studynotes/internal/codec"
	"github.com/joseph-ayodele/studynotes/internal/common"
	"github.com/joseph-ayodele/studynotes/internal/llm"
)

// Config for the SDK-backed client.
type Config struct {
	APIKey      string
	KeySource   llm.KeySource
	Model       string
	Endpoint    string // optional API endpoint override
	Temperature float32
	Timeout     time.Duration
}

type Client struct {
	cfg Config
	log *slog.Logger
}

var _ llm.Extractor = (*Client)(nil)

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, log: logger}
}

// IsAvailable implements llm.Extractor.
func (c *Client) IsAvailable() bool {
	return llm.ResolveKey(c.cfg.KeySource, c.cfg.APIKey) != ""
}

// Extract implements llm.Extractor. A fresh SDK client is built per call so a
// rotated key takes effect immediately.
func (c *Client) Extract(ctx context.Context, payload codec.EncodedPayload) (string, error) {
	key := llm.ResolveKey(c.cfg.KeySource, c.cfg.APIKey)
	if key == "" {
		return "", llm.ErrUnavailable
	}
	img, err := codec.Decode(payload)
	if err != nil {
		return "", err
	}
	rid := uuid.New().String()
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	opts := []option.ClientOption{option.WithAPIKey(key)}
	if c.cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.cfg.Endpoint))
	}
	cl, err := genai.NewClient(ctx, opts...)
	if err != nil {
		c.log.Error("llm.genai.client_error", "req_id", rid, "error", err)
		return "", &llm.TransportError{Cause: fmt.Errorf("genai client: %w", err)}
	}
	defer func() {
		if err := cl.Close(); err != nil {
			c.log.Warn("llm.genai.close_error", "req_id", rid, "error", err)
		}
	}()

	m := cl.GenerativeModel(c.cfg.Model)
	m.SetTemperature(c.cfg.Temperature)

	c.log.Info("llm.extract.start",
		"req_id", rid,
		"provider", "genai",
		"model", c.cfg.Model,
		"mime_type", img.MIMEType,
		"bytes", len(img.Data),
	)

	resp, err := m.GenerateContent(ctx,
		genai.Text(llm.ExtractionInstruction),
		genai.Blob{MIMEType: img.MIMEType, Data: img.Data},
	)
	if isBlocked(err) {
		// no usable candidate; the parser reports empty text as a format error
		c.log.Warn("llm.extract.blocked",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", nil
	}
	if err != nil {
		terr := transportError(err)
		c.log.Error("llm.extract.http_error",
			"req_id", rid, "status", terr.StatusCode, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", terr
	}

	text := firstText(resp)
	c.log.Info("llm.extract.ok",
		"req_id", rid,
		"text_len", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

// isBlocked reports whether the SDK withheld the response (safety block or no candidate text).
func isBlocked(err error) bool {
	var blocked *genai.BlockedError
	return errors.As(err, &blocked)
}

// transportError maps an SDK error to a TransportError with the closest HTTP status.
func transportError(err error) *llm.TransportError {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &llm.TransportError{StatusCode: gerr.Code, Body: strings.TrimSpace(gerr.Message), Cause: err}
	}
	if code, ok := common.HTTPStatusFromGRPC(err); ok {
		return &llm.TransportError{StatusCode: code, Cause: err}
	}
	return &llm.TransportError{Cause: err}
}

// firstText returns the first text part of the first candidate that has content.
func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	c := resp.Candidates[0]
	if c == nil || c.Content == nil {
		return ""
	}
	for _, p := range c.Content.Parts {
		if t, ok := p.(genai.Text); ok {
			return string(t)
		}
	}
	return ""
}
