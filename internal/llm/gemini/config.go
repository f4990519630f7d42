package gemini

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joseph-ayodele/studynotes/internal/llm"
)

// Config for the Gemini REST client.
type Config struct {
	APIKey      string        // used when KeySource is nil
	KeySource   llm.KeySource // consulted on every availability check
	BaseURL     string        // default https://generativelanguage.googleapis.com/v1
	Model       string        // e.g. "gemini-1.5-flash"
	Temperature float32
	Timeout     time.Duration // http client timeout
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger,
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}
