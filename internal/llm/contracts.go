package llm

import (
	"context"
	"strings"

	"github.com/joseph-ayodele/studynotes/internal/codec"
)

// Extractor is the interface our pipeline depends on.
type Extractor interface {
	// IsAvailable reports whether a credential is configured right now.
	IsAvailable() bool
	// Extract sends one request and returns the first candidate's raw text.
	Extract(ctx context.Context, payload codec.EncodedPayload) (string, error)
}

// KeySource yields the current API key. Providers call it on every
// availability check so configuration changes are picked up.
type KeySource func() string

// StaticKey returns a KeySource for a fixed key.
func StaticKey(key string) KeySource {
	return func() string { return key }
}

// ResolveKey returns the trimmed key from src, or from static when src is nil.
func ResolveKey(src KeySource, static string) string {
	if src != nil {
		return strings.TrimSpace(src())
	}
	return strings.TrimSpace(static)
}
