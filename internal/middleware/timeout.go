package middleware

import (
	"context"
	"time"
)

// Bounds on outbound calls. retrieval.Service.Search bounds its embedding
// and store-read calls with constants of the same values as
// EmbeddingTimeout and DatabaseReadTimeout, and cmd/server derives the HTTP
// server's write timeout from LLMStreamingIdleTimeout. The LLM stream has
// no per-token idle timer, and LLMCompletionTimeout is not applied to any
// call. A timeout must be distinguishable from other failures so it can be
// mapped to gateway_timeout at the HTTP boundary.
const (
	DatabaseReadTimeout     = 5 * time.Second
	EmbeddingTimeout        = 10 * time.Second
	LLMCompletionTimeout    = 30 * time.Second
	LLMStreamingIdleTimeout = 60 * time.Second
)

// WithTimeout derives a child context bounded by d. Callers should check
// ctx.Err() == context.DeadlineExceeded on failure to distinguish a timeout
// from any other collaborator error.
func WithTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, d)
}
