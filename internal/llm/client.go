// Package llm provides the chat-completion client used for delegated
// intent classification and answer generation. The assistant works
// without it: every caller has a deterministic fallback.
package llm

import (
	"context"
	"time"
)

// Client defines the interface to a chat-completion provider.
type Client interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Config holds configuration for the LLM client.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	MaxRetries  int
	RetryDelay  time.Duration
	Timeout     time.Duration
}
