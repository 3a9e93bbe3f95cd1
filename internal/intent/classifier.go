// Package intent classifies user messages into banking intents.
//
// Classification is a chain of responsibility: an optional delegated
// (LLM-backed) classifier runs first, and a deterministic keyword
// classifier is the fallback. The chain itself never fails; callers
// always receive a usable IntentResult.
package intent

import (
	"context"
	"log/slog"

	"github.com/harborbank/teller/internal/model"
)

// Classifier maps a free-text message plus conversation context to a
// labeled intent.
type Classifier interface {
	Classify(ctx context.Context, message string, sctx model.SessionContext) (model.IntentResult, error)
}

// Chain tries a primary classifier and falls back to a secondary one on
// any error. The secondary is expected to be infallible.
type Chain struct {
	primary  Classifier
	fallback Classifier
	logger   *slog.Logger
}

// NewChain composes primary and fallback classifiers. A nil primary
// yields a chain that always uses the fallback.
func NewChain(primary, fallback Classifier, logger *slog.Logger) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{primary: primary, fallback: fallback, logger: logger}
}

// Classify never returns an error: any primary failure falls through to
// the fallback classifier.
func (c *Chain) Classify(ctx context.Context, message string, sctx model.SessionContext) (model.IntentResult, error) {
	if c.primary != nil {
		result, err := c.primary.Classify(ctx, message, sctx)
		if err == nil {
			c.logger.Info("intent classified",
				"intent", result.Intent,
				"confidence", result.Confidence,
				"method", result.Method)
			return result, nil
		}
		c.logger.Warn("delegated classification failed, using fallback", "error", err)
	}

	result, _ := c.fallback.Classify(ctx, message, sctx)
	c.logger.Info("intent classified",
		"intent", result.Intent,
		"confidence", result.Confidence,
		"method", result.Method)
	return result, nil
}
