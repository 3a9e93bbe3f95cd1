package intent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/harborbank/teller/internal/model"
)

// ErrNoLabel indicates the delegate's output contained no known intent
// label; the chain falls back to the keyword classifier.
var ErrNoLabel = errors.New("delegate returned no known intent label")

// Completer is the minimal LLM surface needed for delegated
// classification.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// delegateConfidence is the fixed confidence reported for every
// delegate-labeled result.
const delegateConfidence = 0.85

const delegateSystemPrompt = "You are a banking intent classifier. " +
	"Respond with exactly one intent label from the provided list and nothing else."

// DelegatedClassifier asks an LLM to label the message and accepts the
// answer only when it contains one of the known labels verbatim.
type DelegatedClassifier struct {
	client  Completer
	intents []model.Intent
}

// NewDelegatedClassifier creates a classifier over the given label set.
func NewDelegatedClassifier(client Completer, intents []model.Intent) *DelegatedClassifier {
	return &DelegatedClassifier{client: client, intents: intents}
}

// Classify sends the message plus conversation context to the delegate.
// Any delegate failure is returned as an error so the chain can fall
// back; it never guesses.
func (c *DelegatedClassifier) Classify(ctx context.Context, message string, sctx model.SessionContext) (model.IntentResult, error) {
	labels := make([]string, len(c.intents))
	for i, in := range c.intents {
		labels[i] = string(in)
	}

	prompt := fmt.Sprintf("Intents: %s\n\n%s\n\nIntent:",
		strings.Join(labels, ", "), buildContext(message, sctx))

	output, err := c.client.Complete(ctx, delegateSystemPrompt, prompt)
	if err != nil {
		return model.IntentResult{}, fmt.Errorf("delegate completion: %w", err)
	}

	// Scan longer labels first so "unlock_card" is never mistaken for
	// its "lock_card" substring.
	candidates := make([]model.Intent, len(c.intents))
	copy(candidates, c.intents)
	sort.SliceStable(candidates, func(i, j int) bool {
		return len(candidates[i]) > len(candidates[j])
	})

	out := strings.ToLower(output)
	for _, in := range candidates {
		if strings.Contains(out, string(in)) {
			return model.IntentResult{
				Intent:     in,
				Confidence: delegateConfidence,
				Entities:   ExtractEntities(message),
				Method:     model.MethodLLM,
			}, nil
		}
	}

	return model.IntentResult{}, ErrNoLabel
}

// buildContext renders the session context for the delegate prompt.
func buildContext(message string, sctx model.SessionContext) string {
	parts := []string{fmt.Sprintf("Current message: %s", message)}

	if sctx.LastIntent != "" {
		parts = append(parts, fmt.Sprintf("Previous intent: %s", sctx.LastIntent))
	}
	if sctx.TransactionPending {
		parts = append(parts, "User is in the middle of a transaction")
	}
	if sctx.MessageCount > 1 {
		parts = append(parts, fmt.Sprintf("Message %d in conversation", sctx.MessageCount))
	}

	return strings.Join(parts, " | ")
}
