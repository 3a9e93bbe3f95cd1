package intent

import (
	"context"
	"strings"

	"github.com/harborbank/teller/internal/model"
)

// intentDef is one entry of the intent taxonomy. Declaration order is
// the tie-break order for equal scores, so the taxonomy is a slice, not
// a map.
type intentDef struct {
	name     model.Intent
	keywords []string
}

// defaultTaxonomy drives the keyword classifier. Keywords are matched as
// substrings of the lower-cased message.
var defaultTaxonomy = []intentDef{
	{
		name: model.IntentFAQ,
		keywords: []string{
			"hour", "open", "close", "timing", "fee", "charge", "cost",
			"product", "service", "branch", "atm", "location", "interest rate",
		},
	},
	{
		name:     model.IntentCheckBalance,
		keywords: []string{"balance", "how much", "account", "money", "check account"},
	},
	{
		name: model.IntentTransactionHistory,
		keywords: []string{
			"transaction", "history", "statement", "spent", "purchase",
			"recent", "last month",
		},
	},
	{
		name:     model.IntentTransferFunds,
		keywords: []string{"transfer", "send money", "move", "pay", "wire"},
	},
	{
		name:     model.IntentLockCard,
		keywords: []string{"lock", "freeze", "block", "lost", "stolen", "card"},
	},
	{
		name:     model.IntentUnlockCard,
		keywords: []string{"unlock", "unblock", "found card", "card"},
	},
	{
		name:     model.IntentPayBill,
		keywords: []string{"pay bill", "payment", "auto-pay", "recurring", "utilities"},
	},
	{
		name:     model.IntentGeneralQuery,
		keywords: []string{"change", "update", "cancel", "modify", "help"},
	},
}

// KeywordClassifier is the deterministic fallback classifier. It scores
// each intent by keyword matches and never fails.
type KeywordClassifier struct {
	taxonomy []intentDef
}

// NewKeywordClassifier creates a classifier over the default taxonomy.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{taxonomy: defaultTaxonomy}
}

// Intents returns the labels the classifier can produce, in declaration
// order.
func (c *KeywordClassifier) Intents() []model.Intent {
	names := make([]model.Intent, len(c.taxonomy))
	for i, def := range c.taxonomy {
		names[i] = def.name
	}
	return names
}

// Classify scores each intent by keyword occurrence, with a half-point
// bonus when the message starts with a matched keyword. Ties resolve to
// the earliest-declared intent. With no matches at all it returns
// general_query at confidence 0.50.
func (c *KeywordClassifier) Classify(_ context.Context, message string, _ model.SessionContext) (model.IntentResult, error) {
	msg := strings.ToLower(message)

	var bestScore float64
	best := model.IntentGeneralQuery

	for _, def := range c.taxonomy {
		var score float64
		for _, kw := range def.keywords {
			if strings.Contains(msg, kw) {
				score++
				if strings.HasPrefix(msg, kw) {
					score += 0.5
				}
			}
		}
		if score > bestScore {
			bestScore = score
			best = def.name
		}
	}

	if bestScore <= 0 {
		return model.IntentResult{
			Intent:     model.IntentGeneralQuery,
			Confidence: 0.50,
			Entities:   map[string]string{},
			Method:     model.MethodDefault,
		}, nil
	}

	confidence := 0.5 + bestScore*0.15
	if confidence > 0.95 {
		confidence = 0.95
	}

	return model.IntentResult{
		Intent:     best,
		Confidence: confidence,
		Entities:   ExtractEntities(message),
		Method:     model.MethodKeyword,
	}, nil
}
