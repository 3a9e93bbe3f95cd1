package workflow

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/harborbank/teller/internal/intent"
	"github.com/harborbank/teller/internal/model"
)

var (
	fromAccountPattern = regexp.MustCompile(`from\s+(?:my\s+)?(savings|checking|current|credit)`)
	toAccountPattern   = regexp.MustCompile(`to\s+(?:my\s+)?(savings|checking|current|credit)`)
	payeePattern       = regexp.MustCompile(`pay(?:ing)?\s+(?:my\s+)?([a-z]+)\s+bill`)
)

// extractParams derives kind-specific parameters from the user message.
// Card kinds consult the ledger for the user's cards; if more than one
// card exists and the message does not disambiguate, the params are
// marked as needing clarification rather than guessing.
func (e *Engine) extractParams(ctx context.Context, kind model.TransactionType, message, userID string) (model.TransactionParams, error) {
	switch kind {
	case model.TypeLockCard, model.TypeUnlockCard:
		return e.extractCardParams(ctx, message, userID)
	case model.TypeTransferFunds:
		return extractTransferParams(message), nil
	case model.TypePayBill:
		return extractBillParams(message), nil
	default:
		return model.TransactionParams{}, nil
	}
}

func (e *Engine) extractCardParams(ctx context.Context, message, userID string) (model.TransactionParams, error) {
	cards, err := e.gateway.GetCards(ctx, userID)
	if err != nil {
		return model.TransactionParams{}, fmt.Errorf("failed to look up cards: %w", err)
	}

	// A last-4 mention on the message disambiguates directly.
	entities := intent.ExtractEntities(message)
	if lastFour := entities[intent.EntityCardLastFour]; lastFour != "" {
		for _, card := range cards {
			if card.LastFour == lastFour {
				return model.TransactionParams{CardID: card.ID}, nil
			}
		}
	}

	switch len(cards) {
	case 0:
		return model.TransactionParams{}, nil
	case 1:
		return model.TransactionParams{CardID: cards[0].ID}, nil
	default:
		return model.TransactionParams{
			NeedsClarification: true,
			AvailableCards:     cards,
		}, nil
	}
}

func extractTransferParams(message string) model.TransactionParams {
	params := model.TransactionParams{}

	entities := intent.ExtractEntities(message)
	if raw := entities[intent.EntityAmount]; raw != "" {
		if amount, err := decimal.NewFromString(raw); err == nil {
			params.Amount = amount
		}
	}

	msg := strings.ToLower(message)
	if m := fromAccountPattern.FindStringSubmatch(msg); m != nil {
		params.FromAccount = m[1]
	}
	if m := toAccountPattern.FindStringSubmatch(msg); m != nil {
		params.ToAccount = m[1]
	}

	return params
}

func extractBillParams(message string) model.TransactionParams {
	params := model.TransactionParams{}

	entities := intent.ExtractEntities(message)
	if raw := entities[intent.EntityAmount]; raw != "" {
		if amount, err := decimal.NewFromString(raw); err == nil {
			params.Amount = amount
		}
	}

	if m := payeePattern.FindStringSubmatch(strings.ToLower(message)); m != nil {
		params.Payee = m[1]
	}

	return params
}
