package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harborbank/teller/internal/common"
	"github.com/harborbank/teller/internal/model"
)

// customer is one record in the mock bank.
type customer struct {
	name     string
	accounts []model.Account
	cards    []model.Card
	history  []model.LedgerEntry
}

// MockGateway is an in-memory stand-in for core banking, seeded with a
// demo customer. Calls simulate API latency but honor context deadlines.
type MockGateway struct {
	now       func() time.Time
	customers map[string]*customer
	logger    *slog.Logger
	latency   time.Duration
	mu        sync.RWMutex
}

// NewMockGateway creates a gateway seeded with the demo customer
// user_001 (two accounts, two cards).
func NewMockGateway(logger *slog.Logger) *MockGateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &MockGateway{
		customers: map[string]*customer{
			"user_001": {
				name: "Sarah Tan",
				accounts: []model.Account{
					{ID: "acc_001", Number: "1234567890", Type: "Savings", Balance: decimal.RequireFromString("15420.50"), Currency: "SGD"},
					{ID: "acc_002", Number: "0987654321", Type: "Current", Balance: decimal.RequireFromString("8250.00"), Currency: "SGD"},
				},
				cards: []model.Card{
					{ID: "card_001", Type: "VISA Credit", LastFour: "1234", Status: "active"},
					{ID: "card_002", Type: "Mastercard Debit", LastFour: "5678", Status: "active"},
				},
			},
		},
		latency: 100 * time.Millisecond,
		logger:  logger,
		now:     time.Now,
	}
}

// SetLatency overrides the simulated latency; tests set it to zero.
func (g *MockGateway) SetLatency(d time.Duration) {
	g.latency = d
}

// sleep simulates processing latency while honoring ctx cancellation.
func (g *MockGateway) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// GetAccounts returns the customer's accounts.
func (g *MockGateway) GetAccounts(ctx context.Context, userID string) ([]model.Account, error) {
	if err := g.sleep(ctx, g.latency); err != nil {
		return nil, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	cust, ok := g.customers[userID]
	if !ok {
		return nil, fmt.Errorf("get accounts for %s: %w", userID, common.ErrGatewayUnavailable)
	}
	return append([]model.Account(nil), cust.accounts...), nil
}

// GetCards returns the customer's cards.
func (g *MockGateway) GetCards(ctx context.Context, userID string) ([]model.Card, error) {
	if err := g.sleep(ctx, g.latency); err != nil {
		return nil, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	cust, ok := g.customers[userID]
	if !ok {
		return nil, fmt.Errorf("get cards for %s: %w", userID, common.ErrGatewayUnavailable)
	}
	return append([]model.Card(nil), cust.cards...), nil
}

// GetRecentTransactions returns up to limit recent ledger entries,
// newest first.
func (g *MockGateway) GetRecentTransactions(ctx context.Context, userID string, limit int) ([]model.LedgerEntry, error) {
	if err := g.sleep(ctx, g.latency); err != nil {
		return nil, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	cust, ok := g.customers[userID]
	if !ok {
		return nil, fmt.Errorf("get transactions for %s: %w", userID, common.ErrGatewayUnavailable)
	}

	history := cust.history
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}

	out := make([]model.LedgerEntry, len(history))
	for i, entry := range history {
		out[len(history)-1-i] = entry
	}
	return out, nil
}

// LockCard blocks a card and returns a ledger reference.
func (g *MockGateway) LockCard(ctx context.Context, userID, cardID string) (string, error) {
	return g.setCardStatus(ctx, userID, cardID, "locked", "REF")
}

// UnlockCard reactivates a card and returns a ledger reference.
func (g *MockGateway) UnlockCard(ctx context.Context, userID, cardID string) (string, error) {
	return g.setCardStatus(ctx, userID, cardID, "active", "REF")
}

func (g *MockGateway) setCardStatus(ctx context.Context, userID, cardID, status, refPrefix string) (string, error) {
	if err := g.sleep(ctx, 2*g.latency); err != nil {
		return "", err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	cust, ok := g.customers[userID]
	if !ok {
		return "", fmt.Errorf("card operation for %s: %w", userID, common.ErrGatewayUnavailable)
	}

	for i := range cust.cards {
		if cust.cards[i].ID == cardID {
			cust.cards[i].Status = status
			ref := g.reference(refPrefix)
			g.logger.Info("card status changed",
				"user_id", userID,
				"card_id", cardID,
				"status", status,
				"reference", ref)
			return ref, nil
		}
	}

	return "", fmt.Errorf("card %s not found for %s", cardID, userID)
}

// TransferFunds moves money between the customer's accounts.
func (g *MockGateway) TransferFunds(ctx context.Context, userID string, amount decimal.Decimal, fromAccount, toAccount string) (string, error) {
	if err := g.sleep(ctx, 3*g.latency); err != nil {
		return "", err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	cust, ok := g.customers[userID]
	if !ok {
		return "", fmt.Errorf("transfer for %s: %w", userID, common.ErrGatewayUnavailable)
	}

	ref := g.reference("TXN")
	cust.history = append(cust.history, model.LedgerEntry{
		Date:        g.now(),
		Amount:      amount.Neg(),
		Description: fmt.Sprintf("Transfer from %s to %s", fromAccount, toAccount),
		AccountID:   fromAccount,
	})

	g.logger.Info("funds transferred",
		"user_id", userID,
		"amount", amount,
		"from", fromAccount,
		"to", toAccount,
		"reference", ref)
	return ref, nil
}

// PayBill pays a bill to the given payee.
func (g *MockGateway) PayBill(ctx context.Context, userID, payee string, amount decimal.Decimal) (string, error) {
	if err := g.sleep(ctx, 3*g.latency); err != nil {
		return "", err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	cust, ok := g.customers[userID]
	if !ok {
		return "", fmt.Errorf("bill payment for %s: %w", userID, common.ErrGatewayUnavailable)
	}

	ref := g.reference("BILL")
	cust.history = append(cust.history, model.LedgerEntry{
		Date:        g.now(),
		Amount:      amount.Neg(),
		Description: fmt.Sprintf("Bill payment to %s", payee),
	})

	g.logger.Info("bill paid",
		"user_id", userID,
		"payee", payee,
		"amount", amount,
		"reference", ref)
	return ref, nil
}

func (g *MockGateway) reference(prefix string) string {
	return prefix + g.now().Format("20060102150405")
}
