// Package ledger defines the boundary to the core banking system.
package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/harborbank/teller/internal/model"
)

// Gateway is the narrow interface the assistant requires from core
// banking. Side-effecting calls return a ledger reference id on success.
// Implementations own their retry policy; callers never retry.
type Gateway interface {
	GetAccounts(ctx context.Context, userID string) ([]model.Account, error)
	GetCards(ctx context.Context, userID string) ([]model.Card, error)
	GetRecentTransactions(ctx context.Context, userID string, limit int) ([]model.LedgerEntry, error)
	LockCard(ctx context.Context, userID, cardID string) (string, error)
	UnlockCard(ctx context.Context, userID, cardID string) (string, error)
	TransferFunds(ctx context.Context, userID string, amount decimal.Decimal, fromAccount, toAccount string) (string, error)
	PayBill(ctx context.Context, userID, payee string, amount decimal.Decimal) (string, error)
}
