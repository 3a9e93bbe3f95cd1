// Package model defines the core domain models used throughout the application.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionState identifies a transaction's position in the workflow
// state machine.
type TransactionState string

// Transaction state constants. Transitions only ever move forward:
// INITIATED -> VALIDATED -> PENDING_CONFIRMATION -> EXECUTING -> COMPLETED,
// with FAILED reachable from INITIATED, VALIDATED and EXECUTING.
const (
	StateInitiated           TransactionState = "INITIATED"
	StateValidated           TransactionState = "VALIDATED"
	StatePendingConfirmation TransactionState = "PENDING_CONFIRMATION"
	StateExecuting           TransactionState = "EXECUTING"
	StateCompleted           TransactionState = "COMPLETED"
	StateFailed              TransactionState = "FAILED"
)

// Terminal reports whether no further transitions are allowed from s.
func (s TransactionState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// TransactionType identifies the kind of banking operation a transaction
// performs.
type TransactionType string

// Supported transaction types.
const (
	TypeLockCard      TransactionType = "lock_card"
	TypeUnlockCard    TransactionType = "unlock_card"
	TypeTransferFunds TransactionType = "transfer_funds"
	TypePayBill       TransactionType = "pay_bill"
	TypeUpdateLimits  TransactionType = "update_limits"
)

// TransactionParams holds the kind-specific fields extracted during
// initiation. Populated once by parameter extraction and never mutated
// afterward, except when a clarification choice is applied.
type TransactionParams struct {
	Amount             decimal.Decimal
	FromAccount        string
	ToAccount          string
	CardID             string
	Payee              string
	AvailableCards     []Card
	NeedsClarification bool
}

// Transaction represents one banking operation moving through the workflow.
// Reference is non-empty iff State is COMPLETED; Error is non-empty iff
// State is FAILED.
type Transaction struct {
	InitiatedAt time.Time
	CompletedAt time.Time
	ID          string
	UserID      string
	Kind        TransactionType
	State       TransactionState
	Reference   string
	Error       string
	Params      TransactionParams
}

// Account is a customer account as reported by the ledger.
type Account struct {
	Balance  decimal.Decimal
	ID       string
	Number   string
	Type     string
	Currency string
}

// Card is a customer card as reported by the ledger.
type Card struct {
	ID       string
	Type     string
	LastFour string
	Status   string
}

// LedgerEntry is one historical transaction as reported by the ledger.
type LedgerEntry struct {
	Date        time.Time
	Amount      decimal.Decimal
	Description string
	AccountID   string
}
