package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harborbank/teller/internal/audit"
	"github.com/harborbank/teller/internal/common"
	"github.com/harborbank/teller/internal/fraud"
	"github.com/harborbank/teller/internal/ledger"
	"github.com/harborbank/teller/internal/model"
	"github.com/harborbank/teller/internal/session"
)

// Result is the outcome of initiating (or resuming) a transaction.
type Result struct {
	Metadata             map[string]string `json:"metadata,omitempty"`
	Message              string            `json:"message"`
	TransactionID        string            `json:"transaction_id"`
	RequiresConfirmation bool              `json:"requires_confirmation"`
	Blocked              bool              `json:"blocked"`
	Failed               bool              `json:"failed"`
}

// ExecutionResult is the outcome of executing a confirmed transaction.
type ExecutionResult struct {
	Message       string `json:"message"`
	Reference     string `json:"reference,omitempty"`
	TransactionID string `json:"transaction_id"`
	Success       bool   `json:"success"`
}

// txEntry pairs a transaction with its own mutex so state transitions
// for one id are strictly sequential without blocking other ids.
type txEntry struct {
	tx *model.Transaction
	mu sync.Mutex
}

// Engine drives transactions through the workflow state machine:
// INITIATED -> VALIDATED -> PENDING_CONFIRMATION -> EXECUTING ->
// COMPLETED, failing terminally on validation errors, fraud blocks or
// gateway failures. Safe for concurrent use.
type Engine struct {
	now            func() time.Time
	newID          func() string
	entries        map[string]*txEntry
	validator      *Validator
	scorer         *fraud.Scorer
	gateway        ledger.Gateway
	audit          audit.Sink
	logger         *slog.Logger
	gatewayTimeout time.Duration
	mu             sync.Mutex
}

// NewEngine creates a workflow engine with the given collaborators.
// A zero gatewayTimeout defaults to 10 seconds.
func NewEngine(validator *Validator, scorer *fraud.Scorer, gateway ledger.Gateway, sink audit.Sink, gatewayTimeout time.Duration, logger *slog.Logger) *Engine {
	if sink == nil {
		sink = audit.NopSink{}
	}
	if gatewayTimeout <= 0 {
		gatewayTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		validator:      validator,
		scorer:         scorer,
		gateway:        gateway,
		audit:          sink,
		gatewayTimeout: gatewayTimeout,
		logger:         logger,
		entries:        make(map[string]*txEntry),
		now:            time.Now,
		newID:          uuid.NewString,
	}
}

// Get returns a snapshot of the transaction with the given id.
func (e *Engine) Get(txID string) (model.Transaction, bool) {
	entry := e.lookup(txID)
	if entry == nil {
		return model.Transaction{}, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return *entry.tx, true
}

func (e *Engine) lookup(txID string) *txEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.entries[txID]
}

// Initiate creates a transaction for kind from the user's message and
// drives it to PENDING_CONFIRMATION, or to FAILED on a validation error
// or fraud block. The session's active transaction reference is set only
// when confirmation is pending.
func (e *Engine) Initiate(ctx context.Context, kind model.TransactionType, message string, auth *model.AuthContext, sess *session.Session) (result Result) {
	tx := &model.Transaction{
		ID:          e.newID(),
		Kind:        kind,
		UserID:      auth.UserID,
		State:       model.StateInitiated,
		InitiatedAt: e.now(),
	}
	entry := &txEntry{tx: tx}

	e.mu.Lock()
	e.entries[tx.ID] = entry
	e.mu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()

	// Whatever goes wrong below, the transaction must end in a
	// terminal state; nothing may be abandoned mid-machine.
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic during transaction initiation",
				"transaction_id", tx.ID, "panic", r)
			e.failLocked(tx, "internal error", sess)
			result = Result{
				Message:       "Unable to initiate transaction. Please try again.",
				TransactionID: tx.ID,
				Failed:        true,
			}
		}
	}()

	gwCtx, cancel := context.WithTimeout(ctx, e.gatewayTimeout)
	defer cancel()

	params, err := e.extractParams(gwCtx, kind, message, auth.UserID)
	if err != nil {
		e.logger.Error("parameter extraction failed",
			"transaction_id", tx.ID, "kind", kind, "error", err)
		e.failLocked(tx, "parameter extraction failed", sess)
		return Result{
			Message:       "Unable to initiate transaction. Please try again.",
			TransactionID: tx.ID,
			Failed:        true,
		}
	}
	tx.Params = params

	return e.proceedLocked(ctx, entry, sess)
}

// proceedLocked runs validation, fraud scoring and the confirmation gate
// for a transaction in INITIATED. Caller holds entry.mu.
func (e *Engine) proceedLocked(_ context.Context, entry *txEntry, sess *session.Session) Result {
	tx := entry.tx

	// Validation. Invalid transactions never reach the fraud check, so
	// the velocity log only reflects validated attempts.
	if err := e.validator.Validate(tx.Kind, tx.Params, nil); err != nil {
		msg := common.UserMessage(err, "Invalid transaction")
		e.failLocked(tx, msg, sess)

		if tx.Params.NeedsClarification {
			return Result{
				Message:       clarificationMessage(tx.Params.AvailableCards),
				TransactionID: tx.ID,
				Failed:        true,
				Metadata:      clarificationMetadata(tx),
			}
		}
		return Result{
			Message:       fmt.Sprintf("Unable to process: %s", msg),
			TransactionID: tx.ID,
			Failed:        true,
		}
	}
	tx.State = model.StateValidated

	// Fraud gate. The user-facing message deliberately does not reveal
	// why; the full reason goes only to the security alert record.
	assessment := e.scorer.Check(tx, tx.UserID)
	if assessment.Suspicious {
		e.failLocked(tx, "Transaction blocked due to suspicious activity", sess)
		e.audit.Record(audit.SecurityAlert(tx.UserID, tx.ID, strings.Join(assessment.Reasons, "; ")))
		return Result{
			Message:       "This transaction has been flagged for review. Please contact customer support.",
			TransactionID: tx.ID,
			Blocked:       true,
		}
	}

	tx.State = model.StatePendingConfirmation
	if sess != nil {
		sess.SetActiveTransaction(tx.ID)
	}

	return Result{
		Message:              confirmationMessage(tx),
		TransactionID:        tx.ID,
		RequiresConfirmation: true,
		Metadata:             confirmationMetadata(tx),
	}
}

// Execute runs a confirmed transaction against the ledger. It fails fast
// if the transaction does not exist or is not exactly pending
// confirmation; a replayed execute is rejected, never repeated.
func (e *Engine) Execute(ctx context.Context, txID string, auth *model.AuthContext, sess *session.Session) (result ExecutionResult, err error) {
	entry := e.lookup(txID)
	if entry == nil {
		return ExecutionResult{}, common.NewUserError("We couldn't find that transaction. Please start over.", common.ErrTransactionNotFound)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	tx := entry.tx

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic during transaction execution",
				"transaction_id", tx.ID, "panic", r)
			if !tx.State.Terminal() {
				e.failLocked(tx, "internal error", sess)
			}
			result = ExecutionResult{
				Message:       "Transaction could not be completed. Please try again.",
				TransactionID: tx.ID,
			}
			err = nil
		}
	}()

	if tx.State != model.StatePendingConfirmation {
		return ExecutionResult{}, common.NewUserError("Unable to process this transaction.", common.ErrInvalidState)
	}
	if auth == nil || auth.UserID != tx.UserID {
		return ExecutionResult{}, common.NewUserError("Unable to process this transaction.", common.ErrInvalidState)
	}

	tx.State = model.StateExecuting

	gwCtx, cancel := context.WithTimeout(ctx, e.gatewayTimeout)
	defer cancel()

	reference, gwErr := e.dispatch(gwCtx, tx)
	if gwErr != nil {
		// Gateway failures, timeouts included, are terminal here.
		// Retry policy, if any, belongs to the gateway.
		e.logger.Error("gateway execution failed",
			"transaction_id", tx.ID, "kind", tx.Kind, "error", gwErr)
		e.failLocked(tx, gwErr.Error(), sess)
		e.audit.Record(audit.Transaction(tx.UserID, tx, "failure"))
		return ExecutionResult{
			Message:       "Transaction failed. Please try again later or visit a branch for assistance.",
			TransactionID: tx.ID,
		}, nil
	}

	tx.State = model.StateCompleted
	tx.CompletedAt = e.now()
	tx.Reference = reference
	if sess != nil {
		sess.ClearActiveTransaction()
	}

	e.audit.Record(audit.Transaction(tx.UserID, tx, "success"))
	e.logger.Info("transaction completed",
		"transaction_id", tx.ID, "kind", tx.Kind, "reference", reference)

	return ExecutionResult{
		Success:       true,
		Message:       successMessage(tx),
		Reference:     reference,
		TransactionID: tx.ID,
	}, nil
}

// Cancel moves a pending transaction to FAILED with "cancelled by user".
// Exposed for both explicit user cancellation and session expiry cleanup.
func (e *Engine) Cancel(txID string, sess *session.Session) error {
	entry := e.lookup(txID)
	if entry == nil {
		return common.NewUserError("We couldn't find that transaction.", common.ErrTransactionNotFound)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	tx := entry.tx

	if tx.State != model.StatePendingConfirmation {
		return common.NewUserError("There is no pending transaction to cancel.", common.ErrInvalidState)
	}

	e.failLocked(tx, "cancelled by user", sess)
	e.audit.Record(audit.Transaction(tx.UserID, tx, "cancelled"))
	e.logger.Info("transaction cancelled", "transaction_id", tx.ID)
	return nil
}

// ResumeWithClarification re-enters a card flow that previously failed
// for want of disambiguation. Terminal states stay terminal: the
// original transaction remains FAILED and a successor carrying the
// chosen card runs the normal validate/fraud/confirm path.
func (e *Engine) ResumeWithClarification(ctx context.Context, txID, choice string, auth *model.AuthContext, sess *session.Session) (Result, error) {
	entry := e.lookup(txID)
	if entry == nil {
		return Result{}, common.NewUserError("We couldn't find that transaction. Please start over.", common.ErrTransactionNotFound)
	}

	entry.mu.Lock()
	prior := *entry.tx
	entry.mu.Unlock()

	if prior.State != model.StateFailed || !prior.Params.NeedsClarification {
		return Result{}, common.NewUserError("This transaction doesn't need clarification.", common.ErrInvalidState)
	}
	if auth == nil || auth.UserID != prior.UserID {
		return Result{}, common.NewUserError("Unable to process this transaction.", common.ErrInvalidState)
	}

	var chosen *model.Card
	for i, card := range prior.Params.AvailableCards {
		if card.ID == choice || card.LastFour == choice {
			chosen = &prior.Params.AvailableCards[i]
			break
		}
	}
	if chosen == nil {
		return Result{}, common.NewUserError("That doesn't match any of your cards. Please pick one of the listed cards.", common.ErrInvalidState)
	}

	successor := &model.Transaction{
		ID:          e.newID(),
		Kind:        prior.Kind,
		UserID:      prior.UserID,
		State:       model.StateInitiated,
		InitiatedAt: e.now(),
		Params:      model.TransactionParams{CardID: chosen.ID},
	}
	succEntry := &txEntry{tx: successor}

	e.mu.Lock()
	e.entries[successor.ID] = succEntry
	e.mu.Unlock()

	succEntry.mu.Lock()
	defer succEntry.mu.Unlock()
	return e.proceedLocked(ctx, succEntry, sess), nil
}

// failLocked moves tx to FAILED and drops any session reference to it.
// A failed transaction must not keep a session blocked on "pending".
// Caller holds the entry mutex.
func (e *Engine) failLocked(tx *model.Transaction, reason string, sess *session.Session) {
	tx.State = model.StateFailed
	tx.Error = reason
	if sess != nil && sess.ActiveTransaction() == tx.ID {
		sess.ClearActiveTransaction()
	}
}

// dispatch routes a transaction to the matching gateway operation.
func (e *Engine) dispatch(ctx context.Context, tx *model.Transaction) (string, error) {
	switch tx.Kind {
	case model.TypeLockCard:
		return e.gateway.LockCard(ctx, tx.UserID, tx.Params.CardID)
	case model.TypeUnlockCard:
		return e.gateway.UnlockCard(ctx, tx.UserID, tx.Params.CardID)
	case model.TypeTransferFunds:
		return e.gateway.TransferFunds(ctx, tx.UserID, tx.Params.Amount, tx.Params.FromAccount, tx.Params.ToAccount)
	case model.TypePayBill:
		return e.gateway.PayBill(ctx, tx.UserID, tx.Params.Payee, tx.Params.Amount)
	default:
		return "", fmt.Errorf("unsupported transaction type: %s", tx.Kind)
	}
}
