// Package workflow owns the transaction lifecycle: business-rule
// validation, fraud gating, the explicit confirmation step and ledger
// execution, expressed as a forward-only state machine.
package workflow

import (
	"github.com/shopspring/decimal"

	"github.com/harborbank/teller/internal/common"
	"github.com/harborbank/teller/internal/model"
)

// Validator applies per-kind business rules to transaction parameters.
// Validation is a pure function of its inputs.
type Validator struct {
	transferMax decimal.Decimal
	billMax     decimal.Decimal
}

// NewValidator creates a validator with the given caps. Zero caps fall
// back to the defaults (transfers 50,000; bill payments 20,000).
func NewValidator(transferMax, billMax decimal.Decimal) *Validator {
	if transferMax.IsZero() {
		transferMax = decimal.NewFromInt(50000)
	}
	if billMax.IsZero() {
		billMax = decimal.NewFromInt(20000)
	}
	return &Validator{transferMax: transferMax, billMax: billMax}
}

// invalid builds the validation error carried into the transaction.
func invalid(msg string) error {
	return common.NewUserError(msg, common.ErrValidationFailed)
}

// Validate checks params against the rules for kind. It returns nil when
// the transaction may proceed, or an error whose user message names the
// first violated rule.
func (v *Validator) Validate(kind model.TransactionType, params model.TransactionParams, _ *model.AuthContext) error {
	// A transaction still awaiting disambiguation is never valid,
	// regardless of kind.
	if params.NeedsClarification {
		return invalid("Please specify which card to use")
	}

	switch kind {
	case model.TypeTransferFunds:
		return v.validateTransfer(params)
	case model.TypeLockCard, model.TypeUnlockCard:
		return v.validateCardAction(params)
	case model.TypePayBill:
		return v.validateBillPayment(params)
	default:
		// No domain rule defined yet for other kinds; an intentional
		// open surface for future rules.
		return nil
	}
}

func (v *Validator) validateTransfer(params model.TransactionParams) error {
	if params.Amount.GreaterThan(v.transferMax) {
		return invalid("Transfer amount exceeds daily limit of SGD " + v.transferMax.StringFixed(0))
	}
	if !params.Amount.IsPositive() {
		return invalid("Transfer amount must be greater than zero")
	}
	if params.FromAccount == "" || params.ToAccount == "" {
		return invalid("Both source and destination accounts are required")
	}
	return nil
}

func (v *Validator) validateCardAction(params model.TransactionParams) error {
	if params.CardID == "" {
		return invalid("Card ID is required")
	}
	return nil
}

func (v *Validator) validateBillPayment(params model.TransactionParams) error {
	if params.Payee == "" {
		return invalid("Payee information is required")
	}
	if !params.Amount.IsPositive() {
		return invalid("Payment amount must be greater than zero")
	}
	if params.Amount.GreaterThan(v.billMax) {
		return invalid("Bill payment exceeds daily limit of SGD " + v.billMax.StringFixed(0))
	}
	return nil
}
