package model

// Intent is the classified purpose of a user message.
type Intent string

// Recognized intents.
const (
	IntentFAQ                Intent = "faq"
	IntentCheckBalance       Intent = "check_balance"
	IntentTransactionHistory Intent = "transaction_history"
	IntentTransferFunds      Intent = "transfer_funds"
	IntentLockCard           Intent = "lock_card"
	IntentUnlockCard         Intent = "unlock_card"
	IntentPayBill            Intent = "pay_bill"
	IntentGeneralQuery       Intent = "general_query"
)

// ClassificationMethod indicates how an intent was determined.
type ClassificationMethod string

// Classification method constants.
const (
	MethodLLM     ClassificationMethod = "llm"
	MethodKeyword ClassificationMethod = "keyword"
	MethodDefault ClassificationMethod = "default"
)

// IntentResult is the outcome of classifying a single message. It is a
// pure value and is never persisted.
type IntentResult struct {
	Entities   map[string]string
	Intent     Intent
	Method     ClassificationMethod
	Confidence float64
}

// TransactionType maps a transactional intent to its workflow type.
// The second return is false for non-transactional intents.
func (i Intent) TransactionType() (TransactionType, bool) {
	switch i {
	case IntentTransferFunds:
		return TypeTransferFunds, true
	case IntentLockCard:
		return TypeLockCard, true
	case IntentUnlockCard:
		return TypeUnlockCard, true
	case IntentPayBill:
		return TypePayBill, true
	default:
		return "", false
	}
}
