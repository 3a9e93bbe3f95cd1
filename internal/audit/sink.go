// Package audit persists compliance records for interactions,
// transactions and security alerts. Sinks are best-effort: recording
// must never block or fail the caller's request.
package audit

import (
	"time"

	"github.com/harborbank/teller/internal/model"
)

// EventType identifies the audit record shape.
type EventType string

// Audit event types.
const (
	EventInteraction   EventType = "interaction"
	EventTransaction   EventType = "transaction"
	EventSecurityAlert EventType = "security_alert"
)

// Event is one audit record. Message content is never recorded, only
// lengths, to bound what is persisted.
type Event struct {
	Timestamp       time.Time `json:"timestamp"`
	Type            EventType `json:"type"`
	SessionID       string    `json:"session_id,omitempty"`
	UserID          string    `json:"user_id,omitempty"`
	Intent          string    `json:"intent,omitempty"`
	TransactionID   string    `json:"transaction_id,omitempty"`
	TransactionType string    `json:"transaction_type,omitempty"`
	Result          string    `json:"result,omitempty"`
	Reference       string    `json:"reference,omitempty"`
	Reason          string    `json:"reason,omitempty"`
	Severity        string    `json:"severity,omitempty"`
	MessageLen      int       `json:"message_length,omitempty"`
	ResponseLen     int       `json:"response_length,omitempty"`
}

// Sink records audit events. Implementations swallow their own errors.
type Sink interface {
	Record(event Event)
}

// Interaction builds the per-message audit record.
func Interaction(sessionID, userID string, intent model.Intent, messageLen, responseLen int) Event {
	return Event{
		Timestamp:   time.Now(),
		Type:        EventInteraction,
		SessionID:   sessionID,
		UserID:      userID,
		Intent:      string(intent),
		MessageLen:  messageLen,
		ResponseLen: responseLen,
	}
}

// Transaction builds the record for a completed or failed transaction.
func Transaction(userID string, tx *model.Transaction, result string) Event {
	return Event{
		Timestamp:       time.Now(),
		Type:            EventTransaction,
		UserID:          userID,
		TransactionID:   tx.ID,
		TransactionType: string(tx.Kind),
		Result:          result,
		Reference:       tx.Reference,
	}
}

// SecurityAlert builds a high-severity alert record. The full fraud
// reason is recorded here and nowhere user-visible.
func SecurityAlert(userID, transactionID, reason string) Event {
	return Event{
		Timestamp:     time.Now(),
		Type:          EventSecurityAlert,
		UserID:        userID,
		TransactionID: transactionID,
		Reason:        reason,
		Severity:      "high",
	}
}

// NopSink discards all events.
type NopSink struct{}

// Record implements Sink.
func (NopSink) Record(Event) {}
