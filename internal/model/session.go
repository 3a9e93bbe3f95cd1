package model

import "time"

// MessageRole identifies the author of a conversation message.
type MessageRole string

// Message role constants.
const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is a single entry in a conversation's history.
type Message struct {
	Timestamp time.Time
	Role      MessageRole
	Content   string
}

// AuthContext carries the authenticated principal for a request. A nil
// *AuthContext, or one with Authenticated false, means anonymous.
type AuthContext struct {
	IssuedAt      time.Time
	ExpiresAt     time.Time
	UserID        string
	Authenticated bool
}

// Valid reports whether the context represents a live authenticated user.
func (a *AuthContext) Valid(now time.Time) bool {
	if a == nil || !a.Authenticated || a.UserID == "" {
		return false
	}
	return a.ExpiresAt.IsZero() || now.Before(a.ExpiresAt)
}

// SessionContext is the read-only view of a session handed to intent
// classification.
type SessionContext struct {
	LastIntent         Intent
	TransactionState   TransactionState
	TransactionPending bool
	MessageCount       int
	SessionDuration    time.Duration
}
