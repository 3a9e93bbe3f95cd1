// Package session tracks per-conversation state: message history,
// authentication context, last intent and the active transaction
// reference.
package session

import (
	"sync"
	"time"

	"github.com/harborbank/teller/internal/model"
)

// Session is the mutable state of one ongoing conversation. Field access
// is internally synchronized; use Store.Serialize to order whole
// message-handling turns against each other.
type Session struct {
	createdAt      time.Time
	lastActivityAt time.Time
	now            func() time.Time
	auth           *model.AuthContext
	id             string
	lastIntent     model.Intent
	activeTxID     string
	messages       []model.Message
	mu             sync.Mutex
}

func newSession(id string, now func() time.Time) *Session {
	ts := now()
	return &Session{
		id:             id,
		createdAt:      ts,
		lastActivityAt: ts,
		now:            now,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// AddMessage appends a message to the history and bumps last activity.
func (s *Session) AddMessage(role model.MessageRole, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, model.Message{
		Role:      role,
		Content:   content,
		Timestamp: s.now(),
	})
	s.lastActivityAt = s.now()
}

// History returns the last n messages, oldest first. n <= 0 returns the
// full history.
func (s *Session) History(n int) []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.messages
	if n > 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return append([]model.Message(nil), msgs...)
}

// MessageCount returns the number of messages in the history.
func (s *Session) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Auth returns the session's authentication context, nil if anonymous.
func (s *Session) Auth() *model.AuthContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.auth
}

// Authenticate installs an authentication context. Only successful
// authentication mutates it.
func (s *Session) Authenticate(auth *model.AuthContext) {
	if auth == nil || !auth.Authenticated {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auth = auth
}

// LastIntent returns the most recent classified intent.
func (s *Session) LastIntent() model.Intent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastIntent
}

// SetLastIntent records the intent of the latest classification.
func (s *Session) SetLastIntent(intent model.Intent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastIntent = intent
}

// ActiveTransaction returns the id of the transaction pending
// confirmation, empty if none.
func (s *Session) ActiveTransaction() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeTxID
}

// SetActiveTransaction marks a transaction as pending confirmation for
// this conversation.
func (s *Session) SetActiveTransaction(txID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeTxID = txID
}

// ClearActiveTransaction drops the pending transaction reference.
func (s *Session) ClearActiveTransaction() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeTxID = ""
}

// CreatedAt returns the session creation time.
func (s *Session) CreatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createdAt
}

// LastActivity returns the time of the most recent message.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivityAt
}

// IsExpired reports whether the session has been idle longer than
// timeout. It is a pure predicate; no sweep is ever triggered here.
func (s *Session) IsExpired(timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now().Sub(s.lastActivityAt) > timeout
}

// Context snapshots the session state handed to intent classification.
func (s *Session) Context(txState model.TransactionState) model.SessionContext {
	s.mu.Lock()
	defer s.mu.Unlock()

	return model.SessionContext{
		LastIntent:         s.lastIntent,
		TransactionPending: s.activeTxID != "",
		TransactionState:   txState,
		MessageCount:       len(s.messages),
		SessionDuration:    s.now().Sub(s.createdAt),
	}
}
