package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the keyed lifecycle manager for sessions. Constructed once at
// startup and injected into the orchestrator; never ambient state.
type Store struct {
	now      func() time.Time
	sessions map[string]*Session
	locks    map[string]*sync.Mutex
	mu       sync.Mutex
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
		locks:    make(map[string]*sync.Mutex),
		now:      time.Now,
	}
}

// GetOrCreate resolves a session by id. An empty or unknown id mints a
// fresh session under a new id; the first call always creates.
func (s *Store) GetOrCreate(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		if sess, ok := s.sessions[id]; ok {
			return sess
		}
	}

	if id == "" {
		id = uuid.NewString()
	}
	sess := newSession(id, s.now)
	s.sessions[id] = sess
	s.locks[id] = &sync.Mutex{}
	return sess
}

// Get returns the session for id, or nil if unknown.
func (s *Store) Get(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id]
}

// Delete removes a session. Returns false if the id was unknown.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	delete(s.locks, id)
	return true
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Serialize runs fn while holding the per-session mutex for id, so that
// message handling within one session never interleaves. Different
// sessions never block each other here.
func (s *Store) Serialize(id string, fn func()) {
	s.mu.Lock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()
	fn()
}

// Expired returns the sessions idle longer than timeout. Expiry is
// advisory housekeeping; callers decide the sweep policy.
func (s *Store) Expired(timeout time.Duration) []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []*Session
	for _, sess := range s.sessions {
		if sess.IsExpired(timeout) {
			expired = append(expired, sess)
		}
	}
	return expired
}
