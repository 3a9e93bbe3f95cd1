package session

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically removes expired sessions from a store. The
// onExpire hook runs before removal so callers can cancel any pending
// transaction still attached to the session.
type Sweeper struct {
	store    *Store
	onExpire func(sess *Session)
	logger   *slog.Logger
	timeout  time.Duration
	interval time.Duration
}

// NewSweeper creates a sweeper over store. onExpire may be nil.
func NewSweeper(store *Store, timeout, interval time.Duration, onExpire func(*Session), logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:    store,
		timeout:  timeout,
		interval: interval,
		onExpire: onExpire,
		logger:   logger,
	}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep()
		}
	}
}

// Sweep removes all currently expired sessions and returns how many
// were removed.
func (w *Sweeper) Sweep() int {
	expired := w.store.Expired(w.timeout)
	for _, sess := range expired {
		sess := sess
		w.store.Serialize(sess.ID(), func() {
			if w.onExpire != nil {
				w.onExpire(sess)
			}
			w.store.Delete(sess.ID())
		})
		w.logger.Info("expired session removed", "session_id", sess.ID())
	}
	return len(expired)
}
