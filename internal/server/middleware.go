package server

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

// RateLimiter enforces a per-client sliding-window request cap.
type RateLimiter struct {
	now         func() time.Time
	requests    map[string][]time.Time
	logger      *slog.Logger
	maxRequests int
	window      time.Duration
	mu          sync.Mutex
}

// NewRateLimiter allows maxRequests per window per client.
func NewRateLimiter(maxRequests int, window time.Duration, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		requests:    make(map[string][]time.Time),
		logger:      logger,
		now:         time.Now,
	}
}

// Allow records a request for identifier and reports whether it is
// within the limit. Old entries are pruned on each check.
func (rl *RateLimiter) Allow(identifier string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)

	recent := rl.requests[identifier][:0:0]
	for _, t := range rl.requests[identifier] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= rl.maxRequests {
		rl.requests[identifier] = recent
		rl.logger.Warn("rate limit exceeded", "client", identifier)
		return false
	}

	rl.requests[identifier] = append(recent, now)
	return true
}

// Middleware rejects over-limit clients with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(clientIP(r)) {
			Error(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
