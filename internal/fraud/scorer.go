// Package fraud scores proposed transactions for risk using per-user
// transaction velocity.
package fraud

import (
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harborbank/teller/internal/model"
)

// Fraud signal reasons.
const (
	ReasonHighVelocity = "High transaction velocity"
	ReasonLargeAmount  = "Large transaction amount"
)

// suspiciousThreshold is the risk score at or above which a transaction
// is blocked.
const suspiciousThreshold = 0.5

// attempt records one transaction attempt for velocity tracking.
type attempt struct {
	at   time.Time
	txID string
}

// Scorer maintains a per-user velocity log and assesses transactions
// against it. The log is shared across sessions for the same user and
// guarded independently of any session lock. Safe for concurrent use.
type Scorer struct {
	now             func() time.Time
	attempts        map[string][]attempt
	logger          *slog.Logger
	amountThreshold decimal.Decimal
	velocityWindow  time.Duration
	velocityLimit   int
	mu              sync.Mutex
}

// Config holds scorer tuning parameters.
type Config struct {
	AmountThreshold decimal.Decimal
	VelocityWindow  time.Duration
	VelocityLimit   int
}

// DefaultConfig returns the default scorer configuration: at most 3
// attempts per hour, amounts above 10000 flagged.
func DefaultConfig() Config {
	return Config{
		VelocityLimit:   3,
		VelocityWindow:  time.Hour,
		AmountThreshold: decimal.NewFromInt(10000),
	}
}

// NewScorer creates a scorer with the given configuration. Zero-valued
// fields fall back to defaults.
func NewScorer(cfg Config, logger *slog.Logger) *Scorer {
	def := DefaultConfig()
	if cfg.VelocityLimit <= 0 {
		cfg.VelocityLimit = def.VelocityLimit
	}
	if cfg.VelocityWindow <= 0 {
		cfg.VelocityWindow = def.VelocityWindow
	}
	if cfg.AmountThreshold.IsZero() {
		cfg.AmountThreshold = def.AmountThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{
		attempts:        make(map[string][]attempt),
		velocityLimit:   cfg.VelocityLimit,
		velocityWindow:  cfg.VelocityWindow,
		amountThreshold: cfg.AmountThreshold,
		logger:          logger,
		now:             time.Now,
	}
}

// Check assesses tx for the given user and records the attempt in the
// velocity log. Recording happens regardless of outcome so velocity
// reflects attempts, not just successes.
func (s *Scorer) Check(tx *model.Transaction, userID string) model.FraudAssessment {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	recent := s.pruneLocked(userID, now)

	var riskScore float64
	var reasons []string

	if len(recent) >= s.velocityLimit {
		riskScore += 0.4
		reasons = append(reasons, ReasonHighVelocity)
	}

	if tx.Params.Amount.GreaterThan(s.amountThreshold) {
		riskScore += 0.3
		reasons = append(reasons, ReasonLargeAmount)
	}

	s.attempts[userID] = append(recent, attempt{at: now, txID: tx.ID})

	assessment := model.FraudAssessment{
		RiskScore:  riskScore,
		Reasons:    reasons,
		Suspicious: riskScore >= suspiciousThreshold,
	}

	if assessment.Suspicious {
		s.logger.Warn("suspicious transaction detected",
			"transaction_id", tx.ID,
			"user_id", userID,
			"risk_score", riskScore)
	}

	return assessment
}

// RecentAttempts returns the number of attempts for userID still inside
// the velocity window.
func (s *Scorer) RecentAttempts(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	recent := s.pruneLocked(userID, s.now())
	s.attempts[userID] = recent
	return len(recent)
}

// pruneLocked drops attempts older than the window so memory stays
// bounded by active users times window size. Caller must hold mu.
func (s *Scorer) pruneLocked(userID string, now time.Time) []attempt {
	cutoff := now.Add(-s.velocityWindow)
	all := s.attempts[userID]

	recent := all[:0:0]
	for _, a := range all {
		if a.at.After(cutoff) {
			recent = append(recent, a)
		}
	}
	if len(recent) == 0 {
		delete(s.attempts, userID)
		return nil
	}
	return recent
}
