// Package auth provides token verification and issuance for the
// assistant. Real OTP delivery is out of scope; codes are issued
// in-process for the demo flow.
package auth

import (
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/harborbank/teller/internal/common"
	"github.com/harborbank/teller/internal/model"
)

// Authenticator verifies a bearer token into an auth context. A nil
// result means anonymous, not an error.
type Authenticator interface {
	Verify(token string) *model.AuthContext
}

// Service issues and verifies HS256 JWTs, with a one-time-password step
// gating issuance.
type Service struct {
	now         func() time.Time
	otps        map[string]string
	secret      []byte
	logger      *slog.Logger
	tokenExpiry time.Duration
	mu          sync.Mutex
}

// NewService creates an auth service signing with secret.
func NewService(secret string, tokenExpiry time.Duration, logger *slog.Logger) *Service {
	if tokenExpiry <= 0 {
		tokenExpiry = 30 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		secret:      []byte(secret),
		tokenExpiry: tokenExpiry,
		otps:        make(map[string]string),
		logger:      logger,
		now:         time.Now,
	}
}

// GenerateOTP issues a 6-digit code for userID. Delivery (SMS, email)
// is the caller's concern.
func (s *Service) GenerateOTP(userID string) string {
	otp := fmt.Sprintf("%06d", rand.Intn(1000000))

	s.mu.Lock()
	s.otps[userID] = otp
	s.mu.Unlock()

	s.logger.Info("OTP generated", "user_id", userID)
	return otp
}

// VerifyOTP checks a submitted code and consumes it on success.
func (s *Service) VerifyOTP(userID, otp string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.otps[userID]
	if !ok || stored != otp {
		return false
	}
	delete(s.otps, userID)
	return true
}

// CreateToken signs a JWT for an authenticated user.
func (s *Service) CreateToken(userID string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"user_id":       userID,
		"authenticated": true,
		"iat":           now.Unix(),
		"exp":           now.Add(s.tokenExpiry).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify decodes a bearer token into an auth context. Any problem with
// the token (expired, malformed, wrong signature) yields nil.
func (s *Service) Verify(token string) *model.AuthContext {
	token = strings.TrimPrefix(token, "Bearer ")
	if token == "" {
		return nil
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		s.logger.Warn("token verification failed", "error", err)
		return nil
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil
	}
	userID, _ := claims["user_id"].(string)
	authenticated, _ := claims["authenticated"].(bool)
	if userID == "" || !authenticated {
		return nil
	}

	auth := &model.AuthContext{
		UserID:        userID,
		Authenticated: true,
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		auth.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		auth.ExpiresAt = exp.Time
	}
	return auth
}

// Authenticate verifies an OTP and, on success, returns a signed token
// plus its auth context.
func (s *Service) Authenticate(userID, otp string) (string, *model.AuthContext, error) {
	if !s.VerifyOTP(userID, otp) {
		return "", nil, common.NewUserError("Invalid or expired verification code.", common.ErrInvalidToken)
	}

	token, err := s.CreateToken(userID)
	if err != nil {
		return "", nil, err
	}

	now := s.now()
	return token, &model.AuthContext{
		UserID:        userID,
		Authenticated: true,
		IssuedAt:      now,
		ExpiresAt:     now.Add(s.tokenExpiry),
	}, nil
}
