package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborbank/teller/internal/common"
)

func newTestService(t *testing.T) (*Service, *time.Time) {
	t.Helper()
	s := NewService("test-secret", 30*time.Minute, nil)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestService_OTPRoundTrip(t *testing.T) {
	s, _ := newTestService(t)

	otp := s.GenerateOTP("user_001")
	require.Len(t, otp, 6)

	assert.False(t, s.VerifyOTP("user_001", "000000x"), "wrong code rejected")
	assert.True(t, s.VerifyOTP("user_001", otp))
	assert.False(t, s.VerifyOTP("user_001", otp), "a code is single use")
}

func TestService_OTPIsPerUser(t *testing.T) {
	s, _ := newTestService(t)

	otp := s.GenerateOTP("user_001")
	assert.False(t, s.VerifyOTP("user_002", otp))
	assert.True(t, s.VerifyOTP("user_001", otp))
}

func TestService_TokenRoundTrip(t *testing.T) {
	s, _ := newTestService(t)

	token, err := s.CreateToken("user_001")
	require.NoError(t, err)

	auth := s.Verify(token)
	require.NotNil(t, auth)
	assert.Equal(t, "user_001", auth.UserID)
	assert.True(t, auth.Authenticated)
	assert.True(t, auth.Valid(s.now()))
	assert.Equal(t, 30*time.Minute, auth.ExpiresAt.Sub(auth.IssuedAt))
}

func TestService_VerifyStripsBearerPrefix(t *testing.T) {
	s, _ := newTestService(t)

	token, err := s.CreateToken("user_001")
	require.NoError(t, err)

	auth := s.Verify("Bearer " + token)
	require.NotNil(t, auth)
	assert.Equal(t, "user_001", auth.UserID)
}

func TestService_VerifyRejectsBadTokens(t *testing.T) {
	s, _ := newTestService(t)

	assert.Nil(t, s.Verify(""))
	assert.Nil(t, s.Verify("Bearer "))
	assert.Nil(t, s.Verify("not-a-jwt"))

	// A token signed with a different secret fails verification.
	other := NewService("other-secret", 30*time.Minute, nil)
	foreign, err := other.CreateToken("user_001")
	require.NoError(t, err)
	assert.Nil(t, s.Verify(foreign))
}

func TestService_VerifyRejectsExpiredToken(t *testing.T) {
	s, now := newTestService(t)

	token, err := s.CreateToken("user_001")
	require.NoError(t, err)
	require.NotNil(t, s.Verify(token))

	*now = now.Add(31 * time.Minute)
	assert.Nil(t, s.Verify(token))
}

func TestService_Authenticate(t *testing.T) {
	s, _ := newTestService(t)

	_, _, err := s.Authenticate("user_001", "123456")
	require.ErrorIs(t, err, common.ErrInvalidToken)

	otp := s.GenerateOTP("user_001")
	token, auth, err := s.Authenticate("user_001", otp)
	require.NoError(t, err)
	require.NotNil(t, auth)
	assert.NotEmpty(t, token)
	assert.Equal(t, "user_001", auth.UserID)

	// The issued token verifies back to the same principal.
	verified := s.Verify(token)
	require.NotNil(t, verified)
	assert.Equal(t, auth.UserID, verified.UserID)
}
