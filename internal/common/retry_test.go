package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastOpts() RetryOptions {
	return RetryOptions{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestWithRetry_SucceedsFirstTry(t *testing.T) {
	var calls int
	err := WithRetry(context.Background(), func() error {
		calls++
		return nil
	}, fastOpts())

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_RecoversAfterTransientFailure(t *testing.T) {
	var calls int
	err := WithRetry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return &RetryableError{Err: errors.New("transient"), Retryable: true}
		}
		return nil
	}, fastOpts())

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_ExhaustsAttempts(t *testing.T) {
	var calls int
	err := WithRetry(context.Background(), func() error {
		calls++
		return errors.New("persistent")
	}, fastOpts())

	require.ErrorIs(t, err, ErrMaxRetries)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_StopsOnNonRetryable(t *testing.T) {
	var calls int
	err := WithRetry(context.Background(), func() error {
		calls++
		return &RetryableError{Err: errors.New("bad request"), Retryable: false}
	}, fastOpts())

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMaxRetries)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_HonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var calls int
	err := WithRetry(ctx, func() error {
		calls++
		cancel()
		return errors.New("failing")
	}, RetryOptions{MaxAttempts: 5, InitialDelay: time.Hour})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestUserError(t *testing.T) {
	err := NewUserError("Please try again.", ErrValidationFailed)

	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.Equal(t, "Please try again.", UserMessage(err, "fallback"))
	assert.Contains(t, err.Error(), "Please try again.")

	assert.Equal(t, "fallback", UserMessage(errors.New("plain"), "fallback"))
	assert.Equal(t, "fallback", UserMessage(nil, "fallback"))
}
