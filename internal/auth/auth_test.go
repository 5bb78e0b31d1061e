package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"inkpress/internal/errs"
	"inkpress/internal/store/inmemory"
)

func TestClassifySignInError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureKind
		msg  string
	}{
		{"invalid", fmt.Errorf("sign in: %w", ErrInvalidCredential), FailureInvalidCredential, "Invalid email or password"},
		{"disabled", ErrAccountDisabled, FailureAccountDisabled, "This account has been disabled"},
		{"rate limited", ErrRateLimited, FailureRateLimited, "Too many failed login attempts. Please try again later or reset your password"},
		{"upstream", errs.Upstream("db", errors.New("connection refused")), FailureNetwork, "Network error. Please check your internet connection"},
		{"other", errors.New("boom"), FailureUnknown, "Login failed. Please try again"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifySignInError(tt.err)
			assert.Equal(t, tt.want, got.Kind)
			assert.Equal(t, tt.msg, got.Message)
		})
	}
}

func TestAttemptLimiter(t *testing.T) {
	l, err := NewAttemptLimiter(2, time.Minute)
	require.NoError(t, err)

	assert.True(t, l.Allow("a@example.com"))
	l.Fail("a@example.com")
	l.Fail("A@example.com ")
	assert.False(t, l.Allow("a@example.com"))
	assert.True(t, l.Allow("b@example.com"))

	l.Reset("a@example.com")
	assert.True(t, l.Allow("a@example.com"))
}

func newTestProvider(t *testing.T, maxAttempts int) *LocalProvider {
	t.Helper()
	l, err := NewAttemptLimiter(maxAttempts, time.Minute)
	require.NoError(t, err)
	p := NewLocalProvider(inmemory.New(), l)
	p.cost = bcrypt.MinCost
	return p
}

func TestLocalProvider_SignUpAndSignIn(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t, 5)

	created, err := p.SignUp(ctx, "Ada@Example.com", "secret1", " Ada ")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", created.Email)
	assert.Equal(t, "Ada", created.DisplayName)

	got, err := p.SignIn(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, created.UID, got.UID)

	_, err = p.SignIn(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredential)
	_, err = p.SignIn(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredential)

	_, err = p.SignUp(ctx, "ada@example.com", "secret2", "")
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestLocalProvider_SignUpValidation(t *testing.T) {
	p := newTestProvider(t, 5)

	_, err := p.SignUp(context.Background(), "not-an-email", "secret1", "")
	assert.ErrorIs(t, err, errs.ErrValidation)
	_, err = p.SignUp(context.Background(), "a@example.com", "123", "")
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestLocalProvider_RateLimit(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t, 2)
	_, err := p.SignUp(ctx, "a@example.com", "secret1", "")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = p.SignIn(ctx, "a@example.com", "bad")
		require.ErrorIs(t, err, ErrInvalidCredential)
	}
	_, err = p.SignIn(ctx, "a@example.com", "secret1")
	assert.ErrorIs(t, err, ErrRateLimited)
}
