// Package auth is the identity provider boundary: local email/password
// accounts, Google sign-in and the classification of sign-in failures.
package auth

import (
	"errors"
	"fmt"
	"net"
	"net/url"

	"inkpress/internal/errs"
)

// Principal is an authenticated identity as reported by an identity
// provider. DisplayName and PhotoURL are the provider's values and are used
// when the stored profile leaves them empty.
type Principal struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

var (
	ErrInvalidCredential = fmt.Errorf("%w: invalid credential", errs.ErrUnauthorized)
	ErrAccountDisabled   = fmt.Errorf("%w: account disabled", errs.ErrUnauthorized)
	ErrRateLimited       = fmt.Errorf("%w: too many attempts", errs.ErrUnauthorized)
)

// FailureKind is the user-facing category of a sign-in failure.
type FailureKind string

const (
	FailureInvalidCredential FailureKind = "invalid_credential"
	FailureAccountDisabled   FailureKind = "account_disabled"
	FailureRateLimited       FailureKind = "rate_limited"
	FailureNetwork           FailureKind = "network"
	FailureUnknown           FailureKind = "unknown"
)

// SignInFailure is the only part of a sign-in error that reaches end users.
type SignInFailure struct {
	Kind    FailureKind `json:"code"`
	Message string      `json:"error"`
}

var failureMessages = map[FailureKind]string{
	FailureInvalidCredential: "Invalid email or password",
	FailureAccountDisabled:   "This account has been disabled",
	FailureRateLimited:       "Too many failed login attempts. Please try again later or reset your password",
	FailureNetwork:           "Network error. Please check your internet connection",
	FailureUnknown:           "Login failed. Please try again",
}

// ClassifySignInError maps any sign-in error onto a fixed category.
func ClassifySignInError(err error) SignInFailure {
	kind := FailureUnknown
	var netErr net.Error
	var urlErr *url.Error
	switch {
	case errors.Is(err, ErrInvalidCredential):
		kind = FailureInvalidCredential
	case errors.Is(err, ErrAccountDisabled):
		kind = FailureAccountDisabled
	case errors.Is(err, ErrRateLimited):
		kind = FailureRateLimited
	case errors.Is(err, errs.ErrUpstream), errors.As(err, &netErr), errors.As(err, &urlErr):
		kind = FailureNetwork
	}
	return SignInFailure{Kind: kind, Message: failureMessages[kind]}
}
