// Package errs holds the error taxonomy shared by the store, the services
// and the HTTP layer. Callers match with errors.Is.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrUpstream     = errors.New("upstream failure")

	// ErrUnauthenticated is the Unauthorized case where no principal is
	// present at all.
	ErrUnauthenticated = fmt.Errorf("%w: sign-in required", ErrUnauthorized)
)

// Validation returns an ErrValidation carrying a human readable reason.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound returns an ErrNotFound naming the missing entity.
func NotFound(entity, id string) error {
	return fmt.Errorf("%s %q: %w", entity, id, ErrNotFound)
}

// Unauthorized returns an ErrUnauthorized with the reason attached.
func Unauthorized(reason string) error {
	return fmt.Errorf("%w: %s", ErrUnauthorized, reason)
}

// Upstream wraps a failure of an external collaborator (database, identity
// provider, image host). Both ErrUpstream and the cause stay matchable.
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	var already *upstreamError
	if errors.As(err, &already) || errors.Is(err, ErrNotFound) {
		return err
	}
	return &upstreamError{op: op, cause: err}
}

type upstreamError struct {
	op    string
	cause error
}

func (e *upstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.op, e.cause)
}

func (e *upstreamError) Unwrap() []error {
	return []error{ErrUpstream, e.cause}
}
