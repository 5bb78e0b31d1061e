package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"inkpress/internal/errs"
	"inkpress/internal/models"
	"inkpress/internal/store"
)

const minPasswordLen = 6

// LocalProvider is the email/password identity provider backed by the
// credentials table.
type LocalProvider struct {
	creds   store.Users
	limiter *AttemptLimiter
	cost    int
}

func NewLocalProvider(creds store.Users, limiter *AttemptLimiter) *LocalProvider {
	return &LocalProvider{creds: creds, limiter: limiter, cost: bcrypt.DefaultCost}
}

// SignUp registers a new credential and returns its principal.
func (p *LocalProvider) SignUp(ctx context.Context, email, password, displayName string) (*Principal, error) {
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, errs.Validation("invalid email address")
	}
	if len(password) < minPasswordLen {
		return nil, errs.Validation("password must be at least %d characters", minPasswordLen)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return nil, err
	}
	cred := &models.Credential{
		UID:          uuid.NewString(),
		Email:        strings.ToLower(email),
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := p.creds.CreateCredential(ctx, cred); err != nil {
		return nil, err
	}
	return &Principal{UID: cred.UID, Email: cred.Email, DisplayName: strings.TrimSpace(displayName)}, nil
}

// SignIn checks an email/password pair. Unknown emails and wrong passwords
// both yield ErrInvalidCredential and count against the attempt limit.
func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*Principal, error) {
	if p.limiter != nil && !p.limiter.Allow(email) {
		return nil, ErrRateLimited
	}

	cred, err := p.creds.GetCredentialByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			p.fail(email)
			return nil, ErrInvalidCredential
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		p.fail(email)
		return nil, ErrInvalidCredential
	}

	if p.limiter != nil {
		p.limiter.Reset(email)
	}
	return &Principal{UID: cred.UID, Email: cred.Email}, nil
}

func (p *LocalProvider) fail(email string) {
	if p.limiter != nil {
		p.limiter.Fail(email)
	}
}
