package auth

import (
	"context"
	"fmt"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

const GoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

var googleIssuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

// GoogleClaims are the claims of a Google ID token used by sign-in.
type GoogleClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	jwt.RegisteredClaims
}

// Principal converts verified claims into a principal. Google subjects get a
// prefix so they never collide with local account ids.
func (c *GoogleClaims) Principal() *Principal {
	return &Principal{
		UID:         "google:" + c.Subject,
		Email:       c.Email,
		DisplayName: c.Name,
		PhotoURL:    c.Picture,
	}
}

// IDTokenVerifier checks Google ID tokens against the published signing keys.
// The key set is refreshed in the background for as long as the context
// passed to NewIDTokenVerifier lives. An unknown key id triggers a rate
// limited refresh, so a flood of forged tokens cannot hammer the JWKS
// endpoint.
type IDTokenVerifier struct {
	clientID string
	keys     keyfunc.Keyfunc
}

// NewIDTokenVerifier starts watching the key set at jwksURL, or Google's
// when it is empty. A JWKS endpoint that is down at start-up is not an error.
func NewIDTokenVerifier(ctx context.Context, clientID, jwksURL string) (*IDTokenVerifier, error) {
	if jwksURL == "" {
		jwksURL = GoogleJWKSURL
	}
	keys, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("jwks %s: %w", jwksURL, err)
	}
	return &IDTokenVerifier{clientID: clientID, keys: keys}, nil
}

// Verify validates signature, audience, issuer and expiry of raw.
func (v *IDTokenVerifier) Verify(ctx context.Context, raw string) (*GoogleClaims, error) {
	claims := &GoogleClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, v.keys.KeyfuncCtx(ctx),
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(v.clientID),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if !googleIssuers[claims.Issuer] {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidCredential, claims.Issuer)
	}
	return claims, nil
}
