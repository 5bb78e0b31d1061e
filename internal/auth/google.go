package auth

import (
	"context"
	"errors"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"inkpress/internal/errs"
)

// GoogleOAuth drives the authorization-code flow against Google.
type GoogleOAuth struct {
	config   *oauth2.Config
	verifier *IDTokenVerifier
}

// NewGoogleOAuth builds the flow for the given client. An empty endpoint
// selects Google's production endpoint.
func NewGoogleOAuth(clientID, clientSecret, redirectURI string, endpoint oauth2.Endpoint, verifier *IDTokenVerifier) *GoogleOAuth {
	if endpoint.AuthURL == "" {
		endpoint = google.Endpoint
	}
	return &GoogleOAuth{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       []string{"profile", "email"},
			Endpoint:     endpoint,
		},
		verifier: verifier,
	}
}

// AuthCodeURL is the consent page URL. Offline access and a forced consent
// prompt make Google return a refresh token on every sign-in.
func (g *GoogleOAuth) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for tokens and verifies the ID token
// that comes with them.
func (g *GoogleOAuth) Exchange(ctx context.Context, code string) (string, *GoogleClaims, error) {
	tok, err := g.config.Exchange(ctx, code)
	if err != nil {
		return "", nil, errs.Upstream("exchange code", err)
	}
	raw, _ := tok.Extra("id_token").(string)
	if raw == "" {
		return "", nil, errs.Upstream("exchange code", errors.New("no id_token in token response"))
	}
	claims, err := g.verifier.Verify(ctx, raw)
	if err != nil {
		return "", nil, err
	}
	return raw, claims, nil
}
