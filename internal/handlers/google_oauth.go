package handlers

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"net/url"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"inkpress/internal/auth"
)

const oauthStateKey = "oauth_state"

// GoogleOAuth runs the authorization-code redirect dance. It only reports the
// verified identity back to the client; the session is created later through
// AuthHandler.GoogleSession.
type GoogleOAuth interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (string, *auth.GoogleClaims, error)
}

type GoogleOAuthHandler struct {
	oauth     GoogleOAuth
	clientURL string
}

func NewGoogleOAuthHandler(oauth GoogleOAuth, clientURL string) *GoogleOAuthHandler {
	return &GoogleOAuthHandler{oauth: oauth, clientURL: clientURL}
}

func generateStateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func methodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
}

func (h *GoogleOAuthHandler) configured(c *gin.Context) bool {
	if h.oauth == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google sign-in is not configured"})
		return false
	}
	return true
}

// Login /auth/google redirects to the consent screen.
func (h *GoogleOAuthHandler) Login(c *gin.Context) {
	if c.Request.Method != http.MethodGet {
		methodNotAllowed(c)
		return
	}
	if !h.configured(c) {
		return
	}
	state, err := generateStateToken()
	if err != nil {
		writeError(c, err)
		return
	}
	session := sessions.Default(c)
	session.Set(oauthStateKey, state)
	if err := session.Save(); err != nil {
		writeError(c, err)
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, h.oauth.AuthCodeURL(state))
}

// Callback /auth/callback exchanges the code and hands the verified identity
// to the client.
func (h *GoogleOAuthHandler) Callback(c *gin.Context) {
	if c.Request.Method != http.MethodGet {
		methodNotAllowed(c)
		return
	}
	code := c.Query("code")
	if code == "" {
		badRequest(c, "Authorization code not provided")
		return
	}
	if !h.configured(c) {
		return
	}
	log := zerolog.Ctx(c.Request.Context())

	session := sessions.Default(c)
	saved, _ := session.Get(oauthStateKey).(string)
	session.Delete(oauthStateKey)
	_ = session.Save()
	if saved == "" || c.Query("state") != saved {
		log.Warn().Msg("oauth callback with invalid state")
		h.failed(c)
		return
	}

	idToken, claims, err := h.oauth.Exchange(c.Request.Context(), code)
	if err != nil {
		log.Error().Err(err).Msg("oauth code exchange")
		h.failed(c)
		return
	}

	q := url.Values{}
	q.Set("token", idToken)
	q.Set("email", claims.Email)
	q.Set("name", claims.Name)
	q.Set("picture", claims.Picture)
	c.Redirect(http.StatusFound, h.clientURL+"/auth/google-callback?"+q.Encode())
}

func (h *GoogleOAuthHandler) failed(c *gin.Context) {
	c.Redirect(http.StatusFound, h.clientURL+"/auth/login?error="+url.QueryEscape("Authentication failed"))
}
