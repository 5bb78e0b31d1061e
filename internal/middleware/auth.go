package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"inkpress/internal/auth"
	"inkpress/internal/errs"
	"inkpress/internal/models"
)

const (
	PrincipalKey = "principal"
	CheckUserKey = "user"
)

// session keys
const (
	sessionUserID = "user_id"
	sessionEmail  = "email"
	sessionName   = "name"
	sessionPhoto  = "photo"
)

// ProfileLoader reads the stored profile of a principal.
type ProfileLoader interface {
	GetProfile(ctx context.Context, uid string) (*models.User, error)
}

// SaveSession stores p in the cookie session.
func SaveSession(c *gin.Context, p *auth.Principal) error {
	session := sessions.Default(c)
	session.Set(sessionUserID, p.UID)
	session.Set(sessionEmail, p.Email)
	session.Set(sessionName, p.DisplayName)
	session.Set(sessionPhoto, p.PhotoURL)
	return session.Save()
}

// ClearSession signs the current visitor out.
func ClearSession(c *gin.Context) error {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	return session.Save()
}

// CurrentPrincipal returns the signed-in principal or nil.
func CurrentPrincipal(c *gin.Context) *auth.Principal {
	if v, ok := c.Get(PrincipalKey); ok {
		if p, ok := v.(*auth.Principal); ok {
			return p
		}
	}
	return nil
}

// CurrentUser returns the profile loaded for this request or nil.
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(CheckUserKey); ok {
		if u, ok := v.(*models.User); ok {
			return u
		}
	}
	return nil
}

// AuthRequired rejects requests without a signed-in principal.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentPrincipal(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Sign-in required"})
			return
		}
		c.Next()
	}
}

// LoadUser rebuilds the principal from the session and loads its profile
// fresh on every request, so role changes apply immediately.
func LoadUser(profiles ProfileLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		uid, _ := session.Get(sessionUserID).(string)
		if uid == "" {
			c.Next()
			return
		}

		p := &auth.Principal{UID: uid}
		p.Email, _ = session.Get(sessionEmail).(string)
		p.DisplayName, _ = session.Get(sessionName).(string)
		p.PhotoURL, _ = session.Get(sessionPhoto).(string)
		c.Set(PrincipalKey, p)

		user, err := profiles.GetProfile(c.Request.Context(), uid)
		switch {
		case err == nil:
			c.Set(CheckUserKey, user)
		case errors.Is(err, errs.ErrNotFound):
		default:
			zerolog.Ctx(c.Request.Context()).Warn().Err(err).Str("uid", uid).Msg("load profile")
		}
		c.Next()
	}
}
