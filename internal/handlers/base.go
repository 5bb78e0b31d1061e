package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"inkpress/internal/auth"
	"inkpress/internal/errs"
	"inkpress/internal/middleware"
)

// writeError maps an error onto its status code and writes {"error": ...}.
// Upstream and unexpected failures are logged and answered with a generic
// message.
func writeError(c *gin.Context, err error) {
	log := zerolog.Ctx(c.Request.Context())
	switch {
	case errors.Is(err, errs.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Sign-in required"})
	case errors.Is(err, errs.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": msg(err)})
	case errors.Is(err, errs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": msg(err)})
	case errors.Is(err, errs.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": msg(err)})
	case errors.Is(err, errs.ErrUpstream):
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("upstream failure")
		c.JSON(http.StatusBadGateway, gin.H{"error": "A backing service failed. Please try again"})
	default:
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("unexpected error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// badRequest answers a malformed request body or query.
func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}

func principal(c *gin.Context) *auth.Principal {
	return middleware.CurrentPrincipal(c)
}

// queryInt reads a non-negative integer query parameter, 0 when absent.
func queryInt(c *gin.Context, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func msg(err error) string {
	if err == nil {
		return ""
	}
	s := err.Error()
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
