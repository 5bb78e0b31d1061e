package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"inkpress/internal/auth"
	"inkpress/internal/errs"
	"inkpress/internal/middleware"
	"inkpress/internal/models"
	"inkpress/internal/services"
)

type AuthHandler struct {
	users *services.UserService
}

func NewAuthHandler(users *services.UserService) *AuthHandler {
	return &AuthHandler{users: users}
}

type signUpRequest struct {
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type googleSessionRequest struct {
	Token string `json:"token" binding:"required"`
}

type sessionResponse struct {
	Principal *auth.Principal `json:"principal"`
	User      *models.User    `json:"user"`
}

var failureStatus = map[auth.FailureKind]int{
	auth.FailureInvalidCredential: http.StatusUnauthorized,
	auth.FailureAccountDisabled:   http.StatusForbidden,
	auth.FailureRateLimited:       http.StatusTooManyRequests,
	auth.FailureNetwork:           http.StatusServiceUnavailable,
	auth.FailureUnknown:           http.StatusInternalServerError,
}

// SignUp POST /api/auth/signup
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Email and password are required")
		return
	}
	p, user, err := h.users.SignUp(c.Request.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		writeError(c, err)
		return
	}
	h.startSession(c, http.StatusCreated, p, user)
}

// Login POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Email and password are required")
		return
	}
	p, user, err := h.users.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.signInFailed(c, err)
		return
	}
	h.startSession(c, http.StatusOK, p, user)
}

// GoogleSession POST /api/auth/google/session
// Exchanges the ID token handed to the client by the OAuth callback for a
// server session.
func (h *AuthHandler) GoogleSession(c *gin.Context) {
	var req googleSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Token is required")
		return
	}
	p, user, err := h.users.SignInWithGoogleToken(c.Request.Context(), req.Token)
	if err != nil {
		h.signInFailed(c, err)
		return
	}
	h.startSession(c, http.StatusOK, p, user)
}

// Logout POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := middleware.ClearSession(c); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Me GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	p := principal(c)
	user := middleware.CurrentUser(c)
	if user == nil {
		var err error
		if user, err = h.users.EnsureProfile(c.Request.Context(), p); err != nil {
			writeError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, sessionResponse{Principal: p, User: user})
}

func (h *AuthHandler) startSession(c *gin.Context, status int, p *auth.Principal, user *models.User) {
	if err := middleware.SaveSession(c, p); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(status, sessionResponse{Principal: p, User: user})
}

// signInFailed answers with the classified failure only; the cause is logged.
func (h *AuthHandler) signInFailed(c *gin.Context, err error) {
	if errors.Is(err, errs.ErrValidation) {
		writeError(c, err)
		return
	}
	failure := auth.ClassifySignInError(err)
	zerolog.Ctx(c.Request.Context()).Warn().Err(err).Str("kind", string(failure.Kind)).Msg("sign-in failed")
	c.JSON(failureStatus[failure.Kind], failure)
}
