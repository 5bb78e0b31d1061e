package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"inkpress/internal/services"
)

type UserHandler struct {
	users *services.UserService
}

func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

type profileRequest struct {
	DisplayName *string `json:"display_name"`
	PhotoURL    *string `json:"photo_url"`
}

// publicProfile omits the email address.
type publicProfile struct {
	UID         string `json:"uid"`
	DisplayName string `json:"display_name"`
	PhotoURL    string `json:"photo_url"`
	Role        string `json:"role"`
}

// Profile GET /api/users/:uid
func (h *UserHandler) Profile(c *gin.Context) {
	u, err := h.users.GetProfile(c.Request.Context(), c.Param("uid"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, publicProfile{
		UID:         u.UID,
		DisplayName: u.DisplayName,
		PhotoURL:    u.PhotoURL,
		Role:        string(u.Role),
	})
}

// UpdateProfile PATCH /api/me/profile
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid profile body")
		return
	}
	u, err := h.users.UpdateProfile(c.Request.Context(), principal(c), services.ProfileUpdate{
		DisplayName: req.DisplayName,
		PhotoURL:    req.PhotoURL,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}
