package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"inkpress/internal/auth"
	"inkpress/internal/models"
	"inkpress/internal/services"
)

// AdminHandler serves the moderation and user management endpoints. Every
// service call re-checks the caller's role.
type AdminHandler struct {
	moderation *services.ModerationService
	comments   *services.CommentService
	users      *services.UserService
	stats      *services.StatsService
}

func NewAdminHandler(moderation *services.ModerationService, comments *services.CommentService, users *services.UserService, stats *services.StatsService) *AdminHandler {
	return &AdminHandler{moderation: moderation, comments: comments, users: users, stats: stats}
}

type moderateRequest struct {
	Status models.CommentStatus `json:"status" binding:"required"`
}

type roleRequest struct {
	Role models.Role `json:"role" binding:"required"`
}

type activeRequest struct {
	Active *bool `json:"active" binding:"required"`
}

type queueFunc func(ctx context.Context, p *auth.Principal, cursor string) (*services.CommentQueue, error)

// Pending GET /api/admin/comments/pending
func (h *AdminHandler) Pending(c *gin.Context) {
	h.queue(c, h.moderation.PendingComments)
}

// Flagged GET /api/admin/comments/flagged
func (h *AdminHandler) Flagged(c *gin.Context) {
	h.queue(c, h.moderation.FlaggedComments)
}

// Approved GET /api/admin/comments/approved
func (h *AdminHandler) Approved(c *gin.Context) {
	h.queue(c, h.moderation.RecentlyApprovedComments)
}

func (h *AdminHandler) queue(c *gin.Context, fetch queueFunc) {
	q, err := fetch(c.Request.Context(), principal(c), c.Query("cursor"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

// Moderate POST /api/admin/comments/:id/moderate
func (h *AdminHandler) Moderate(c *gin.Context) {
	var req moderateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Status is required")
		return
	}
	if err := h.comments.ModerateComment(c.Request.Context(), principal(c), c.Param("id"), req.Status); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Users GET /api/admin/users
func (h *AdminHandler) Users(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		badRequest(c, "limit must be a non-negative integer")
		return
	}
	page, err := h.users.ListUsers(c.Request.Context(), principal(c), models.Role(c.Query("role")), c.Query("cursor"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// SetRole PUT /api/admin/users/:uid/role
func (h *AdminHandler) SetRole(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Role is required")
		return
	}
	if err := h.users.UpdateUserRole(c.Request.Context(), principal(c), c.Param("uid"), req.Role); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RoleHistory GET /api/admin/users/:uid/roles
func (h *AdminHandler) RoleHistory(c *gin.Context) {
	changes, err := h.users.RoleHistory(c.Request.Context(), principal(c), c.Param("uid"))
	if err != nil {
		writeError(c, err)
		return
	}
	if changes == nil {
		changes = []models.RoleChange{}
	}
	c.JSON(http.StatusOK, gin.H{"changes": changes})
}

// SetActive PUT /api/admin/users/:uid/active
func (h *AdminHandler) SetActive(c *gin.Context) {
	var req activeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Active is required")
		return
	}
	if err := h.users.SetUserActive(c.Request.Context(), principal(c), c.Param("uid"), *req.Active); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Stats GET /api/admin/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.stats.Dashboard(c.Request.Context(), principal(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
