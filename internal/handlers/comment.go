package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"inkpress/internal/services"
)

type CommentHandler struct {
	comments *services.CommentService
}

func NewCommentHandler(comments *services.CommentService) *CommentHandler {
	return &CommentHandler{comments: comments}
}

type commentRequest struct {
	Content  string `json:"content"`
	ParentID string `json:"parent_id"`
}

// List GET /api/posts/:id/comments
func (h *CommentHandler) List(c *gin.Context) {
	threads, err := h.comments.CommentsForPost(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if threads == nil {
		threads = []services.CommentThread{}
	}
	c.JSON(http.StatusOK, gin.H{"comments": threads})
}

// Replies GET /api/comments/:id/replies
func (h *CommentHandler) Replies(c *gin.Context) {
	replies, err := h.comments.Replies(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": replies})
}

// Create POST /api/posts/:id/comments
func (h *CommentHandler) Create(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid comment body")
		return
	}
	comment, err := h.comments.AddComment(c.Request.Context(), principal(c), c.Param("id"), req.Content, req.ParentID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// Update PATCH /api/comments/:id
func (h *CommentHandler) Update(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid comment body")
		return
	}
	if err := h.comments.UpdateComment(c.Request.Context(), principal(c), c.Param("id"), req.Content); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Delete DELETE /api/comments/:id
func (h *CommentHandler) Delete(c *gin.Context) {
	if err := h.comments.DeleteComment(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Like POST /api/comments/:id/like
func (h *CommentHandler) Like(c *gin.Context) {
	if err := h.comments.LikeComment(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
