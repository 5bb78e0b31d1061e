package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"inkpress/internal/models"
	"inkpress/internal/services"
)

type PostHandler struct {
	posts    *services.PostService
	feed     *services.FeedService
	importer *services.Importer
}

func NewPostHandler(posts *services.PostService, feed *services.FeedService, importer *services.Importer) *PostHandler {
	return &PostHandler{posts: posts, feed: feed, importer: importer}
}

type createPostRequest struct {
	Title    string            `json:"title"`
	Content  string            `json:"content"`
	Excerpt  string            `json:"excerpt"`
	Tags     []string          `json:"tags"`
	Image    *models.Image     `json:"image"`
	Status   models.PostStatus `json:"status"`
	Featured bool              `json:"featured"`
}

type updatePostRequest struct {
	Title    *string            `json:"title"`
	Content  *string            `json:"content"`
	Excerpt  *string            `json:"excerpt"`
	Tags     []string           `json:"tags"`
	Image    *models.Image      `json:"image"`
	Status   *models.PostStatus `json:"status"`
	Featured *bool              `json:"featured"`
}

// List GET /api/posts
func (h *PostHandler) List(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		badRequest(c, "limit must be a non-negative integer")
		return
	}
	page, err := h.feed.FilteredPosts(c.Request.Context(), principal(c), services.PostFilter{
		Tag:      c.Query("tag"),
		Search:   c.Query("search"),
		AuthorID: c.Query("author"),
		Status:   models.PostStatus(c.Query("status")),
		Sort:     c.Query("sort"),
		Cursor:   c.Query("cursor"),
		Limit:    limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// Feed GET /api/posts/feed
func (h *PostHandler) Feed(c *gin.Context) {
	h.list(c, h.feed.PublishedFeed)
}

// Featured GET /api/posts/featured
func (h *PostHandler) Featured(c *gin.Context) {
	h.list(c, h.feed.FeaturedPosts)
}

// Search GET /api/posts/search?q=
func (h *PostHandler) Search(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		badRequest(c, "limit must be a non-negative integer")
		return
	}
	posts, err := h.feed.SearchPosts(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

// Tags GET /api/tags
func (h *PostHandler) Tags(c *gin.Context) {
	tags, err := h.feed.AvailableTags(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tags": tags})
}

// Detail GET /api/posts/:id
func (h *PostHandler) Detail(c *gin.Context) {
	post, err := h.posts.GetPost(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// Related GET /api/posts/:id/related
func (h *PostHandler) Related(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		badRequest(c, "limit must be a non-negative integer")
		return
	}
	posts, err := h.feed.RelatedTo(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

// Create POST /api/posts
func (h *PostHandler) Create(c *gin.Context) {
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid post body")
		return
	}
	id, err := h.posts.CreatePost(c.Request.Context(), principal(c), services.PostInput{
		Title:    req.Title,
		Content:  req.Content,
		Excerpt:  req.Excerpt,
		Tags:     req.Tags,
		Image:    req.Image,
		Status:   req.Status,
		Featured: req.Featured,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

type importRequest struct {
	URL string `json:"url" binding:"required"`
}

// Import POST /api/posts/import
// Creates a draft from the readable part of a web page.
func (h *PostHandler) Import(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "URL is required")
		return
	}
	id, err := h.importer.ImportFromURL(c.Request.Context(), principal(c), req.URL)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// Update PATCH /api/posts/:id
func (h *PostHandler) Update(c *gin.Context) {
	var req updatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid post body")
		return
	}
	err := h.posts.UpdatePost(c.Request.Context(), principal(c), c.Param("id"), services.PostUpdate{
		Title:    req.Title,
		Content:  req.Content,
		Excerpt:  req.Excerpt,
		Tags:     req.Tags,
		Image:    req.Image,
		Status:   req.Status,
		Featured: req.Featured,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Delete DELETE /api/posts/:id
func (h *PostHandler) Delete(c *gin.Context) {
	if err := h.posts.DeletePost(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Like POST /api/posts/:id/like
func (h *PostHandler) Like(c *gin.Context) {
	if err := h.posts.LikePost(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Mine GET /api/me/posts
func (h *PostHandler) Mine(c *gin.Context) {
	posts, err := h.posts.UserPosts(c.Request.Context(), principal(c))
	if err != nil {
		writeError(c, err)
		return
	}
	if posts == nil {
		posts = []models.Post{}
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

func (h *PostHandler) list(c *gin.Context, fetch func(ctx context.Context, limit int) ([]models.Post, error)) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		badRequest(c, "limit must be a non-negative integer")
		return
	}
	posts, err := fetch(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	if posts == nil {
		posts = []models.Post{}
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}
