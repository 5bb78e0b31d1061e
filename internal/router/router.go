package router

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"inkpress/internal/handlers"
	"inkpress/internal/middleware"
)

const sessionName = "inkpress_session"

// Handlers groups every HTTP handler the router mounts.
type Handlers struct {
	Auth     *handlers.AuthHandler
	Google   *handlers.GoogleOAuthHandler
	Posts    *handlers.PostHandler
	Comments *handlers.CommentHandler
	Admin    *handlers.AdminHandler
	Users    *handlers.UserHandler
	Images   *handlers.ImageHandler
	SEO      *handlers.SEOHandler
}

// Options configures the engine.
type Options struct {
	SessionSecret string
	SecureCookies bool
}

// New builds the engine with sessions, request logging and all routes.
func New(opts Options, log zerolog.Logger, profiles middleware.ProfileLoader, h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(log), middleware.Recovery(log))

	store := cookie.NewStore([]byte(opts.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 3600,
		HttpOnly: true,
		Secure:   opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(middleware.LoadUser(profiles))

	RegisterRoutes(r, h)
	return r
}

func RegisterRoutes(r *gin.Engine, h Handlers) {
	// OAuth redirect dance; any method is routed so the handlers can answer 405
	r.Any("/auth/google", h.Google.Login)
	r.Any("/auth/callback", h.Google.Callback)

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/robots.txt", h.SEO.RobotsTxt)
	r.GET("/sitemap.xml", h.SEO.SitemapXML)
	r.GET("/feed.xml", h.SEO.RSSFeed)

	api := r.Group("/api")

	// Public routes
	api.POST("/auth/signup", h.Auth.SignUp)
	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/logout", h.Auth.Logout)
	api.POST("/auth/google/session", h.Auth.GoogleSession)

	api.GET("/posts", h.Posts.List)
	api.GET("/posts/feed", h.Posts.Feed)
	api.GET("/posts/featured", h.Posts.Featured)
	api.GET("/posts/search", h.Posts.Search)
	api.GET("/posts/:id", h.Posts.Detail)
	api.GET("/posts/:id/related", h.Posts.Related)
	api.GET("/posts/:id/comments", h.Comments.List)
	api.GET("/comments/:id/replies", h.Comments.Replies)
	api.GET("/tags", h.Posts.Tags)
	api.GET("/users/:uid", h.Users.Profile)

	// Protected routes
	authorized := api.Group("")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.GET("/auth/me", h.Auth.Me)
		authorized.GET("/me/posts", h.Posts.Mine)
		authorized.PATCH("/me/profile", h.Users.UpdateProfile)

		authorized.POST("/posts", h.Posts.Create)
		authorized.POST("/posts/import", h.Posts.Import)
		authorized.PATCH("/posts/:id", h.Posts.Update)
		authorized.DELETE("/posts/:id", h.Posts.Delete)
		authorized.POST("/posts/:id/like", h.Posts.Like)

		authorized.POST("/posts/:id/comments", h.Comments.Create)
		authorized.PATCH("/comments/:id", h.Comments.Update)
		authorized.DELETE("/comments/:id", h.Comments.Delete)
		authorized.POST("/comments/:id/like", h.Comments.Like)

		authorized.POST("/images", h.Images.Upload)
	}

	// Admin routes; the services check the role on every call
	admin := api.Group("/admin")
	admin.Use(middleware.AuthRequired())
	{
		admin.GET("/comments/pending", h.Admin.Pending)
		admin.GET("/comments/flagged", h.Admin.Flagged)
		admin.GET("/comments/approved", h.Admin.Approved)
		admin.POST("/comments/:id/moderate", h.Admin.Moderate)
		admin.GET("/users", h.Admin.Users)
		admin.PUT("/users/:uid/role", h.Admin.SetRole)
		admin.GET("/users/:uid/roles", h.Admin.RoleHistory)
		admin.PUT("/users/:uid/active", h.Admin.SetActive)
		admin.GET("/stats", h.Admin.Stats)
	}
}
