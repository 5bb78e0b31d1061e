package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"golang.org/x/oauth2"

	"inkpress/internal/auth"
	"inkpress/internal/config"
	"inkpress/internal/db"
	"inkpress/internal/handlers"
	"inkpress/internal/imagehost"
	"inkpress/internal/logging"
	"inkpress/internal/models"
	"inkpress/internal/router"
	"inkpress/internal/services"
	"inkpress/internal/store"
	"inkpress/internal/store/inmemory"
	"inkpress/internal/store/postgres"
)

const (
	signInMaxFailures = 5
	signInWindow      = 15 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

func loadConfig(v *viper.Viper, envFile string) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(v, envFile)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}
	return cfg, logging.New(cfg.AppEnv), nil
}

// openStore returns the configured store and a function releasing it.
func openStore(cfg *config.Config, log zerolog.Logger) (store.Store, func(), error) {
	if cfg.Storage == config.StorageMemory {
		log.Warn().Msg("using in-memory storage, data is lost on exit")
		return inmemory.New(), func() {}, nil
	}
	gdb, err := db.Open(cfg.DatabaseURL, log)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(gdb, log); err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return postgres.New(gdb), closeFn, nil
}

func newImageHost(ctx context.Context, cfg *config.Config) (imagehost.Host, error) {
	if cfg.ImageHost == config.ImageHostS3 {
		return imagehost.NewS3(ctx, imagehost.S3Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PublicURL: cfg.S3PublicURL,
		})
	}
	return imagehost.NewCloudinary(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
}

// app is the wired server.
type app struct {
	engine *gin.Engine
	views  *services.ViewRecorder
}

func newApp(ctx context.Context, cfg *config.Config, st store.Store, log zerolog.Logger) (*app, error) {
	limiter, err := auth.NewAttemptLimiter(signInMaxFailures, signInWindow)
	if err != nil {
		return nil, err
	}
	local := auth.NewLocalProvider(st, limiter)

	var (
		tokens services.TokenVerifier
		oauth  handlers.GoogleOAuth
	)
	if cfg.GoogleClientID != "" {
		verifier, err := auth.NewIDTokenVerifier(ctx, cfg.GoogleClientID, "")
		if err != nil {
			return nil, err
		}
		tokens = verifier
		oauth = auth.NewGoogleOAuth(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.RedirectURI, oauth2.Endpoint{}, verifier)
	} else {
		log.Warn().Msg("GOOGLE_CLIENT_ID not set, Google sign-in disabled")
	}

	host, err := newImageHost(ctx, cfg)
	if err != nil {
		return nil, err
	}

	feed, err := services.NewFeedService(st, log)
	if err != nil {
		return nil, err
	}
	views := services.NewViewRecorder(st, log)
	posts := services.NewPostService(st, views, log, feed.InvalidateTags)
	comments := services.NewCommentService(st, log)
	users := services.NewUserService(st, local, tokens, log)
	importer := services.NewImporter(posts, nil, log)
	moderation := services.NewModerationService(st, log)
	stats := services.NewStatsService(st)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := router.New(router.Options{
		SessionSecret: cfg.SessionSecret,
		SecureCookies: cfg.IsProduction(),
	}, log, users, router.Handlers{
		Auth:     handlers.NewAuthHandler(users),
		Google:   handlers.NewGoogleOAuthHandler(oauth, cfg.ClientURL),
		Posts:    handlers.NewPostHandler(posts, feed, importer),
		Comments: handlers.NewCommentHandler(comments),
		Admin:    handlers.NewAdminHandler(moderation, comments, users, stats),
		Users:    handlers.NewUserHandler(users),
		Images:   handlers.NewImageHandler(host),
		SEO:      handlers.NewSEOHandler(feed, cfg.SiteURL, cfg.ClientURL, cfg.SiteName),
	})
	return &app{engine: engine, views: views}, nil
}

func runServe(ctx context.Context, v *viper.Viper, envFile string) error {
	cfg, log, err := loadConfig(v, envFile)
	if err != nil {
		return err
	}
	st, closeStore, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	a, err := newApp(ctx, cfg, st, log)
	if err != nil {
		return err
	}

	viewsCtx, stopViews := context.WithCancel(context.Background())
	viewsDone := make(chan struct{})
	go func() {
		defer close(viewsDone)
		a.views.Run(viewsCtx)
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.AppEnv).Str("storage", cfg.Storage).Msg("inkpress server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		stopViews()
		<-viewsDone
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown")
	}
	// flushes the pending view counts
	stopViews()
	<-viewsDone
	return nil
}

func runMigrate(v *viper.Viper, envFile string) error {
	cfg, log, err := loadConfig(v, envFile)
	if err != nil {
		return err
	}
	if cfg.Storage != config.StoragePostgres {
		return errors.New("migrate requires STORAGE=postgres")
	}
	gdb, err := db.Open(cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	if sqlDB, err := gdb.DB(); err == nil {
		defer sqlDB.Close()
	}
	return db.Migrate(gdb, log)
}

func runGrantRole(ctx context.Context, v *viper.Viper, envFile, uid, role string) error {
	cfg, log, err := loadConfig(v, envFile)
	if err != nil {
		return err
	}
	if cfg.Storage != config.StoragePostgres {
		return errors.New("grant-role requires STORAGE=postgres")
	}
	st, closeStore, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	users := services.NewUserService(st, nil, nil, log)
	if err := users.GrantRole(ctx, uid, models.Role(role)); err != nil {
		return err
	}
	log.Info().Str("uid", uid).Str("role", role).Msg("role granted")
	return nil
}
