// Package services holds the content lifecycle and authorization engine and
// the read paths composed on top of the store. Every mutating call takes the
// acting principal explicitly and re-reads its profile before authorizing.
package services

import (
	"context"
	"errors"
	"time"

	"inkpress/internal/auth"
	"inkpress/internal/errs"
	"inkpress/internal/models"
	"inkpress/internal/store"
)

const (
	// ModerationBatchSize is the page size of the moderation queues.
	ModerationBatchSize = 10
	// TagSampleSize bounds the number of published posts scanned for tags.
	TagSampleSize = 100
	// SearchScanSize bounds the number of published posts scanned by search.
	SearchScanSize = 100

	DefaultPageSize     = 10
	MaxPageSize         = 50
	DefaultRelatedCount = 3
	DefaultFeaturedSize = 5
	DefaultSearchSize   = 10
	SitemapSize         = 500

	maxTitleLen   = 200
	maxCommentLen = 5000
	maxTags       = 10
	excerptLen    = 200

	anonymousName = "Anonymous"
)

// loadActor returns the caller's live profile. Any failure to read it, and an
// inactive profile, count as Unauthorized.
func loadActor(ctx context.Context, users store.Users, p *auth.Principal) (*models.User, error) {
	if p == nil || p.UID == "" {
		return nil, errs.ErrUnauthenticated
	}
	u, err := users.GetUser(ctx, p.UID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.Unauthorized("no profile for principal")
		}
		return nil, errs.Unauthorized("profile lookup failed: " + err.Error())
	}
	if !u.Active {
		return nil, errs.Unauthorized("account disabled")
	}
	return u, nil
}

func requireAdmin(ctx context.Context, users store.Users, p *auth.Principal) (*models.User, error) {
	actor, err := loadActor(ctx, users, p)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAdmin {
		return nil, errs.Unauthorized("admin role required")
	}
	return actor, nil
}

// canModify reports whether actor may mutate a resource written by authorID.
func canModify(actor *models.User, authorID string) bool {
	return actor.UID == authorID || actor.IsAdmin()
}

// authorSnapshot is the point-in-time author name and photo copied onto posts
// and comments: the profile first, then the identity provider.
func authorSnapshot(actor *models.User, p *auth.Principal) (string, string) {
	name := firstNonEmpty(actor.DisplayName, p.DisplayName, anonymousName)
	photo := firstNonEmpty(actor.PhotoURL, p.PhotoURL)
	return name, photo
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}

func utcNow() time.Time {
	return time.Now().UTC()
}
