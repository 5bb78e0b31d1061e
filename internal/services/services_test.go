package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"inkpress/internal/auth"
	"inkpress/internal/models"
	"inkpress/internal/store/inmemory"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type fixture struct {
	store      *inmemory.Store
	clock      *testClock
	posts      *PostService
	comments   *CommentService
	users      *UserService
	feed       *FeedService
	moderation *ModerationService
	stats      *StatsService

	admin    *auth.Principal
	author   *auth.Principal
	reader   *auth.Principal
	outsider *auth.Principal
	disabled *auth.Principal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := inmemory.New()
	log := zerolog.Nop()
	clock := &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}

	feed, err := NewFeedService(st, log)
	require.NoError(t, err)

	f := &fixture{
		store:      st,
		clock:      clock,
		posts:      NewPostService(st, nil, log, feed.InvalidateTags),
		comments:   NewCommentService(st, log),
		users:      NewUserService(st, nil, nil, log),
		feed:       feed,
		moderation: NewModerationService(st, log),
		stats:      NewStatsService(st),
	}
	f.posts.now = clock.Now
	f.comments.now = clock.Now
	f.users.now = clock.Now

	f.admin = f.addUser(t, ctx, "admin", models.RoleAdmin, true)
	f.author = f.addUser(t, ctx, "author", models.RoleAuthor, true)
	f.reader = f.addUser(t, ctx, "reader", models.RoleUser, true)
	f.outsider = f.addUser(t, ctx, "outsider", models.RoleUser, true)
	f.disabled = f.addUser(t, ctx, "disabled", models.RoleAuthor, false)
	return f
}

func (f *fixture) addUser(t *testing.T, ctx context.Context, uid string, role models.Role, active bool) *auth.Principal {
	t.Helper()
	require.NoError(t, f.store.CreateUser(ctx, &models.User{
		UID:         uid,
		Email:       uid + "@example.com",
		DisplayName: "User " + uid,
		Role:        role,
		Active:      active,
		CreatedAt:   f.clock.Now(),
	}))
	return &auth.Principal{UID: uid, Email: uid + "@example.com"}
}

// publish creates a published post by the author fixture.
func (f *fixture) publish(t *testing.T, title string, tags ...string) string {
	t.Helper()
	id, err := f.posts.CreatePost(context.Background(), f.author, PostInput{
		Title:   title,
		Content: "<p>" + title + " body</p>",
		Tags:    tags,
		Status:  models.PostPublished,
	})
	require.NoError(t, err)
	return id
}
