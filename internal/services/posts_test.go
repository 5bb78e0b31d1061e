package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkpress/internal/auth"
	"inkpress/internal/errs"
	"inkpress/internal/models"
)

func ptr[T any](v T) *T { return &v }

func TestCreatePost_RequiresAuthorOrAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := PostInput{Title: "Hello", Content: "<p>world</p>"}

	_, err := f.posts.CreatePost(ctx, f.reader, in)
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	_, err = f.posts.CreatePost(ctx, nil, in)
	assert.ErrorIs(t, err, errs.ErrUnauthenticated)

	_, err = f.posts.CreatePost(ctx, f.disabled, in)
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	_, err = f.posts.CreatePost(ctx, &auth.Principal{UID: "ghost"}, in)
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	id, err := f.posts.CreatePost(ctx, f.admin, in)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestCreatePost_Defaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.posts.CreatePost(ctx, f.author, PostInput{
		Title:   "  Draft  ",
		Content: "<p>Some <b>content</b></p><script>alert(1)</script>",
		Tags:    []string{"go", "Go", " web "},
	})
	require.NoError(t, err)

	p, err := f.store.GetPost(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Draft", p.Title)
	assert.Equal(t, models.PostDraft, p.Status)
	assert.Nil(t, p.PublishedAt)
	assert.Zero(t, p.Likes)
	assert.Zero(t, p.Views)
	assert.Equal(t, p.CreatedAt, p.UpdatedAt)
	assert.NotContains(t, p.Content, "<script")
	assert.Equal(t, []string{"go", "web"}, []string(p.Tags))
	assert.Equal(t, "Some content", p.Excerpt)
	assert.Equal(t, "author", p.AuthorID)
	assert.Equal(t, "User author", p.AuthorName)
}

func TestCreatePost_AuthorSnapshotFallsBackToIdentityProvider(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.CreateUser(ctx, &models.User{UID: "bare", Role: models.RoleAuthor, Active: true}))

	p := &auth.Principal{UID: "bare", DisplayName: "Idp Name", PhotoURL: "https://idp.example.com/p.png"}
	id, err := f.posts.CreatePost(ctx, p, PostInput{Title: "T", Content: "<p>c</p>"})
	require.NoError(t, err)

	post, err := f.store.GetPost(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Idp Name", post.AuthorName)
	assert.Equal(t, "https://idp.example.com/p.png", post.AuthorPhoto)

	id, err = f.posts.CreatePost(ctx, &auth.Principal{UID: "bare"}, PostInput{Title: "T", Content: "<p>c</p>"})
	require.NoError(t, err)
	post, err = f.store.GetPost(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Anonymous", post.AuthorName)
}

func TestCreatePost_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := map[string]PostInput{
		"missing title":   {Content: "<p>c</p>"},
		"missing content": {Title: "T", Content: "<script>x</script>"},
		"deleted status":  {Title: "T", Content: "<p>c</p>", Status: models.PostDeleted},
		"too many tags":   {Title: "T", Content: "<p>c</p>", Tags: []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11"}},
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := f.posts.CreatePost(ctx, f.author, in)
			assert.ErrorIs(t, err, errs.ErrValidation)
		})
	}

	_, err := f.posts.CreatePost(ctx, f.author, PostInput{Title: "T", Content: "<p>c</p>", Featured: true})
	assert.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestPublishedAt_SetOnceAndNeverReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.posts.CreatePost(ctx, f.author, PostInput{Title: "Draft", Content: "<p>c</p>"})
	require.NoError(t, err)

	require.NoError(t, f.posts.UpdatePost(ctx, f.author, id, PostUpdate{Status: ptr(models.PostPublished)}))
	p, err := f.store.GetPost(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, p.PublishedAt)
	t1 := *p.PublishedAt

	require.NoError(t, f.posts.UpdatePost(ctx, f.author, id, PostUpdate{Title: ptr("Edited")}))
	require.NoError(t, f.posts.UpdatePost(ctx, f.author, id, PostUpdate{Status: ptr(models.PostPublished)}))
	require.NoError(t, f.posts.UpdatePost(ctx, f.author, id, PostUpdate{Status: ptr(models.PostDraft)}))
	require.NoError(t, f.posts.UpdatePost(ctx, f.author, id, PostUpdate{Status: ptr(models.PostPublished)}))

	p, err = f.store.GetPost(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Edited", p.Title)
	assert.True(t, p.PublishedAt.Equal(t1))
	assert.True(t, p.UpdatedAt.After(t1))
}

func TestPublishedAt_CreatedPublished(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.publish(t, "Live")
	p, err := f.store.GetPost(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, p.PublishedAt)
	assert.True(t, p.PublishedAt.Equal(p.CreatedAt))
}

func TestUpdatePost_Authorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.publish(t, "Mine")

	err := f.posts.UpdatePost(ctx, f.reader, id, PostUpdate{Title: ptr("Hijacked")})
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	err = f.posts.UpdatePost(ctx, f.author, "missing", PostUpdate{Title: ptr("x")})
	assert.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, f.posts.UpdatePost(ctx, f.admin, id, PostUpdate{Title: ptr("By admin"), Featured: ptr(true)}))
	p, err := f.store.GetPost(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "By admin", p.Title)
	assert.True(t, p.Featured)

	err = f.posts.UpdatePost(ctx, f.author, id, PostUpdate{Featured: ptr(false)})
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	err = f.posts.UpdatePost(ctx, f.author, id, PostUpdate{Status: ptr(models.PostDeleted)})
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestUpdatePost_ResavingKeepsVideoEmbed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.posts.CreatePost(ctx, f.author, PostInput{
		Title:   "Talk",
		Content: "<p>Watch this:</p><p>https://youtu.be/dQw4w9WgXcQ</p>",
	})
	require.NoError(t, err)
	p, err := f.store.GetPost(ctx, id)
	require.NoError(t, err)
	require.Contains(t, p.Content, "https://www.youtube.com/embed/dQw4w9WgXcQ")

	// the editor sends the stored HTML back unchanged
	require.NoError(t, f.posts.UpdatePost(ctx, f.author, id, PostUpdate{Content: ptr(p.Content)}))
	p, err = f.store.GetPost(ctx, id)
	require.NoError(t, err)
	assert.Contains(t, p.Content, `<iframe src="https://www.youtube.com/embed/dQw4w9WgXcQ"`)
}

func TestDeletePost_IsSoftAndTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.publish(t, "Doomed")

	assert.ErrorIs(t, f.posts.DeletePost(ctx, f.outsider, id), errs.ErrUnauthorized)
	require.NoError(t, f.posts.DeletePost(ctx, f.author, id))
	require.NoError(t, f.posts.DeletePost(ctx, f.admin, id))

	p, err := f.store.GetPost(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.PostDeleted, p.Status)

	feed, err := f.feed.PublishedFeed(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, feed)

	err = f.posts.UpdatePost(ctx, f.author, id, PostUpdate{Status: ptr(models.PostPublished)})
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestLikePost_ConcurrentIncrementsAreExact(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.publish(t, "Popular")

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.posts.LikePost(ctx, f.reader, id))
		}()
		go func() {
			defer wg.Done()
			f.posts.IncrementViewCount(ctx, id)
		}()
	}
	wg.Wait()

	p, err := f.store.GetPost(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, n, p.Likes)
	assert.Equal(t, n, p.Views)
}

func TestLikePost_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.publish(t, "Post")

	assert.ErrorIs(t, f.posts.LikePost(ctx, nil, id), errs.ErrUnauthenticated)
	assert.ErrorIs(t, f.posts.LikePost(ctx, f.reader, "missing"), errs.ErrNotFound)

	// view failures are swallowed
	f.posts.IncrementViewCount(ctx, "missing")
}

func TestGetPost_Visibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft, err := f.posts.CreatePost(ctx, f.author, PostInput{Title: "Draft", Content: "<p>c</p>"})
	require.NoError(t, err)

	_, err = f.posts.GetPost(ctx, nil, draft)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	_, err = f.posts.GetPost(ctx, f.reader, draft)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	_, err = f.posts.GetPost(ctx, f.author, draft)
	assert.NoError(t, err)
	_, err = f.posts.GetPost(ctx, f.admin, draft)
	assert.NoError(t, err)

	require.NoError(t, f.posts.DeletePost(ctx, f.author, draft))
	_, err = f.posts.GetPost(ctx, f.author, draft)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	_, err = f.posts.GetPost(ctx, f.admin, draft)
	assert.NoError(t, err)

	live := f.publish(t, "Live")
	_, err = f.posts.GetPost(ctx, nil, live)
	require.NoError(t, err)
	p, err := f.store.GetPost(ctx, live)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Views)
}

func TestUserPosts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.publish(t, "First")
	second, err := f.posts.CreatePost(ctx, f.author, PostInput{Title: "Second", Content: "<p>c</p>"})
	require.NoError(t, err)
	gone := f.publish(t, "Gone")
	require.NoError(t, f.posts.DeletePost(ctx, f.author, gone))

	posts, err := f.posts.UserPosts(ctx, f.author)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, second, posts[0].ID)
	assert.Equal(t, first, posts[1].ID)

	_, err = f.posts.UserPosts(ctx, nil)
	assert.ErrorIs(t, err, errs.ErrUnauthenticated)
}

func TestPostWrites_InvalidateTagCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.publish(t, "One", "go")
	tags, err := f.feed.AvailableTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"go"}, tags)

	f.publish(t, "Two", "rust")
	tags, err = f.feed.AvailableTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "rust"}, tags)

}
