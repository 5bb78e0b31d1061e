package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkpress/internal/errs"
	"inkpress/internal/models"
	"inkpress/internal/store/inmemory"
)

func addPending(t *testing.T, f *fixture, postID string, n int) []string {
	t.Helper()
	var ids []string
	for i := 0; i < n; i++ {
		c, err := f.comments.AddComment(context.Background(), f.reader, postID, fmt.Sprintf("comment %d", i), "")
		require.NoError(t, err)
		ids = append(ids, c.ID)
	}
	return ids
}

func TestPendingComments_ExactHasMore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	postID := f.publish(t, "Busy post")

	ids := addPending(t, f, postID, ModerationBatchSize)
	q, err := f.moderation.PendingComments(ctx, f.admin, "")
	require.NoError(t, err)
	assert.Len(t, q.Comments, ModerationBatchSize)
	assert.False(t, q.HasMore, "a page exactly at the batch size has no more rows")
	assert.Equal(t, ids[0], q.Comments[0].ID)
	assert.Equal(t, "Busy post", q.Comments[0].PostTitle)

	ids = append(ids, addPending(t, f, postID, 1)...)
	q, err = f.moderation.PendingComments(ctx, f.admin, "")
	require.NoError(t, err)
	assert.Len(t, q.Comments, ModerationBatchSize)
	assert.True(t, q.HasMore)

	q, err = f.moderation.PendingComments(ctx, f.admin, q.NextCursor)
	require.NoError(t, err)
	require.Len(t, q.Comments, 1)
	assert.Equal(t, ids[len(ids)-1], q.Comments[0].ID)
	assert.False(t, q.HasMore)
}

func TestModerationQueues_Membership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	postID := f.publish(t, "Post")
	ids := addPending(t, f, postID, 3)

	require.NoError(t, f.comments.ModerateComment(ctx, f.admin, ids[0], models.CommentFlagged))
	require.NoError(t, f.comments.ModerateComment(ctx, f.admin, ids[1], models.CommentApproved))
	require.NoError(t, f.comments.ModerateComment(ctx, f.admin, ids[2], models.CommentApproved))

	flagged, err := f.moderation.FlaggedComments(ctx, f.admin, "")
	require.NoError(t, err)
	require.Len(t, flagged.Comments, 1)
	assert.Equal(t, ids[0], flagged.Comments[0].ID)

	approved, err := f.moderation.RecentlyApprovedComments(ctx, f.admin, "")
	require.NoError(t, err)
	require.Len(t, approved.Comments, 2)
	assert.Equal(t, ids[2], approved.Comments[0].ID, "most recently approved first")

	pending, err := f.moderation.PendingComments(ctx, f.admin, "")
	require.NoError(t, err)
	assert.Empty(t, pending.Comments)

	_, err = f.moderation.PendingComments(ctx, f.author, "")
	assert.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestPendingComments_AnchorDeletedBetweenPages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	postID := f.publish(t, "Busy post")
	ids := addPending(t, f, postID, ModerationBatchSize+3)

	q, err := f.moderation.PendingComments(ctx, f.admin, "")
	require.NoError(t, err)
	require.True(t, q.HasMore)
	anchor := q.Comments[len(q.Comments)-1].ID
	assert.Equal(t, ids[ModerationBatchSize-1], anchor)

	require.NoError(t, f.comments.DeleteComment(ctx, f.admin, anchor))

	q, err = f.moderation.PendingComments(ctx, f.admin, q.NextCursor)
	require.NoError(t, err)
	var got []string
	for _, c := range q.Comments {
		got = append(got, c.ID)
	}
	assert.Equal(t, ids[ModerationBatchSize:], got)
	assert.False(t, q.HasMore)
}

func TestRecentlyApproved_AnchorRemoderatedBetweenPages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	postID := f.publish(t, "Post")
	ids := addPending(t, f, postID, ModerationBatchSize+2)
	for _, id := range ids {
		require.NoError(t, f.comments.ModerateComment(ctx, f.admin, id, models.CommentApproved))
	}

	q, err := f.moderation.RecentlyApprovedComments(ctx, f.admin, "")
	require.NoError(t, err)
	require.True(t, q.HasMore)
	seen := map[string]bool{}
	for _, c := range q.Comments {
		seen[c.ID] = true
	}
	anchor := q.Comments[len(q.Comments)-1].ID
	assert.Equal(t, ids[2], anchor)

	// approving again moves the anchor to the head of the queue
	require.NoError(t, f.comments.ModerateComment(ctx, f.admin, anchor, models.CommentApproved))

	q, err = f.moderation.RecentlyApprovedComments(ctx, f.admin, q.NextCursor)
	require.NoError(t, err)
	require.Len(t, q.Comments, 2)
	for _, c := range q.Comments {
		assert.False(t, seen[c.ID], "comment %s repeated on the second page", c.ID)
	}
	assert.Equal(t, ids[1], q.Comments[0].ID)
	assert.Equal(t, ids[0], q.Comments[1].ID)
}

type flakyPosts struct {
	*inmemory.Store
	failID string
}

func (s flakyPosts) GetPost(ctx context.Context, id string) (*models.Post, error) {
	if id == s.failID {
		return nil, errs.Upstream("get post", errors.New("timeout"))
	}
	return s.Store.GetPost(ctx, id)
}

func TestPendingComments_TitlePlaceholders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ok := f.publish(t, "Fine")
	flaky := f.publish(t, "Flaky")
	addPending(t, f, ok, 2)
	addPending(t, f, flaky, 1)
	require.NoError(t, f.store.CreateComment(ctx, &models.Comment{
		PostID: "vanished", Content: "orphan", AuthorID: "reader", Status: models.CommentPending,
		CreatedAt: f.clock.Now(),
	}))

	mod := NewModerationService(flakyPosts{Store: f.store, failID: flaky}, zerolog.Nop())
	q, err := mod.PendingComments(ctx, f.admin, "")
	require.NoError(t, err)
	require.Len(t, q.Comments, 4)

	titles := map[string]string{}
	for _, c := range q.Comments {
		titles[c.PostID] = c.PostTitle
	}
	assert.Equal(t, "Fine", titles[ok])
	assert.Equal(t, "[Error loading post]", titles[flaky])
	assert.Equal(t, "[Post not found]", titles["vanished"])
}

func TestDashboardStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	postID := f.publish(t, "Post")
	addPending(t, f, postID, 2)

	_, err := f.stats.Dashboard(ctx, f.reader)
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	stats, err := f.stats.Dashboard(ctx, f.admin)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Posts[models.PostPublished])
	assert.Equal(t, int64(2), stats.Comments[models.CommentPending])
	assert.Equal(t, int64(2), stats.Users[models.RoleUser])
	assert.Equal(t, int64(2), stats.Users[models.RoleAuthor])
}
