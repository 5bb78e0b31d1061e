package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkpress/internal/errs"
	"inkpress/internal/models"
)

func TestAddComment_InitialStatusFollowsRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	postID := f.publish(t, "Post")

	c, err := f.comments.AddComment(ctx, f.reader, postID, "first!", "")
	require.NoError(t, err)
	assert.Equal(t, models.CommentPending, c.Status)
	assert.Zero(t, c.Likes)
	assert.Equal(t, "User reader", c.AuthorName)

	c, err = f.comments.AddComment(ctx, f.admin, postID, "welcome", "")
	require.NoError(t, err)
	assert.Equal(t, models.CommentApproved, c.Status)

	c, err = f.comments.AddComment(ctx, f.author, postID, "thanks", "")
	require.NoError(t, err)
	assert.Equal(t, models.CommentApproved, c.Status)
}

func TestAddComment_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	postID := f.publish(t, "Post")
	other := f.publish(t, "Other")

	_, err := f.comments.AddComment(ctx, nil, postID, "hi", "")
	assert.ErrorIs(t, err, errs.ErrUnauthenticated)

	_, err = f.comments.AddComment(ctx, f.reader, postID, "  <b></b> ", "")
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = f.comments.AddComment(ctx, f.reader, "missing", "hi", "")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	draft, err := f.posts.CreatePost(ctx, f.author, PostInput{Title: "Draft", Content: "<p>c</p>"})
	require.NoError(t, err)
	_, err = f.comments.AddComment(ctx, f.reader, draft, "hi", "")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	parent, err := f.comments.AddComment(ctx, f.admin, other, "on other", "")
	require.NoError(t, err)
	_, err = f.comments.AddComment(ctx, f.reader, postID, "reply", parent.ID)
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestModerateComment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	postID := f.publish(t, "Post")
	c, err := f.comments.AddComment(ctx, f.reader, postID, "needs review", "")
	require.NoError(t, err)

	assert.ErrorIs(t, f.comments.ModerateComment(ctx, f.author, c.ID, models.CommentApproved), errs.ErrUnauthorized)
	assert.ErrorIs(t, f.comments.ModerateComment(ctx, f.admin, c.ID, models.CommentPending), errs.ErrValidation)
	assert.ErrorIs(t, f.comments.ModerateComment(ctx, f.admin, "missing", models.CommentApproved), errs.ErrNotFound)

	for i := 0; i < 2; i++ {
		require.NoError(t, f.comments.ModerateComment(ctx, f.admin, c.ID, models.CommentApproved))
		got, err := f.store.GetComment(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, models.CommentApproved, got.Status)
	}

	require.NoError(t, f.comments.ModerateComment(ctx, f.admin, c.ID, models.CommentFlagged))
	require.NoError(t, f.comments.ModerateComment(ctx, f.admin, c.ID, models.CommentApproved))
	got, err := f.store.GetComment(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CommentApproved, got.Status)
}

func TestDeleteComment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	postID := f.publish(t, "Post")

	c, err := f.comments.AddComment(ctx, f.reader, postID, "mine", "")
	require.NoError(t, err)

	assert.ErrorIs(t, f.comments.DeleteComment(ctx, f.outsider, c.ID), errs.ErrUnauthorized)
	require.NoError(t, f.comments.DeleteComment(ctx, f.reader, c.ID))
	_, err = f.store.GetComment(ctx, c.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.ErrorIs(t, f.comments.DeleteComment(ctx, f.reader, c.ID), errs.ErrNotFound)

	c, err = f.comments.AddComment(ctx, f.reader, postID, "rude", "")
	require.NoError(t, err)
	require.NoError(t, f.comments.DeleteComment(ctx, f.admin, c.ID))
}

func TestUpdateComment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	postID := f.publish(t, "Post")
	c, err := f.comments.AddComment(ctx, f.reader, postID, "typo", "")
	require.NoError(t, err)

	assert.ErrorIs(t, f.comments.UpdateComment(ctx, f.admin, c.ID, "edited"), errs.ErrUnauthorized)
	require.NoError(t, f.comments.UpdateComment(ctx, f.reader, c.ID, "fixed"))

	got, err := f.store.GetComment(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "fixed", got.Content)
	assert.Equal(t, models.CommentPending, got.Status)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))
}

func TestCommentsForPost_Threads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	postID := f.publish(t, "Post")

	top, err := f.comments.AddComment(ctx, f.author, postID, "top", "")
	require.NoError(t, err)
	_, err = f.comments.AddComment(ctx, f.reader, postID, "pending top", "")
	require.NoError(t, err)
	reply, err := f.comments.AddComment(ctx, f.admin, postID, "approved reply", top.ID)
	require.NoError(t, err)
	_, err = f.comments.AddComment(ctx, f.reader, postID, "pending reply", top.ID)
	require.NoError(t, err)

	require.NoError(t, f.comments.LikeComment(ctx, f.reader, top.ID))

	threads, err := f.comments.CommentsForPost(ctx, postID)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, top.ID, threads[0].ID)
	assert.Equal(t, 1, threads[0].Likes)
	require.Len(t, threads[0].Replies, 1)
	assert.Equal(t, reply.ID, threads[0].Replies[0].ID)
}

func TestComments_RenderMarkdown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	postID := f.publish(t, "Post")

	c, err := f.comments.AddComment(ctx, f.author, postID, "**nice** <script>alert(1)</script>post", "")
	require.NoError(t, err)
	assert.Equal(t, "**nice** post", c.Content)
	assert.Contains(t, c.ContentHTML, "<strong>nice</strong>")

	threads, err := f.comments.CommentsForPost(ctx, postID)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Contains(t, threads[0].ContentHTML, "<strong>nice</strong>")
	assert.NotContains(t, threads[0].ContentHTML, "script")
}
