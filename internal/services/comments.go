package services

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"inkpress/internal/auth"
	"inkpress/internal/errs"
	"inkpress/internal/models"
	"inkpress/internal/store"
	"inkpress/internal/utils"
)

// CommentThread is a top-level comment with its approved replies.
type CommentThread struct {
	models.Comment
	Replies []models.Comment `json:"replies"`
}

// CommentService implements the comment lifecycle.
type CommentService struct {
	store store.Store
	log   zerolog.Logger
	now   func() time.Time
}

func NewCommentService(st store.Store, log zerolog.Logger) *CommentService {
	return &CommentService{
		store: st,
		log:   log.With().Str("service", "comments").Logger(),
		now:   utcNow,
	}
}

// AddComment stores a comment on a published post. Comments by authors and
// admins are approved immediately; everyone else's wait in moderation.
func (s *CommentService) AddComment(ctx context.Context, p *auth.Principal, postID, content, parentID string) (*models.Comment, error) {
	actor, err := loadActor(ctx, s.store, p)
	if err != nil {
		return nil, err
	}
	body, err := cleanComment(content)
	if err != nil {
		return nil, err
	}

	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.Status != models.PostPublished {
		return nil, errs.NotFound("post", postID)
	}

	var parent *string
	if parentID != "" {
		pc, err := s.store.GetComment(ctx, parentID)
		if err != nil {
			return nil, err
		}
		if pc.PostID != postID {
			return nil, errs.Validation("parent comment belongs to another post")
		}
		parent = &pc.ID
	}

	status := models.CommentPending
	if actor.Role.CanAuthor() {
		status = models.CommentApproved
	}

	now := s.now()
	name, photo := authorSnapshot(actor, p)
	c := &models.Comment{
		PostID:      postID,
		ParentID:    parent,
		Content:     body,
		AuthorID:    actor.UID,
		AuthorName:  name,
		AuthorPhoto: photo,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateComment(ctx, c); err != nil {
		return nil, err
	}
	s.log.Info().Str("comment_id", c.ID).Str("post_id", postID).Str("status", string(status)).Msg("comment added")
	c.ContentHTML = utils.RenderMarkdown(c.Content)
	return c, nil
}

// UpdateComment replaces the content of the caller's own comment. The
// moderation status is left as it is.
func (s *CommentService) UpdateComment(ctx context.Context, p *auth.Principal, commentID, content string) error {
	actor, err := loadActor(ctx, s.store, p)
	if err != nil {
		return err
	}
	c, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return err
	}
	if c.AuthorID != actor.UID {
		return errs.Unauthorized("only the author can edit this comment")
	}
	body, err := cleanComment(content)
	if err != nil {
		return err
	}
	return s.store.UpdateComment(ctx, commentID, store.CommentPatch{Content: &body, UpdatedAt: s.now()})
}

// ModerateComment sets the status of any comment to approved or flagged.
// Every status is reachable from every other and repeating a decision is a
// no-op.
func (s *CommentService) ModerateComment(ctx context.Context, p *auth.Principal, commentID string, status models.CommentStatus) error {
	actor, err := requireAdmin(ctx, s.store, p)
	if err != nil {
		return err
	}
	if status != models.CommentApproved && status != models.CommentFlagged {
		return errs.Validation("status must be approved or flagged")
	}
	if err := s.store.UpdateComment(ctx, commentID, store.CommentPatch{Status: &status, UpdatedAt: s.now()}); err != nil {
		return err
	}
	s.log.Info().Str("comment_id", commentID).Str("actor", actor.UID).Str("status", string(status)).Msg("comment moderated")
	return nil
}

// DeleteComment removes a comment for its author or an admin. Replies are
// kept and no longer reachable from the thread.
func (s *CommentService) DeleteComment(ctx context.Context, p *auth.Principal, commentID string) error {
	actor, err := loadActor(ctx, s.store, p)
	if err != nil {
		return err
	}
	c, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return err
	}
	if !canModify(actor, c.AuthorID) {
		return errs.Unauthorized("only the author or an admin can delete this comment")
	}
	if err := s.store.DeleteComment(ctx, commentID); err != nil {
		return err
	}
	s.log.Info().Str("comment_id", commentID).Str("actor", actor.UID).Msg("comment deleted")
	return nil
}

func (s *CommentService) LikeComment(ctx context.Context, p *auth.Principal, commentID string) error {
	if _, err := loadActor(ctx, s.store, p); err != nil {
		return err
	}
	return s.store.IncrementCommentLikes(ctx, commentID, 1)
}

// CommentsForPost returns the approved top-level comments of a post, oldest
// first, each with its approved replies.
func (s *CommentService) CommentsForPost(ctx context.Context, postID string) ([]CommentThread, error) {
	top, err := s.store.QueryComments(ctx, store.CommentQuery{
		PostID:   postID,
		Status:   models.CommentApproved,
		TopLevel: true,
		Order:    store.OrderCommentCreatedAsc,
	})
	if err != nil {
		return nil, err
	}

	threads := make([]CommentThread, 0, len(top))
	for _, c := range renderComments(top) {
		replies, err := s.Replies(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		threads = append(threads, CommentThread{Comment: c, Replies: replies})
	}
	return threads, nil
}

// Replies returns the approved replies of a comment, oldest first.
func (s *CommentService) Replies(ctx context.Context, commentID string) ([]models.Comment, error) {
	replies, err := s.store.QueryComments(ctx, store.CommentQuery{
		ParentID: commentID,
		Status:   models.CommentApproved,
		Order:    store.OrderCommentCreatedAsc,
	})
	if err != nil {
		return nil, err
	}
	if replies == nil {
		replies = []models.Comment{}
	}
	return renderComments(replies), nil
}

func renderComments(cs []models.Comment) []models.Comment {
	for i := range cs {
		cs[i].ContentHTML = utils.RenderMarkdown(cs[i].Content)
	}
	return cs
}

func cleanComment(content string) (string, error) {
	body := strings.TrimSpace(utils.StripTags(content))
	if body == "" {
		return "", errs.Validation("comment content is required")
	}
	if utf8.RuneCountInString(body) > maxCommentLen {
		return "", errs.Validation("comment must be at most %d characters", maxCommentLen)
	}
	return body, nil
}
