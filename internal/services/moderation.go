package services

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"inkpress/internal/auth"
	"inkpress/internal/errs"
	"inkpress/internal/models"
	"inkpress/internal/store"
)

const (
	titleNotFound = "[Post not found]"
	titleError    = "[Error loading post]"

	titleLookupConcurrency = 8
)

// ModeratedComment is a queued comment with the title of its post.
type ModeratedComment struct {
	models.Comment
	PostTitle string `json:"post_title"`
}

// CommentQueue is one page of a moderation queue.
type CommentQueue struct {
	Comments   []ModeratedComment `json:"comments"`
	NextCursor string             `json:"next_cursor,omitempty"`
	HasMore    bool               `json:"has_more"`
}

// ModerationService assembles the admin moderation queues.
type ModerationService struct {
	store store.Store
	log   zerolog.Logger
}

func NewModerationService(st store.Store, log zerolog.Logger) *ModerationService {
	return &ModerationService{
		store: st,
		log:   log.With().Str("service", "moderation").Logger(),
	}
}

// PendingComments lists comments awaiting moderation, oldest first.
func (s *ModerationService) PendingComments(ctx context.Context, p *auth.Principal, cursor string) (*CommentQueue, error) {
	return s.queue(ctx, p, models.CommentPending, store.OrderCommentCreatedAsc, cursor)
}

// FlaggedComments lists flagged comments, oldest first.
func (s *ModerationService) FlaggedComments(ctx context.Context, p *auth.Principal, cursor string) (*CommentQueue, error) {
	return s.queue(ctx, p, models.CommentFlagged, store.OrderCommentCreatedAsc, cursor)
}

// RecentlyApprovedComments lists approved comments, most recently changed
// first.
func (s *ModerationService) RecentlyApprovedComments(ctx context.Context, p *auth.Principal, cursor string) (*CommentQueue, error) {
	return s.queue(ctx, p, models.CommentApproved, store.OrderCommentUpdatedDesc, cursor)
}

// queue fetches one batch plus one row, so HasMore is exact rather than
// guessed from a full page.
func (s *ModerationService) queue(ctx context.Context, p *auth.Principal, status models.CommentStatus, order store.CommentOrder, cursor string) (*CommentQueue, error) {
	if _, err := requireAdmin(ctx, s.store, p); err != nil {
		return nil, err
	}
	after, err := store.DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}

	comments, err := s.store.QueryComments(ctx, store.CommentQuery{
		Status: status,
		Order:  order,
		Limit:  ModerationBatchSize + 1,
		After:  after,
	})
	if err != nil {
		return nil, err
	}

	q := &CommentQueue{HasMore: len(comments) > ModerationBatchSize}
	if q.HasMore {
		comments = comments[:ModerationBatchSize]
		q.NextCursor = store.EncodeCursor(store.CommentCursor(&comments[len(comments)-1], order))
	}

	titles := s.postTitles(ctx, comments)
	q.Comments = make([]ModeratedComment, len(comments))
	for i, c := range renderComments(comments) {
		q.Comments[i] = ModeratedComment{Comment: c, PostTitle: titles[c.PostID]}
	}
	return q, nil
}

// postTitles looks up each distinct post once, concurrently. Lookups never
// fail the batch: a missing post or a failed read gets a placeholder title.
func (s *ModerationService) postTitles(ctx context.Context, comments []models.Comment) map[string]string {
	titles := make(map[string]string)
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(titleLookupConcurrency)
	seen := make(map[string]struct{})
	for _, c := range comments {
		if _, ok := seen[c.PostID]; ok {
			continue
		}
		seen[c.PostID] = struct{}{}

		postID := c.PostID
		g.Go(func() error {
			title := titleError
			post, err := s.store.GetPost(ctx, postID)
			switch {
			case err == nil:
				title = post.Title
			case errors.Is(err, errs.ErrNotFound):
				title = titleNotFound
			default:
				s.log.Warn().Err(err).Str("post_id", postID).Msg("load post title")
			}

			mu.Lock()
			titles[postID] = title
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return titles
}
