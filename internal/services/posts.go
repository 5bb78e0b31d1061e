package services

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"inkpress/internal/auth"
	"inkpress/internal/errs"
	"inkpress/internal/models"
	"inkpress/internal/store"
	"inkpress/internal/utils"
)

// PostInput is the content of a new post.
type PostInput struct {
	Title    string
	Content  string
	Excerpt  string
	Tags     []string
	Image    *models.Image
	Status   models.PostStatus // draft when empty
	Featured bool
}

// PostUpdate is a partial edit of a post; nil fields are left untouched.
type PostUpdate struct {
	Title    *string
	Content  *string
	Excerpt  *string
	Tags     []string // nil leaves the tags untouched
	Image    *models.Image
	Status   *models.PostStatus
	Featured *bool
}

// PostService implements the post lifecycle.
type PostService struct {
	store store.Store
	views *ViewRecorder
	log   zerolog.Logger
	now   func() time.Time

	// contentChanged runs after any write that can change the set of
	// published tags.
	contentChanged func()
}

func NewPostService(st store.Store, views *ViewRecorder, log zerolog.Logger, contentChanged func()) *PostService {
	if contentChanged == nil {
		contentChanged = func() {}
	}
	return &PostService{
		store:          st,
		views:          views,
		log:            log.With().Str("service", "posts").Logger(),
		now:            utcNow,
		contentChanged: contentChanged,
	}
}

// CreatePost stores a new post written by p, who must be an author or an
// admin. publishedAt is stamped only when the post is created published.
func (s *PostService) CreatePost(ctx context.Context, p *auth.Principal, in PostInput) (string, error) {
	actor, err := loadActor(ctx, s.store, p)
	if err != nil {
		return "", err
	}
	if !actor.Role.CanAuthor() {
		return "", errs.Unauthorized("author or admin role required")
	}

	if in.Status == "" {
		in.Status = models.PostDraft
	}
	if in.Status != models.PostDraft && in.Status != models.PostPublished {
		return "", errs.Validation("status must be draft or published")
	}
	if in.Featured && !actor.IsAdmin() {
		return "", errs.Unauthorized("only admins can feature posts")
	}

	title, err := cleanTitle(in.Title)
	if err != nil {
		return "", err
	}
	content, err := cleanContent(in.Content)
	if err != nil {
		return "", err
	}
	tags, err := cleanTags(in.Tags)
	if err != nil {
		return "", err
	}
	excerpt := strings.TrimSpace(in.Excerpt)
	if excerpt == "" {
		excerpt = utils.Excerpt(content, excerptLen)
	}

	now := s.now()
	name, photo := authorSnapshot(actor, p)
	post := &models.Post{
		Title:       title,
		Content:     content,
		Excerpt:     excerpt,
		Tags:        pq.StringArray(tags),
		Image:       in.Image,
		AuthorID:    actor.UID,
		AuthorName:  name,
		AuthorPhoto: photo,
		Status:      in.Status,
		Featured:    in.Featured,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.Status == models.PostPublished {
		post.PublishedAt = &now
	}

	if err := s.store.CreatePost(ctx, post); err != nil {
		return "", err
	}
	s.contentChanged()
	s.log.Info().Str("post_id", post.ID).Str("author", actor.UID).Str("status", string(post.Status)).Msg("post created")
	return post.ID, nil
}

// UpdatePost applies patch for the post's author or an admin. Publishing
// sets publishedAt only if the post has never been published.
func (s *PostService) UpdatePost(ctx context.Context, p *auth.Principal, postID string, patch PostUpdate) error {
	actor, err := loadActor(ctx, s.store, p)
	if err != nil {
		return err
	}
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	if !canModify(actor, post.AuthorID) {
		return errs.Unauthorized("only the author or an admin can edit this post")
	}
	if post.Status == models.PostDeleted {
		return errs.Validation("deleted posts cannot be edited")
	}

	now := s.now()
	sp := store.PostPatch{UpdatedAt: now, Image: patch.Image}
	if patch.Title != nil {
		title, err := cleanTitle(*patch.Title)
		if err != nil {
			return err
		}
		sp.Title = &title
	}
	if patch.Content != nil {
		content, err := cleanContent(*patch.Content)
		if err != nil {
			return err
		}
		sp.Content = &content
	}
	if patch.Excerpt != nil {
		excerpt := strings.TrimSpace(*patch.Excerpt)
		sp.Excerpt = &excerpt
	}
	if patch.Tags != nil {
		tags, err := cleanTags(patch.Tags)
		if err != nil {
			return err
		}
		sp.Tags = tags
	}
	if patch.Featured != nil {
		if !actor.IsAdmin() {
			return errs.Unauthorized("only admins can feature posts")
		}
		sp.Featured = patch.Featured
	}
	if patch.Status != nil {
		switch *patch.Status {
		case models.PostDraft:
		case models.PostPublished:
			sp.PublishedAt = &now
		default:
			return errs.Validation("status must be draft or published")
		}
		sp.Status = patch.Status
	}

	if err := s.store.UpdatePost(ctx, postID, sp); err != nil {
		return err
	}
	s.contentChanged()
	s.log.Info().Str("post_id", postID).Str("actor", actor.UID).Msg("post updated")
	return nil
}

// DeletePost soft-deletes a post. Deleting twice is not an error.
func (s *PostService) DeletePost(ctx context.Context, p *auth.Principal, postID string) error {
	actor, err := loadActor(ctx, s.store, p)
	if err != nil {
		return err
	}
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	if !canModify(actor, post.AuthorID) {
		return errs.Unauthorized("only the author or an admin can delete this post")
	}

	deleted := models.PostDeleted
	if err := s.store.UpdatePost(ctx, postID, store.PostPatch{Status: &deleted, UpdatedAt: s.now()}); err != nil {
		return err
	}
	s.contentChanged()
	s.log.Info().Str("post_id", postID).Str("actor", actor.UID).Msg("post deleted")
	return nil
}

// LikePost adds one like. The increment is a single atomic store operation,
// so concurrent likes are never lost. A principal may like more than once.
func (s *PostService) LikePost(ctx context.Context, p *auth.Principal, postID string) error {
	if _, err := loadActor(ctx, s.store, p); err != nil {
		return err
	}
	return s.store.IncrementPostCounter(ctx, postID, store.CounterLikes, 1)
}

// IncrementViewCount adds one view immediately. Failures are logged and
// dropped.
func (s *PostService) IncrementViewCount(ctx context.Context, postID string) {
	if err := s.store.IncrementPostCounter(ctx, postID, store.CounterViews, 1); err != nil {
		s.log.Warn().Err(err).Str("post_id", postID).Msg("increment view count")
	}
}

// GetPost returns a post as seen by viewer, who may be nil. Unpublished posts
// are visible to their author and to admins only; deleted posts to admins
// only. A view of a published post is recorded in the background.
func (s *PostService) GetPost(ctx context.Context, viewer *auth.Principal, postID string) (*models.Post, error) {
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	if post.Status != models.PostPublished {
		actor, err := loadActor(ctx, s.store, viewer)
		if err != nil {
			return nil, errs.NotFound("post", postID)
		}
		visible := actor.IsAdmin() || (post.Status == models.PostDraft && actor.UID == post.AuthorID)
		if !visible {
			return nil, errs.NotFound("post", postID)
		}
		return post, nil
	}

	if s.views != nil {
		s.views.Record(postID)
	} else {
		s.IncrementViewCount(ctx, postID)
	}
	return post, nil
}

// UserPosts lists the caller's own posts that are not deleted, newest first.
func (s *PostService) UserPosts(ctx context.Context, p *auth.Principal) ([]models.Post, error) {
	actor, err := loadActor(ctx, s.store, p)
	if err != nil {
		return nil, err
	}
	return s.store.QueryPosts(ctx, store.PostQuery{
		AuthorID:      actor.UID,
		ExcludeStatus: models.PostDeleted,
		Order:         store.OrderCreatedDesc,
	})
}

func cleanTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", errs.Validation("title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return "", errs.Validation("title must be at most %d characters", maxTitleLen)
	}
	return title, nil
}

func cleanContent(content string) (string, error) {
	content = utils.SanitizeHTML(content)
	if utils.PlainText(content) == "" && !strings.Contains(content, "<img") && !strings.Contains(content, "<iframe") {
		return "", errs.Validation("content is required")
	}
	return content, nil
}

func cleanTags(tags []string) ([]string, error) {
	tags = utils.NormalizeTags(tags)
	if len(tags) > maxTags {
		return nil, errs.Validation("at most %d tags are allowed", maxTags)
	}
	return tags, nil
}
