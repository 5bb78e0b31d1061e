package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"inkpress/internal/auth"
	"inkpress/internal/errs"
	"inkpress/internal/models"
	"inkpress/internal/store"
	"inkpress/internal/utils"
)

const (
	tagsCacheKey = "available_tags"
	tagsCacheTTL = 10 * time.Minute
)

// Sort orders accepted by FilteredPosts.
const (
	SortLatest  = "latest"
	SortOldest  = "oldest"
	SortPopular = "popular"
)

// PostFilter selects a page of posts.
type PostFilter struct {
	Tag      string
	Search   string
	AuthorID string
	Status   models.PostStatus // published when empty
	Sort     string            // latest when empty
	Cursor   string
	Limit    int
}

// PostPage is one page of FilteredPosts. NextCursor is set when HasMore is.
type PostPage struct {
	Posts      []models.Post `json:"posts"`
	NextCursor string        `json:"next_cursor,omitempty"`
	HasMore    bool          `json:"has_more"`
}

// FeedService composes the read paths over published posts.
type FeedService struct {
	store store.Store
	tags  *utils.TTLCache[[]string]
	log   zerolog.Logger
}

func NewFeedService(st store.Store, log zerolog.Logger) (*FeedService, error) {
	tags, err := utils.NewTTLCache[[]string](1)
	if err != nil {
		return nil, err
	}
	return &FeedService{
		store: st,
		tags:  tags,
		log:   log.With().Str("service", "feed").Logger(),
	}, nil
}

// PublishedFeed returns the newest published posts.
func (s *FeedService) PublishedFeed(ctx context.Context, limit int) ([]models.Post, error) {
	return s.store.QueryPosts(ctx, store.PostQuery{
		Status: models.PostPublished,
		Order:  store.OrderPublishedDesc,
		Limit:  clampLimit(limit, DefaultPageSize),
	})
}

// SitemapPosts returns up to SitemapSize of the newest published posts.
func (s *FeedService) SitemapPosts(ctx context.Context) ([]models.Post, error) {
	return s.store.QueryPosts(ctx, store.PostQuery{
		Status: models.PostPublished,
		Order:  store.OrderPublishedDesc,
		Limit:  SitemapSize,
	})
}

// FeaturedPosts returns the newest published featured posts.
func (s *FeedService) FeaturedPosts(ctx context.Context, limit int) ([]models.Post, error) {
	featured := true
	return s.store.QueryPosts(ctx, store.PostQuery{
		Status:   models.PostPublished,
		Featured: &featured,
		Order:    store.OrderPublishedDesc,
		Limit:    clampLimit(limit, DefaultFeaturedSize),
	})
}

// FilteredPosts pages through posts matching f. One extra row is fetched to
// tell whether another page exists.
//
// Search is applied to the fetched page only, so it narrows the current
// window instead of searching the whole corpus. A page can therefore come
// back with fewer than Limit posts while HasMore is true.
//
// Only admins may list posts that are not published, except that authors may
// list their own.
func (s *FeedService) FilteredPosts(ctx context.Context, viewer *auth.Principal, f PostFilter) (*PostPage, error) {
	if f.Status == "" {
		f.Status = models.PostPublished
	}
	if !f.Status.Valid() {
		return nil, errs.Validation("unknown status %q", f.Status)
	}
	if f.Status != models.PostPublished {
		actor, err := loadActor(ctx, s.store, viewer)
		if err != nil {
			return nil, err
		}
		if !actor.IsAdmin() && f.AuthorID != actor.UID {
			return nil, errs.Unauthorized("only published posts can be listed")
		}
	}

	var order store.PostOrder
	switch f.Sort {
	case "", SortLatest:
		order = store.OrderPublishedDesc
	case SortOldest:
		order = store.OrderPublishedAsc
	case SortPopular:
		order = store.OrderViewsDesc
	default:
		return nil, errs.Validation("unknown sort %q", f.Sort)
	}

	after, err := store.DecodeCursor(f.Cursor)
	if err != nil {
		return nil, err
	}
	limit := clampLimit(f.Limit, DefaultPageSize)

	posts, err := s.store.QueryPosts(ctx, store.PostQuery{
		Status:   f.Status,
		AuthorID: f.AuthorID,
		Tag:      strings.TrimSpace(f.Tag),
		Order:    order,
		Limit:    limit + 1,
		After:    after,
	})
	if err != nil {
		return nil, err
	}

	page := &PostPage{HasMore: len(posts) == limit+1}
	if page.HasMore {
		posts = posts[:limit]
		page.NextCursor = store.EncodeCursor(store.PostCursor(&posts[limit-1], order))
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		posts = filterByTerm(posts, term)
	}
	if posts == nil {
		posts = []models.Post{}
	}
	page.Posts = posts
	return page, nil
}

// RelatedPosts returns published posts sharing at least one tag with tags,
// other than postID, ordered by id and then by publish date.
func (s *FeedService) RelatedPosts(ctx context.Context, postID string, tags []string, max int) ([]models.Post, error) {
	tags = utils.NormalizeTags(tags)
	if len(tags) == 0 {
		return []models.Post{}, nil
	}
	if len(tags) > maxTags {
		tags = tags[:maxTags]
	}
	if max <= 0 {
		max = DefaultRelatedCount
	}
	return s.store.QueryPosts(ctx, store.PostQuery{
		Status:    models.PostPublished,
		AnyTags:   tags,
		ExcludeID: postID,
		Order:     store.OrderIDThenPublished,
		Limit:     max,
	})
}

// RelatedTo returns the posts related to a published post, using its tags.
func (s *FeedService) RelatedTo(ctx context.Context, postID string, max int) ([]models.Post, error) {
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.Status != models.PostPublished {
		return nil, errs.NotFound("post", postID)
	}
	return s.RelatedPosts(ctx, post.ID, post.Tags, max)
}

// AvailableTags returns the sorted union of the tags of the newest published
// posts. Only a bounded sample is scanned, so rarely used tags on old posts
// may be missing.
func (s *FeedService) AvailableTags(ctx context.Context) ([]string, error) {
	if tags, ok := s.tags.Get(tagsCacheKey); ok {
		return tags, nil
	}

	posts, err := s.store.QueryPosts(ctx, store.PostQuery{
		Status: models.PostPublished,
		Order:  store.OrderPublishedDesc,
		Limit:  TagSampleSize,
	})
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{})
	for _, p := range posts {
		for _, t := range p.Tags {
			set[t] = struct{}{}
		}
	}
	tags := make([]string, 0, len(set))
	for t := range set {
		tags = append(tags, t)
	}
	sort.Strings(tags)

	s.tags.Set(tagsCacheKey, tags, tagsCacheTTL)
	return tags, nil
}

// InvalidateTags drops the cached tag list.
func (s *FeedService) InvalidateTags() {
	s.tags.Delete(tagsCacheKey)
}

// SearchPosts matches term against the newest published posts.
func (s *FeedService) SearchPosts(ctx context.Context, term string, max int) ([]models.Post, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []models.Post{}, nil
	}
	if max <= 0 {
		max = DefaultSearchSize
	}

	posts, err := s.store.QueryPosts(ctx, store.PostQuery{
		Status: models.PostPublished,
		Order:  store.OrderPublishedDesc,
		Limit:  SearchScanSize,
	})
	if err != nil {
		return nil, err
	}
	matches := filterByTerm(posts, term)
	if len(matches) > max {
		matches = matches[:max]
	}
	if matches == nil {
		matches = []models.Post{}
	}
	return matches, nil
}

func filterByTerm(posts []models.Post, term string) []models.Post {
	term = strings.ToLower(term)
	var out []models.Post
	for _, p := range posts {
		if strings.Contains(strings.ToLower(p.Title), term) ||
			strings.Contains(strings.ToLower(utils.PlainText(p.Content)), term) ||
			strings.Contains(strings.ToLower(p.Excerpt), term) {
			out = append(out, p)
		}
	}
	return out
}
