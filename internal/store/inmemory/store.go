// Package inmemory is a map-backed store.Store used in tests and for the
// "memory" storage mode of the server.
package inmemory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"inkpress/internal/errs"
	"inkpress/internal/models"
	"inkpress/internal/store"
)

// Store implements store.Store in memory. A single RWMutex guards every map,
// which makes each method, including ChangeRole and counter increments,
// atomic.
type Store struct {
	mu          sync.RWMutex
	users       map[string]*models.User
	roleChanges []models.RoleChange
	credentials map[string]*models.Credential // by lowercased email
	posts       map[string]*models.Post
	comments    map[string]*models.Comment
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:       make(map[string]*models.User),
		credentials: make(map[string]*models.Credential),
		posts:       make(map[string]*models.Post),
		comments:    make(map[string]*models.Comment),
	}
}

// === Users ===

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.UID]; ok {
		return errs.Validation("user %s already exists", u.UID)
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}
	cp := *u
	s.users[u.UID] = &cp
	return nil
}

func (s *Store) GetUser(ctx context.Context, uid string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[uid]
	if !ok {
		return nil, errs.NotFound("user", uid)
	}
	cp := *u
	return &cp, nil
}

func (s *Store) UpdateUser(ctx context.Context, uid string, patch store.UserPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[uid]
	if !ok {
		return errs.NotFound("user", uid)
	}
	if patch.DisplayName != nil {
		u.DisplayName = *patch.DisplayName
	}
	if patch.PhotoURL != nil {
		u.PhotoURL = *patch.PhotoURL
	}
	if patch.Active != nil {
		u.Active = *patch.Active
	}
	u.UpdatedAt = patch.UpdatedAt
	return nil
}

func (s *Store) ListUsers(ctx context.Context, q store.UserQuery) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	before := func(a, b *models.User) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.UID > b.UID
	}

	var anchor *models.User
	if q.After != nil {
		anchor = &models.User{UID: q.After.ID, CreatedAt: q.After.Time}
	}

	rows := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		if q.Role != "" && u.Role != q.Role {
			continue
		}
		if anchor != nil && !before(anchor, u) {
			continue
		}
		rows = append(rows, u)
	}
	sort.Slice(rows, func(i, j int) bool { return before(rows[i], rows[j]) })

	rows = limitSlice(rows, q.Limit)
	out := make([]models.User, len(rows))
	for i, u := range rows {
		out[i] = *u
	}
	return out, nil
}

func (s *Store) CountUsersByRole(ctx context.Context) (map[models.Role]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[models.Role]int64)
	for _, u := range s.users {
		counts[u.Role]++
	}
	return counts, nil
}

func (s *Store) ChangeRole(ctx context.Context, change *models.RoleChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[change.TargetUID]
	if !ok {
		return errs.NotFound("user", change.TargetUID)
	}
	if change.ID == "" {
		change.ID = uuid.NewString()
	}
	if change.CreatedAt.IsZero() {
		change.CreatedAt = time.Now().UTC()
	}
	change.PreviousRole = u.Role
	u.Role = change.NewRole
	u.UpdatedAt = change.CreatedAt
	s.roleChanges = append(s.roleChanges, *change)
	return nil
}

func (s *Store) ListRoleChanges(ctx context.Context, targetUID string) ([]models.RoleChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.RoleChange
	for _, rc := range s.roleChanges {
		if targetUID == "" || rc.TargetUID == targetUID {
			out = append(out, rc)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) CreateCredential(ctx context.Context, c *models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(c.Email)
	if _, ok := s.credentials[key]; ok {
		return errs.Validation("email %s already registered", c.Email)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	cp := *c
	s.credentials[key] = &cp
	return nil
}

func (s *Store) GetCredentialByEmail(ctx context.Context, email string) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.credentials[strings.ToLower(email)]
	if !ok {
		return nil, errs.NotFound("credential", email)
	}
	cp := *c
	return &cp, nil
}

// === Posts ===

func (s *Store) CreatePost(ctx context.Context, p *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	s.posts[p.ID] = clonePost(p)
	return nil
}

func (s *Store) GetPost(ctx context.Context, id string) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[id]
	if !ok {
		return nil, errs.NotFound("post", id)
	}
	return clonePost(p), nil
}

func (s *Store) UpdatePost(ctx context.Context, id string, patch store.PostPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok {
		return errs.NotFound("post", id)
	}
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Content != nil {
		p.Content = *patch.Content
	}
	if patch.Excerpt != nil {
		p.Excerpt = *patch.Excerpt
	}
	if patch.Tags != nil {
		p.Tags = append(pq.StringArray{}, patch.Tags...)
	}
	if patch.Image != nil {
		img := *patch.Image
		p.Image = &img
	}
	if patch.Status != nil {
		p.Status = *patch.Status
	}
	if patch.Featured != nil {
		p.Featured = *patch.Featured
	}
	if patch.PublishedAt != nil && p.PublishedAt == nil {
		t := *patch.PublishedAt
		p.PublishedAt = &t
	}
	p.UpdatedAt = patch.UpdatedAt
	return nil
}

func (s *Store) IncrementPostCounter(ctx context.Context, id string, field store.CounterField, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok {
		return errs.NotFound("post", id)
	}
	switch field {
	case store.CounterLikes:
		p.Likes += delta
	case store.CounterViews:
		p.Views += delta
	default:
		return errs.Validation("unknown counter %q", field)
	}
	return nil
}

func (s *Store) QueryPosts(ctx context.Context, q store.PostQuery) ([]models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	before := postOrdering(q.Order)

	var anchor *models.Post
	if q.After != nil {
		anchor = cursorPost(q.After)
	}

	rows := make([]*models.Post, 0, len(s.posts))
	for _, p := range s.posts {
		if !matchPost(p, q) {
			continue
		}
		if anchor != nil && !before(anchor, p) {
			continue
		}
		rows = append(rows, p)
	}
	sort.Slice(rows, func(i, j int) bool { return before(rows[i], rows[j]) })

	rows = limitSlice(rows, q.Limit)
	out := make([]models.Post, len(rows))
	for i, p := range rows {
		out[i] = *clonePost(p)
	}
	return out, nil
}

func (s *Store) CountPostsByStatus(ctx context.Context) (map[models.PostStatus]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[models.PostStatus]int64)
	for _, p := range s.posts {
		counts[p.Status]++
	}
	return counts, nil
}

func matchPost(p *models.Post, q store.PostQuery) bool {
	if q.Status != "" && p.Status != q.Status {
		return false
	}
	if q.ExcludeStatus != "" && p.Status == q.ExcludeStatus {
		return false
	}
	if q.AuthorID != "" && p.AuthorID != q.AuthorID {
		return false
	}
	if q.Featured != nil && p.Featured != *q.Featured {
		return false
	}
	if q.Tag != "" && !p.HasTag(q.Tag) {
		return false
	}
	if len(q.AnyTags) > 0 {
		found := false
		for _, t := range q.AnyTags {
			if p.HasTag(t) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.ExcludeID != "" && p.ID == q.ExcludeID {
		return false
	}
	return true
}

// cursorPost is a stand-in row carrying the sort keys of c, compared with the
// same ordering as stored rows.
func cursorPost(c *store.Cursor) *models.Post {
	p := &models.Post{ID: c.ID, Views: int(c.N), CreatedAt: c.Time}
	if !c.Time.IsZero() {
		t := c.Time
		p.PublishedAt = &t
	}
	return p
}

func publishedKey(p *models.Post) time.Time {
	if p.PublishedAt == nil {
		return time.Time{}
	}
	return *p.PublishedAt
}

// postOrdering returns the "a sorts before b" relation for an order.
func postOrdering(o store.PostOrder) func(a, b *models.Post) bool {
	switch o {
	case store.OrderPublishedAsc:
		return func(a, b *models.Post) bool {
			ka, kb := publishedKey(a), publishedKey(b)
			if !ka.Equal(kb) {
				return ka.Before(kb)
			}
			return a.ID < b.ID
		}
	case store.OrderViewsDesc:
		return func(a, b *models.Post) bool {
			if a.Views != b.Views {
				return a.Views > b.Views
			}
			return a.ID > b.ID
		}
	case store.OrderCreatedDesc:
		return func(a, b *models.Post) bool {
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID > b.ID
		}
	case store.OrderIDThenPublished:
		return func(a, b *models.Post) bool {
			if a.ID != b.ID {
				return a.ID < b.ID
			}
			return publishedKey(a).After(publishedKey(b))
		}
	default:
		return func(a, b *models.Post) bool {
			ka, kb := publishedKey(a), publishedKey(b)
			if !ka.Equal(kb) {
				return ka.After(kb)
			}
			return a.ID > b.ID
		}
	}
}

func clonePost(p *models.Post) *models.Post {
	cp := *p
	cp.Tags = append(pq.StringArray{}, p.Tags...)
	if p.Image != nil {
		img := *p.Image
		cp.Image = &img
	}
	if p.PublishedAt != nil {
		t := *p.PublishedAt
		cp.PublishedAt = &t
	}
	return &cp
}

// === Comments ===

func (s *Store) CreateComment(ctx context.Context, c *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	s.comments[c.ID] = cloneComment(c)
	return nil
}

func (s *Store) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.comments[id]
	if !ok {
		return nil, errs.NotFound("comment", id)
	}
	return cloneComment(c), nil
}

func (s *Store) UpdateComment(ctx context.Context, id string, patch store.CommentPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[id]
	if !ok {
		return errs.NotFound("comment", id)
	}
	if patch.Content != nil {
		c.Content = *patch.Content
	}
	if patch.Status != nil {
		c.Status = *patch.Status
	}
	c.UpdatedAt = patch.UpdatedAt
	return nil
}

func (s *Store) DeleteComment(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.comments[id]; !ok {
		return errs.NotFound("comment", id)
	}
	delete(s.comments, id)
	return nil
}

func (s *Store) IncrementCommentLikes(ctx context.Context, id string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[id]
	if !ok {
		return errs.NotFound("comment", id)
	}
	c.Likes += delta
	return nil
}

func (s *Store) QueryComments(ctx context.Context, q store.CommentQuery) ([]models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	before := commentOrdering(q.Order)

	var anchor *models.Comment
	if q.After != nil {
		// both time keys are set; the ordering reads only its own
		anchor = &models.Comment{ID: q.After.ID, CreatedAt: q.After.Time, UpdatedAt: q.After.Time}
	}

	rows := make([]*models.Comment, 0)
	for _, c := range s.comments {
		if q.Status != "" && c.Status != q.Status {
			continue
		}
		if q.PostID != "" && c.PostID != q.PostID {
			continue
		}
		if q.ParentID != "" && (c.ParentID == nil || *c.ParentID != q.ParentID) {
			continue
		}
		if q.TopLevel && c.ParentID != nil {
			continue
		}
		if q.AuthorID != "" && c.AuthorID != q.AuthorID {
			continue
		}
		if anchor != nil && !before(anchor, c) {
			continue
		}
		rows = append(rows, c)
	}
	sort.Slice(rows, func(i, j int) bool { return before(rows[i], rows[j]) })

	rows = limitSlice(rows, q.Limit)
	out := make([]models.Comment, len(rows))
	for i, c := range rows {
		out[i] = *cloneComment(c)
	}
	return out, nil
}

func (s *Store) CountCommentsByStatus(ctx context.Context) (map[models.CommentStatus]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[models.CommentStatus]int64)
	for _, c := range s.comments {
		counts[c.Status]++
	}
	return counts, nil
}

func commentOrdering(o store.CommentOrder) func(a, b *models.Comment) bool {
	switch o {
	case store.OrderCommentCreatedDesc:
		return func(a, b *models.Comment) bool {
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID > b.ID
		}
	case store.OrderCommentUpdatedDesc:
		return func(a, b *models.Comment) bool {
			if !a.UpdatedAt.Equal(b.UpdatedAt) {
				return a.UpdatedAt.After(b.UpdatedAt)
			}
			return a.ID > b.ID
		}
	default:
		return func(a, b *models.Comment) bool {
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.ID < b.ID
		}
	}
}

func cloneComment(c *models.Comment) *models.Comment {
	cp := *c
	if c.ParentID != nil {
		pid := *c.ParentID
		cp.ParentID = &pid
	}
	return &cp
}

func limitSlice[T any](rows []T, limit int) []T {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}
