// Package postgres implements store.Store on top of gorm and PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"inkpress/internal/errs"
	"inkpress/internal/models"
	"inkpress/internal/store"
)

// publishedKey is the sort key of the publish-date orderings. Drafts have no
// publish date and sort as the epoch.
const publishedKey = "COALESCE(published_at, 'epoch'::timestamptz)"

var epoch = time.Unix(0, 0).UTC()

type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// === Users ===

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	err := s.db.WithContext(ctx).Create(u).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errs.Validation("user %s already exists", u.UID)
	}
	return errs.Upstream("create user", err)
}

func (s *Store) GetUser(ctx context.Context, uid string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "uid = ?", uid).Error; err != nil {
		return nil, notFound("user", uid, err)
	}
	return &u, nil
}

func (s *Store) UpdateUser(ctx context.Context, uid string, patch store.UserPatch) error {
	updates := map[string]any{"updated_at": patch.UpdatedAt}
	if patch.DisplayName != nil {
		updates["display_name"] = *patch.DisplayName
	}
	if patch.PhotoURL != nil {
		updates["photo_url"] = *patch.PhotoURL
	}
	if patch.Active != nil {
		updates["active"] = *patch.Active
	}

	res := s.db.WithContext(ctx).Model(&models.User{}).Where("uid = ?", uid).Updates(updates)
	return affected("update user", "user", uid, res)
}

func (s *Store) ListUsers(ctx context.Context, q store.UserQuery) ([]models.User, error) {
	tx := s.db.WithContext(ctx).Model(&models.User{})
	if q.Role != "" {
		tx = tx.Where("role = ?", q.Role)
	}
	if q.After != nil {
		tx = tx.Where("(created_at, uid) < (?, ?)", q.After.Time, q.After.ID)
	}
	tx = tx.Order("created_at DESC, uid DESC")
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var users []models.User
	if err := tx.Find(&users).Error; err != nil {
		return nil, errs.Upstream("list users", err)
	}
	return users, nil
}

func (s *Store) CountUsersByRole(ctx context.Context) (map[models.Role]int64, error) {
	var rows []struct {
		Role models.Role
		N    int64
	}
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Select("role, count(*) AS n").Group("role").Scan(&rows).Error
	if err != nil {
		return nil, errs.Upstream("count users", err)
	}
	counts := make(map[models.Role]int64, len(rows))
	for _, r := range rows {
		counts[r.Role] = r.N
	}
	return counts, nil
}

// ChangeRole locks the target row, writes the new role and appends the audit
// entry in one transaction.
func (s *Store) ChangeRole(ctx context.Context, change *models.RoleChange) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target models.User
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&target, "uid = ?", change.TargetUID).Error
		if err != nil {
			return notFound("user", change.TargetUID, err)
		}

		if change.ID == "" {
			change.ID = uuid.NewString()
		}
		if change.CreatedAt.IsZero() {
			change.CreatedAt = time.Now().UTC()
		}
		change.PreviousRole = target.Role

		if err := tx.Model(&models.User{}).Where("uid = ?", change.TargetUID).
			Updates(map[string]any{"role": change.NewRole, "updated_at": change.CreatedAt}).Error; err != nil {
			return errs.Upstream("update role", err)
		}
		if err := tx.Create(change).Error; err != nil {
			return errs.Upstream("write role audit", err)
		}
		return nil
	})
}

func (s *Store) ListRoleChanges(ctx context.Context, targetUID string) ([]models.RoleChange, error) {
	tx := s.db.WithContext(ctx)
	if targetUID != "" {
		tx = tx.Where("target_uid = ?", targetUID)
	}
	tx = tx.Order("created_at DESC, id DESC")
	var out []models.RoleChange
	if err := tx.Find(&out).Error; err != nil {
		return nil, errs.Upstream("list role changes", err)
	}
	return out, nil
}

func (s *Store) CreateCredential(ctx context.Context, c *models.Credential) error {
	c.Email = strings.ToLower(c.Email)
	err := s.db.WithContext(ctx).Create(c).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errs.Validation("email %s already registered", c.Email)
	}
	return errs.Upstream("create credential", err)
}

func (s *Store) GetCredentialByEmail(ctx context.Context, email string) (*models.Credential, error) {
	var c models.Credential
	if err := s.db.WithContext(ctx).First(&c, "email = ?", strings.ToLower(email)).Error; err != nil {
		return nil, notFound("credential", email, err)
	}
	return &c, nil
}

// === Posts ===

func (s *Store) CreatePost(ctx context.Context, p *models.Post) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Tags == nil {
		p.Tags = pq.StringArray{}
	}
	return errs.Upstream("create post", s.db.WithContext(ctx).Create(p).Error)
}

func (s *Store) GetPost(ctx context.Context, id string) (*models.Post, error) {
	var p models.Post
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, notFound("post", id, err)
	}
	return &p, nil
}

func (s *Store) UpdatePost(ctx context.Context, id string, patch store.PostPatch) error {
	updates := map[string]any{"updated_at": patch.UpdatedAt}
	if patch.Title != nil {
		updates["title"] = *patch.Title
	}
	if patch.Content != nil {
		updates["content"] = *patch.Content
	}
	if patch.Excerpt != nil {
		updates["excerpt"] = *patch.Excerpt
	}
	if patch.Tags != nil {
		updates["tags"] = pq.StringArray(patch.Tags)
	}
	if patch.Image != nil {
		raw, err := json.Marshal(patch.Image)
		if err != nil {
			return errs.Validation("encode image: %v", err)
		}
		updates["image"] = gorm.Expr("?::jsonb", string(raw))
	}
	if patch.Status != nil {
		updates["status"] = *patch.Status
	}
	if patch.Featured != nil {
		updates["featured"] = *patch.Featured
	}
	if patch.PublishedAt != nil {
		// set once: an existing publish date wins
		updates["published_at"] = gorm.Expr("COALESCE(published_at, ?)", *patch.PublishedAt)
	}

	res := s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).Updates(updates)
	return affected("update post", "post", id, res)
}

func (s *Store) IncrementPostCounter(ctx context.Context, id string, field store.CounterField, delta int) error {
	switch field {
	case store.CounterLikes, store.CounterViews:
	default:
		return errs.Validation("unknown counter %q", field)
	}
	col := string(field)
	res := s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).
		UpdateColumn(col, gorm.Expr(col+" + ?", delta))
	return affected("increment "+col, "post", id, res)
}

func (s *Store) QueryPosts(ctx context.Context, q store.PostQuery) ([]models.Post, error) {
	tx := s.db.WithContext(ctx).Model(&models.Post{})
	if q.Status != "" {
		tx = tx.Where("status = ?", q.Status)
	}
	if q.ExcludeStatus != "" {
		tx = tx.Where("status <> ?", q.ExcludeStatus)
	}
	if q.AuthorID != "" {
		tx = tx.Where("author_id = ?", q.AuthorID)
	}
	if q.Featured != nil {
		tx = tx.Where("featured = ?", *q.Featured)
	}
	if q.Tag != "" {
		tx = tx.Where("tags @> ?", pq.StringArray{q.Tag})
	}
	if len(q.AnyTags) > 0 {
		tx = tx.Where("tags && ?", pq.StringArray(q.AnyTags))
	}
	if q.ExcludeID != "" {
		tx = tx.Where("id <> ?", q.ExcludeID)
	}

	if q.After != nil {
		tx = afterPost(tx, q.Order, q.After)
	}

	tx = tx.Order(postOrderSQL(q.Order))
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var posts []models.Post
	if err := tx.Find(&posts).Error; err != nil {
		return nil, errs.Upstream("query posts", err)
	}
	return posts, nil
}

func (s *Store) CountPostsByStatus(ctx context.Context) (map[models.PostStatus]int64, error) {
	var rows []struct {
		Status models.PostStatus
		N      int64
	}
	err := s.db.WithContext(ctx).Model(&models.Post{}).
		Select("status, count(*) AS n").Group("status").Scan(&rows).Error
	if err != nil {
		return nil, errs.Upstream("count posts", err)
	}
	counts := make(map[models.PostStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.N
	}
	return counts, nil
}

func postOrderSQL(o store.PostOrder) string {
	switch o {
	case store.OrderPublishedAsc:
		return publishedKey + " ASC, id ASC"
	case store.OrderViewsDesc:
		return "views DESC, id DESC"
	case store.OrderCreatedDesc:
		return "created_at DESC, id DESC"
	case store.OrderIDThenPublished:
		return "id ASC, " + publishedKey + " DESC"
	default:
		return publishedKey + " DESC, id DESC"
	}
}

// afterPost restricts tx to the rows that sort strictly after the cursor.
func afterPost(tx *gorm.DB, o store.PostOrder, c *store.Cursor) *gorm.DB {
	key := c.Time
	if key.IsZero() {
		key = epoch
	}
	switch o {
	case store.OrderPublishedAsc:
		return tx.Where("("+publishedKey+", id) > (?, ?)", key, c.ID)
	case store.OrderViewsDesc:
		return tx.Where("(views, id) < (?, ?)", c.N, c.ID)
	case store.OrderCreatedDesc:
		return tx.Where("(created_at, id) < (?, ?)", c.Time, c.ID)
	case store.OrderIDThenPublished:
		return tx.Where("id > ?", c.ID)
	default:
		return tx.Where("("+publishedKey+", id) < (?, ?)", key, c.ID)
	}
}

// === Comments ===

func (s *Store) CreateComment(ctx context.Context, c *models.Comment) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return errs.Upstream("create comment", s.db.WithContext(ctx).Create(c).Error)
}

func (s *Store) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	var c models.Comment
	if err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, notFound("comment", id, err)
	}
	return &c, nil
}

func (s *Store) UpdateComment(ctx context.Context, id string, patch store.CommentPatch) error {
	updates := map[string]any{"updated_at": patch.UpdatedAt}
	if patch.Content != nil {
		updates["content"] = *patch.Content
	}
	if patch.Status != nil {
		updates["status"] = *patch.Status
	}
	res := s.db.WithContext(ctx).Model(&models.Comment{}).Where("id = ?", id).Updates(updates)
	return affected("update comment", "comment", id, res)
}

func (s *Store) DeleteComment(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Comment{})
	return affected("delete comment", "comment", id, res)
}

func (s *Store) IncrementCommentLikes(ctx context.Context, id string, delta int) error {
	res := s.db.WithContext(ctx).Model(&models.Comment{}).Where("id = ?", id).
		UpdateColumn("likes", gorm.Expr("likes + ?", delta))
	return affected("increment comment likes", "comment", id, res)
}

func (s *Store) QueryComments(ctx context.Context, q store.CommentQuery) ([]models.Comment, error) {
	tx := s.db.WithContext(ctx).Model(&models.Comment{})
	if q.Status != "" {
		tx = tx.Where("status = ?", q.Status)
	}
	if q.PostID != "" {
		tx = tx.Where("post_id = ?", q.PostID)
	}
	if q.ParentID != "" {
		tx = tx.Where("parent_id = ?", q.ParentID)
	}
	if q.TopLevel {
		tx = tx.Where("parent_id IS NULL")
	}
	if q.AuthorID != "" {
		tx = tx.Where("author_id = ?", q.AuthorID)
	}

	if c := q.After; c != nil {
		switch q.Order {
		case store.OrderCommentCreatedDesc:
			tx = tx.Where("(created_at, id) < (?, ?)", c.Time, c.ID)
		case store.OrderCommentUpdatedDesc:
			tx = tx.Where("(updated_at, id) < (?, ?)", c.Time, c.ID)
		default:
			tx = tx.Where("(created_at, id) > (?, ?)", c.Time, c.ID)
		}
	}

	switch q.Order {
	case store.OrderCommentCreatedDesc:
		tx = tx.Order("created_at DESC, id DESC")
	case store.OrderCommentUpdatedDesc:
		tx = tx.Order("updated_at DESC, id DESC")
	default:
		tx = tx.Order("created_at ASC, id ASC")
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var comments []models.Comment
	if err := tx.Find(&comments).Error; err != nil {
		return nil, errs.Upstream("query comments", err)
	}
	return comments, nil
}

func (s *Store) CountCommentsByStatus(ctx context.Context) (map[models.CommentStatus]int64, error) {
	var rows []struct {
		Status models.CommentStatus
		N      int64
	}
	err := s.db.WithContext(ctx).Model(&models.Comment{}).
		Select("status, count(*) AS n").Group("status").Scan(&rows).Error
	if err != nil {
		return nil, errs.Upstream("count comments", err)
	}
	counts := make(map[models.CommentStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.N
	}
	return counts, nil
}

// === helpers ===

func notFound(entity, id string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.NotFound(entity, id)
	}
	return errs.Upstream("get "+entity, err)
}

func affected(op, entity, id string, res *gorm.DB) error {
	if res.Error != nil {
		return errs.Upstream(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.NotFound(entity, id)
	}
	return nil
}
