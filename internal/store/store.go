// Package store defines the document-store boundary used by the services.
// Implementations live in the inmemory and postgres subpackages.
package store

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"inkpress/internal/errs"
	"inkpress/internal/models"
)

// PostOrder selects the ordering of a post query. Every ordering breaks ties
// on the post id so that cursors are stable.
type PostOrder int

const (
	OrderPublishedDesc PostOrder = iota
	OrderPublishedAsc
	OrderViewsDesc
	OrderCreatedDesc
	// OrderIDThenPublished orders by id, then by publish date descending.
	OrderIDThenPublished
)

// PostQuery mirrors the equality / array-contains / order / limit / start-after
// shape of the underlying document store.
type PostQuery struct {
	Status        models.PostStatus // empty matches every status
	ExcludeStatus models.PostStatus
	AuthorID      string
	Featured      *bool
	Tag           string   // tags contain Tag
	AnyTags       []string // tags contain at least one of AnyTags
	ExcludeID     string
	Order         PostOrder
	Limit         int    // 0 means no limit
	After         *Cursor // last row of the previous page
}

type CommentOrder int

const (
	OrderCommentCreatedAsc CommentOrder = iota
	OrderCommentCreatedDesc
	OrderCommentUpdatedDesc
)

type CommentQuery struct {
	Status   models.CommentStatus
	PostID   string
	ParentID string // replies of ParentID
	TopLevel bool   // only comments without a parent
	AuthorID string
	Order    CommentOrder
	Limit    int
	After    *Cursor
}

// PostPatch is a partial update; nil fields are left untouched.
type PostPatch struct {
	Title    *string
	Content  *string
	Excerpt  *string
	Tags     []string // nil leaves tags untouched, empty slice clears them
	Image    *models.Image
	Status   *models.PostStatus
	Featured *bool
	// PublishedAt is only applied when the stored value is still unset.
	PublishedAt *time.Time
	UpdatedAt   time.Time
}

type CommentPatch struct {
	Content   *string
	Status    *models.CommentStatus
	UpdatedAt time.Time
}

type UserPatch struct {
	DisplayName *string
	PhotoURL    *string
	Active      *bool
	UpdatedAt   time.Time
}

type UserQuery struct {
	Role  models.Role
	Limit int
	After *Cursor
}

// CounterField names an integer counter of a post.
type CounterField string

const (
	CounterLikes CounterField = "likes"
	CounterViews CounterField = "views"
)

type Users interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, uid string) (*models.User, error)
	UpdateUser(ctx context.Context, uid string, patch UserPatch) error
	ListUsers(ctx context.Context, q UserQuery) ([]models.User, error)
	CountUsersByRole(ctx context.Context) (map[models.Role]int64, error)

	// ChangeRole writes the new role and appends the audit entry atomically.
	// It fails with errs.ErrNotFound when the target does not exist.
	ChangeRole(ctx context.Context, change *models.RoleChange) error
	ListRoleChanges(ctx context.Context, targetUID string) ([]models.RoleChange, error)

	CreateCredential(ctx context.Context, c *models.Credential) error
	GetCredentialByEmail(ctx context.Context, email string) (*models.Credential, error)
}

type Posts interface {
	CreatePost(ctx context.Context, p *models.Post) error
	GetPost(ctx context.Context, id string) (*models.Post, error)
	UpdatePost(ctx context.Context, id string, patch PostPatch) error
	// IncrementPostCounter adds delta to the counter in a single atomic step.
	IncrementPostCounter(ctx context.Context, id string, field CounterField, delta int) error
	QueryPosts(ctx context.Context, q PostQuery) ([]models.Post, error)
	CountPostsByStatus(ctx context.Context) (map[models.PostStatus]int64, error)
}

type Comments interface {
	CreateComment(ctx context.Context, c *models.Comment) error
	GetComment(ctx context.Context, id string) (*models.Comment, error)
	UpdateComment(ctx context.Context, id string, patch CommentPatch) error
	DeleteComment(ctx context.Context, id string) error
	IncrementCommentLikes(ctx context.Context, id string, delta int) error
	QueryComments(ctx context.Context, q CommentQuery) ([]models.Comment, error)
	CountCommentsByStatus(ctx context.Context) (map[models.CommentStatus]int64, error)
}

// Store is the full document-store boundary.
type Store interface {
	Users
	Posts
	Comments
}

// ErrInvalidCursor is returned for a cursor token that cannot be decoded.
var ErrInvalidCursor = fmt.Errorf("%w: invalid cursor", errs.ErrValidation)

// Cursor is the position of the last row of a page: its sort key and id.
// Rows are compared against the key carried here, never against the live
// row, so a page boundary survives the row being edited or removed.
type Cursor struct {
	ID   string    `json:"id"`
	Time time.Time `json:"t,omitzero"` // time sort key
	N    int64     `json:"n,omitzero"` // counter sort key
}

// PostCursor is the cursor after p in order o. Posts without a publish date
// carry the zero time.
func PostCursor(p *models.Post, o PostOrder) *Cursor {
	c := &Cursor{ID: p.ID}
	switch o {
	case OrderViewsDesc:
		c.N = int64(p.Views)
	case OrderCreatedDesc:
		c.Time = p.CreatedAt
	case OrderIDThenPublished:
	default:
		if p.PublishedAt != nil {
			c.Time = *p.PublishedAt
		}
	}
	return c
}

// CommentCursor is the cursor after cm in order o.
func CommentCursor(cm *models.Comment, o CommentOrder) *Cursor {
	if o == OrderCommentUpdatedDesc {
		return &Cursor{ID: cm.ID, Time: cm.UpdatedAt}
	}
	return &Cursor{ID: cm.ID, Time: cm.CreatedAt}
}

// UserCursor is the cursor after u in the newest-first user listing.
func UserCursor(u *models.User) *Cursor {
	return &Cursor{ID: u.UID, Time: u.CreatedAt}
}

// EncodeCursor turns c into an opaque token. A nil cursor encodes to "".
func EncodeCursor(c *Cursor) string {
	if c == nil || c.ID == "" {
		return ""
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor reverses EncodeCursor. An empty token decodes to nil.
func DecodeCursor(token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil || c.ID == "" {
		return nil, ErrInvalidCursor
	}
	return &c, nil
}
