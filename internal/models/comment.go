package models

import (
	"time"
)

type CommentStatus string

const (
	CommentPending  CommentStatus = "pending"
	CommentApproved CommentStatus = "approved"
	CommentFlagged  CommentStatus = "flagged"
)

func (s CommentStatus) Valid() bool {
	switch s {
	case CommentPending, CommentApproved, CommentFlagged:
		return true
	}
	return false
}

type Comment struct {
	ID          string        `gorm:"primaryKey;size:36" json:"id"`
	PostID      string        `gorm:"size:36;not null;index" json:"post_id"`
	ParentID    *string       `gorm:"size:36;index" json:"parent_id,omitempty"` // nil for top-level comments
	Content     string        `gorm:"type:text;not null" json:"content"`
	ContentHTML string        `gorm:"-" json:"content_html,omitempty"` // rendered on read
	AuthorID    string        `gorm:"size:128;not null;index" json:"author_id"`
	AuthorName  string        `json:"author_name"`
	AuthorPhoto string        `json:"author_photo"`
	Status      CommentStatus `gorm:"size:20;not null;index" json:"status"`
	Likes       int           `gorm:"default:0;not null" json:"likes"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}
