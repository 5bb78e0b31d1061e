package models

import (
	"time"

	"github.com/lib/pq"
)

type PostStatus string

const (
	PostDraft     PostStatus = "draft"
	PostPublished PostStatus = "published"
	PostDeleted   PostStatus = "deleted"
)

func (s PostStatus) Valid() bool {
	switch s {
	case PostDraft, PostPublished, PostDeleted:
		return true
	}
	return false
}

// Image is the hosted image attached to a post.
type Image struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Post is a blog post. AuthorName and AuthorPhoto are copied from the
// author's profile when the post is created and are not kept in sync.
type Post struct {
	ID          string         `gorm:"primaryKey;size:36" json:"id"`
	Title       string         `gorm:"not null" json:"title"`
	Content     string         `gorm:"type:text;not null" json:"content"`
	Excerpt     string         `gorm:"type:text" json:"excerpt,omitempty"`
	Tags        pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"tags"`
	Image       *Image         `gorm:"serializer:json;type:jsonb" json:"image,omitempty"`
	AuthorID    string         `gorm:"size:128;not null;index" json:"author_id"`
	AuthorName  string         `json:"author_name"`
	AuthorPhoto string         `json:"author_photo"`
	Status      PostStatus     `gorm:"size:20;not null;index" json:"status"`
	Featured    bool           `gorm:"default:false;not null" json:"featured"`
	Likes       int            `gorm:"default:0;not null" json:"likes"`
	Views       int            `gorm:"default:0;not null" json:"views"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	PublishedAt *time.Time     `gorm:"index" json:"published_at"` // set once, on first publish
}

// HasTag reports whether the post carries tag.
func (p *Post) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
