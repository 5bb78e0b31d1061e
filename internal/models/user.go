package models

import (
	"time"
)

type Role string

const (
	RoleUser   Role = "user"
	RoleAuthor Role = "author"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAuthor, RoleAdmin:
		return true
	}
	return false
}

// CanAuthor reports whether the role may write posts and skip comment moderation.
func (r Role) CanAuthor() bool {
	return r == RoleAuthor || r == RoleAdmin
}

// User is the profile record of an authenticated principal. UID is the
// identity provider's id and never changes.
type User struct {
	UID         string    `gorm:"primaryKey;size:128" json:"uid"`
	Email       string    `gorm:"index;not null" json:"email"`
	DisplayName string    `gorm:"size:120" json:"display_name"`
	PhotoURL    string    `json:"photo_url"`
	Role        Role      `gorm:"size:20;default:'user';not null;index" json:"role"`
	Active      bool      `gorm:"default:true;not null" json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	// No DeletedAt: profiles are deactivated, never removed
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// RoleChange is the append-only audit entry written with every role mutation.
type RoleChange struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	TargetUID    string    `gorm:"size:128;not null;index" json:"target_uid"`
	PreviousRole Role      `gorm:"size:20;not null" json:"previous_role"`
	NewRole      Role      `gorm:"size:20;not null" json:"new_role"`
	ActorUID     string    `gorm:"size:128;not null" json:"actor_uid"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
}

// Credential backs the local email/password identity provider.
type Credential struct {
	UID          string    `gorm:"primaryKey;size:128" json:"uid"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
