package services

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"inkpress/internal/auth"
	"inkpress/internal/errs"
	"inkpress/internal/models"
	"inkpress/internal/store"
)

// SystemActor is recorded as the actor of role changes made from the command
// line.
const SystemActor = "system"

const maxDisplayNameLen = 120

// TokenVerifier checks an identity token and returns its principal.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*auth.GoogleClaims, error)
}

// UserPage is one page of the admin user list.
type UserPage struct {
	Users      []models.User `json:"users"`
	NextCursor string        `json:"next_cursor,omitempty"`
	HasMore    bool          `json:"has_more"`
}

// ProfileUpdate is an owner's edit of their own profile.
type ProfileUpdate struct {
	DisplayName *string
	PhotoURL    *string
}

// UserService manages principals, profiles and roles.
type UserService struct {
	store  store.Store
	local  *auth.LocalProvider
	google TokenVerifier
	log    zerolog.Logger
	now    func() time.Time
}

func NewUserService(st store.Store, local *auth.LocalProvider, google TokenVerifier, log zerolog.Logger) *UserService {
	return &UserService{
		store:  st,
		local:  local,
		google: google,
		log:    log.With().Str("service", "users").Logger(),
		now:    utcNow,
	}
}

// EnsureProfile returns the profile of p, creating it with role user on the
// first sign-in.
func (s *UserService) EnsureProfile(ctx context.Context, p *auth.Principal) (*models.User, error) {
	u, err := s.store.GetUser(ctx, p.UID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}

	now := s.now()
	u = &models.User{
		UID:         p.UID,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		PhotoURL:    p.PhotoURL,
		Role:        models.RoleUser,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		// lost a race with a concurrent first sign-in
		if errors.Is(err, errs.ErrValidation) {
			return s.store.GetUser(ctx, p.UID)
		}
		return nil, err
	}
	s.log.Info().Str("uid", u.UID).Msg("profile created")
	return u, nil
}

// SignUp registers an email/password account and its profile.
func (s *UserService) SignUp(ctx context.Context, email, password, displayName string) (*auth.Principal, *models.User, error) {
	if utf8.RuneCountInString(strings.TrimSpace(displayName)) > maxDisplayNameLen {
		return nil, nil, errs.Validation("display name must be at most %d characters", maxDisplayNameLen)
	}
	p, err := s.local.SignUp(ctx, email, password, displayName)
	if err != nil {
		return nil, nil, err
	}
	u, err := s.EnsureProfile(ctx, p)
	if err != nil {
		return nil, nil, err
	}
	return p, u, nil
}

// SignIn checks an email/password pair. Deactivated profiles are refused.
func (s *UserService) SignIn(ctx context.Context, email, password string) (*auth.Principal, *models.User, error) {
	p, err := s.local.SignIn(ctx, email, password)
	if err != nil {
		return nil, nil, err
	}
	return s.startSession(ctx, p)
}

// SignInWithGoogleToken signs in with a verified Google ID token.
func (s *UserService) SignInWithGoogleToken(ctx context.Context, idToken string) (*auth.Principal, *models.User, error) {
	if s.google == nil {
		return nil, nil, errs.Validation("google sign-in is not configured")
	}
	claims, err := s.google.Verify(ctx, idToken)
	if err != nil {
		return nil, nil, err
	}
	return s.startSession(ctx, claims.Principal())
}

func (s *UserService) startSession(ctx context.Context, p *auth.Principal) (*auth.Principal, *models.User, error) {
	u, err := s.EnsureProfile(ctx, p)
	if err != nil {
		return nil, nil, err
	}
	if !u.Active {
		return nil, nil, auth.ErrAccountDisabled
	}
	return p, u, nil
}

// GetProfile returns the public profile of uid.
func (s *UserService) GetProfile(ctx context.Context, uid string) (*models.User, error) {
	return s.store.GetUser(ctx, uid)
}

// UpdateProfile edits the caller's own display name and photo. Posts and
// comments keep the values they were written with.
func (s *UserService) UpdateProfile(ctx context.Context, p *auth.Principal, upd ProfileUpdate) (*models.User, error) {
	actor, err := loadActor(ctx, s.store, p)
	if err != nil {
		return nil, err
	}
	patch := store.UserPatch{UpdatedAt: s.now()}
	if upd.DisplayName != nil {
		name := strings.TrimSpace(*upd.DisplayName)
		if utf8.RuneCountInString(name) > maxDisplayNameLen {
			return nil, errs.Validation("display name must be at most %d characters", maxDisplayNameLen)
		}
		patch.DisplayName = &name
	}
	if upd.PhotoURL != nil {
		photo := strings.TrimSpace(*upd.PhotoURL)
		if photo != "" {
			u, err := url.Parse(photo)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return nil, errs.Validation("photo must be an http(s) URL")
			}
		}
		patch.PhotoURL = &photo
	}
	if err := s.store.UpdateUser(ctx, actor.UID, patch); err != nil {
		return nil, err
	}
	return s.store.GetUser(ctx, actor.UID)
}

// UpdateUserRole changes the role of target. The caller's role is read live
// and must be admin; the new role and its audit entry are written together.
func (s *UserService) UpdateUserRole(ctx context.Context, p *auth.Principal, targetUID string, role models.Role) error {
	actor, err := requireAdmin(ctx, s.store, p)
	if err != nil {
		return err
	}
	return s.changeRole(ctx, actor.UID, targetUID, role)
}

// GrantRole changes a role without an acting principal. It is used to
// bootstrap the first admin.
func (s *UserService) GrantRole(ctx context.Context, targetUID string, role models.Role) error {
	return s.changeRole(ctx, SystemActor, targetUID, role)
}

func (s *UserService) changeRole(ctx context.Context, actorUID, targetUID string, role models.Role) error {
	if !role.Valid() {
		return errs.Validation("unknown role %q", role)
	}
	change := &models.RoleChange{
		TargetUID: targetUID,
		NewRole:   role,
		ActorUID:  actorUID,
		CreatedAt: s.now(),
	}
	if err := s.store.ChangeRole(ctx, change); err != nil {
		return err
	}
	s.log.Info().
		Str("target", targetUID).
		Str("actor", actorUID).
		Str("from", string(change.PreviousRole)).
		Str("to", string(role)).
		Msg("role changed")
	return nil
}

// RoleHistory returns the audit entries of target, newest first.
func (s *UserService) RoleHistory(ctx context.Context, p *auth.Principal, targetUID string) ([]models.RoleChange, error) {
	if _, err := requireAdmin(ctx, s.store, p); err != nil {
		return nil, err
	}
	return s.store.ListRoleChanges(ctx, targetUID)
}

// SetUserActive deactivates or reactivates a profile. Admins cannot
// deactivate themselves.
func (s *UserService) SetUserActive(ctx context.Context, p *auth.Principal, targetUID string, active bool) error {
	actor, err := requireAdmin(ctx, s.store, p)
	if err != nil {
		return err
	}
	if actor.UID == targetUID && !active {
		return errs.Validation("admins cannot deactivate their own account")
	}
	if err := s.store.UpdateUser(ctx, targetUID, store.UserPatch{Active: &active, UpdatedAt: s.now()}); err != nil {
		return err
	}
	s.log.Info().Str("target", targetUID).Str("actor", actor.UID).Bool("active", active).Msg("user activity changed")
	return nil
}

// ListUsers pages through profiles, newest first, optionally by role.
func (s *UserService) ListUsers(ctx context.Context, p *auth.Principal, role models.Role, cursor string, limit int) (*UserPage, error) {
	if _, err := requireAdmin(ctx, s.store, p); err != nil {
		return nil, err
	}
	if role != "" && !role.Valid() {
		return nil, errs.Validation("unknown role %q", role)
	}
	after, err := store.DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}
	limit = clampLimit(limit, DefaultPageSize)

	users, err := s.store.ListUsers(ctx, store.UserQuery{Role: role, Limit: limit + 1, After: after})
	if err != nil {
		return nil, err
	}
	page := &UserPage{Users: users, HasMore: len(users) > limit}
	if page.HasMore {
		page.Users = users[:limit]
		page.NextCursor = store.EncodeCursor(store.UserCursor(&page.Users[limit-1]))
	}
	if page.Users == nil {
		page.Users = []models.User{}
	}
	return page, nil
}
