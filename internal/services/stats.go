package services

import (
	"context"

	"golang.org/x/sync/errgroup"

	"inkpress/internal/auth"
	"inkpress/internal/models"
	"inkpress/internal/store"
)

// DashboardStats are the counts shown on the admin dashboard.
type DashboardStats struct {
	Posts    map[models.PostStatus]int64    `json:"posts"`
	Comments map[models.CommentStatus]int64 `json:"comments"`
	Users    map[models.Role]int64          `json:"users"`
}

type StatsService struct {
	store store.Store
}

func NewStatsService(st store.Store) *StatsService {
	return &StatsService{store: st}
}

func (s *StatsService) Dashboard(ctx context.Context, p *auth.Principal) (*DashboardStats, error) {
	if _, err := requireAdmin(ctx, s.store, p); err != nil {
		return nil, err
	}

	var stats DashboardStats
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.Posts, err = s.store.CountPostsByStatus(ctx)
		return err
	})
	g.Go(func() (err error) {
		stats.Comments, err = s.store.CountCommentsByStatus(ctx)
		return err
	})
	g.Go(func() (err error) {
		stats.Users, err = s.store.CountUsersByRole(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &stats, nil
}
