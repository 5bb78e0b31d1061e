package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"inkpress/internal/errs"
	"inkpress/internal/models"
	"inkpress/internal/store"
)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return New(gdb), mock
}

func TestGetPost_NotFound(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT \* FROM "posts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.GetPost(context.Background(), "missing")
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementPostCounter(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectExec(`UPDATE "posts" SET "likes"=likes \+ \$1`).
		WithArgs(1, "p1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.IncrementPostCounter(context.Background(), "p1", store.CounterLikes, 1))

	mock.ExpectExec(`UPDATE "posts" SET "views"=views \+ \$1`).
		WithArgs(1, "gone").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := s.IncrementPostCounter(context.Background(), "gone", store.CounterViews, 1)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	err = s.IncrementPostCounter(context.Background(), "p1", store.CounterField("title"), 1)
	assert.ErrorIs(t, err, errs.ErrValidation)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangeRole_Transaction(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE uid = \$1 .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"uid", "role", "active"}).AddRow("u1", "user", true))
	mock.ExpectExec(`UPDATE "users" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "role_changes"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	change := &models.RoleChange{TargetUID: "u1", NewRole: models.RoleAuthor, ActorUID: "admin"}
	require.NoError(t, s.ChangeRole(context.Background(), change))
	assert.Equal(t, models.RoleUser, change.PreviousRole)
	assert.NotEmpty(t, change.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangeRole_MissingTargetRollsBack(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"uid"}))
	mock.ExpectRollback()

	err := s.ChangeRole(context.Background(), &models.RoleChange{TargetUID: "ghost", NewRole: models.RoleAdmin})
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryComments_CursorUsesCarriedKey(t *testing.T) {
	s, mock := newTestStore(t)
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	// one statement: the anchor row is never read back
	mock.ExpectQuery(`SELECT \* FROM "comments" WHERE status = \$1 AND \(updated_at, id\) < \(\$2, ?\$3\) ORDER BY updated_at DESC, id DESC`).
		WithArgs("approved", at, "gone", 11).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("c9"))

	rows, err := s.QueryComments(context.Background(), store.CommentQuery{
		Status: models.CommentApproved,
		Order:  store.OrderCommentUpdatedDesc,
		Limit:  11,
		After:  &store.Cursor{ID: "gone", Time: at},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryPosts_PopularCursor(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT \* FROM "posts" WHERE status = \$1 AND \(views, id\) < \(\$2, ?\$3\) ORDER BY views DESC, id DESC`).
		WithArgs("published", int64(25), "p2", 3).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.QueryPosts(context.Background(), store.PostQuery{
		Status: models.PostPublished,
		Order:  store.OrderViewsDesc,
		Limit:  3,
		After:  &store.Cursor{ID: "p2", N: 25},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRoleChanges_NewestFirst(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT \* FROM "role_changes" WHERE target_uid = \$1 ORDER BY created_at DESC, id DESC`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "new_role"}).AddRow("r2", "admin").AddRow("r1", "author"))

	changes, err := s.ListRoleChanges(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, "r2", changes[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
