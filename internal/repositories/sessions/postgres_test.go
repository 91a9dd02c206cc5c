package sessions

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/leadkeeper/internal/common"
	"github.com/dmitrijs2005/leadkeeper/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var sessionCols = []string{"id", "pin", "title", "description", "expires_at", "is_active", "created_at"}

func TestCreate_ReturnsID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	created := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`INSERT INTO collection_sessions \(pin, title, description, expires_at, is_active\)`).
		WithArgs("1234", "Spring fair", sql.NullString{}, sql.NullTime{}, true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(5), created))

	s := &models.Session{Pin: "1234", Title: "Spring fair", IsActive: true}
	require.NoError(t, repo.Create(context.Background(), s))
	assert.Equal(t, int64(5), s.ID)
	assert.Equal(t, created, s.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DuplicatePin(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO collection_sessions`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: pinConstraint})

	err := repo.Create(context.Background(), &models.Session{Pin: "1234", Title: "x"})
	assert.ErrorIs(t, err, common.ErrDuplicatePin)
}

func TestCreate_OtherError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO collection_sessions`).WillReturnError(errors.New("boom"))

	err := repo.Create(context.Background(), &models.Session{Pin: "1234", Title: "x"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrDuplicatePin)
	assert.Contains(t, err.Error(), "failed to insert session")
}

func TestGetByPin(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	exp := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT id, pin, title, description, expires_at, is_active, created_at FROM collection_sessions WHERE pin = \$1`).
		WithArgs("1234").
		WillReturnRows(sqlmock.NewRows(sessionCols).AddRow(int64(1), "1234", "Fair", "booth", exp, true, exp))

	s, err := repo.GetByPin(context.Background(), "1234")
	require.NoError(t, err)
	require.NotNil(t, s.Description)
	assert.Equal(t, "booth", *s.Description)
	require.NotNil(t, s.ExpiresAt)
	assert.Equal(t, exp, *s.ExpiresAt)
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM collection_sessions WHERE id = \$1`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(sessionCols))

	_, err := repo.GetByID(context.Background(), 9)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestList_ReadsViewAndSorts(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	ts := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	cols := append(append([]string{}, sessionCols...), "total_entries", "today_entries", "last_entry_at")
	mock.ExpectQuery(`FROM session_statistics`).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(int64(1), "1111", "Old", nil, nil, false, ts, int64(0), int64(0), nil).
			AddRow(int64(2), "2222", "New", nil, nil, true, ts, int64(4), int64(1), ts))

	list, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "2222", list[0].Pin, "active sessions first")
	assert.Equal(t, int64(4), list[0].TotalEntries)
	require.NotNil(t, list[0].LastEntryAt)
	assert.Nil(t, list[1].LastEntryAt)
}

func TestSetActive(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE collection_sessions SET is_active = \$1 WHERE id = \$2`).
		WithArgs(false, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE collection_sessions`).
		WithArgs(true, int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.SetActive(context.Background(), 3, false))
	assert.ErrorIs(t, repo.SetActive(context.Background(), 4, true), common.ErrNotFound)
}

func TestDelete(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM collection_sessions WHERE id = \$1`).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM collection_sessions`).
		WillReturnError(errors.New("db err"))

	require.NoError(t, repo.Delete(context.Background(), 3))
	err := repo.Delete(context.Background(), 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to delete session")
}
