package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/leadkeeper/internal/common"
	"github.com/dmitrijs2005/leadkeeper/internal/dbx"
	"github.com/dmitrijs2005/leadkeeper/internal/models"
)

// pinConstraint is the unique constraint on collection_sessions.pin.
const pinConstraint = "collection_sessions_pin_key"

// PostgresRepository implements session storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the session. A unique violation on the PIN is translated
// into common.ErrDuplicatePin.
func (r *PostgresRepository) Create(ctx context.Context, s *models.Session) error {
	query := `
		INSERT INTO collection_sessions (pin, title, description, expires_at, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		s.Pin, s.Title, nullString(s.Description), nullTime(s), s.IsActive,
	).Scan(&s.ID, &s.CreatedAt)
	if dbx.IsUniqueViolation(err, pinConstraint) {
		return common.ErrDuplicatePin
	}
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	s.CreatedAt = s.CreatedAt.UTC()
	return nil
}

const sessionColumns = `id, pin, title, description, expires_at, is_active, created_at`

func (r *PostgresRepository) getOne(ctx context.Context, cond string, arg any) (*models.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM collection_sessions WHERE `+cond, arg)

	var (
		s    models.Session
		desc sql.NullString
		exp  sql.NullTime
	)
	err := row.Scan(&s.ID, &s.Pin, &s.Title, &desc, &exp, &s.IsActive, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select session: %w", err)
	}
	fill(&s, desc, exp)
	return &s, nil
}

func (r *PostgresRepository) GetByPin(ctx context.Context, pin string) (*models.Session, error) {
	return r.getOne(ctx, `pin = $1`, pin)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Session, error) {
	return r.getOne(ctx, `id = $1`, id)
}

// List reads sessions with counters from the session_statistics view.
func (r *PostgresRepository) List(ctx context.Context) ([]models.Session, error) {
	query := `SELECT ` + sessionColumns + `, total_entries, today_entries, last_entry_at
		FROM session_statistics`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select sessions: %w", err)
	}
	defer rows.Close()

	var result []models.Session
	for rows.Next() {
		var (
			s    models.Session
			desc sql.NullString
			exp  sql.NullTime
			last sql.NullTime
		)
		if err := rows.Scan(&s.ID, &s.Pin, &s.Title, &desc, &exp, &s.IsActive, &s.CreatedAt,
			&s.TotalEntries, &s.TodayEntries, &last); err != nil {
			return nil, err
		}
		fill(&s, desc, exp)
		if last.Valid {
			t := last.Time.UTC()
			s.LastEntryAt = &t
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	models.SortSessions(result)
	return result, nil
}

func (r *PostgresRepository) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE collection_sessions SET is_active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return expectOne(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM collection_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

func fill(s *models.Session, desc sql.NullString, exp sql.NullTime) {
	s.CreatedAt = s.CreatedAt.UTC()
	if desc.Valid {
		d := desc.String
		s.Description = &d
	}
	if exp.Valid {
		t := exp.Time.UTC()
		s.ExpiresAt = &t
	}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(s *models.Session) sql.NullTime {
	if s.ExpiresAt == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *s.ExpiresAt, Valid: true}
}
