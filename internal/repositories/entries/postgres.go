package entries

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/leadkeeper/internal/dbx"
	"github.com/dmitrijs2005/leadkeeper/internal/models"
)

// PostgresRepository implements entry storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const entryColumns = `id, name, phone, created_at, session_id, ip_address, user_agent`

// where renders the filter as a WHERE clause. Bulk deletes always carry a
// predicate because row-level policies on hosted stores reject bare DELETEs.
func where(f Filter) (string, []any) {
	conds := []string{"id > 0"}
	var args []any
	if f.SessionID != nil {
		args = append(args, *f.SessionID)
		conds = append(conds, fmt.Sprintf("session_id = $%d", len(args)))
	}
	if f.Since != nil {
		args = append(args, *f.Since)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Insert stores the entry and reads back the generated id and timestamp.
func (r *PostgresRepository) Insert(ctx context.Context, e *models.Entry) error {
	query := `
		INSERT INTO entries (name, phone, created_at, session_id, ip_address, user_agent)
		VALUES ($1, $2, COALESCE($3, now()), $4, $5, $6)
		RETURNING id, created_at`

	var createdAt sql.NullTime
	if !e.CreatedAt.IsZero() {
		createdAt = sql.NullTime{Time: e.CreatedAt, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, query,
		e.Name, e.Phone, createdAt, nullInt(e.SessionID), nullString(e.IPAddress), nullString(e.UserAgent),
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return nil
}

// List returns matching entries ordered newest first.
func (r *PostgresRepository) List(ctx context.Context, f Filter) ([]models.Entry, error) {
	cond, args := where(f)
	query := `SELECT ` + entryColumns + ` FROM entries` + cond + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select entries: %w", err)
	}
	defer rows.Close()

	var result []models.Entry
	for rows.Next() {
		var (
			item      models.Entry
			sessionID sql.NullInt64
			ip, ua    sql.NullString
		)
		if err := rows.Scan(&item.ID, &item.Name, &item.Phone, &item.CreatedAt, &sessionID, &ip, &ua); err != nil {
			return nil, err
		}
		item.CreatedAt = item.CreatedAt.UTC()
		if sessionID.Valid {
			id := sessionID.Int64
			item.SessionID = &id
		}
		item.IPAddress = ip.String
		item.UserAgent = ua.String
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Count(ctx context.Context, f Filter) (int64, error) {
	cond, args := where(f)
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`+cond, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) IDs(ctx context.Context, f Filter) ([]int64, error) {
	cond, args := where(f)
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM entries`+cond+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select entry ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *PostgresRepository) DeleteMatching(ctx context.Context, f Filter) (int64, error) {
	cond, args := where(f)
	res, err := r.db.ExecContext(ctx, `DELETE FROM entries`+cond, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) DeleteByID(ctx context.Context, id int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM entries WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

// Stats calls the entry_stats aggregate. If the function is unavailable
// (older schema, restricted role) it falls back to plain counts.
func (r *PostgresRepository) Stats(ctx context.Context, f Filter, dayStart, now time.Time) (models.Stats, error) {
	var s models.Stats
	err := r.db.QueryRowContext(ctx,
		`SELECT total, today, week, month FROM entry_stats($1, $2, $3)`,
		nullInt(f.SessionID), dayStart, now,
	).Scan(&s.Total, &s.Today, &s.Week, &s.Month)
	if err == nil {
		return s, nil
	}
	return r.basicStats(ctx, f, dayStart, now)
}

func (r *PostgresRepository) basicStats(ctx context.Context, f Filter, dayStart, now time.Time) (models.Stats, error) {
	var s models.Stats
	week := now.AddDate(0, 0, -7)
	month := now.AddDate(0, -1, 0)

	buckets := []struct {
		since *time.Time
		dst   *int64
	}{
		{nil, &s.Total},
		{&dayStart, &s.Today},
		{&week, &s.Week},
		{&month, &s.Month},
	}
	for _, b := range buckets {
		n, err := r.Count(ctx, Filter{SessionID: f.SessionID, Since: b.since})
		if err != nil {
			return models.Stats{}, err
		}
		*b.dst = n
	}
	return s, nil
}

func (r *PostgresRepository) PhoneExists(ctx context.Context, phone string) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT check_duplicate_phone($1)`, phone).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check phone: %w", err)
	}
	return exists, nil
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
