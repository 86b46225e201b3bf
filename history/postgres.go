package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBPool is the subset of pgxpool.Pool used by PostgresStore.
type DBPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore keeps records in run_history and recordings in run_gifs.
type PostgresStore struct {
	pool DBPool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to connString.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	return NewPostgresStoreWithPool(pool), nil
}

// NewPostgresStoreWithPool creates a store over an existing pool.
func NewPostgresStoreWithPool(pool DBPool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// InitSchema creates both tables if they do not exist.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS run_history (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			task TEXT NOT NULL,
			progress JSONB NOT NULL DEFAULT '[]',
			result TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			live_view_url TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_run_history_user ON run_history (user_id, created_at DESC);
		CREATE TABLE IF NOT EXISTS run_gifs (
			history_id TEXT PRIMARY KEY REFERENCES run_history (id) ON DELETE CASCADE,
			gif_content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);
	`
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Save inserts the record and its GIF in one transaction.
func (s *PostgresStore) Save(ctx context.Context, record *Record) (string, error) {
	if record == nil {
		return "", errors.New("record is nil")
	}
	prepare(record)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO run_history (id, user_id, task, progress, result, error, live_view_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		record.ID,
		record.UserID,
		record.Task,
		[]byte(record.Progress),
		record.Result,
		record.Error,
		record.LiveViewURL,
		record.CreatedAt,
	)
	if err != nil {
		_ = tx.Rollback(ctx)
		return "", fmt.Errorf("failed to save run history: %w", err)
	}

	if record.GIFContent != "" {
		_, err = tx.Exec(ctx, `
			INSERT INTO run_gifs (history_id, gif_content, created_at)
			VALUES ($1, $2, $3)`,
			record.ID, record.GIFContent, record.CreatedAt,
		)
		if err != nil {
			_ = tx.Rollback(ctx)
			return "", fmt.Errorf("failed to save run gif: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit run history: %w", err)
	}
	return record.ID, nil
}

const selectColumns = "id, user_id, task, progress, result, error, live_view_url, created_at"

func scanRecord(row pgx.Row, extra ...any) (*Record, error) {
	var r Record
	var progress []byte

	dest := append([]any{
		&r.ID,
		&r.UserID,
		&r.Task,
		&progress,
		&r.Result,
		&r.Error,
		&r.LiveViewURL,
		&r.CreatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	r.Progress = progress
	r.RunID = r.ID
	return &r, nil
}

// List returns a page of the user's history, newest first.
func (s *PostgresStore) List(ctx context.Context, userID string, limit, offset int) (*Page, error) {
	limit, offset = normalizePage(limit, offset)

	var total int64
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM run_history WHERE user_id = $1", userID).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count run history: %w", err)
	}

	query := fmt.Sprintf(
		"SELECT %s FROM run_history WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3",
		selectColumns)
	rows, err := s.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list run history: %w", err)
	}
	defer rows.Close()

	page := &Page{Data: []*Record{}, Total: int(total)}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run history row: %w", err)
		}
		page.Data = append(page.Data, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run history rows: %w", err)
	}
	return page, nil
}

// Get returns the record with its GIF content.
func (s *PostgresStore) Get(ctx context.Context, userID, id string) (*Record, error) {
	query := `
		SELECT h.id, h.user_id, h.task, h.progress, h.result, h.error, h.live_view_url, h.created_at,
			COALESCE(g.gif_content, '')
		FROM run_history h
		LEFT JOIN run_gifs g ON g.history_id = h.id
		WHERE h.id = $1 AND h.user_id = $2`

	var gif string
	r, err := scanRecord(s.pool.QueryRow(ctx, query, id, userID), &gif)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run history: %w", err)
	}
	r.GIFContent = gif
	return r, nil
}

// Delete removes the record; its GIF goes with it through the cascade.
func (s *PostgresStore) Delete(ctx context.Context, userID, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM run_history WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete run history: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
