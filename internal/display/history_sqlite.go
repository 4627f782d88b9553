package display

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-displays/internal/monitor"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// historyTimeLayout is fixed-width so that text ordering matches time order.
const historyTimeLayout = "2006-01-02T15:04:05.000000Z"

// SQLiteHistoryRepository implements HistoryRepository using SQLite.
//
// Identities are stored in their canonical upper-case key form so lookups
// are case-insensitive.
type SQLiteHistoryRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteHistoryRepository creates a repository over an open connection
// whose schema includes the brightness_history table.
func NewSQLiteHistoryRepository(db *sql.DB) *SQLiteHistoryRepository {
	return &SQLiteHistoryRepository{db: db, now: time.Now}
}

// Record inserts a new history entry.
func (r *SQLiteHistoryRepository) Record(ctx context.Context, identity monitor.Identity, kind Kind, value int, source string) error {
	if identity == "" {
		return errors.New("display: identity is required")
	}
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	if value < 0 || value > 100 {
		return fmt.Errorf("display: value %d out of range", value)
	}
	if source == "" {
		source = SourceRefresh
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO brightness_history (identity, kind, value, source, recorded_at) VALUES (?, ?, ?, ?, ?)",
		identity.Key(),
		string(kind),
		value,
		source,
		r.now().UTC().Format(historyTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting brightness history: %w", err)
	}
	return nil
}

// History returns recent entries for a monitor, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - identity: Monitor identity (case-insensitive)
//   - limit: Maximum entries to return (default 50, max 200)
func (r *SQLiteHistoryRepository) History(ctx context.Context, identity monitor.Identity, limit int) ([]HistoryEntry, error) {
	if identity == "" {
		return nil, errors.New("display: identity is required")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, identity, kind, value, source, recorded_at
		 FROM brightness_history
		 WHERE identity = ?
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT ?`,
		identity.Key(),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying brightness history: %w", err)
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0, limit)
	for rows.Next() {
		var (
			e          HistoryEntry
			id, kind   string
			recordedAt string
		)
		if err := rows.Scan(&e.ID, &id, &kind, &e.Value, &e.Source, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning brightness history: %w", err)
		}
		e.Identity = monitor.Identity(id)
		e.Kind = Kind(kind)

		ts, err := time.Parse(historyTimeLayout, recordedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing recorded_at: %w", err)
		}
		e.RecordedAt = ts

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating brightness history: %w", err)
	}

	return entries, nil
}

// Prune deletes entries older than the given duration and returns the
// number of rows removed.
func (r *SQLiteHistoryRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("display: olderThan must be positive")
	}

	cutoff := r.now().UTC().Add(-olderThan).Format(historyTimeLayout)
	result, err := r.db.ExecContext(ctx, "DELETE FROM brightness_history WHERE recorded_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting brightness history: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}
