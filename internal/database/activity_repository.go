package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ActivityEntry is one audit record of work the sync performed.
type ActivityEntry struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	ShortOverview string    `json:"shortOverview"`
	Overview      string    `json:"overview"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ActivityRepository persists audit records.
type ActivityRepository struct {
	db *sql.DB
}

func NewActivityRepository(db *sql.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Insert stores one record. A zero CreatedAt is stamped with the current
// time.
func (r *ActivityRepository) Insert(ctx context.Context, entry ActivityEntry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `INSERT INTO activity (title, short_overview, overview, created_at) VALUES (?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, entry.Title, entry.ShortOverview, entry.Overview, createdAt); err != nil {
		return fmt.Errorf("insert activity entry: %w", err)
	}
	return nil
}

// List returns records newest-first.
func (r *ActivityRepository) List(ctx context.Context, limit, offset int) ([]ActivityEntry, error) {
	query := `SELECT id, title, short_overview, overview, created_at
		FROM activity ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list activity entries: %w", err)
	}
	defer rows.Close()

	var result []ActivityEntry
	for rows.Next() {
		var entry ActivityEntry
		if err := rows.Scan(&entry.ID, &entry.Title, &entry.ShortOverview, &entry.Overview, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity entry: %w", err)
		}
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Count returns the total number of records.
func (r *ActivityRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activity`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count activity entries: %w", err)
	}
	return count, nil
}

// Prune deletes records older than the cutoff and reports how many were
// removed.
func (r *ActivityRepository) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM activity WHERE created_at < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("prune activity entries: %w", err)
	}
	return res.RowsAffected()
}
