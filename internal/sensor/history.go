package sensor

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// EventHistoryRepository stores and retrieves routed capture events.
//
// Implementations must be thread-safe and use UTC timestamps.
type EventHistoryRepository interface {
	// RecordEvent stores e. A zero CreatedAt means now.
	RecordEvent(ctx context.Context, e EventEntry) error

	// GetHistory returns the sensor's most recent events, newest first.
	// limit defaults to 50 and is clamped to 200.
	GetHistory(ctx context.Context, serial string, limit int) ([]EventEntry, error)

	// PruneHistory deletes events older than now-olderThan and returns
	// the number removed.
	PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error)
}

// SQLiteEventHistoryRepository implements EventHistoryRepository using SQLite.
type SQLiteEventHistoryRepository struct {
	db *sql.DB
}

// NewSQLiteEventHistoryRepository creates a new SQLite event history repository.
func NewSQLiteEventHistoryRepository(db *sql.DB) *SQLiteEventHistoryRepository {
	return &SQLiteEventHistoryRepository{db: db}
}

// RecordEvent inserts an event row.
func (r *SQLiteEventHistoryRepository) RecordEvent(ctx context.Context, e EventEntry) error {
	if e.Serial == "" {
		return fmt.Errorf("%w: serial is required", ErrInvalidSerial)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO sensor_events (serial, event, state, terminal, created_at) VALUES (?, ?, ?, ?, ?)",
		e.Serial, e.Event, e.State, e.Terminal, formatTime(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting sensor event: %w", err)
	}
	return nil
}

// GetHistory returns recent events for a sensor, ordered newest first.
func (r *SQLiteEventHistoryRepository) GetHistory(ctx context.Context, serial string, limit int) ([]EventEntry, error) {
	if serial == "" {
		return nil, fmt.Errorf("%w: serial is required", ErrInvalidSerial)
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, serial, event, state, terminal, created_at
		 FROM sensor_events
		 WHERE serial = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		serial, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying sensor events: %w", err)
	}
	defer rows.Close()

	entries := make([]EventEntry, 0, limit)
	for rows.Next() {
		var e EventEntry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Serial, &e.Event, &e.State, &e.Terminal, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning sensor event: %w", err)
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sensor events: %w", err)
	}
	return entries, nil
}

// PruneHistory deletes events older than the given duration.
func (r *SQLiteEventHistoryRepository) PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := formatTime(time.Now().Add(-olderThan))
	result, err := r.db.ExecContext(ctx, "DELETE FROM sensor_events WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting sensor events: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}
