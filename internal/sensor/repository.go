package sensor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/depthcore/internal/capture"
)

// Repository defines sensor persistence operations.
type Repository interface {
	// GetBySerial returns ErrSensorNotFound if the sensor does not exist.
	GetBySerial(ctx context.Context, serial string) (*Sensor, error)

	// List returns every sensor ordered by serial.
	List(ctx context.Context) ([]Sensor, error)

	// Upsert inserts the sensor or updates its name and firmware. Empty
	// fields on s leave the stored values untouched.
	Upsert(ctx context.Context, s *Sensor) error

	// UpdateState records the latest lifecycle state and event.
	// Returns ErrSensorNotFound if the sensor does not exist.
	UpdateState(ctx context.Context, serial, state, event string, seen time.Time) error

	// Delete removes the sensor and its event history.
	// Returns ErrSensorNotFound if the sensor does not exist.
	Delete(ctx context.Context, serial string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const sensorColumns = `serial, name, driver_firmware, sensor_firmware, state, last_event,
	last_seen, created_at, updated_at`

// GetBySerial retrieves a sensor by serial.
func (r *SQLiteRepository) GetBySerial(ctx context.Context, serial string) (*Sensor, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+sensorColumns+" FROM sensors WHERE serial = ?", serial)
	s, err := scanSensor(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSensorNotFound
		}
		return nil, fmt.Errorf("querying sensor by serial: %w", err)
	}
	return s, nil
}

// List retrieves all sensors.
func (r *SQLiteRepository) List(ctx context.Context) ([]Sensor, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+sensorColumns+" FROM sensors ORDER BY serial")
	if err != nil {
		return nil, fmt.Errorf("querying sensors: %w", err)
	}
	defer rows.Close()

	var sensors []Sensor
	for rows.Next() {
		s, err := scanSensor(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning sensor: %w", err)
		}
		sensors = append(sensors, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sensors: %w", err)
	}
	return sensors, nil
}

// Upsert inserts or updates a sensor. CreatedAt and UpdatedAt are set on s.
func (r *SQLiteRepository) Upsert(ctx context.Context, s *Sensor) error {
	if !capture.IsKnownSerial(s.Serial) {
		return fmt.Errorf("%w: %q", ErrInvalidSerial, s.Serial)
	}

	now := time.Now().UTC()
	state := s.State
	if state == "" {
		state = "unconfigured"
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sensors (serial, name, driver_firmware, sensor_firmware, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(serial) DO UPDATE SET
			name            = COALESCE(NULLIF(excluded.name, ''), sensors.name),
			driver_firmware = COALESCE(NULLIF(excluded.driver_firmware, ''), sensors.driver_firmware),
			sensor_firmware = COALESCE(NULLIF(excluded.sensor_firmware, ''), sensors.sensor_firmware),
			updated_at      = excluded.updated_at`,
		s.Serial, s.Name, s.DriverFirmware, s.SensorFirmware, state,
		formatTime(now), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("upserting sensor: %w", err)
	}

	s.UpdatedAt = now
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	return nil
}

// UpdateState records the sensor's latest state.
func (r *SQLiteRepository) UpdateState(ctx context.Context, serial, state, event string, seen time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE sensors SET state = ?, last_event = ?, last_seen = ?, updated_at = ? WHERE serial = ?",
		state, event, formatTime(seen), formatTime(time.Now()), serial,
	)
	if err != nil {
		return fmt.Errorf("updating sensor state: %w", err)
	}
	return requireRow(result)
}

// Delete removes a sensor and its history in one transaction.
func (r *SQLiteRepository) Delete(ctx context.Context, serial string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM sensor_events WHERE serial = ?", serial); err != nil {
		return fmt.Errorf("deleting sensor history: %w", err)
	}
	result, err := tx.ExecContext(ctx, "DELETE FROM sensors WHERE serial = ?", serial)
	if err != nil {
		return fmt.Errorf("deleting sensor: %w", err)
	}
	if err := requireRow(result); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}
	return nil
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrSensorNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSensor(row scanner) (*Sensor, error) {
	var s Sensor
	var lastSeen sql.NullString
	var createdAt, updatedAt string

	if err := row.Scan(&s.Serial, &s.Name, &s.DriverFirmware, &s.SensorFirmware, &s.State,
		&s.LastEvent, &lastSeen, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if lastSeen.Valid {
		t, err := parseTime(lastSeen.String)
		if err != nil {
			return nil, err
		}
		s.LastSeen = &t
	}
	return &s, nil
}
