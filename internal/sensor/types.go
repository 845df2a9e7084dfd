package sensor

import (
	"fmt"
	"time"

	"github.com/nerrad567/depthcore/internal/capture"
)

// StateUnattached is recorded for events from a sensor no Device owns.
const StateUnattached = "unattached"

// Sensor is one physical unit known to the installation.
type Sensor struct {
	Serial         string     `json:"serial"`
	Name           string     `json:"name"`
	DriverFirmware string     `json:"driver_firmware,omitempty"`
	SensorFirmware string     `json:"sensor_firmware,omitempty"`
	State          string     `json:"state"`
	LastEvent      string     `json:"last_event,omitempty"`
	LastSeen       *time.Time `json:"last_seen,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Clone returns a copy that shares no pointers with s.
func (s *Sensor) Clone() *Sensor {
	c := *s
	if s.LastSeen != nil {
		t := *s.LastSeen
		c.LastSeen = &t
	}
	return &c
}

// EventEntry is one recorded capture event.
type EventEntry struct {
	ID        int64     `json:"id"`
	Serial    string    `json:"serial"`
	Event     string    `json:"event"`
	State     string    `json:"state"`
	Terminal  bool      `json:"terminal"`
	CreatedAt time.Time `json:"created_at"`
}

// FormatFirmware renders a firmware version, or "" when it is not valid.
func FormatFirmware(v capture.FirmwareVersion) string {
	if !v.Valid {
		return ""
	}
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Revision)
}

// timeLayout is the fixed-width UTC layout stored in SQLite, so string
// order matches time order.
const timeLayout = "2006-01-02T15:04:05.000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime parses a timestamp stored by this package or by a column
// default.
func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("timestamp is empty")
	}
	t, err := time.Parse(timeLayout, value)
	if err == nil {
		return t, nil
	}
	if fallback, fallbackErr := time.Parse(time.RFC3339, value); fallbackErr == nil {
		return fallback.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", value, err)
}
