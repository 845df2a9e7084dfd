// Package sim provides a simulated capture layer.
//
// A sim Layer enumerates one session per configured serial. Sessions behave
// like the vendor sessions as seen by the adapter core: they boot
// asynchronously, identify themselves on Connected, stream synthetic frames
// from a goroutine of their own and apply exposure changes after a settle
// delay. It is used for development without hardware and by tests.
package sim

import (
	"sync"
	"time"

	"github.com/nerrad567/depthcore/internal/capture"
)

// Default timings.
const (
	DefaultBootDelay   = 250 * time.Millisecond
	DefaultSettleDelay = 500 * time.Millisecond
)

// Config holds the simulated sensors.
type Config struct {
	// Serials lists one serial per simulated sensor.
	Serials []string

	// BootDelay is the time between Booting and Connected.
	BootDelay time.Duration

	// SettleDelay is the time before an exposure or gain change takes effect.
	SettleDelay time.Duration
}

// Layer is a simulated capture.Layer.
//
// Thread Safety: all methods are safe for concurrent use.
type Layer struct {
	cfg Config

	mu          sync.RWMutex
	delegate    capture.Delegate
	sessions    []*Session
	initialised bool
	done        chan struct{}
}

// Ensure Layer implements capture.Layer.
var _ capture.Layer = (*Layer)(nil)

// New creates a Layer. Zero timings take their defaults; negative timings
// mean no delay.
func New(cfg Config) *Layer {
	if cfg.BootDelay == 0 {
		cfg.BootDelay = DefaultBootDelay
	}
	if cfg.SettleDelay == 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	cfg.BootDelay = max(cfg.BootDelay, 0)
	cfg.SettleDelay = max(cfg.SettleDelay, 0)
	return &Layer{cfg: cfg, done: make(chan struct{})}
}

// Initialize enumerates one session per configured serial. Sessions stay
// unidentified until StartMonitoring boots them.
func (l *Layer) Initialize(d capture.Delegate) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.initialised {
		return capture.ErrAlreadyInitialised
	}
	l.initialised = true
	l.delegate = d
	for i, serial := range l.cfg.Serials {
		l.sessions = append(l.sessions, newSession(l, capture.SessionID(i+1), serial))
	}
	return nil
}

// Release stops every session. Callbacks are not delivered afterwards.
func (l *Layer) Release() {
	l.mu.Lock()
	select {
	case <-l.done:
		l.mu.Unlock()
		return
	default:
		close(l.done)
	}
	sessions := l.sessions
	l.mu.Unlock()

	for _, s := range sessions {
		s.StopStreaming()
	}
}

// Session returns the session at index.
func (l *Layer) Session(index int) (capture.Session, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index < 0 || index >= len(l.sessions) {
		return nil, false
	}
	return l.sessions[index], true
}

// SessionBySerial returns the identified session reporting serial.
func (l *Layer) SessionBySerial(serial string) (capture.Session, bool) {
	if !capture.IsKnownSerial(serial) {
		return nil, false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, s := range l.sessions {
		if s.SensorInfo().SerialNumber == serial {
			return s, true
		}
	}
	return nil, false
}

// NumSessions returns the number of sessions.
func (l *Layer) NumSessions() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.sessions)
}

// Sim returns the concrete session at index, for tests that inject callbacks.
func (l *Layer) Sim(index int) (*Session, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index < 0 || index >= len(l.sessions) {
		return nil, false
	}
	return l.sessions[index], true
}

func (l *Layer) released() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

func (l *Layer) emitEvent(s *Session, event capture.EventID) {
	l.mu.RLock()
	d := l.delegate
	l.mu.RUnlock()
	if d == nil || l.released() {
		return
	}
	d.OnEvent(s, event)
}

func (l *Layer) emitSample(s *Session, sample capture.Sample) {
	l.mu.RLock()
	d := l.delegate
	l.mu.RUnlock()
	if d == nil || l.released() {
		return
	}
	d.OnSample(s, sample)
}

// sleep waits for d or until the layer is released. It reports whether
// the full delay elapsed.
func (l *Layer) sleep(d time.Duration) bool {
	if d <= 0 {
		return !l.released()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-l.done:
		return false
	}
}
