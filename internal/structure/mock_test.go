package structure

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/depthcore/internal/capture"
)

// mockSession implements capture.Session for testing.
type mockSession struct {
	id capture.SessionID

	mu       sync.Mutex
	info     capture.SensorInfo
	settings capture.Settings

	// serialOnMonitor is reported by SensorInfo once StartMonitoring is called.
	serialOnMonitor string
	delegate        capture.Delegate

	monitorCalls int
	startCalls   int
	stopCalls    int
	rebootCalls  int

	rejectMonitor bool
	rejectStart   bool

	// active is true between an accepted StartStreaming and the next StopStreaming.
	active bool

	irExposure, irGain   float32
	visExposure, visGain float32
}

func newMockSession(id capture.SessionID, serial string) *mockSession {
	if serial == "" {
		serial = capture.UnknownSerial
	}
	return &mockSession{id: id, info: capture.SensorInfo{SerialNumber: serial}}
}

func (s *mockSession) ID() capture.SessionID { return s.id }

func (s *mockSession) StartMonitoring(settings capture.Settings) bool {
	s.mu.Lock()
	s.monitorCalls++
	if s.rejectMonitor {
		s.mu.Unlock()
		return false
	}
	s.settings = settings
	if s.serialOnMonitor != "" {
		s.info.SerialNumber = s.serialOnMonitor
	}
	d := s.delegate
	emit := s.serialOnMonitor != ""
	s.mu.Unlock()

	// Discovery sessions announce themselves like the vendor layer does.
	if d != nil && emit {
		go d.OnEvent(s, capture.EventBooting)
	}
	return true
}

func (s *mockSession) StartStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startCalls++
	if s.rejectStart {
		return false
	}
	s.active = true
	return true
}

func (s *mockSession) StopStreaming() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopCalls++
	s.active = false
}

func (s *mockSession) RebootCaptureSource() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rebootCalls++
	return true
}

func (s *mockSession) SensorInfo() capture.SensorInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

func (s *mockSession) Settings() capture.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

func (s *mockSession) SetInfraredCamerasExposureAndGain(exposure, gain float32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.irExposure, s.irGain = exposure, gain
	return true
}

func (s *mockSession) InfraredCamerasExposureAndGain() (float32, float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.irExposure, s.irGain
}

func (s *mockSession) SetVisibleCameraExposureAndGain(exposure, gain float32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visExposure, s.visGain = exposure, gain
	return true
}

func (s *mockSession) VisibleCameraExposureAndGain() (float32, float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visExposure, s.visGain
}

func (s *mockSession) isActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *mockSession) counts() (monitor, start, stop int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.monitorCalls, s.startCalls, s.stopCalls
}

// mockLayer implements capture.Layer for testing.
type mockLayer struct {
	mu       sync.Mutex
	sessions []*mockSession
	delegate capture.Delegate
	released bool
}

func (l *mockLayer) Initialize(d capture.Delegate) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.delegate = d
	for _, s := range l.sessions {
		s.mu.Lock()
		s.delegate = d
		s.mu.Unlock()
	}
	return nil
}

func (l *mockLayer) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released = true
}

func (l *mockLayer) Session(index int) (capture.Session, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if index < 0 || index >= len(l.sessions) {
		return nil, false
	}
	return l.sessions[index], true
}

func (l *mockLayer) SessionBySerial(serial string) (capture.Session, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, s := range l.sessions {
		if s.SensorInfo().SerialNumber == serial {
			return s, true
		}
	}
	return nil, false
}

func (l *mockLayer) NumSessions() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sessions)
}

// recordingLogger captures log lines for assertions.
type recordingLogger struct {
	mu      sync.Mutex
	entries []string
}

func (l *recordingLogger) record(level, msg string, kv ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, fmt.Sprintf("%s %s %v", level, msg, kv))
}

func (l *recordingLogger) Debug(msg string, kv ...any) { l.record("DEBUG", msg, kv...) }
func (l *recordingLogger) Info(msg string, kv ...any)  { l.record("INFO", msg, kv...) }
func (l *recordingLogger) Warn(msg string, kv ...any)  { l.record("WARN", msg, kv...) }
func (l *recordingLogger) Error(msg string, kv ...any) { l.record("ERROR", msg, kv...) }

// count returns the number of entries at level whose message contains substr.
func (l *recordingLogger) count(level, substr string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if strings.HasPrefix(e, level+" ") && strings.Contains(e, substr) {
			n++
		}
	}
	return n
}

// newTestManager builds an initialised manager over sessions that already
// know their serials.
func newTestManager(t *testing.T, serials ...string) (*Manager, *mockLayer, *recordingLogger) {
	t.Helper()
	layer := &mockLayer{}
	for i, s := range serials {
		layer.sessions = append(layer.sessions, newMockSession(capture.SessionID(i+1), s))
	}
	return initTestManager(t, layer)
}

func initTestManager(t *testing.T, layer *mockLayer, opts ...Option) (*Manager, *mockLayer, *recordingLogger) {
	t.Helper()
	log := &recordingLogger{}
	opts = append([]Option{WithLogger(log), WithDiscoveryTimeout(time.Second)}, opts...)
	m := NewManager(layer, opts...)
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	t.Cleanup(m.Close)
	return m, layer, log
}

// initSimManager builds an initialised manager over a sim layer.
func initSimManager(t *testing.T, layer capture.Layer) (*Manager, *recordingLogger) {
	t.Helper()
	log := &recordingLogger{}
	m := NewManager(layer, WithLogger(log), WithDiscoveryTimeout(2*time.Second))
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	t.Cleanup(m.Close)
	return m, log
}

func flush(t *testing.T, m *Manager) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.Router().Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
}

func testSettings(serial string) capture.Settings {
	s := capture.DefaultSettings()
	s.Serial = serial
	return s
}

// configuredDevice returns a device attached to the first session of m.
func configuredDevice(t *testing.T, m *Manager, serial string) *Device {
	t.Helper()
	d := NewDevice(m)
	if !d.Configure(context.Background(), testSettings(serial)) {
		t.Fatalf("Configure(%s) = false", serial)
	}
	return d
}

func depthSample(w, h int, fill float32) capture.Sample {
	px := make([]float32, w*h)
	for i := range px {
		px[i] = fill
	}
	return capture.Sample{
		Type: capture.SampleDepthFrame,
		Depth: capture.DepthFrame{
			Width: w, Height: h, Millimeters: px, Valid: true,
			Intrinsics: capture.Intrinsics{Width: w, Height: h, Fx: 1, Fy: 1},
		},
	}
}
