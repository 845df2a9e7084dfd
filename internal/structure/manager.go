package structure

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/nerrad567/depthcore/internal/capture"
)

// DefaultDiscoveryTimeout bounds how long ListDetectedSerials waits for
// sensors to identify themselves.
const DefaultDiscoveryTimeout = 5 * time.Second

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used by the manager, its router and its devices.
func WithLogger(logger Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithQueueSize sets the router inbox capacity.
func WithQueueSize(n int) Option {
	return func(m *Manager) { m.queueSize = n }
}

// WithDiscoveryTimeout sets the upper bound of the discovery wait.
func WithDiscoveryTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.discoveryTimeout = d
		}
	}
}

// WithSingleSession restricts routing to the layer's first session.
// Callbacks from any other session are logged and dropped.
func WithSingleSession() Option {
	return func(m *Manager) { m.single = true }
}

// Manager owns a capture layer and maps sensor serials to Devices.
//
// Sessions belong to the layer and live from Initialize to Close. Devices
// belong to the application; Attach and Release only rewire the
// serial → Device mapping.
//
// Thread Safety: all methods are safe for concurrent use.
type Manager struct {
	layer            capture.Layer
	router           *Router
	logger           Logger
	queueSize        int
	discoveryTimeout time.Duration
	single           bool

	mu          sync.Mutex
	initialised bool
	closed      bool
	order       []string                           // serials in discovery order
	known       map[string]capture.Session         // serial → session
	identified  map[capture.SessionID]chan struct{} // closed once the session's serial is known
	attached    map[*Device]string                 // device → last-known serial
}

// NewManager creates a Manager over layer. Initialize must be called
// before use.
func NewManager(layer capture.Layer, opts ...Option) *Manager {
	m := &Manager{
		layer:            layer,
		logger:           noopLogger{},
		queueSize:        DefaultQueueSize,
		discoveryTimeout: DefaultDiscoveryTimeout,
		known:            make(map[string]capture.Session),
		identified:       make(map[capture.SessionID]chan struct{}),
		attached:         make(map[*Device]string),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.router = NewRouter(m.queueSize)
	m.router.SetLogger(m.logger)
	m.router.setIdentifyHook(m.identify)
	return m
}

func (m *Manager) log() Logger { return m.logger }

// Router returns the manager's router.
func (m *Manager) Router() *Router { return m.router }

// Initialize starts the router and the capture layer. Discovery continues
// asynchronously; ListDetectedSerials waits for it.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.initialised {
		m.mu.Unlock()
		return ErrAlreadyInitialised
	}
	m.initialised = true
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	m.router.Start()
	if err := m.layer.Initialize(m.router); err != nil {
		m.router.Stop()
		m.mu.Lock()
		m.initialised = false
		m.mu.Unlock()
		return fmt.Errorf("initialising capture layer: %w", err)
	}

	n := m.layer.NumSessions()
	for i := 0; i < n; i++ {
		sess, ok := m.layer.Session(i)
		if !ok {
			continue
		}
		m.mu.Lock()
		if _, exists := m.identified[sess.ID()]; !exists {
			m.identified[sess.ID()] = make(chan struct{})
		}
		m.mu.Unlock()

		if m.single && i == 0 {
			m.router.restrictTo(sess.ID())
		}

		if info := sess.SensorInfo(); info.Identified() {
			m.router.learn(sess.ID(), info.SerialNumber)
			m.identify(info.SerialNumber, sess)
		}
	}

	m.log().Info("capture layer initialised", "sessions", n)
	return nil
}

// identify records a newly identified session and binds any Device that
// was attached to its serial before discovery.
func (m *Manager) identify(serial string, sess capture.Session) {
	var pending *Device

	m.mu.Lock()
	if _, seen := m.known[serial]; !seen {
		m.order = append(m.order, serial)
	}
	m.known[serial] = sess

	ch, ok := m.identified[sess.ID()]
	if !ok {
		ch = make(chan struct{})
		m.identified[sess.ID()] = ch
	}
	select {
	case <-ch:
	default:
		close(ch)
	}

	for dev, s := range m.attached {
		if s == serial && dev.currentSession() == nil {
			pending = dev
			break
		}
	}
	if pending != nil {
		pending.bind(sess)
	}
	m.mu.Unlock()

	if pending != nil && pending.IsConfigured() {
		if !sess.StartMonitoring(pending.Settings()) {
			pending.log().Error("capture layer rejected settings", "serial", serial)
			return
		}
		m.log().Info("sensor discovered, monitoring started", "serial", serial)
	}
}

// ListDetectedSerials starts monitoring every session that has not yet
// identified itself, waits until they do or the discovery timeout expires,
// and returns every known serial in discovery order.
func (m *Manager) ListDetectedSerials(ctx context.Context) []string {
	ctx, cancel := context.WithTimeout(ctx, m.discoveryTimeout)
	defer cancel()

	var waits []chan struct{}
	for i, n := 0, m.layer.NumSessions(); i < n; i++ {
		sess, ok := m.layer.Session(i)
		if !ok {
			continue
		}

		m.mu.Lock()
		ch, ok := m.identified[sess.ID()]
		if !ok {
			ch = make(chan struct{})
			m.identified[sess.ID()] = ch
		}
		m.mu.Unlock()

		select {
		case <-ch:
			continue
		default:
		}

		if info := sess.SensorInfo(); info.Identified() {
			m.router.learn(sess.ID(), info.SerialNumber)
			m.identify(info.SerialNumber, sess)
			continue
		}

		if !sess.StartMonitoring(capture.MonitorSettings()) {
			m.log().Warn("capture layer rejected discovery monitoring", "session", sess.ID())
			continue
		}
		waits = append(waits, ch)
	}

	for _, ch := range waits {
		select {
		case <-ch:
		case <-ctx.Done():
			m.log().Warn("sensor discovery timed out", "pending", len(waits))
		}
		if ctx.Err() != nil {
			break
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.order))
	for _, serial := range m.order {
		if capture.IsKnownSerial(serial) {
			out = append(out, serial)
		}
	}
	return out
}

// discover reports whether a session with serial exists, running discovery
// when no session has reported it yet.
func (m *Manager) discover(ctx context.Context, serial string) bool {
	m.mu.Lock()
	_, ok := m.known[serial]
	m.mu.Unlock()
	if ok {
		return true
	}
	if _, ok := m.layer.SessionBySerial(serial); ok {
		return true
	}
	return slices.Contains(m.ListDetectedSerials(ctx), serial)
}

// firstAvailableSerial returns the first detected serial with no device attached.
func (m *Manager) firstAvailableSerial(ctx context.Context) (string, error) {
	for _, serial := range m.ListDetectedSerials(ctx) {
		if _, taken := m.router.DeviceFor(serial); !taken {
			return serial, nil
		}
	}
	return "", ErrNoSensor
}

// Attach binds d to the sensor with serial. Any prior attachment of d is
// released first. If the sensor is already known its stream is stopped and
// its session is bound immediately; otherwise the session is bound when the
// sensor is discovered.
func (m *Manager) Attach(serial string, d *Device) error {
	_, err := m.attach(serial, d, d.Settings())
	return err
}

func (m *Manager) attach(serial string, d *Device, settings capture.Settings) (capture.Session, error) {
	if !capture.IsKnownSerial(serial) {
		return nil, fmt.Errorf("%w: invalid serial %q", ErrNoSensor, serial)
	}

	m.mu.Lock()
	if !m.initialised {
		m.mu.Unlock()
		return nil, ErrNotInitialised
	}
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	stale := m.releaseLocked(d)
	if prev, ok := m.router.DeviceFor(serial); ok && prev != d {
		// One device per sensor: the previous holder is evicted.
		stale = append(stale, m.releaseLocked(prev)...)
	}

	settings.Serial = serial
	d.prepare(serial, settings)
	m.attached[d] = serial
	m.router.attach(serial, d)

	sess, ok := m.known[serial]
	if !ok {
		sess, ok = m.layer.SessionBySerial(serial)
	}
	if ok {
		d.bind(sess)
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.StopStreaming()
	}

	if ok {
		// Avoid two consumers on one stream.
		sess.StopStreaming()
		m.log().Info("device attached to sensor", "serial", serial)
		return sess, nil
	}

	m.log().Info("device attached, waiting for sensor discovery", "serial", serial)
	return nil, nil
}

// Release removes every mapping to d and stops streaming on every session
// with d's last-known serial.
func (m *Manager) Release(d *Device) {
	m.mu.Lock()
	stale := m.releaseLocked(d)
	m.mu.Unlock()

	for _, s := range stale {
		s.StopStreaming()
	}
}

// releaseLocked detaches d and returns the sessions to stop. m.mu must be held.
func (m *Manager) releaseLocked(d *Device) []capture.Session {
	serial, ok := m.attached[d]
	if !ok {
		return nil
	}
	delete(m.attached, d)

	serials := m.router.detach(d)
	if !slices.Contains(serials, serial) {
		serials = append(serials, serial)
	}

	bound := d.unbind()

	var stale []capture.Session
	seen := make(map[capture.SessionID]struct{})
	add := func(s capture.Session) {
		if s == nil {
			return
		}
		if _, dup := seen[s.ID()]; dup {
			return
		}
		seen[s.ID()] = struct{}{}
		stale = append(stale, s)
	}

	add(bound)
	for _, s := range serials {
		add(m.known[s])
		if sess, ok := m.layer.SessionBySerial(s); ok {
			add(sess)
		}
	}

	m.log().Info("device released", "serial", serial, "sessions_stopped", len(stale))
	return stale
}

// DeviceByIndex returns the Device attached to the layer session at index.
func (m *Manager) DeviceByIndex(index int) (*Device, bool) {
	sess, ok := m.layer.Session(index)
	if !ok {
		return nil, false
	}
	serial, ok := m.router.SerialForSession(sess.ID())
	if !ok {
		serial = sess.SensorInfo().SerialNumber
	}
	return m.router.DeviceFor(serial)
}

// DeviceBySerial returns the Device attached to serial.
func (m *Manager) DeviceBySerial(serial string) (*Device, bool) {
	return m.router.DeviceFor(serial)
}

// NumDevices returns the number of sessions enumerated by the layer.
func (m *Manager) NumDevices() int {
	return m.layer.NumSessions()
}

// Devices returns every attached Device ordered by serial.
func (m *Manager) Devices() []*Device {
	m.mu.Lock()
	type entry struct {
		serial string
		dev    *Device
	}
	entries := make([]entry, 0, len(m.attached))
	for d, s := range m.attached {
		entries = append(entries, entry{s, d})
	}
	m.mu.Unlock()

	slices.SortFunc(entries, func(a, b entry) int {
		switch {
		case a.serial < b.serial:
			return -1
		case a.serial > b.serial:
			return 1
		default:
			return 0
		}
	})

	out := make([]*Device, len(entries))
	for i, e := range entries {
		out[i] = e.dev
	}
	return out
}

// Close releases every Device, tears down the layer and stops the router.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	wasInit := m.initialised

	var stale []capture.Session
	for d := range m.attached {
		stale = append(stale, m.releaseLocked(d)...)
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.StopStreaming()
	}

	if wasInit {
		m.layer.Release()
	}
	m.router.Stop()
	m.log().Info("capture layer released")
}

// ListDevices initialises a temporary manager over layer, lists detected
// serials and tears it down. When logger is non-nil every serial is logged.
func ListDevices(ctx context.Context, layer capture.Layer, logger Logger, opts ...Option) ([]string, error) {
	if logger != nil {
		opts = append(opts, WithLogger(logger))
	}
	m := NewManager(layer, opts...)
	if err := m.Initialize(ctx); err != nil {
		return nil, err
	}
	defer m.Close()

	serials := m.ListDetectedSerials(ctx)
	if logger != nil {
		if len(serials) == 0 {
			logger.Warn("no sensors detected")
		}
		for i, s := range serials {
			logger.Info("detected sensor", "index", i, "serial", s)
		}
	}
	return serials, nil
}
