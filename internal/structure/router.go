package structure

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/depthcore/internal/capture"
)

// DefaultQueueSize is the default capacity of the Router inbox.
const DefaultQueueSize = 256

type messageKind int

const (
	msgEvent messageKind = iota
	msgSample
	msgFlush
)

type message struct {
	kind    messageKind
	session capture.Session
	event   capture.EventID
	sample  capture.Sample
	flush   chan struct{}
}

// Notification describes a routed session event. Observers receive one per
// event from an identified sensor, whether or not a Device is attached.
type Notification struct {
	Serial    string            `json:"serial"`
	SessionID capture.SessionID `json:"session_id"`
	Event     capture.EventID   `json:"event"`
	State     State             `json:"state"`
	Ready     bool              `json:"ready"`
	Streaming bool              `json:"streaming"`
	Attached  bool              `json:"attached"`
	Terminal  bool              `json:"terminal"`
	Time      time.Time         `json:"timestamp"`
}

// RouterStats is a snapshot of inbox counters.
type RouterStats struct {
	Queued         int    `json:"queued"`
	Capacity       int    `json:"capacity"`
	Dispatched     uint64 `json:"dispatched"`
	DroppedSamples uint64 `json:"dropped_samples"`
	DroppedEvents  uint64 `json:"dropped_events"`
	Unrouted       uint64 `json:"unrouted"`
}

// Router receives capture callbacks and delivers them to Devices.
//
// OnEvent and OnSample never block: they hand the callback to a bounded
// inbox and return. A single dispatch goroutine drains the inbox in order,
// resolves the sensor serial and hands the callback to the Device attached
// to that serial. When the inbox is full samples are dropped and counted;
// events are dropped, counted and logged at error level.
//
// Thread Safety: all methods are safe for concurrent use.
type Router struct {
	inbox chan message

	loggerMu sync.RWMutex
	logger   Logger

	mu            sync.RWMutex
	sessionSerial map[capture.SessionID]string
	devices       map[string]*Device
	warned        map[string]struct{}
	observers     []func(Notification)
	onIdentify    func(serial string, sess capture.Session)
	boundSession  capture.SessionID
	singleSession bool

	dispatched     atomic.Uint64
	droppedSamples atomic.Uint64
	droppedEvents  atomic.Uint64
	unrouted       atomic.Uint64

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// Ensure Router implements capture.Delegate.
var _ capture.Delegate = (*Router)(nil)

// NewRouter creates a Router with an inbox of queueSize entries. Start
// must be called before callbacks are dispatched.
func NewRouter(queueSize int) *Router {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Router{
		inbox:         make(chan message, queueSize),
		logger:        noopLogger{},
		sessionSerial: make(map[capture.SessionID]string),
		devices:       make(map[string]*Device),
		warned:        make(map[string]struct{}),
		done:          make(chan struct{}),
	}
}

// SetLogger sets the logger for the router.
func (r *Router) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.loggerMu.Lock()
	r.logger = logger
	r.loggerMu.Unlock()
}

func (r *Router) log() Logger {
	r.loggerMu.RLock()
	defer r.loggerMu.RUnlock()
	return r.logger
}

// Subscribe registers an observer for routed events. Observers run on the
// dispatch goroutine and must not block.
func (r *Router) Subscribe(fn func(Notification)) {
	r.mu.Lock()
	r.observers = append(r.observers, fn)
	r.mu.Unlock()
}

// Start launches the dispatch goroutine. It is safe to call more than once.
func (r *Router) Start() {
	r.startOnce.Do(func() {
		r.wg.Add(1)
		go r.dispatchLoop()
	})
}

// Stop terminates the dispatch goroutine. Queued callbacks are discarded.
func (r *Router) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
	})
	r.wg.Wait()
}

// OnEvent implements capture.Delegate.
func (r *Router) OnEvent(s capture.Session, event capture.EventID) {
	if !r.enqueue(message{kind: msgEvent, session: s, event: event}) {
		r.droppedEvents.Add(1)
		r.log().Error("session event dropped, dispatch queue full",
			"session", s.ID(), "event", event)
	}
}

// OnSample implements capture.Delegate.
func (r *Router) OnSample(s capture.Session, sample capture.Sample) {
	if !r.enqueue(message{kind: msgSample, session: s, sample: sample}) {
		r.droppedSamples.Add(1)
	}
}

func (r *Router) enqueue(m message) bool {
	select {
	case <-r.done:
		return true
	default:
	}

	select {
	case r.inbox <- m:
		return true
	default:
		return false
	}
}

// Flush returns once every callback enqueued before the call has been
// dispatched.
func (r *Router) Flush(ctx context.Context) error {
	ch := make(chan struct{})
	select {
	case r.inbox <- message{kind: msgFlush, flush: ch}:
	case <-r.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-ch:
		return nil
	case <-r.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of inbox counters.
func (r *Router) Stats() RouterStats {
	return RouterStats{
		Queued:         len(r.inbox),
		Capacity:       cap(r.inbox),
		Dispatched:     r.dispatched.Load(),
		DroppedSamples: r.droppedSamples.Load(),
		DroppedEvents:  r.droppedEvents.Load(),
		Unrouted:       r.unrouted.Load(),
	}
}

// SerialForSession returns the serial learned for a session.
func (r *Router) SerialForSession(id capture.SessionID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	serial, ok := r.sessionSerial[id]
	return serial, ok
}

// DeviceFor returns the Device attached to serial.
func (r *Router) DeviceFor(serial string) (*Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[serial]
	return d, ok
}

func (r *Router) setIdentifyHook(fn func(serial string, sess capture.Session)) {
	r.mu.Lock()
	r.onIdentify = fn
	r.mu.Unlock()
}

// restrictTo limits routing to one session. Callbacks from any other
// session are dropped.
func (r *Router) restrictTo(id capture.SessionID) {
	r.mu.Lock()
	r.boundSession = id
	r.singleSession = true
	r.mu.Unlock()
}

// learn records a session's serial without waiting for its first callback.
func (r *Router) learn(id capture.SessionID, serial string) {
	r.mu.Lock()
	r.sessionSerial[id] = serial
	r.mu.Unlock()
}

func (r *Router) attach(serial string, d *Device) {
	r.mu.Lock()
	r.devices[serial] = d
	delete(r.warned, serial)
	r.mu.Unlock()
}

// detach removes every mapping to d and returns the serials it was attached to.
func (r *Router) detach(d *Device) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var serials []string
	for serial, dev := range r.devices {
		if dev == d {
			delete(r.devices, serial)
			serials = append(serials, serial)
		}
	}
	return serials
}

func (r *Router) dispatchLoop() {
	defer r.wg.Done()
	for {
		select {
		case <-r.done:
			return
		case m := <-r.inbox:
			r.dispatch(m)
		}
	}
}

func (r *Router) dispatch(m message) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log().Error("panic recovered in capture dispatch", "error", fmt.Sprint(rec))
		}
	}()

	if m.kind == msgFlush {
		close(m.flush)
		return
	}
	r.dispatched.Add(1)

	id := m.session.ID()

	r.mu.RLock()
	single, bound := r.singleSession, r.boundSession
	r.mu.RUnlock()
	if single && id != bound {
		r.unrouted.Add(1)
		r.warnOnce(fmt.Sprintf("session:%d", id), "unknown capture session", "session", id)
		return
	}

	serial := r.resolveSerial(m.session)

	switch m.kind {
	case msgEvent:
		r.routeEvent(m.session, serial, m.event)
	case msgSample:
		r.routeSample(serial, m.sample)
	case msgFlush:
	}
}

// resolveSerial returns the session's serial, learning it from SensorInfo
// on the first callback after identification.
func (r *Router) resolveSerial(sess capture.Session) string {
	id := sess.ID()

	r.mu.RLock()
	serial, ok := r.sessionSerial[id]
	hook := r.onIdentify
	r.mu.RUnlock()
	if ok {
		return serial
	}

	info := sess.SensorInfo()
	if !info.Identified() {
		return ""
	}

	r.mu.Lock()
	r.sessionSerial[id] = info.SerialNumber
	r.mu.Unlock()

	r.log().Info("capture session identified", "session", id, "serial", info.SerialNumber)
	if hook != nil {
		hook(info.SerialNumber, sess)
	}
	return info.SerialNumber
}

func (r *Router) routeEvent(sess capture.Session, serial string, event capture.EventID) {
	r.logEvent(serial, event)

	if serial == "" {
		return
	}

	dev, attached := r.DeviceFor(serial)
	if attached {
		dev.handleEvent(sess, event)
	} else {
		r.unrouted.Add(1)
		r.warnOnce(serial, "no device attached to sensor, event discarded", "serial", serial, "event", event)
	}

	n := Notification{
		Serial:    serial,
		SessionID: sess.ID(),
		Event:     event,
		Attached:  attached,
		Terminal:  event.Terminal(),
		Time:      time.Now().UTC(),
	}
	if attached {
		n.State = dev.State()
		n.Ready = dev.IsReady()
		n.Streaming = dev.IsStreaming()
	}

	r.mu.RLock()
	observers := r.observers
	r.mu.RUnlock()
	for _, fn := range observers {
		fn(n)
	}
}

func (r *Router) routeSample(serial string, sample capture.Sample) {
	key := serial
	if key == "" {
		key = capture.UnknownSerial
	}

	dev, ok := r.DeviceFor(serial)
	if serial == "" || !ok {
		r.unrouted.Add(1)
		r.warnOnce(key, "no device attached to sensor, sample discarded", "serial", key, "type", sample.Type)
		return
	}
	dev.handleSample(sample)
}

func (r *Router) logEvent(serial string, event capture.EventID) {
	log := r.log()
	switch {
	case event.Terminal():
		log.Error("sensor reported unrecoverable fault", "serial", serial, "event", event, "terminal", true)
	case event.IsError():
		log.Error("sensor reported error", "serial", serial, "event", event)
	case event == capture.EventDisconnected:
		log.Warn("sensor disconnected", "serial", serial)
	case event == capture.EventLowPowerMode, event == capture.EventRecoveryMode:
		log.Warn("sensor entered degraded mode", "serial", serial, "event", event)
	default:
		log.Info("sensor event", "serial", serial, "event", event)
	}
}

// warnOnce logs a routing warning the first time key is seen unattached.
func (r *Router) warnOnce(key, msg string, keysAndValues ...any) {
	r.mu.Lock()
	_, seen := r.warned[key]
	if !seen {
		r.warned[key] = struct{}{}
	}
	r.mu.Unlock()

	if !seen {
		r.log().Warn(msg, keysAndValues...)
	}
}
