package structure

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/depthcore/internal/capture"
)

// startPollInterval is how often Start re-checks readiness while waiting.
const startPollInterval = 5 * time.Millisecond

// Device is the application-facing handle for one sensor.
//
// It caches the newest frames delivered for its sensor, tracks readiness
// and streaming, and forwards control requests to the capture session bound
// to it by the Manager. A Device holds a non-owning reference to that
// session; the layer owns the session's lifetime.
//
// Thread Safety:
//   - Control methods (Configure, Start, Stop, exposure, Reboot) and
//     accessors are safe for concurrent use.
//   - Update must be called from a single consumer goroutine.
//   - Event and sample handlers run on the Router dispatch goroutine and
//     never block.
type Device struct {
	mgr    *Manager
	frames *FrameBuffer

	loggerMu sync.RWMutex
	logger   Logger

	sessMu      sync.RWMutex
	session     capture.Session
	settings    capture.Settings
	serial      string
	info        capture.SensorInfo
	irExposure  float32
	irGain      float32
	visExposure float32
	visGain     float32

	// startMu orders stream requests against Stop: a deferred start is
	// claimed and issued under it, and Stop clears both flags under it.
	startMu sync.Mutex

	configured   atomic.Bool
	ready        atomic.Bool
	streaming    atomic.Bool
	startOnReady atomic.Bool // deferred start, fulfilled by the next Ready/Connected
	startIssued  atomic.Bool // a StartStreaming request is outstanding and still wanted
	state        atomic.Int32
	frameNew     atomic.Bool

	imgMu    sync.RWMutex
	depthImg capture.DepthFrame
	irImg    capture.InfraredFrame
	visImg   capture.VisibleFrame
	depthFPS float64
	accel    capture.Vec3
	gyro     capture.Vec3
}

// NewDevice creates an unconfigured Device owned by the application and
// served by m. Call Configure to attach it to a sensor and Close to detach it.
func NewDevice(m *Manager) *Device {
	d := &Device{
		mgr:    m,
		frames: NewFrameBuffer(),
		logger: m.log(),
	}
	d.state.Store(int32(StateUnconfigured))
	return d
}

// SetLogger sets the logger for the device.
func (d *Device) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	d.loggerMu.Lock()
	d.logger = logger
	d.loggerMu.Unlock()
}

func (d *Device) log() Logger {
	d.loggerMu.RLock()
	defer d.loggerMu.RUnlock()
	return d.logger
}

// Configure validates settings, attaches the device to the sensor named by
// settings.Serial (or the first free sensor when it is empty) and starts
// asynchronous monitoring.
//
// A true return means the request was accepted, not that the sensor is
// ready. Invalid settings, a failed discovery or a rejection by the capture
// layer return false and are logged once. A serial that no session has
// reported yet triggers discovery; Configure fails if it is still missing
// when discovery times out.
//
// Parameters:
//   - ctx: Bounds the discovery wait
//   - settings: Capture settings applied at StartMonitoring
//
// Returns:
//   - bool: true if monitoring was requested
func (d *Device) Configure(ctx context.Context, settings capture.Settings) bool {
	if err := settings.Validate(); err != nil {
		d.log().Error("invalid capture settings", "serial", settings.Serial, "error", err)
		return false
	}

	if settings.Serial == "" {
		serial, err := d.mgr.firstAvailableSerial(ctx)
		if err != nil {
			d.log().Error("no sensor available", "error", err)
			return false
		}
		settings.Serial = serial
	} else if capture.IsKnownSerial(settings.Serial) && !d.mgr.discover(ctx, settings.Serial) {
		d.log().Error("sensor not detected", "serial", settings.Serial,
			"timeout", d.mgr.discoveryTimeout)
		return false
	}

	sess, err := d.mgr.attach(settings.Serial, d, settings)
	if err != nil {
		d.log().Error("attaching device failed", "serial", settings.Serial, "error", err)
		return false
	}

	if sess == nil {
		d.log().Info("sensor not yet discovered, monitoring deferred", "serial", settings.Serial)
		return true
	}

	if !sess.StartMonitoring(settings) {
		d.configured.Store(false)
		d.setState(StateUnconfigured)
		d.log().Error("capture layer rejected settings", "serial", settings.Serial)
		return false
	}

	d.log().Info("sensor monitoring started", "serial", settings.Serial,
		"range_mode", settings.DepthRangeMode, "depth_resolution", settings.DepthResolution)
	return true
}

// Start requests streaming.
//
// If the device is already streaming Start succeeds immediately. If the
// sensor is not yet ready and timeout is positive, Start polls readiness
// every 5ms and returns false when the timeout elapses. With a zero timeout
// Start registers a deferred start, fulfilled when the sensor reports
// Ready, and returns true at once. A true return means the start request
// was accepted; the Streaming event confirms it.
func (d *Device) Start(timeout time.Duration) bool {
	if !d.configured.Load() {
		d.log().Warn("start called before configure")
		return false
	}

	if d.streaming.Load() {
		d.log().Warn("sensor already streaming", "serial", d.Serial())
		return true
	}

	if !d.ready.Load() {
		if timeout <= 0 {
			d.startOnReady.Store(true)
			// Ready may have landed between the check and the store.
			if d.ready.Load() {
				if claimed, ok := d.fulfilDeferredStart(); claimed {
					return ok
				}
			}
			d.log().Debug("start deferred until sensor is ready", "serial", d.Serial())
			return true
		}

		if !d.waitReady(timeout) {
			d.log().Warn("timed out waiting for sensor to become ready",
				"serial", d.Serial(), "timeout", timeout)
			return false
		}
	}

	return d.requestStream()
}

func (d *Device) waitReady(timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(startPollInterval)
	defer ticker.Stop()

	for !d.ready.Load() {
		select {
		case <-deadline.C:
			return d.ready.Load()
		case <-ticker.C:
		}
	}
	return true
}

// fulfilDeferredStart claims a pending deferred start and issues it. claimed
// is false when no start was pending, including when Stop cancelled it.
func (d *Device) fulfilDeferredStart() (claimed, ok bool) {
	d.startMu.Lock()
	defer d.startMu.Unlock()
	if !d.startOnReady.CompareAndSwap(true, false) {
		return false, false
	}
	return true, d.requestStreamLocked()
}

// requestStream issues StartStreaming at most once per outstanding request.
// It never blocks and is safe to call from the dispatch goroutine.
func (d *Device) requestStream() bool {
	d.startMu.Lock()
	defer d.startMu.Unlock()
	return d.requestStreamLocked()
}

func (d *Device) requestStreamLocked() bool {
	sess := d.currentSession()
	if sess == nil {
		d.log().Warn("no capture session attached", "serial", d.Serial())
		return false
	}

	if !d.startIssued.CompareAndSwap(false, true) {
		return true
	}

	if !sess.StartStreaming() {
		d.startIssued.Store(false)
		d.log().Error("capture layer rejected start streaming", "serial", d.Serial())
		return false
	}

	d.log().Info("start streaming requested", "serial", d.Serial())
	return true
}

// Stop stops streaming and returns once the capture layer has stopped.
// Any pending deferred start is cancelled first, so a Ready event that
// arrives later does not restart the stream.
func (d *Device) Stop() {
	d.startMu.Lock()
	d.startOnReady.Store(false)
	d.startIssued.Store(false)
	d.startMu.Unlock()

	if sess := d.currentSession(); sess != nil {
		sess.StopStreaming()
	}

	d.streaming.Store(false)
	d.state.CompareAndSwap(int32(StateStreaming), int32(StateReady))
	d.log().Info("sensor stopped", "serial", d.Serial())
}

// Close detaches the device from its manager and stops its sensor.
func (d *Device) Close() {
	d.mgr.Release(d)
}

// SetExposureGain sets the infrared cameras' exposure (seconds) and gain.
//
// The sensor applies the values asynchronously. ExposureGain reflects them
// only after the hardware settles, typically within 500ms. SetExposureGain
// returns false when no session is attached.
func (d *Device) SetExposureGain(exposure, gain float32) bool {
	sess := d.currentSession()
	if sess == nil {
		return false
	}
	if !sess.SetInfraredCamerasExposureAndGain(exposure, gain) {
		d.log().Warn("setting infrared exposure failed", "serial", d.Serial(),
			"exposure", exposure, "gain", gain)
		return false
	}

	d.sessMu.Lock()
	d.irExposure, d.irGain = exposure, gain
	d.sessMu.Unlock()
	return true
}

// ExposureGain returns the infrared cameras' exposure and gain as reported
// by the sensor, or the last known values when no session is attached.
func (d *Device) ExposureGain() (exposure, gain float32) {
	sess := d.currentSession()
	if sess == nil {
		d.sessMu.RLock()
		defer d.sessMu.RUnlock()
		return d.irExposure, d.irGain
	}

	exposure, gain = sess.InfraredCamerasExposureAndGain()
	d.sessMu.Lock()
	d.irExposure, d.irGain = exposure, gain
	d.sessMu.Unlock()
	return exposure, gain
}

// SetVisibleExposureGain sets the visible camera's exposure and gain.
func (d *Device) SetVisibleExposureGain(exposure, gain float32) bool {
	sess := d.currentSession()
	if sess == nil {
		return false
	}
	if !sess.SetVisibleCameraExposureAndGain(exposure, gain) {
		return false
	}
	d.sessMu.Lock()
	d.visExposure, d.visGain = exposure, gain
	d.sessMu.Unlock()
	return true
}

// VisibleExposureGain returns the visible camera's exposure and gain.
func (d *Device) VisibleExposureGain() (exposure, gain float32) {
	sess := d.currentSession()
	if sess == nil {
		d.sessMu.RLock()
		defer d.sessMu.RUnlock()
		return d.visExposure, d.visGain
	}

	exposure, gain = sess.VisibleCameraExposureAndGain()
	d.sessMu.Lock()
	d.visExposure, d.visGain = exposure, gain
	d.sessMu.Unlock()
	return exposure, gain
}

// Reboot asks the sensor to reboot. On success the sensor reports
// Disconnected, Booting and Connected in that order, and a stream that was
// running resumes once it is Ready again.
func (d *Device) Reboot() bool {
	sess := d.currentSession()
	if sess == nil {
		return false
	}
	d.ready.Store(false)
	if !sess.RebootCaptureSource() {
		d.log().Error("sensor reboot rejected", "serial", d.Serial())
		return false
	}
	d.log().Info("sensor reboot requested", "serial", d.Serial())
	return true
}

// Update drains new frames into the display images and new IMU events into
// the cached readings. It must be called once per tick from a single
// goroutine.
func (d *Device) Update() {
	d.frameNew.Store(false)
	if !d.streaming.Load() {
		return
	}

	accel, okAccel := d.frames.DrainAccelerometer()
	gyro, okGyro := d.frames.DrainGyroscope()
	depth, okDepth := d.frames.DrainDepth()
	ir, okIR := d.frames.DrainInfrared()
	vis, okVis := d.frames.DrainVisible()
	if !okDepth && !okIR && !okVis && !okAccel && !okGyro {
		return
	}
	fps := d.frames.FPS(StreamDepth)

	d.imgMu.Lock()
	if okAccel {
		d.accel = accel.Value
	}
	if okGyro {
		d.gyro = gyro.Value
	}
	if okDepth {
		d.depthImg = depth
		d.depthFPS = fps
	}
	if okIR {
		d.irImg = ir
	}
	if okVis {
		d.visImg = vis
	}
	d.imgMu.Unlock()

	if okDepth {
		d.frameNew.Store(true)
	}
}

// DepthImage returns the depth image drained by the last Update. The pixel
// slice must not be modified.
func (d *Device) DepthImage() capture.DepthFrame {
	d.imgMu.RLock()
	defer d.imgMu.RUnlock()
	return d.depthImg
}

// InfraredImage returns the infrared image drained by the last Update.
func (d *Device) InfraredImage() capture.InfraredFrame {
	d.imgMu.RLock()
	defer d.imgMu.RUnlock()
	return d.irImg
}

// VisibleImage returns the visible image drained by the last Update.
func (d *Device) VisibleImage() capture.VisibleFrame {
	d.imgMu.RLock()
	defer d.imgMu.RUnlock()
	return d.visImg
}

// DepthFPS returns the depth rate observed at the last Update.
func (d *Device) DepthFPS() float64 {
	d.imgMu.RLock()
	defer d.imgMu.RUnlock()
	return d.depthFPS
}

// Intrinsics returns the depth intrinsics of the last drained depth image.
func (d *Device) Intrinsics() capture.Intrinsics {
	d.imgMu.RLock()
	defer d.imgMu.RUnlock()
	return d.depthImg.Intrinsics
}

// Acceleration returns the accelerometer reading drained by the last Update,
// in g.
func (d *Device) Acceleration() capture.Vec3 {
	d.imgMu.RLock()
	defer d.imgMu.RUnlock()
	return d.accel
}

// GyroRotationRate returns the gyroscope reading drained by the last Update,
// in radians per second.
func (d *Device) GyroRotationRate() capture.Vec3 {
	d.imgMu.RLock()
	defer d.imgMu.RUnlock()
	return d.gyro
}

// Frames returns the device's frame cache.
func (d *Device) Frames() *FrameBuffer { return d.frames }

// Stats returns per-stream counters.
func (d *Device) Stats() []StreamStats { return d.frames.Stats() }

// IsConfigured reports whether Configure succeeded and the device is still
// attached to its sensor.
func (d *Device) IsConfigured() bool { return d.configured.Load() }

// IsReady reports whether the sensor has reported Connected or Ready since
// it last booted, disconnected or failed.
func (d *Device) IsReady() bool { return d.ready.Load() }

// IsStreaming reports whether a requested stream has been confirmed by a
// Streaming event and not stopped since.
func (d *Device) IsStreaming() bool { return d.streaming.Load() }

// IsFrameNew reports whether the last Update drained a new depth frame.
func (d *Device) IsFrameNew() bool { return d.frameNew.Load() }

// State returns the device's lifecycle state.
func (d *Device) State() State { return State(d.state.Load()) }

// Serial returns the sensor's serial number, falling back to the
// configured serial before the sensor has identified itself.
func (d *Device) Serial() string {
	d.sessMu.RLock()
	defer d.sessMu.RUnlock()
	if d.info.Identified() {
		return d.info.SerialNumber
	}
	if d.serial != "" {
		return d.serial
	}
	return d.settings.Serial
}

// SensorInfo returns the last sensor identity reported by the session.
func (d *Device) SensorInfo() capture.SensorInfo {
	d.sessMu.RLock()
	defer d.sessMu.RUnlock()
	return d.info
}

// Settings returns the settings passed to Configure.
func (d *Device) Settings() capture.Settings {
	d.sessMu.RLock()
	defer d.sessMu.RUnlock()
	return d.settings
}

func (d *Device) currentSession() capture.Session {
	d.sessMu.RLock()
	defer d.sessMu.RUnlock()
	return d.session
}

func (d *Device) setState(s State) {
	prev := State(d.state.Swap(int32(s)))
	if prev != s {
		d.log().Debug("sensor state changed", "serial", d.Serial(), "from", prev, "to", s)
	}
}

// prepare records the settings of an attachment. Called by the Manager
// with its lock held.
func (d *Device) prepare(serial string, settings capture.Settings) {
	d.sessMu.Lock()
	d.serial = serial
	d.settings = settings
	d.info = capture.SensorInfo{SerialNumber: capture.UnknownSerial}
	d.sessMu.Unlock()

	d.frames.Reset()
	d.configured.Store(true)
	d.setState(StateMonitoring)
}

// bind attaches a session. Called by the Manager.
func (d *Device) bind(sess capture.Session) {
	info := sess.SensorInfo()
	d.sessMu.Lock()
	d.session = sess
	if info.Identified() {
		d.info = info
	}
	d.sessMu.Unlock()
}

// unbind detaches the session and resets every flag. Called by the Manager.
func (d *Device) unbind() capture.Session {
	d.startMu.Lock()
	d.startOnReady.Store(false)
	d.startIssued.Store(false)
	d.startMu.Unlock()

	d.sessMu.Lock()
	sess := d.session
	d.session = nil
	d.sessMu.Unlock()

	d.ready.Store(false)
	d.streaming.Store(false)
	d.configured.Store(false)
	d.setState(StateUnconfigured)
	return sess
}

// handleEvent applies a session event. It runs on the dispatch goroutine
// and must not block.
func (d *Device) handleEvent(sess capture.Session, event capture.EventID) {
	switch event {
	case capture.EventBooting:
		d.ready.Store(false)
		d.setState(StateMonitoring)

	case capture.EventConnected, capture.EventReady:
		d.refreshInfo(sess)
		d.ready.Store(true)
		if event == capture.EventReady {
			d.setState(StateReady)
		} else {
			d.setState(StateConnected)
		}
		d.fulfilDeferredStart()

	case capture.EventStreaming:
		if !d.startIssued.Load() {
			d.log().Debug("ignoring streaming event with no start outstanding", "serial", d.Serial())
			return
		}
		d.streaming.Store(true)
		d.setState(StateStreaming)

		// The hardware's initial infrared values are unreliable until set
		// after the stream starts.
		s := d.Settings()
		if s.InfraredEnabled && !s.InfraredAutoExposureEnabled {
			d.SetExposureGain(s.InitialInfraredExposure, s.InitialInfraredGain)
		}

	case capture.EventDisconnected:
		d.startMu.Lock()
		if d.startIssued.Swap(false) {
			d.startOnReady.Store(true)
		}
		d.startMu.Unlock()
		d.streaming.Store(false)
		d.ready.Store(false)
		d.setState(StateDisconnected)

	case capture.EventEndOfFile:
		d.startIssued.Store(false)
		d.streaming.Store(false)
		d.setState(StateReady)

	default:
		if event.IsError() {
			d.startIssued.Store(false)
			d.streaming.Store(false)
			d.ready.Store(false)
			d.setState(StateError)
		}
	}
}

// handleSample stores a sample. It runs on the dispatch goroutine.
func (d *Device) handleSample(sample capture.Sample) {
	d.frames.Write(sample)
}

func (d *Device) refreshInfo(sess capture.Session) {
	if sess == nil {
		return
	}
	info := sess.SensorInfo()
	if !info.Identified() {
		return
	}
	d.sessMu.Lock()
	d.info = info
	d.sessMu.Unlock()
}
