package sim

import (
	"sync"
	"time"

	"github.com/nerrad567/depthcore/internal/capture"
)

// Session is one simulated sensor.
//
// Boot sequences and streams run on goroutines owned by the session; every
// callback is delivered from one of them, never from the caller.
type Session struct {
	layer  *Layer
	id     capture.SessionID
	serial string

	mu       sync.Mutex
	info     capture.SensorInfo
	settings capture.Settings
	booted   bool
	gen      uint64

	irExposure, irGain   float32
	visExposure, visGain float32

	stop    chan struct{}
	stopped chan struct{}
}

// Ensure Session implements capture.Session.
var _ capture.Session = (*Session)(nil)

func newSession(l *Layer, id capture.SessionID, serial string) *Session {
	return &Session{
		layer:  l,
		id:     id,
		serial: serial,
		info:   capture.SensorInfo{SerialNumber: capture.UnknownSerial},
	}
}

// ID returns the session identity.
func (s *Session) ID() capture.SessionID { return s.id }

// StartMonitoring applies settings and boots the sensor. On a sensor that
// has already booted the settings are re-applied and Ready is emitted.
func (s *Session) StartMonitoring(settings capture.Settings) bool {
	if s.layer.released() || settings.Validate() != nil {
		return false
	}

	s.mu.Lock()
	s.settings = settings
	s.irExposure, s.irGain = settings.InitialInfraredExposure, settings.InitialInfraredGain
	s.visExposure, s.visGain = settings.InitialVisibleExposure, settings.InitialVisibleGain
	s.gen++
	gen, booted := s.gen, s.booted
	s.mu.Unlock()

	if booted {
		go func() {
			if s.current(gen) {
				s.layer.emitEvent(s, capture.EventReady)
			}
		}()
		return true
	}

	go s.boot(gen, false)
	return true
}

// StartStreaming starts the stream goroutine. It fails until the sensor has
// booted.
func (s *Session) StartStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.booted || s.layer.released() {
		return false
	}
	if s.stop != nil {
		return true
	}

	s.stop = make(chan struct{})
	s.stopped = make(chan struct{})
	go s.stream(s.settings, s.stop, s.stopped)
	return true
}

// StopStreaming stops the stream goroutine and waits for it to exit.
func (s *Session) StopStreaming() {
	s.mu.Lock()
	stop, stopped := s.stop, s.stopped
	s.stop, s.stopped = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-stopped
}

// RebootCaptureSource stops streaming and runs a full boot sequence starting
// with Disconnected.
func (s *Session) RebootCaptureSource() bool {
	if s.layer.released() {
		return false
	}
	s.StopStreaming()

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.booted = false
	s.mu.Unlock()

	go s.boot(gen, true)
	return true
}

// SensorInfo returns the sensor identity.
func (s *Session) SensorInfo() capture.SensorInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

// Settings returns the settings last applied by StartMonitoring.
func (s *Session) Settings() capture.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// SetInfraredCamerasExposureAndGain schedules an exposure change.
func (s *Session) SetInfraredCamerasExposureAndGain(exposure, gain float32) bool {
	if exposure < 0 || gain < 0 {
		return false
	}
	s.settle(func() { s.irExposure, s.irGain = exposure, gain })
	return true
}

// InfraredCamerasExposureAndGain returns the applied infrared exposure and gain.
func (s *Session) InfraredCamerasExposureAndGain() (exposure, gain float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.irExposure, s.irGain
}

// SetVisibleCameraExposureAndGain schedules an exposure change.
func (s *Session) SetVisibleCameraExposureAndGain(exposure, gain float32) bool {
	if exposure < 0 || gain < 0 {
		return false
	}
	s.settle(func() { s.visExposure, s.visGain = exposure, gain })
	return true
}

// VisibleCameraExposureAndGain returns the applied visible exposure and gain.
func (s *Session) VisibleCameraExposureAndGain() (exposure, gain float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visExposure, s.visGain
}

// Inject delivers event as if the sensor had reported it.
func (s *Session) Inject(event capture.EventID) {
	s.layer.emitEvent(s, event)
}

// InjectSample delivers sample as if the sensor had produced it.
func (s *Session) InjectSample(sample capture.Sample) {
	s.layer.emitSample(s, sample)
}

// Streaming reports whether the stream goroutine is running.
func (s *Session) Streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil
}

func (s *Session) settle(apply func()) {
	if s.layer.cfg.SettleDelay <= 0 {
		s.mu.Lock()
		apply()
		s.mu.Unlock()
		return
	}
	time.AfterFunc(s.layer.cfg.SettleDelay, func() {
		s.mu.Lock()
		apply()
		s.mu.Unlock()
	})
}

// current reports whether gen is still the latest boot generation.
func (s *Session) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen && !s.layer.released()
}

func (s *Session) boot(gen uint64, reboot bool) {
	if reboot && s.current(gen) {
		s.layer.emitEvent(s, capture.EventDisconnected)
	}
	if !s.current(gen) {
		return
	}
	s.layer.emitEvent(s, capture.EventBooting)

	if !s.layer.sleep(s.layer.cfg.BootDelay) || !s.current(gen) {
		return
	}

	s.mu.Lock()
	s.booted = true
	s.info = capture.SensorInfo{
		SerialNumber:   s.serial,
		DriverFirmware: capture.FirmwareVersion{Valid: true, Major: 1, Minor: 2, Revision: 0},
		SensorFirmware: capture.FirmwareVersion{Valid: true, Major: 0, Minor: 9, Revision: 12},
		Temperature:    34.5,
	}
	s.mu.Unlock()

	for _, ev := range []capture.EventID{capture.EventConnected, capture.EventReady} {
		if !s.current(gen) {
			return
		}
		s.layer.emitEvent(s, ev)
	}
}

func tickerFor(enabled bool, hz float64) (*time.Ticker, <-chan time.Time) {
	if !enabled || hz <= 0 {
		return nil, nil
	}
	t := time.NewTicker(time.Duration(float64(time.Second) / hz))
	return t, t.C
}

func (s *Session) stream(settings capture.Settings, stop, stopped chan struct{}) {
	defer close(stopped)

	s.layer.emitEvent(s, capture.EventStreaming)
	gen := newGenerator(settings, s.InfraredCamerasExposureAndGain)

	var tickers []*time.Ticker
	defer func() {
		for _, t := range tickers {
			t.Stop()
		}
	}()
	add := func(t *time.Ticker, c <-chan time.Time) <-chan time.Time {
		if t != nil {
			tickers = append(tickers, t)
		}
		return c
	}

	var syncC, depthC, irC, visC <-chan time.Time
	if settings.FrameSync {
		syncC = add(tickerFor(settings.DepthEnabled || settings.InfraredEnabled || settings.VisibleEnabled,
			float64(gen.syncRate())))
	} else {
		depthC = add(tickerFor(settings.DepthEnabled, float64(settings.DepthFramerate)))
		irC = add(tickerFor(settings.InfraredEnabled, float64(settings.InfraredFramerate)))
		visC = add(tickerFor(settings.VisibleEnabled, float64(settings.VisibleFramerate)))
	}
	imuC := add(tickerFor(settings.AccelerometerEnabled || settings.GyroscopeEnabled,
		float64(settings.IMUUpdateRate)))

	for {
		select {
		case <-stop:
			return
		case now := <-syncC:
			s.layer.emitSample(s, gen.synchronized(now))
		case now := <-depthC:
			s.layer.emitSample(s, capture.Sample{Type: capture.SampleDepthFrame, Depth: gen.depth(now)})
		case now := <-irC:
			s.layer.emitSample(s, capture.Sample{Type: capture.SampleInfraredFrame, Infrared: gen.infrared(now)})
		case now := <-visC:
			s.layer.emitSample(s, capture.Sample{Type: capture.SampleVisibleFrame, Visible: gen.visible(now)})
		case now := <-imuC:
			if settings.AccelerometerEnabled {
				s.layer.emitSample(s, capture.Sample{Type: capture.SampleAccelerometerEvent, Accelerometer: gen.accelerometer(now)})
			}
			if settings.GyroscopeEnabled {
				s.layer.emitSample(s, capture.Sample{Type: capture.SampleGyroscopeEvent, Gyroscope: gen.gyroscope(now)})
			}
		}
	}
}
