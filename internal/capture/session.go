package capture

// SessionID identifies a session for the lifetime of its layer.
type SessionID uint64

// Session is one physical sensor's capture pipeline.
//
// Every method is safe to call from any goroutine except StopStreaming,
// which must not be called from the layer's callback goroutine.
type Session interface {
	// ID returns the layer-assigned identity of the session.
	ID() SessionID

	// StartMonitoring applies settings and begins asynchronous discovery and
	// boot. It returns false if the layer rejects the settings.
	StartMonitoring(settings Settings) bool

	// StartStreaming requests streaming. True means the request was
	// accepted; the Streaming event confirms it.
	StartStreaming() bool

	// StopStreaming stops streaming and returns once the layer has stopped
	// delivering samples for this session.
	StopStreaming()

	// RebootCaptureSource reboots the sensor. On success the session emits
	// Disconnected, Booting and Connected in that order.
	RebootCaptureSource() bool

	// SensorInfo returns the sensor identity. SerialNumber is "unknown"
	// until the sensor has been identified.
	SensorInfo() SensorInfo

	// Settings returns the settings last applied by StartMonitoring.
	Settings() Settings

	SetInfraredCamerasExposureAndGain(exposure, gain float32) bool
	InfraredCamerasExposureAndGain() (exposure, gain float32)
	SetVisibleCameraExposureAndGain(exposure, gain float32) bool
	VisibleCameraExposureAndGain() (exposure, gain float32)
}

// Delegate receives callbacks from the layer's background goroutine.
// Implementations must not block.
type Delegate interface {
	OnEvent(s Session, event EventID)
	OnSample(s Session, sample Sample)
}

// Layer enumerates sessions and owns their lifetime.
type Layer interface {
	// Initialize starts enumeration and delivers every session's callbacks
	// to d. It returns once the initial enumeration is complete.
	Initialize(d Delegate) error

	// Release stops every session and tears the layer down.
	Release()

	// Session returns the session at index.
	Session(index int) (Session, bool)

	// SessionBySerial returns the session whose sensor reports serial.
	SessionBySerial(serial string) (Session, bool)

	// NumSessions returns the number of enumerated sessions.
	NumSessions() int
}
