package capture

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// DepthResolution selects the depth stream size.
type DepthResolution string

// Depth resolutions.
const (
	DepthQVGA DepthResolution = "QVGA" // 320x240
	DepthVGA  DepthResolution = "VGA"  // 640x480
	DepthSXGA DepthResolution = "SXGA" // 1280x960
)

// Size returns the frame dimensions for the resolution.
func (r DepthResolution) Size() (width, height int) {
	switch r {
	case DepthQVGA:
		return 320, 240
	case DepthSXGA:
		return 1280, 960
	default:
		return 640, 480
	}
}

// InfraredResolution selects the infrared stream size. The sensor supports SXGA only.
type InfraredResolution string

// Infrared resolutions.
const (
	InfraredSXGA InfraredResolution = "SXGA"
)

// InfraredMode selects which infrared cameras stream.
type InfraredMode string

// Infrared modes.
const (
	InfraredLeftCameraOnly  InfraredMode = "LeftCameraOnly"
	InfraredRightCameraOnly InfraredMode = "RightCameraOnly"
	InfraredBothCameras     InfraredMode = "BothCameras"
)

// VisibleResolution selects the visible stream size. The sensor supports VGA only.
type VisibleResolution string

// Visible resolutions.
const (
	VisibleVGA VisibleResolution = "VGA"
)

// DemosaicMethod selects the visible camera debayer algorithm.
type DemosaicMethod string

// Demosaic methods.
const (
	DemosaicBilinear  DemosaicMethod = "Bilinear"
	DemosaicEdgeAware DemosaicMethod = "EdgeAware"
)

// CalibrationMode selects dynamic calibration behaviour.
type CalibrationMode string

// Dynamic calibration modes.
const (
	CalibrationOff                     CalibrationMode = "Off"
	CalibrationOneShotPersistent       CalibrationMode = "OneShotPersistent"
	CalibrationContinuousNonPersistent CalibrationMode = "ContinuousNonPersistent"
)

// Dispatcher selects how the layer delivers callbacks.
type Dispatcher string

// Dispatchers.
const (
	DispatcherBackgroundThread Dispatcher = "BackgroundThread"
	DispatcherAndroidLooper    Dispatcher = "AndroidLooper"
)

// IMURate is the IMU update rate in Hz.
type IMURate int

// IMU update rates.
const (
	IMURate100Hz  IMURate = 100
	IMURate200Hz  IMURate = 200
	IMURate400Hz  IMURate = 400
	IMURate1000Hz IMURate = 1000
)

// Settings is the configuration snapshot passed to Session.StartMonitoring.
// It is applied once and read back through Session.Settings.
type Settings struct {
	// Serial selects a sensor. Empty means the first available.
	Serial string `yaml:"serial" json:"serial"`

	// PlaybackFile replays a recording instead of a live sensor when set.
	PlaybackFile string `yaml:"playback_file" json:"playback_file,omitempty"`

	Dispatcher  Dispatcher    `yaml:"dispatcher" json:"dispatcher"`
	FrameSync   bool          `yaml:"frame_sync" json:"frame_sync"`
	InitTimeout time.Duration `yaml:"init_timeout" json:"init_timeout"`

	DepthEnabled         bool `yaml:"depth_enabled" json:"depth_enabled"`
	InfraredEnabled      bool `yaml:"infrared_enabled" json:"infrared_enabled"`
	VisibleEnabled       bool `yaml:"visible_enabled" json:"visible_enabled"`
	AccelerometerEnabled bool `yaml:"accelerometer_enabled" json:"accelerometer_enabled"`
	GyroscopeEnabled     bool `yaml:"gyroscope_enabled" json:"gyroscope_enabled"`

	DepthResolution DepthResolution `yaml:"depth_resolution" json:"depth_resolution"`
	DepthRangeMode  DepthRangeMode  `yaml:"depth_range_mode" json:"depth_range_mode"`
	DepthFramerate  float32         `yaml:"depth_framerate" json:"depth_framerate"`

	InfraredResolution          InfraredResolution `yaml:"infrared_resolution" json:"infrared_resolution"`
	InfraredMode                InfraredMode       `yaml:"infrared_mode" json:"infrared_mode"`
	InfraredFramerate           float32            `yaml:"infrared_framerate" json:"infrared_framerate"`
	InfraredAutoExposureEnabled bool               `yaml:"infrared_auto_exposure" json:"infrared_auto_exposure"`
	InitialInfraredExposure     float32            `yaml:"initial_infrared_exposure" json:"initial_infrared_exposure"`
	InitialInfraredGain         float32            `yaml:"initial_infrared_gain" json:"initial_infrared_gain"`

	VisibleResolution      VisibleResolution `yaml:"visible_resolution" json:"visible_resolution"`
	DemosaicMethod         DemosaicMethod    `yaml:"demosaic_method" json:"demosaic_method"`
	VisibleFramerate       float32           `yaml:"visible_framerate" json:"visible_framerate"`
	InitialVisibleExposure float32           `yaml:"initial_visible_exposure" json:"initial_visible_exposure"`
	InitialVisibleGain     float32           `yaml:"initial_visible_gain" json:"initial_visible_gain"`

	DynamicCalibrationMode   CalibrationMode `yaml:"dynamic_calibration_mode" json:"dynamic_calibration_mode"`
	ApplyExpensiveCorrection bool            `yaml:"apply_expensive_correction" json:"apply_expensive_correction"`
	IMUUpdateRate            IMURate         `yaml:"imu_update_rate" json:"imu_update_rate"`
}

// DefaultSettings returns the adapter's defaults for a streaming sensor.
func DefaultSettings() Settings {
	return Settings{
		Dispatcher:  DispatcherBackgroundThread,
		InitTimeout: 15 * time.Second,

		DepthEnabled:    true,
		InfraredEnabled: true,
		VisibleEnabled:  true,

		DepthResolution: DepthSXGA,
		DepthRangeMode:  RangeMedium,
		DepthFramerate:  30,

		InfraredResolution:      InfraredSXGA,
		InfraredMode:            InfraredBothCameras,
		InfraredFramerate:       30,
		InitialInfraredExposure: 0.0146,
		InitialInfraredGain:     3,

		VisibleResolution:      VisibleVGA,
		DemosaicMethod:         DemosaicEdgeAware,
		VisibleFramerate:       30,
		InitialVisibleExposure: 0.016,
		InitialVisibleGain:     2,

		DynamicCalibrationMode:   CalibrationOneShotPersistent,
		ApplyExpensiveCorrection: true,
		IMUUpdateRate:            IMURate400Hz,
	}
}

// MonitorSettings returns the lightweight settings used to identify sensors
// during discovery.
func MonitorSettings() Settings {
	s := DefaultSettings()
	s.FrameSync = true
	s.InfraredEnabled = false
	s.VisibleEnabled = false
	s.DepthResolution = DepthVGA
	s.DynamicCalibrationMode = CalibrationOff
	s.InitialInfraredExposure = 0.020
	s.InitialInfraredGain = 1
	return s
}

// StreamsEnabled reports whether at least one stream is enabled.
func (s Settings) StreamsEnabled() bool {
	return s.DepthEnabled || s.InfraredEnabled || s.VisibleEnabled ||
		s.AccelerometerEnabled || s.GyroscopeEnabled
}

// Validate checks the settings for configuration errors. All problems are
// reported together.
func (s Settings) Validate() error {
	var errs []string

	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Sprintf(format, args...))
		}
	}

	check(slices.Contains([]Dispatcher{DispatcherBackgroundThread, DispatcherAndroidLooper}, s.Dispatcher),
		"unknown dispatcher %q", s.Dispatcher)
	check(s.InitTimeout >= 0, "init_timeout must not be negative")
	check(s.StreamsEnabled(), "at least one stream must be enabled")

	if s.DepthEnabled {
		check(slices.Contains([]DepthResolution{DepthQVGA, DepthVGA, DepthSXGA}, s.DepthResolution),
			"unknown depth_resolution %q", s.DepthResolution)
		check(s.DepthRangeMode.Known(), "unknown depth_range_mode %q", s.DepthRangeMode)
		check(s.DepthFramerate > 0, "depth_framerate must be positive")
	}

	if s.InfraredEnabled {
		check(s.InfraredResolution == InfraredSXGA, "unknown infrared_resolution %q", s.InfraredResolution)
		check(slices.Contains([]InfraredMode{InfraredLeftCameraOnly, InfraredRightCameraOnly, InfraredBothCameras}, s.InfraredMode),
			"unknown infrared_mode %q", s.InfraredMode)
		check(s.InfraredFramerate > 0, "infrared_framerate must be positive")
	}
	check(s.InitialInfraredExposure >= 0, "initial_infrared_exposure must not be negative")
	check(s.InitialInfraredGain >= 0, "initial_infrared_gain must not be negative")

	if s.VisibleEnabled {
		check(s.VisibleResolution == VisibleVGA, "unknown visible_resolution %q", s.VisibleResolution)
		check(slices.Contains([]DemosaicMethod{DemosaicBilinear, DemosaicEdgeAware}, s.DemosaicMethod),
			"unknown demosaic_method %q", s.DemosaicMethod)
		check(s.VisibleFramerate > 0, "visible_framerate must be positive")
	}
	check(s.InitialVisibleExposure >= 0, "initial_visible_exposure must not be negative")
	check(s.InitialVisibleGain >= 0, "initial_visible_gain must not be negative")

	check(slices.Contains([]CalibrationMode{CalibrationOff, CalibrationOneShotPersistent, CalibrationContinuousNonPersistent}, s.DynamicCalibrationMode),
		"unknown dynamic_calibration_mode %q", s.DynamicCalibrationMode)

	if s.AccelerometerEnabled || s.GyroscopeEnabled {
		check(slices.Contains([]IMURate{IMURate100Hz, IMURate200Hz, IMURate400Hz, IMURate1000Hz}, s.IMUUpdateRate),
			"unknown imu_update_rate %d", s.IMUUpdateRate)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, errors.New(strings.Join(errs, "; ")))
	}
	return nil
}
