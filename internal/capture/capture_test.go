package capture

import (
	"errors"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestRangeToMM(t *testing.T) {
	tests := []struct {
		mode    DepthRangeMode
		wantMin float32
		wantMax float32
	}{
		{RangeVeryShort, 350, 920},
		{RangeShort, 410, 1360},
		{RangeMedium, 520, 5230},
		{RangeLong, 580, 8000},
		{RangeVeryLong, 580, 10000},
		{RangeHybrid, 350, 10000},
		{RangeBodyScanning, 410, 1360},
	}

	if len(tests) != len(RangePresets) {
		t.Fatalf("table covers %d presets, RangePresets has %d", len(tests), len(RangePresets))
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			gotMin, gotMax, ok := RangeToMM(tt.mode)
			if !ok {
				t.Fatalf("RangeToMM(%s) ok = false", tt.mode)
			}
			if gotMin != tt.wantMin || gotMax != tt.wantMax {
				t.Errorf("RangeToMM(%s) = (%v, %v), want (%v, %v)", tt.mode, gotMin, gotMax, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestRangeToMM_NoPreset(t *testing.T) {
	for _, mode := range []DepthRangeMode{RangeDefault, "Bogus", ""} {
		if _, _, ok := RangeToMM(mode); ok {
			t.Errorf("RangeToMM(%q) ok = true, want false", mode)
		}
	}
	if !RangeDefault.Known() {
		t.Error("RangeDefault.Known() = false")
	}
}

func TestEventIDString(t *testing.T) {
	tests := []struct {
		event EventID
		want  string
	}{
		{EventConnected, "connected"},
		{EventReady, "ready"},
		{EventStreaming, "streaming"},
		{EventCalibrationMissingOrInvalid, "calibration_missing_or_invalid"},
		{EventID(99), "unknown"},
		{EventID(-1), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.event.String(); got != tt.want {
			t.Errorf("EventID(%d).String() = %q, want %q", int(tt.event), got, tt.want)
		}
	}

	if got := ParseEventID("usb_error"); got != EventUsbError {
		t.Errorf("ParseEventID(usb_error) = %v", got)
	}
}

func TestEventClassification(t *testing.T) {
	terminal := []EventID{EventFWCorrupt, EventProdDataCorrupt, EventCalibrationMissingOrInvalid, EventFWVersionMismatch}
	for _, e := range terminal {
		if !e.Terminal() || !e.IsError() {
			t.Errorf("%s should be terminal and an error", e)
		}
	}
	for _, e := range []EventID{EventError, EventUsbError} {
		if e.Terminal() || !e.IsError() {
			t.Errorf("%s should be a recoverable error", e)
		}
	}
	for _, e := range []EventID{EventDisconnected, EventReady, EventStreaming} {
		if e.IsError() {
			t.Errorf("%s should not be an error", e)
		}
	}
}

func TestDefaultSettingsValid(t *testing.T) {
	if err := DefaultSettings().Validate(); err != nil {
		t.Errorf("DefaultSettings().Validate() = %v", err)
	}
	if err := MonitorSettings().Validate(); err != nil {
		t.Errorf("MonitorSettings().Validate() = %v", err)
	}
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantMsg string
	}{
		{
			name:    "no streams",
			mutate:  func(s *Settings) { *s = Settings{Dispatcher: DispatcherBackgroundThread, DynamicCalibrationMode: CalibrationOff} },
			wantMsg: "at least one stream",
		},
		{
			name:    "unknown range",
			mutate:  func(s *Settings) { s.DepthRangeMode = "Forever" },
			wantMsg: "depth_range_mode",
		},
		{
			name:    "zero framerate",
			mutate:  func(s *Settings) { s.InfraredFramerate = 0 },
			wantMsg: "infrared_framerate",
		},
		{
			name:    "negative gain",
			mutate:  func(s *Settings) { s.InitialInfraredGain = -1 },
			wantMsg: "initial_infrared_gain",
		},
		{
			name: "bad imu rate",
			mutate: func(s *Settings) {
				s.AccelerometerEnabled = true
				s.IMUUpdateRate = 300
			},
			wantMsg: "imu_update_rate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(&s)
			err := s.Validate()
			if !errors.Is(err, ErrInvalidSettings) {
				t.Fatalf("Validate() = %v, want ErrInvalidSettings", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Validate() = %q, want it to mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestSettingsYAML(t *testing.T) {
	s := DefaultSettings()
	data := []byte("depth_range_mode: Hybrid\ndepth_resolution: VGA\ninit_timeout: 5s\ninfrared_enabled: false\n")
	if err := yaml.Unmarshal(data, &s); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}
	if s.DepthRangeMode != RangeHybrid || s.DepthResolution != DepthVGA {
		t.Errorf("got range %s resolution %s", s.DepthRangeMode, s.DepthResolution)
	}
	if s.InitTimeout.Seconds() != 5 {
		t.Errorf("InitTimeout = %v, want 5s", s.InitTimeout)
	}
	if s.InfraredEnabled {
		t.Error("InfraredEnabled should be overridden to false")
	}
	if !s.VisibleEnabled {
		t.Error("VisibleEnabled default should survive a partial document")
	}
}

func TestDepthResolutionSize(t *testing.T) {
	tests := []struct {
		res  DepthResolution
		w, h int
	}{
		{DepthQVGA, 320, 240},
		{DepthVGA, 640, 480},
		{DepthSXGA, 1280, 960},
	}
	for _, tt := range tests {
		w, h := tt.res.Size()
		if w != tt.w || h != tt.h {
			t.Errorf("%s.Size() = %dx%d, want %dx%d", tt.res, w, h, tt.w, tt.h)
		}
	}
}
