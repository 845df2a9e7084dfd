// Package watch applies exposure and gain from a YAML settings file to
// attached sensors, reloading it when it changes on disk.
//
// The file maps serials to infrared and optional visible camera values:
//
//	ST-0123456:
//	  exposure: 0.016
//	  gain: 2
//	  visible_exposure: 0.02
//	  visible_gain: 1.5
package watch

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/depthcore/internal/capture"
)

// ErrInvalidSettings indicates the settings file failed validation.
var ErrInvalidSettings = errors.New("watch: invalid settings")

// Exposure is one sensor's entry in the settings file.
type Exposure struct {
	Exposure        float32  `yaml:"exposure"`
	Gain            float32  `yaml:"gain"`
	VisibleExposure *float32 `yaml:"visible_exposure,omitempty"`
	VisibleGain     *float32 `yaml:"visible_gain,omitempty"`
}

// HasVisible reports whether both visible camera values are set.
func (e Exposure) HasVisible() bool {
	return e.VisibleExposure != nil && e.VisibleGain != nil
}

// Settings maps serials to exposure entries.
type Settings map[string]Exposure

// LoadSettings reads and validates a settings file.
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading settings file: %w", err)
	}
	return ParseSettings(data)
}

// ParseSettings decodes and validates settings YAML. An empty document
// yields empty Settings.
func ParseSettings(data []byte) (Settings, error) {
	settings := Settings{}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("parsing settings file: %w", err)
	}
	if settings == nil {
		settings = Settings{}
	}

	for serial, e := range settings {
		switch {
		case !capture.IsKnownSerial(serial):
			return nil, fmt.Errorf("%w: %q is not a sensor serial", ErrInvalidSettings, serial)
		case e.Exposure <= 0:
			return nil, fmt.Errorf("%w: %s: exposure must be positive", ErrInvalidSettings, serial)
		case e.Gain < 0:
			return nil, fmt.Errorf("%w: %s: gain must not be negative", ErrInvalidSettings, serial)
		case (e.VisibleExposure == nil) != (e.VisibleGain == nil):
			return nil, fmt.Errorf("%w: %s: visible_exposure and visible_gain go together", ErrInvalidSettings, serial)
		case e.HasVisible() && (*e.VisibleExposure <= 0 || *e.VisibleGain < 0):
			return nil, fmt.Errorf("%w: %s: visible values out of range", ErrInvalidSettings, serial)
		}
	}
	return settings, nil
}
