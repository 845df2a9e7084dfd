package watch

import (
	"fmt"
	"maps"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nerrad567/depthcore/internal/capture"
	"github.com/nerrad567/depthcore/internal/structure"
)

// debounceInterval collapses the bursts of events editors emit per save.
const debounceInterval = 100 * time.Millisecond

// Logger is the logging interface used by the Watcher.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Target receives exposure values. *structure.Device satisfies it.
type Target interface {
	SetExposureGain(exposure, gain float32) bool
	SetVisibleExposureGain(exposure, gain float32) bool
}

// Lookup finds the Target attached to a serial.
type Lookup func(serial string) (Target, bool)

// FromManager adapts a Manager to a Lookup.
func FromManager(m *structure.Manager) Lookup {
	return func(serial string) (Target, bool) {
		d, ok := m.DeviceBySerial(serial)
		if !ok {
			return nil, false
		}
		return d, true
	}
}

// Watcher keeps attached sensors in line with a settings file.
//
// It watches the file's directory so editors that replace the file by
// rename are still seen. Write and Create events for the file are debounced
// and trigger a reload; a file that fails to parse is logged and the
// previous settings stay in force.
type Watcher struct {
	path    string
	lookup  Lookup
	logger  Logger
	watcher *fsnotify.Watcher

	mu       sync.RWMutex
	current  Settings
	reloaded func(Settings)

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New creates a Watcher for path. Call Start to load and begin watching.
func New(path string, lookup Lookup, logger Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving settings path: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Watcher{
		path:    abs,
		lookup:  lookup,
		logger:  logger,
		watcher: fw,
		current: Settings{},
		stopCh:  make(chan struct{}),
	}, nil
}

// OnReload sets a callback run after each successful reload. Call before
// Start.
func (w *Watcher) OnReload(fn func(Settings)) {
	w.reloaded = fn
}

// Start loads the file, applies it and starts watching. A missing or
// invalid file at start is logged and watching continues.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(w.path), err)
	}
	w.Reload()

	w.wg.Add(1)
	go w.watchLoop()
	return nil
}

// Stop ends watching. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		_ = w.watcher.Close()
	})
	w.wg.Wait()
}

// Current returns a copy of the settings in force.
func (w *Watcher) Current() Settings {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return maps.Clone(w.current)
}

// Reload re-reads the file and applies it to every attached sensor it
// names. It reports whether the file was loaded.
func (w *Watcher) Reload() bool {
	settings, err := LoadSettings(w.path)
	if err != nil {
		w.logger.Error("settings file not applied, keeping previous values", "path", w.path, "error", err)
		return false
	}

	w.mu.Lock()
	w.current = settings
	w.mu.Unlock()

	applied := 0
	for serial := range settings {
		if w.applyTo(serial) {
			applied++
		}
	}
	w.logger.Info("settings file applied", "path", w.path, "sensors", len(settings), "applied", applied)

	if w.reloaded != nil {
		w.reloaded(maps.Clone(settings))
	}
	return true
}

// HandleNotification re-applies a sensor's settings when it becomes ready,
// covering sensors that attach or reboot after the file was loaded.
func (w *Watcher) HandleNotification(n structure.Notification) {
	if n.Event != capture.EventReady || !n.Attached {
		return
	}
	w.applyTo(n.Serial)
}

func (w *Watcher) applyTo(serial string) bool {
	w.mu.RLock()
	e, ok := w.current[serial]
	w.mu.RUnlock()
	if !ok {
		return false
	}

	target, attached := w.lookup(serial)
	if !attached {
		return false
	}
	if !target.SetExposureGain(e.Exposure, e.Gain) {
		w.logger.Warn("sensor rejected infrared exposure", "serial", serial)
		return false
	}
	if e.HasVisible() && !target.SetVisibleExposureGain(*e.VisibleExposure, *e.VisibleGain) {
		w.logger.Warn("sensor rejected visible exposure", "serial", serial)
		return false
	}
	return true
}

func (w *Watcher) watchLoop() {
	defer w.wg.Done()

	debounce := time.NewTimer(0)
	<-debounce.C
	defer debounce.Stop()

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || filepath.Clean(event.Name) != w.path {
				continue
			}
			debounce.Reset(debounceInterval)

		case <-debounce.C:
			w.Reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("settings watcher error", "error", err)
		}
	}
}
