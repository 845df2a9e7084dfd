package sensor

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/depthcore/internal/capture"
	"github.com/nerrad567/depthcore/internal/structure"
)

// DefaultQueueSize is the number of notifications buffered for the worker.
const DefaultQueueSize = 128

// writeTimeout bounds each persistence round trip made by the worker.
const writeTimeout = 5 * time.Second

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// InfoSource looks up the live SensorInfo for a serial, typically from the
// Device attached to it.
type InfoSource func(serial string) (capture.SensorInfo, bool)

// Registry is an in-memory cache over the sensor repositories.
//
// It observes the core's Router through HandleNotification. Notifications
// are queued and persisted by a single worker goroutine, so the dispatch
// goroutine never waits on SQLite. A full queue drops the notification and
// counts it.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	history EventHistoryRepository

	cacheMu sync.RWMutex
	cache   map[string]*Sensor

	logger     Logger
	infoSource InfoSource

	queue   chan structure.Notification
	dropped atomic.Uint64
	closed  atomic.Bool

	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewRegistry creates a registry. queueSize <= 0 uses DefaultQueueSize.
func NewRegistry(repo Repository, history EventHistoryRepository, queueSize int) *Registry {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Registry{
		repo:    repo,
		history: history,
		cache:   make(map[string]*Sensor),
		logger:  noopLogger{},
		queue:   make(chan structure.Notification, queueSize),
		done:    make(chan struct{}),
	}
}

// SetLogger sets the logger for the registry. Call before Start.
func (r *Registry) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.logger = logger
}

// SetInfoSource sets the firmware lookup used when a sensor is first
// recorded. Call before Start.
func (r *Registry) SetInfoSource(fn InfoSource) {
	r.infoSource = fn
}

// RefreshCache reloads all sensors from the repository into the cache.
func (r *Registry) RefreshCache(ctx context.Context) error {
	sensors, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading sensors: %w", err)
	}

	r.cacheMu.Lock()
	r.cache = make(map[string]*Sensor, len(sensors))
	for i := range sensors {
		r.cache[sensors[i].Serial] = sensors[i].Clone()
	}
	r.cacheMu.Unlock()

	r.logger.Info("sensor cache refreshed", "count", len(sensors))
	return nil
}

// Get returns a sensor by serial. The result is a copy.
func (r *Registry) Get(ctx context.Context, serial string) (*Sensor, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[serial]
	r.cacheMu.RUnlock()
	if ok {
		return cached.Clone(), nil
	}

	s, err := r.repo.GetBySerial(ctx, serial)
	if err != nil {
		return nil, err
	}
	r.store(s)
	return s, nil
}

// List returns every known sensor ordered by serial.
func (r *Registry) List(ctx context.Context) ([]Sensor, error) {
	r.cacheMu.RLock()
	if len(r.cache) > 0 {
		sensors := make([]Sensor, 0, len(r.cache))
		for _, s := range r.cache {
			sensors = append(sensors, *s.Clone())
		}
		r.cacheMu.RUnlock()
		slices.SortFunc(sensors, func(a, b Sensor) int { return cmp.Compare(a.Serial, b.Serial) })
		return sensors, nil
	}
	r.cacheMu.RUnlock()

	return r.repo.List(ctx)
}

// Count returns the number of cached sensors.
func (r *Registry) Count() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

// Register records a sensor with a display name, typically from the
// sensors section of the configuration. An empty name keeps the stored one.
func (r *Registry) Register(ctx context.Context, serial, name string) error {
	if !capture.IsKnownSerial(serial) {
		return fmt.Errorf("%w: %q", ErrInvalidSerial, serial)
	}
	if err := r.repo.Upsert(ctx, &Sensor{Serial: serial, Name: name}); err != nil {
		return err
	}
	s, err := r.repo.GetBySerial(ctx, serial)
	if err != nil {
		return err
	}
	r.store(s)
	r.logger.Debug("sensor registered", "serial", serial, "name", s.Name)
	return nil
}

// Delete removes a sensor and its history.
func (r *Registry) Delete(ctx context.Context, serial string) error {
	if err := r.repo.Delete(ctx, serial); err != nil {
		return err
	}
	r.cacheMu.Lock()
	delete(r.cache, serial)
	r.cacheMu.Unlock()

	r.logger.Info("sensor deleted", "serial", serial)
	return nil
}

// History returns the sensor's most recent events, newest first.
func (r *Registry) History(ctx context.Context, serial string, limit int) ([]EventEntry, error) {
	return r.history.GetHistory(ctx, serial, limit)
}

// PruneHistory deletes events older than retention.
func (r *Registry) PruneHistory(ctx context.Context, retention time.Duration) (int64, error) {
	n, err := r.history.PruneHistory(ctx, retention)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.logger.Info("sensor event history pruned", "deleted", n, "retention", retention)
	}
	return n, nil
}

// Dropped returns the number of notifications discarded on a full queue.
func (r *Registry) Dropped() uint64 {
	return r.dropped.Load()
}

// HandleNotification queues a routed event for persistence. It never
// blocks and is intended to be passed to structure.Router.Subscribe.
func (r *Registry) HandleNotification(n structure.Notification) {
	if r.closed.Load() {
		return
	}
	select {
	case r.queue <- n:
	default:
		if r.dropped.Add(1) == 1 {
			r.logger.Warn("sensor registry queue full, notification dropped", "serial", n.Serial, "event", n.Event)
		}
	}
}

// Start launches the persistence worker. It is safe to call more than once.
func (r *Registry) Start() {
	r.startOnce.Do(func() {
		r.wg.Add(1)
		go r.run()
	})
}

// Close stops accepting notifications, persists any already queued and
// waits for the worker to exit.
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		close(r.done)
	})
	r.wg.Wait()
}

func (r *Registry) run() {
	defer r.wg.Done()
	for {
		select {
		case n := <-r.queue:
			r.persist(n)
		case <-r.done:
			for {
				select {
				case n := <-r.queue:
					r.persist(n)
				default:
					return
				}
			}
		}
	}
}

func (r *Registry) persist(n structure.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := r.record(ctx, n); err != nil {
		r.logger.Error("failed to persist sensor event", "serial", n.Serial, "event", n.Event, "error", err)
	}
}

func (r *Registry) record(ctx context.Context, n structure.Notification) error {
	state := StateUnattached
	if n.Attached {
		state = n.State.String()
	}
	seen := n.Time
	if seen.IsZero() {
		seen = time.Now().UTC()
	}

	if err := r.ensure(ctx, n.Serial); err != nil {
		return err
	}

	err := r.repo.UpdateState(ctx, n.Serial, state, n.Event.String(), seen)
	if errors.Is(err, ErrSensorNotFound) {
		// Deleted between ensure and update; recreate it.
		r.forget(n.Serial)
		if err = r.ensure(ctx, n.Serial); err == nil {
			err = r.repo.UpdateState(ctx, n.Serial, state, n.Event.String(), seen)
		}
	}
	if err != nil {
		return err
	}

	if err := r.history.RecordEvent(ctx, EventEntry{
		Serial:    n.Serial,
		Event:     n.Event.String(),
		State:     state,
		Terminal:  n.Terminal,
		CreatedAt: seen,
	}); err != nil {
		return err
	}

	r.cacheMu.Lock()
	if cached, ok := r.cache[n.Serial]; ok {
		updated := cached.Clone()
		updated.State = state
		updated.LastEvent = n.Event.String()
		updated.LastSeen = &seen
		updated.UpdatedAt = time.Now().UTC()
		r.cache[n.Serial] = updated
	}
	r.cacheMu.Unlock()
	return nil
}

// ensure creates the sensor row on first sight and fills in firmware once
// it is known.
func (r *Registry) ensure(ctx context.Context, serial string) error {
	r.cacheMu.RLock()
	cached, ok := r.cache[serial]
	r.cacheMu.RUnlock()

	if ok && cached.DriverFirmware != "" {
		return nil
	}

	s := &Sensor{Serial: serial}
	if r.infoSource != nil {
		if info, found := r.infoSource(serial); found {
			s.DriverFirmware = FormatFirmware(info.DriverFirmware)
			s.SensorFirmware = FormatFirmware(info.SensorFirmware)
		}
	}
	if ok && s.DriverFirmware == "" {
		return nil
	}

	if err := r.repo.Upsert(ctx, s); err != nil {
		return err
	}
	stored, err := r.repo.GetBySerial(ctx, serial)
	if err != nil {
		return err
	}
	r.store(stored)
	if !ok {
		r.logger.Info("new sensor recorded", "serial", serial, "driver_firmware", stored.DriverFirmware)
	}
	return nil
}

func (r *Registry) store(s *Sensor) {
	r.cacheMu.Lock()
	r.cache[s.Serial] = s.Clone()
	r.cacheMu.Unlock()
}

func (r *Registry) forget(serial string) {
	r.cacheMu.Lock()
	delete(r.cache, serial)
	r.cacheMu.Unlock()
}
