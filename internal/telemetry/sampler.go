// Package telemetry samples stream and router counters and writes them to a
// time-series sink.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/depthcore/internal/structure"
)

// DefaultInterval is used when Config.Interval is not positive.
const DefaultInterval = 5 * time.Second

// Sink receives sampled points. *influxdb.Client implements it.
type Sink interface {
	WriteStreamStats(serial, stream string, fps float64, dropped uint64, ts time.Time)
	WriteRouterStats(queued int, droppedSamples, droppedEvents uint64, ts time.Time)
}

// SensorStats is one sensor's per-stream counters.
type SensorStats struct {
	Serial  string
	Streams []structure.StreamStats
}

// Logger is the logging interface used by the Sampler.
type Logger interface {
	Debug(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}

// Config configures a Sampler.
type Config struct {
	Interval time.Duration
	Sink     Sink

	// Sensors returns the counters of every attached sensor.
	Sensors func() []SensorStats

	// Router returns the router inbox counters. Optional.
	Router func() structure.RouterStats

	Logger Logger
}

// Sampler periodically copies counters into a Sink.
type Sampler struct {
	cfg Config

	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

// FromManager returns Sensors and Router functions reading a Manager.
// Devices without a known serial are skipped.
func FromManager(m *structure.Manager) (func() []SensorStats, func() structure.RouterStats) {
	sensors := func() []SensorStats {
		devices := m.Devices()
		out := make([]SensorStats, 0, len(devices))
		for _, d := range devices {
			serial := d.Serial()
			if serial == "" {
				continue
			}
			out = append(out, SensorStats{Serial: serial, Streams: d.Stats()})
		}
		return out
	}
	return sensors, m.Router().Stats
}

// NewSampler creates a sampler. It panics if cfg.Sink or cfg.Sensors is nil.
func NewSampler(cfg Config) *Sampler {
	if cfg.Sink == nil || cfg.Sensors == nil {
		panic("telemetry: sampler requires a sink and a sensor source")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}
	return &Sampler{cfg: cfg, done: make(chan struct{})}
}

// Start runs the sample loop until ctx is cancelled or Stop is called.
func (s *Sampler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.loop(ctx)
}

// Stop ends the loop and waits for it. Safe to call more than once.
func (s *Sampler) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
	s.wg.Wait()
}

func (s *Sampler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case now := <-ticker.C:
			s.Sample(now)
		}
	}
}

// Sample writes one round of points stamped ts.
func (s *Sampler) Sample(ts time.Time) {
	points := 0
	for _, sensor := range s.cfg.Sensors() {
		for _, st := range sensor.Streams {
			s.cfg.Sink.WriteStreamStats(sensor.Serial, st.Stream, st.FPS, st.Dropped, ts)
			points++
		}
	}
	if s.cfg.Router != nil {
		rs := s.cfg.Router()
		s.cfg.Sink.WriteRouterStats(rs.Queued, rs.DroppedSamples, rs.DroppedEvents, ts)
		points++
	}
	s.cfg.Logger.Debug("telemetry sampled", "points", points)
}
