package structure

import (
	"context"
	"sync"
	"time"
)

// DefaultTickInterval is the default UpdateLoop period, roughly 30Hz.
const DefaultTickInterval = 33 * time.Millisecond

// FrameObserver is called from the update goroutine for each device that
// drained a new depth frame during the tick.
type FrameObserver func(d *Device)

// UpdateLoop is the single consumer of every attached Device. Each tick it
// calls Update on each device and notifies observers of new frames.
type UpdateLoop struct {
	mgr      *Manager
	interval time.Duration

	mu        sync.RWMutex
	observers []FrameObserver
}

// NewUpdateLoop creates an UpdateLoop over the manager's devices.
func NewUpdateLoop(m *Manager, interval time.Duration) *UpdateLoop {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &UpdateLoop{mgr: m, interval: interval}
}

// OnFrame registers an observer for new frames.
func (u *UpdateLoop) OnFrame(fn FrameObserver) {
	u.mu.Lock()
	u.observers = append(u.observers, fn)
	u.mu.Unlock()
}

// Run ticks until ctx is cancelled. It returns ctx.Err().
func (u *UpdateLoop) Run(ctx context.Context) error {
	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			u.Tick()
		}
	}
}

// Tick runs one update pass.
func (u *UpdateLoop) Tick() {
	u.mu.RLock()
	observers := u.observers
	u.mu.RUnlock()

	for _, d := range u.mgr.Devices() {
		d.Update()
		if !d.IsFrameNew() {
			continue
		}
		for _, fn := range observers {
			fn(d)
		}
	}
}
