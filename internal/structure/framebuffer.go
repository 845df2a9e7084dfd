package structure

import (
	"sync"
	"time"

	"github.com/nerrad567/depthcore/internal/capture"
)

// StreamKind identifies one cached stream in a FrameBuffer.
type StreamKind int

// Stream kinds.
const (
	StreamDepth StreamKind = iota
	StreamInfrared
	StreamVisible
	StreamAccelerometer
	StreamGyroscope

	numStreamKinds
)

var streamNames = [numStreamKinds]string{"depth", "infrared", "visible", "accelerometer", "gyroscope"}

// StreamKinds lists every stream kind in declaration order.
var StreamKinds = []StreamKind{StreamDepth, StreamInfrared, StreamVisible, StreamAccelerometer, StreamGyroscope}

func (k StreamKind) String() string {
	if k < 0 || k >= numStreamKinds {
		return "unknown"
	}
	return streamNames[k]
}

// fpsSmoothing weights the newest inter-frame interval in the running estimate.
const fpsSmoothing = 0.1

// fpsMeter estimates a rate from the smoothed interval between consecutive
// frames. Averaging the interval rather than its reciprocal keeps a single
// short gap from dominating the estimate.
type fpsMeter struct {
	last     time.Time
	interval float64 // seconds
}

func (m *fpsMeter) tick(at time.Time) {
	if !m.last.IsZero() {
		if dt := at.Sub(m.last).Seconds(); dt > 0 {
			if m.interval == 0 {
				m.interval = dt
			} else {
				m.interval += fpsSmoothing * (dt - m.interval)
			}
		}
	}
	if at.After(m.last) {
		m.last = at
	}
}

func (m *fpsMeter) rate() float64 {
	if m.interval <= 0 {
		return 0
	}
	return 1 / m.interval
}

// frameTime returns the capture timestamp, or the write time when the
// session did not stamp the frame.
func frameTime(ts, now time.Time) time.Time {
	if ts.IsZero() {
		return now
	}
	return ts
}

// StreamStats is a snapshot of one stream's counters.
type StreamStats struct {
	Kind    StreamKind `json:"-"`
	Stream  string     `json:"stream"`
	FPS     float64    `json:"fps"`
	Written uint64     `json:"written"`
	Dropped uint64     `json:"dropped"`
}

// FrameBuffer caches the newest sample of each stream kind.
//
// A write replaces the previous value of the same kind. When the previous
// value had not been drained it is counted as dropped; frames are never
// queued. Invalid parts are ignored, so an invalid or partial sample never
// disturbs the cached value of any other kind.
//
// Thread Safety: all methods are safe for concurrent use. Writers and the
// draining consumer share a single mutex.
type FrameBuffer struct {
	mu sync.Mutex

	depth    capture.DepthFrame
	infrared capture.InfraredFrame
	visible  capture.VisibleFrame
	accel    capture.IMUEvent
	gyro     capture.IMUEvent

	dirty   [numStreamKinds]bool
	written [numStreamKinds]uint64
	dropped [numStreamKinds]uint64
	fps     [numStreamKinds]fpsMeter

	now func() time.Time
}

// NewFrameBuffer creates an empty FrameBuffer.
func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{now: time.Now}
}

// Write stores every valid part of the sample and marks those kinds dirty.
// It reports whether anything was stored.
func (b *FrameBuffer) Write(sample capture.Sample) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	stored := false

	switch sample.Type {
	case capture.SampleDepthFrame:
		stored = b.writeDepth(sample.Depth, now)
	case capture.SampleInfraredFrame:
		stored = b.writeInfrared(sample.Infrared, now)
	case capture.SampleVisibleFrame, capture.SampleExternalColorFrame, capture.SampleMultiCameraColorFrame:
		stored = b.writeVisible(sample.Visible, now)
	case capture.SampleSynchronizedFrames:
		// Each part is validated independently.
		d := b.writeDepth(sample.Depth, now)
		i := b.writeInfrared(sample.Infrared, now)
		v := b.writeVisible(sample.Visible, now)
		stored = d || i || v
	case capture.SampleAccelerometerEvent:
		if sample.Accelerometer.Valid {
			b.accel = sample.Accelerometer
			b.mark(StreamAccelerometer, frameTime(sample.Accelerometer.Timestamp, now))
			stored = true
		}
	case capture.SampleGyroscopeEvent:
		if sample.Gyroscope.Valid {
			b.gyro = sample.Gyroscope
			b.mark(StreamGyroscope, frameTime(sample.Gyroscope.Timestamp, now))
			stored = true
		}
	case capture.SampleInvalid:
	}

	return stored
}

func (b *FrameBuffer) writeDepth(f capture.DepthFrame, now time.Time) bool {
	if !f.Valid {
		return false
	}
	b.depth = f
	b.mark(StreamDepth, frameTime(f.Timestamp, now))
	return true
}

func (b *FrameBuffer) writeInfrared(f capture.InfraredFrame, now time.Time) bool {
	if !f.Valid {
		return false
	}
	b.infrared = f
	b.mark(StreamInfrared, frameTime(f.Timestamp, now))
	return true
}

func (b *FrameBuffer) writeVisible(f capture.VisibleFrame, now time.Time) bool {
	if !f.Valid {
		return false
	}
	b.visible = f
	b.mark(StreamVisible, frameTime(f.Timestamp, now))
	return true
}

// mark must be called with mu held.
func (b *FrameBuffer) mark(kind StreamKind, at time.Time) {
	if b.dirty[kind] {
		b.dropped[kind]++
	}
	b.dirty[kind] = true
	b.written[kind]++
	b.fps[kind].tick(at)
}

// DrainDepth returns the newest depth frame and clears its dirty flag.
// ok is false when no new frame has arrived since the last drain. The
// caller owns the returned pixel slice.
func (b *FrameBuffer) DrainDepth() (capture.DepthFrame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.dirty[StreamDepth] {
		return capture.DepthFrame{}, false
	}
	b.dirty[StreamDepth] = false
	return b.depth, true
}

// DrainInfrared returns the newest infrared frame and clears its dirty flag.
func (b *FrameBuffer) DrainInfrared() (capture.InfraredFrame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.dirty[StreamInfrared] {
		return capture.InfraredFrame{}, false
	}
	b.dirty[StreamInfrared] = false
	return b.infrared, true
}

// DrainVisible returns the newest visible frame and clears its dirty flag.
func (b *FrameBuffer) DrainVisible() (capture.VisibleFrame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.dirty[StreamVisible] {
		return capture.VisibleFrame{}, false
	}
	b.dirty[StreamVisible] = false
	return b.visible, true
}

// DrainAccelerometer returns the newest accelerometer event and clears its dirty flag.
func (b *FrameBuffer) DrainAccelerometer() (capture.IMUEvent, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.dirty[StreamAccelerometer] {
		return capture.IMUEvent{}, false
	}
	b.dirty[StreamAccelerometer] = false
	return b.accel, true
}

// DrainGyroscope returns the newest gyroscope event and clears its dirty flag.
func (b *FrameBuffer) DrainGyroscope() (capture.IMUEvent, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.dirty[StreamGyroscope] {
		return capture.IMUEvent{}, false
	}
	b.dirty[StreamGyroscope] = false
	return b.gyro, true
}

// Acceleration returns the newest accelerometer reading without draining it.
func (b *FrameBuffer) Acceleration() capture.Vec3 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.accel.Value
}

// RotationRate returns the newest gyroscope reading without draining it.
func (b *FrameBuffer) RotationRate() capture.Vec3 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gyro.Value
}

// Dirty reports whether kind holds an undrained value.
func (b *FrameBuffer) Dirty(kind StreamKind) bool {
	if kind < 0 || kind >= numStreamKinds {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dirty[kind]
}

// FPS returns the smoothed frame rate of kind.
func (b *FrameBuffer) FPS(kind StreamKind) float64 {
	if kind < 0 || kind >= numStreamKinds {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fps[kind].rate()
}

// Stats returns a snapshot of every stream's counters in StreamKinds order.
func (b *FrameBuffer) Stats() []StreamStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]StreamStats, 0, numStreamKinds)
	for _, k := range StreamKinds {
		out = append(out, StreamStats{
			Kind:    k,
			Stream:  k.String(),
			FPS:     b.fps[k].rate(),
			Written: b.written[k],
			Dropped: b.dropped[k],
		})
	}
	return out
}

// Reset discards every cached value and counter.
func (b *FrameBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.depth = capture.DepthFrame{}
	b.infrared = capture.InfraredFrame{}
	b.visible = capture.VisibleFrame{}
	b.accel = capture.IMUEvent{}
	b.gyro = capture.IMUEvent{}
	b.dirty = [numStreamKinds]bool{}
	b.written = [numStreamKinds]uint64{}
	b.dropped = [numStreamKinds]uint64{}
	b.fps = [numStreamKinds]fpsMeter{}
}
