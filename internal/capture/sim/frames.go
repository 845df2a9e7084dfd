package sim

import (
	"math"
	"time"

	"github.com/nerrad567/depthcore/internal/capture"
)

const (
	irWidth, irHeight   = 1280, 960
	visWidth, visHeight = 640, 480
)

// generator produces synthetic frames for one stream run.
type generator struct {
	settings   capture.Settings
	minMM      float32
	maxMM      float32
	intrinsics capture.Intrinsics
	irExposure func() (float32, float32)
	frame      int
}

func newGenerator(settings capture.Settings, irExposure func() (float32, float32)) *generator {
	minMM, maxMM, ok := capture.RangeToMM(settings.DepthRangeMode)
	if !ok {
		minMM, maxMM, _ = capture.RangeToMM(capture.RangeMedium)
	}
	w, h := settings.DepthResolution.Size()
	return &generator{
		settings:   settings,
		minMM:      minMM,
		maxMM:      maxMM,
		irExposure: irExposure,
		intrinsics: capture.Intrinsics{
			Width:  w,
			Height: h,
			Fx:     0.86 * float64(w),
			Fy:     0.86 * float64(w),
			Cx:     float64(w) / 2,
			Cy:     float64(h) / 2,
		},
	}
}

// syncRate is the rate of bundled frames: the depth rate when depth is on,
// otherwise the first enabled camera's rate.
func (g *generator) syncRate() float32 {
	switch {
	case g.settings.DepthEnabled:
		return g.settings.DepthFramerate
	case g.settings.InfraredEnabled:
		return g.settings.InfraredFramerate
	default:
		return g.settings.VisibleFramerate
	}
}

// depth renders a plane tilted left to right that drifts slowly through
// the first half of the working range.
func (g *generator) depth(now time.Time) capture.DepthFrame {
	g.frame++
	w, h := g.intrinsics.Width, g.intrinsics.Height
	span := g.maxMM - g.minMM
	base := g.minMM + span*(0.25+0.1*float32(math.Sin(float64(g.frame)/60)))

	px := make([]float32, w*h)
	for y := 0; y < h; y++ {
		row := px[y*w : (y+1)*w]
		for x := range row {
			row[x] = base + span*0.05*float32(x)/float32(w)
		}
	}
	return capture.DepthFrame{
		Width:       w,
		Height:      h,
		Millimeters: px,
		Intrinsics:  g.intrinsics,
		Timestamp:   now,
		Valid:       true,
	}
}

// infrared renders a horizontal gradient whose brightness follows the
// applied exposure and gain.
func (g *generator) infrared(now time.Time) capture.InfraredFrame {
	w := irWidth
	if g.settings.InfraredMode == capture.InfraredBothCameras {
		w *= 2
	}
	exposure, gain := g.irExposure()
	level := min(float64(exposure)*float64(gain)*1e6, math.MaxUint16)

	data := make([]uint16, w*irHeight)
	for y := 0; y < irHeight; y++ {
		for x := 0; x < w; x++ {
			data[y*w+x] = uint16(level * float64(x%irWidth) / irWidth)
		}
	}
	return capture.InfraredFrame{Width: w, Height: irHeight, Data: data, Timestamp: now, Valid: true}
}

func (g *generator) visible(now time.Time) capture.VisibleFrame {
	rgb := make([]uint8, visWidth*visHeight*3)
	for i := 0; i < len(rgb); i += 3 {
		p := i / 3
		rgb[i] = uint8(p % visWidth * 255 / visWidth)
		rgb[i+1] = uint8(p / visWidth * 255 / visHeight)
		rgb[i+2] = uint8(g.frame)
	}
	return capture.VisibleFrame{Width: visWidth, Height: visHeight, RGB: rgb, Timestamp: now, Valid: true}
}

func (g *generator) synchronized(now time.Time) capture.Sample {
	smp := capture.Sample{Type: capture.SampleSynchronizedFrames}
	if g.settings.DepthEnabled {
		smp.Depth = g.depth(now)
	}
	if g.settings.InfraredEnabled {
		smp.Infrared = g.infrared(now)
	}
	if g.settings.VisibleEnabled {
		smp.Visible = g.visible(now)
	}
	return smp
}

// accelerometer reports gravity with the sensor lying level, in g.
func (g *generator) accelerometer(now time.Time) capture.IMUEvent {
	return capture.IMUEvent{Value: capture.Vec3{X: 0, Y: -1, Z: 0}, Timestamp: now, Valid: true}
}

func (g *generator) gyroscope(now time.Time) capture.IMUEvent {
	return capture.IMUEvent{Value: capture.Vec3{X: 0.001, Y: -0.002, Z: 0}, Timestamp: now, Valid: true}
}
