package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the telemetry sampler.
const (
	MeasurementStream = "sensor_stream"
	MeasurementRouter = "sensor_router"
)

// WriteStreamStats records one stream's frame rate and drop counter.
//
// Parameters:
//   - serial: sensor serial, stored as a tag
//   - stream: stream name such as "depth" or "gyroscope", stored as a tag
//   - fps: measured frames per second
//   - dropped: cumulative frames overwritten before being read
//   - ts: sample time
func (c *Client) WriteStreamStats(serial, stream string, fps float64, dropped uint64, ts time.Time) {
	c.WritePointWithTime(MeasurementStream,
		map[string]string{"serial": serial, "stream": stream},
		map[string]any{"fps": fps, "dropped": dropped},
		ts)
}

// WriteRouterStats records the router inbox depth and its drop counters.
func (c *Client) WriteRouterStats(queued int, droppedSamples, droppedEvents uint64, ts time.Time) {
	c.WritePointWithTime(MeasurementRouter,
		nil,
		map[string]any{
			"queued":          queued,
			"dropped_samples": droppedSamples,
			"dropped_events":  droppedEvents,
		},
		ts)
}

// WritePoint writes a point stamped with the current time.
//
// Example:
//
//	client.WritePoint("sensor_temperature",
//	    map[string]string{"serial": "ST-1"},
//	    map[string]any{"celsius": 41.5})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a point with an explicit timestamp. Points are
// discarded once the client is closed.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if c.closed.Load() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
	c.written.Add(1)
}
