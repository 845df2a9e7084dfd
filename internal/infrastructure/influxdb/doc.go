// Package influxdb writes sensor telemetry to InfluxDB v2.
//
// It wraps influxdb-client-go with connection checks, batched non-blocking
// writes and an error callback. The telemetry sampler writes two
// measurements through it:
//
//	sensor_stream,serial=ST-1,stream=depth fps=29.9,dropped=3i
//	sensor_router queued=0i,dropped_samples=0i,dropped_events=0i
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	client.SetOnError(func(err error) { log.Warn("influx write failed", "error", err) })
//
// Batching follows batch_size and flush_interval from config.yaml. Written
// and FailedBatches count points queued and batches lost.
package influxdb
