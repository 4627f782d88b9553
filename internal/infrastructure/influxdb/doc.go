// Package influxdb provides InfluxDB connectivity for displayd telemetry.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, batched metric writing, and health monitoring.
//
// # Purpose
//
// Time-series data recorded here:
//   - Monitor brightness and contrast as observed by refresh and set
//   - Controllability transitions
//   - Roster scan duration and failed enumeration sources
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteMonitorMetric(slug, "ddc", influxdb.MetricBrightness, 40)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write errors are delivered asynchronously to the SetOnError callback.
// Connection and health check errors are returned directly.
package influxdb
