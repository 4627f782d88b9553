package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementMonitor = "monitor_metrics"
	measurementScan    = "roster_scans"
)

// Metric names written by WriteMonitorMetric.
const (
	MetricBrightness   = "brightness"
	MetricContrast     = "contrast"
	MetricControllable = "controllable"
)

// WriteMonitorMetric records one monitor value. The write is non-blocking;
// data is batched and sent asynchronously.
//
// Parameters:
//   - monitor: Monitor slug (lower-case identity safe for tags)
//   - backend: Bound backend ("ddc", "wmi", "hdr", "unreachable")
//   - metric: MetricBrightness, MetricContrast or MetricControllable
//   - value: The value to record
//
// Example:
//
//	client.WriteMonitorMetric("display-del4109-5_2b3c_0_uid4353", "ddc", influxdb.MetricBrightness, 40)
func (c *Client) WriteMonitorMetric(monitor, backend, metric string, value float64) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(monitorPoint(monitor, backend, metric, value, time.Now()))
}

// WriteScan records the outcome of a roster scan.
func (c *Client) WriteScan(monitors int, elapsed time.Duration, failedSources int) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(scanPoint(monitors, elapsed, failedSources, time.Now()))
}

// WritePoint writes a custom point with full control over tags and fields.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}

func monitorPoint(monitor, backend, metric string, value float64, ts time.Time) *write.Point {
	return write.NewPoint(
		measurementMonitor,
		map[string]string{
			"monitor":     monitor,
			"backend":     backend,
			"measurement": metric,
		},
		map[string]interface{}{
			"value": value,
		},
		ts,
	)
}

func scanPoint(monitors int, elapsed time.Duration, failedSources int, ts time.Time) *write.Point {
	return write.NewPoint(
		measurementScan,
		nil,
		map[string]interface{}{
			"monitors":       monitors,
			"elapsed_ms":     elapsed.Milliseconds(),
			"failed_sources": failedSources,
		},
		ts,
	)
}
