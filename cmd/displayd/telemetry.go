package main

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-displays/internal/display"
	"github.com/nerrad567/gray-logic-displays/internal/infrastructure/influxdb"
)

// metricWriter is the part of *influxdb.Client the telemetry hooks use.
type metricWriter interface {
	WriteMonitorMetric(monitor, backend, metric string, value float64)
	WriteScan(monitors int, elapsed time.Duration, failedSources int)
}

// telemetryRecorder forwards every observed value to InfluxDB.
type telemetryRecorder struct {
	client metricWriter
}

func (t telemetryRecorder) Record(_ context.Context, obs display.Observation) error {
	metric := influxdb.MetricBrightness
	if obs.Kind == display.KindContrast {
		metric = influxdb.MetricContrast
	}
	t.client.WriteMonitorMetric(obs.Identity.Slug(), string(obs.Backend), metric, float64(obs.Value))
	return nil
}

// scanMetrics returns a registry listener writing roster and
// controllability telemetry.
func scanMetrics(reg *display.Registry, client metricWriter) display.Listener {
	return func(ev display.Event) {
		switch ev.Type {
		case display.EventRosterChanged:
			scan, ok := reg.LastScan()
			if !ok {
				return
			}
			var elapsed time.Duration
			failed := 0
			for _, src := range scan.Sources {
				elapsed = max(elapsed, src.Elapsed)
				if !src.OK() {
					failed++
				}
			}
			client.WriteScan(scan.Monitors, elapsed, failed)
		case display.EventControllabilityChanged:
			v := 0.0
			if ev.Controllable {
				v = 1
			}
			backend := ""
			if c, ok := reg.Monitor(string(ev.Identity)); ok {
				backend = string(c.Backend())
			}
			client.WriteMonitorMetric(ev.Slug, backend, influxdb.MetricControllable, v)
		}
	}
}
