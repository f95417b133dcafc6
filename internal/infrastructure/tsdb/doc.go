// Package tsdb writes hostbridge telemetry to InfluxDB v2.
//
// Recorded measurements: bridge event counts, trigger latency,
// connection link quality and session command outcomes. Writes are
// batched and non-blocking so telemetry never sits on the event path.
// The package is optional; when disabled in config nothing is written.
package tsdb
