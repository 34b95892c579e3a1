// Package metric exposes scheduler state in Prometheus format.
//
// Registry owns a dedicated prometheus.Registry holding:
//
//   - per-set status, last-save time and unreachable-point gauges
//   - global status, heartbeat and storage-health gauges
//   - HTTP request counters and latency histograms
//
// Registry implements status.Publisher, so it is fed the same report as
// the status board after every cycle. Metrics are served at /metrics.
package metric
