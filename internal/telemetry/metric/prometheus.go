package metric

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yndnr/autosave-go/internal/telemetry/status"
)

const namespace = "autosave"

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	// Set metrics
	SetStatus      *prometheus.GaugeVec
	SetLastSave    *prometheus.GaugeVec
	SetUnreachable *prometheus.GaugeVec

	// Global metrics
	GlobalStatus   prometheus.Gauge
	Heartbeat      prometheus.Gauge
	StorageHealthy prometheus.Gauge
	Sets           prometheus.Gauge

	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	mu    sync.Mutex
	known map[string]bool
}

// NewRegistry creates a registry with the Go runtime and process
// collectors plus the autosave metrics.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		SetStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "set_status",
			Help:      "Save status per set (0 init, 1 fail, 2 warning, 3 seq-warning, 4 ok).",
		}, []string{"set"}),
		SetLastSave: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "set_last_save_timestamp_seconds",
			Help:      "Unix time of the last successful save per set.",
		}, []string{"set"}),
		SetUnreachable: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "set_unreachable_points",
			Help:      "Points that could not be read at the last save.",
		}, []string{"set"}),
		GlobalStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "status",
			Help:      "Worst save status across all sets.",
		}),
		Heartbeat: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "heartbeat",
			Help:      "Scheduler cycle counter.",
		}),
		StorageHealthy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "storage_healthy",
			Help:      "1 while the save storage is healthy.",
		}),
		Sets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sets",
			Help:      "Registered save sets.",
		}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Admin API requests.",
		}, []string{"method", "route", "code"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Admin API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		known: map[string]bool{},
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.SetStatus,
		r.SetLastSave,
		r.SetUnreachable,
		r.GlobalStatus,
		r.Heartbeat,
		r.StorageHealthy,
		r.Sets,
		r.RequestsTotal,
		r.RequestDuration,
	)
	return r
}

var (
	globalOnce sync.Once
	global     *Registry
)

// Global returns the process-wide registry.
func Global() *Registry {
	globalOnce.Do(func() { global = NewRegistry() })
	return global
}

// Registerer lets other components (the journal) add their own metrics.
func (r *Registry) Registerer() prometheus.Registerer {
	return r.registry
}

// Gatherer exposes the underlying registry for tests and handlers.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Publish updates the gauges from a cycle report. Series of sets that
// disappeared from the report are deleted.
func (r *Registry) Publish(rep status.Report) {
	r.GlobalStatus.Set(float64(rep.Global.Status))
	r.Heartbeat.Set(float64(rep.Global.Heartbeat))
	r.Sets.Set(float64(len(rep.Sets)))
	if rep.Global.Healthy {
		r.StorageHealthy.Set(1)
	} else {
		r.StorageHealthy.Set(0)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]bool, len(rep.Sets))
	for _, s := range rep.Sets {
		seen[s.Name] = true
		r.SetStatus.WithLabelValues(s.Name).Set(float64(s.Status))
		r.SetUnreachable.WithLabelValues(s.Name).Set(float64(s.Unreachable))
		if !s.LastSave.IsZero() {
			r.SetLastSave.WithLabelValues(s.Name).Set(float64(s.LastSave.Unix()))
		}
	}
	for name := range r.known {
		if !seen[name] {
			r.SetStatus.DeleteLabelValues(name)
			r.SetUnreachable.DeleteLabelValues(name)
			r.SetLastSave.DeleteLabelValues(name)
		}
	}
	r.known = seen
}
