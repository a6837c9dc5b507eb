// Package metrics holds the prometheus collectors of the conversion
// pipeline and the HTTP service. Collectors are registered on an injected
// registerer; a nil *Metrics records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "trackconv"

// Metrics groups every collector.
type Metrics struct {
	filesTotal       *prometheus.CounterVec
	failuresTotal    *prometheus.CounterVec
	pointsTotal      *prometheus.CounterVec
	elevationLookups *prometheus.CounterVec
	stageDuration    *prometheus.HistogramVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		filesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "files_total",
			Help:      "Input files processed, by outcome",
		}, []string{"status"}),

		failuresTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "failures_total",
			Help:      "Pipeline failures by stage and error kind",
		}, []string{"stage", "kind"}),

		pointsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simplify",
			Name:      "points_total",
			Help:      "Track points entering and leaving simplification",
		}, []string{"direction"}),

		elevationLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "elevation",
			Name:      "lookups_total",
			Help:      "Elevation lookups by result",
		}, []string{"result"}),

		stageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"stage"}),

		httpRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed",
		}, []string{"method", "path", "status"}),

		httpRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "path"}),
	}
}

// FileDone counts a processed input file; status is "ok" or "failed".
func (m *Metrics) FileDone(status string) {
	if m == nil {
		return
	}
	m.filesTotal.WithLabelValues(status).Inc()
}

// Failure counts a failed stage with its error kind.
func (m *Metrics) Failure(stage, kind string) {
	if m == nil {
		return
	}
	m.failuresTotal.WithLabelValues(stage, kind).Inc()
}

// Points records simplification input and output sizes.
func (m *Metrics) Points(in, out int) {
	if m == nil {
		return
	}
	m.pointsTotal.WithLabelValues("in").Add(float64(in))
	m.pointsTotal.WithLabelValues("out").Add(float64(out))
}

// ElevationLookups records lookup outcomes.
func (m *Metrics) ElevationLookups(ok, unavailable int) {
	if m == nil {
		return
	}
	m.elevationLookups.WithLabelValues("ok").Add(float64(ok))
	m.elevationLookups.WithLabelValues("unavailable").Add(float64(unavailable))
}

// ObserveStage records how long a stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// Middleware records request metrics using the chi route pattern as path
// label to keep cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		m.httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the exposition format for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
