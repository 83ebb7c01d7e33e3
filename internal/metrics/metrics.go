// Package metrics exposes Prometheus instrumentation for the transforms and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Transform metrics
	TransformDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "airquality_transform_duration_seconds",
			Help:    "Duration of dataset transforms in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"transform"},
	)

	TransformFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airquality_transform_failures_total",
			Help: "Total number of transforms that ended with a notice instead of a result",
		},
		[]string{"transform", "reason"},
	)

	// Dataset metrics
	DatasetRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "airquality_dataset_rows",
			Help: "Number of rows in the active dataset snapshot",
		},
	)

	DatasetLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airquality_dataset_loads_total",
			Help: "Dataset load attempts by source kind and outcome",
		},
		[]string{"source", "outcome"},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airquality_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "airquality_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	WebsocketSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "airquality_websocket_sessions",
			Help: "Currently open dashboard websocket sessions",
		},
	)
)

// ObserveTransform records how long a transform took.
func ObserveTransform(name string, start time.Time) {
	TransformDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
}

// RecordTransformFailure counts a transform that produced a notice.
func RecordTransformFailure(name, reason string) {
	TransformFailures.WithLabelValues(name, reason).Inc()
}

// Middleware records request count and latency by route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		APIRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		APIRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
