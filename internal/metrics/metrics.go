// Package metrics exposes Prometheus collectors for HTTP traffic, ingestion
// and queries.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors. It satisfies email.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	IngestedTotal       prometheus.Counter
	BatchesRejected     *prometheus.CounterVec
	Queries             *prometheus.CounterVec
}

// New registers every collector on a fresh registry, plus the Go runtime and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emailfilter_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "emailfilter_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		IngestedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "emailfilter_emails_ingested_total",
			Help: "Email records committed by bulk ingestion",
		}),
		BatchesRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emailfilter_batches_rejected_total",
				Help: "Email batches rejected, by reason",
			},
			[]string{"reason"},
		),
		Queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emailfilter_queries_total",
				Help: "Filtered email queries, by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),
	}
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.IngestedTotal,
		m.BatchesRejected,
		m.Queries,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) EmailsIngested(n int) {
	m.IngestedTotal.Add(float64(n))
}

func (m *Metrics) BatchRejected(reason string) {
	m.BatchesRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) Query(endpoint, outcome string) {
	m.Queries.WithLabelValues(endpoint, outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request counts and latency labelled by the matched chi
// route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
