// Package metrics exposes Prometheus instrumentation for the analytics
// engine and its HTTP surface, on a collector-owned registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector aggregates engine and HTTP metrics. All methods are safe on a
// nil receiver so instrumentation stays optional for callers.
type Collector struct {
	registry *prometheus.Registry

	daysProcessed   prometheus.Counter
	daysSkipped     prometheus.Counter
	interactions    prometheus.Counter
	anomalies       *prometheus.CounterVec
	dayDuration     prometheus.Histogram
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
}

// NewCollector constructs a collector with its own registry.
func NewCollector() (*Collector, error) {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		daysProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rambam",
			Subsystem: "engine",
			Name:      "days_processed_total",
			Help:      "Number of day logs fully processed.",
		}),
		daysSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rambam",
			Subsystem: "engine",
			Name:      "days_skipped_total",
			Help:      "Number of day logs that failed to load or normalize.",
		}),
		interactions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rambam",
			Subsystem: "engine",
			Name:      "interactions_total",
			Help:      "Number of interactions normalized.",
		}),
		anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rambam",
			Subsystem: "engine",
			Name:      "anomalies_total",
			Help:      "Number of anomaly findings, by severity.",
		}, []string{"severity"}),
		dayDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rambam",
			Subsystem: "engine",
			Name:      "day_duration_seconds",
			Help:      "Time spent processing one day log.",
			Buckets:   prometheus.DefBuckets,
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rambam",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution for inbound HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rambam",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of inbound HTTP requests.",
		}, []string{"method", "path", "status"}),
	}

	for _, col := range []prometheus.Collector{
		c.daysProcessed, c.daysSkipped, c.interactions, c.anomalies,
		c.dayDuration, c.requestDuration, c.requestTotal,
	} {
		if err := registry.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// RecordDay accounts one fully processed day log.
func (c *Collector) RecordDay(interactions, critical, warning, operational int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.daysProcessed.Inc()
	c.interactions.Add(float64(interactions))
	c.anomalies.WithLabelValues("critical").Add(float64(critical))
	c.anomalies.WithLabelValues("warning").Add(float64(warning))
	c.anomalies.WithLabelValues("operational").Add(float64(operational))
	c.dayDuration.Observe(elapsed.Seconds())
}

// RecordSkippedDay accounts a day log that could not be processed.
func (c *Collector) RecordSkippedDay() {
	if c == nil {
		return
	}
	c.daysSkipped.Inc()
}

// Handler returns the scrape endpoint for the collector's registry.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps next to record request counts and latency.
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		status := strconv.Itoa(rw.status)
		c.requestTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		c.requestDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(time.Since(start).Seconds())
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
