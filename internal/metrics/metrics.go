package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPCollector exposes Prometheus metrics for inbound HTTP requests and
// the ingestion pipeline.
type HTTPCollector struct {
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	sourceSyncs  *prometheus.CounterVec
	leadsFetched *prometheus.CounterVec
	pollAttempts prometheus.Counter
	queueDepth   prometheus.Gauge
}

// NewHTTPCollector constructs a collector with default histograms/counters.
func NewHTTPCollector() (*HTTPCollector, error) {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "leadstream",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for inbound HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "leadstream",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of inbound HTTP requests.",
	}, []string{"method", "path", "status"})

	sourceSyncs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "leadstream",
		Subsystem: "sync",
		Name:      "source_syncs_total",
		Help:      "Connector source sync outcomes by source key and status.",
	}, []string{"source", "status"})

	leadsFetched := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "leadstream",
		Subsystem: "sync",
		Name:      "leads_fetched_total",
		Help:      "Normalized leads fetched from upstream feeds by source key.",
	}, []string{"source"})

	pollAttempts := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "leadstream",
		Subsystem: "lookup",
		Name:      "poll_attempts_total",
		Help:      "Poll requests issued against async classification jobs.",
	})

	queueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "leadstream",
		Subsystem: "sync",
		Name:      "queue_depth",
		Help:      "Sync jobs currently waiting in the trigger queue.",
	})

	collectors := []prometheus.Collector{
		requestDuration,
		requestTotal,
		sourceSyncs,
		leadsFetched,
		pollAttempts,
		queueDepth,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &HTTPCollector{
		registry:        registry,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		sourceSyncs:     sourceSyncs,
		leadsFetched:    leadsFetched,
		pollAttempts:    pollAttempts,
		queueDepth:      queueDepth,
	}, nil
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *HTTPCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler to record HTTP metrics.
func (c *HTTPCollector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.status)
		path := r.URL.Path

		c.requestTotal.WithLabelValues(r.Method, path, status).Inc()
		c.requestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
	})
}

// RecordSourceSync records one source sync outcome.
func (c *HTTPCollector) RecordSourceSync(sourceKey, status string) {
	c.sourceSyncs.WithLabelValues(sourceKey, status).Inc()
}

// RecordLeadsFetched records leads fetched for a source key.
func (c *HTTPCollector) RecordLeadsFetched(sourceKey string, count int) {
	c.leadsFetched.WithLabelValues(sourceKey).Add(float64(count))
}

// RecordPollAttempt records one classification job poll.
func (c *HTTPCollector) RecordPollAttempt() {
	c.pollAttempts.Inc()
}

// SetQueueDepth records the current trigger queue depth.
func (c *HTTPCollector) SetQueueDepth(depth int) {
	c.queueDepth.Set(float64(depth))
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
