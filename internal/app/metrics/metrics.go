package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "parking_layer",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parking_layer",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "parking_layer",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	openSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "parking_layer",
			Subsystem: "sessions",
			Name:      "open_total",
			Help:      "Number of currently open parking sessions.",
		},
	)

	sessionEntries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "parking_layer",
			Subsystem: "sessions",
			Name:      "entries_total",
			Help:      "Total number of parking sessions opened.",
		},
	)

	sessionExits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "parking_layer",
			Subsystem: "sessions",
			Name:      "exits_total",
			Help:      "Total number of parking sessions closed.",
		},
	)

	sessionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "parking_layer",
			Subsystem: "sessions",
			Name:      "duration_hours",
			Help:      "Duration of closed parking sessions in hours.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8), // 15min to ~32h
		},
	)

	settlementCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parking_layer",
			Subsystem: "settlement",
			Name:      "calls_total",
			Help:      "Total number of settlement layer invocations.",
		},
		[]string{"operation", "outcome"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		openSessions,
		sessionEntries,
		sessionExits,
		sessionDuration,
		settlementCalls,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordSessionEntry records a newly opened parking session.
func RecordSessionEntry() {
	sessionEntries.Inc()
	openSessions.Inc()
}

// RecordSessionExit records a closed parking session and its duration.
func RecordSessionExit(durationHours float64) {
	sessionExits.Inc()
	openSessions.Dec()
	if durationHours >= 0 {
		sessionDuration.Observe(durationHours)
	}
}

// RecordSettlementCall records a settlement layer invocation outcome.
func RecordSettlementCall(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	settlementCalls.WithLabelValues(operation, outcome).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses per-resource segments so label cardinality stays
// bounded.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if parts[0] != "parking" {
		return "/" + parts[0]
	}
	if len(parts) == 1 {
		return "/parking"
	}
	return "/parking/" + parts[1]
}
