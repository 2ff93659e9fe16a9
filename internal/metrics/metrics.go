package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "peerprep",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests received",
	}, []string{"service", "method", "path", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "peerprep",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"service", "method", "path", "status"})

	httpInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "peerprep",
		Name:      "http_in_flight_requests",
		Help:      "Current number of in-flight HTTP requests",
	}, []string{"service"})

	interviewTurns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "peerprep",
		Subsystem: "interview",
		Name:      "turns_total",
		Help:      "Answer submissions by outcome",
	}, []string{"outcome"})

	interviewDuplicates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "peerprep",
		Subsystem: "interview",
		Name:      "duplicates_total",
		Help:      "Duplicate questions and answers detected by embedding similarity",
	}, []string{"kind"})

	upstreamErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "peerprep",
		Subsystem: "interview",
		Name:      "upstream_errors_total",
		Help:      "Failures of external providers",
	}, []string{"gateway"})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "peerprep",
		Subsystem: "interview",
		Name:      "active_sessions",
		Help:      "Sessions currently held in memory",
	})

	agentLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "peerprep",
		Subsystem: "interview",
		Name:      "agent_latency_seconds",
		Help:      "Time from agent request to the end of the generated question",
		Buckets:   []float64{0.5, 1, 2, 4, 8, 15, 30, 60},
	}, []string{"role"})
)

// turn outcomes
const (
	TurnCompleted = "completed"
	TurnEnded     = "ended"
	TurnFailed    = "failed"
	TurnAborted   = "aborted"
)

func RecordTurn(outcome string) {
	interviewTurns.WithLabelValues(outcome).Inc()
}

func RecordDuplicate(kind string) {
	interviewDuplicates.WithLabelValues(kind).Inc()
}

func RecordUpstreamError(gateway string) {
	upstreamErrors.WithLabelValues(gateway).Inc()
}

func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}

func ObserveAgentLatency(role string, d time.Duration) {
	agentLatency.WithLabelValues(role).Observe(d.Seconds())
}

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := r.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("metrics: underlying ResponseWriter does not support hijacking")
}

// Middleware records request metrics. Paths are labelled with the chi route
// pattern so session ids do not explode label cardinality.
func Middleware(service string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			httpInFlight.WithLabelValues(service).Inc()
			defer httpInFlight.WithLabelValues(service).Dec()

			next.ServeHTTP(rec, r)

			labels := prometheus.Labels{
				"service": service,
				"method":  r.Method,
				"path":    routePattern(r),
				"status":  strconv.Itoa(rec.status),
			}
			httpRequests.With(labels).Inc()
			httpLatency.With(labels).Observe(time.Since(start).Seconds())
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// Handler exposes the default Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
