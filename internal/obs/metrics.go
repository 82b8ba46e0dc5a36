package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Shared HTTP metrics.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Authorization metrics. Cross-tenant denials are counted apart from
// ordinary permission denials: they indicate a client bug or an attack.
var (
	authzCrossTenantDenials = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "authz_cross_tenant_denials_total",
		Help: "Requests denied for targeting a foreign company.",
	})

	authzPermissionDenials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_permission_denials_total",
			Help: "Permission matrix denials.",
		},
		[]string{"section", "action"},
	)

	joinRequestDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_join_request_decisions_total",
			Help: "Join-request terminal transitions.",
		},
		[]string{"status"},
	)

	claimsSyncFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "authz_claims_sync_failures_total",
		Help: "Failed claim pushes to the identity provider.",
	})
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		authzCrossTenantDenials, authzPermissionDenials,
		joinRequestDecisions, claimsSyncFailures,
	)
}

// IncCrossTenantDenial counts a denied cross-tenant access attempt.
func IncCrossTenantDenial() { authzCrossTenantDenials.Inc() }

// IncPermissionDenial counts a permission matrix denial.
func IncPermissionDenial(section, action string) {
	authzPermissionDenials.WithLabelValues(section, action).Inc()
}

// IncJoinDecision counts a join-request terminal transition.
func IncJoinDecision(status string) {
	joinRequestDecisions.WithLabelValues(status).Inc()
}

// IncClaimsSyncFailure counts a failed identity-provider claim push.
func IncClaimsSyncFailure() { claimsSyncFailures.Inc() }

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument wraps an HTTP handler with RPS/latency/in-flight metrics.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter captures the response code for labeling.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
