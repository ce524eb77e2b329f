package obs

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

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

	authAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Authentication flow outcomes.",
		},
		[]string{"flow", "outcome"},
	)

	secretUpgrades = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_secret_upgrades_total",
			Help: "Stored secrets rewritten in the current format during sign-in.",
		},
		[]string{"reason"},
	)

	gateRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_gate_rejections_total",
			Help: "Requests rejected by an access gate.",
		},
		[]string{"gate"},
	)

	readyGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "service_ready",
		Help: "1 when the last readiness probe succeeded.",
	})

	initOnce sync.Once
)

// Init registers the metrics in the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration,
			authAttempts, secretUpgrades, gateRejections, readyGauge,
		)
	})
}

// Handler serves the Prometheus exposition endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// AuthAttempt counts one outcome of an authentication flow.
func AuthAttempt(flow, outcome string) {
	authAttempts.WithLabelValues(flow, outcome).Inc()
}

// SecretUpgraded counts a stored secret rewritten during sign-in.
func SecretUpgraded(reason string) {
	secretUpgrades.WithLabelValues(reason).Inc()
}

// GateRejected counts a request turned away by the named gate.
func GateRejected(gate string) {
	gateRejections.WithLabelValues(gate).Inc()
}

// SetReady records the outcome of the readiness probe.
func SetReady(ok bool) {
	if ok {
		readyGauge.Set(1)
		return
	}
	readyGauge.Set(0)
}

// CanonicalPath strips the query and keeps label cardinality bounded:
// unknown paths collapse to "other".
func CanonicalPath(raw string) string {
	path := raw
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	if _, ok := knownPaths[path]; ok {
		return path
	}
	return "other"
}

var knownPaths = map[string]struct{}{
	"/":                             {},
	"/healthz":                      {},
	"/readyz":                       {},
	"/metrics":                      {},
	"/api/admin/sign_in":            {},
	"/api/admin/sign_out":           {},
	"/api/admin/me":                 {},
	"/api/player/sign_up":           {},
	"/api/player/sign_in":           {},
	"/api/player/guest":             {},
	"/api/player/me":                {},
	"/api/v1/players/sign_up":       {},
	"/api/v1/players/sign_in":       {},
	"/api/v1/players/guest/sign_up": {},
	"/api/v1/players/profile":       {},
}

// Instrument records RPS, latency and in-flight requests.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
