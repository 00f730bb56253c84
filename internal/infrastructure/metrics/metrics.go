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

var (
	// Registry holds the application's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qr_nexus",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "qr_nexus",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	engagementWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qr_nexus",
			Name:      "engagement_writes_total",
			Help:      "Engagement counter writes by kind and outcome.",
		},
		[]string{"kind", "result"},
	)

	ledgerAwards = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qr_nexus",
			Name:      "ledger_awards_total",
			Help:      "Point award attempts by kind and outcome.",
		},
		[]string{"kind", "result"},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		engagementWrites,
		ledgerAwards,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Outcome labels.
const (
	ResultOK       = "ok"
	ResultRetried  = "retried"
	ResultFailed   = "failed"
	ResultSkipped  = "skipped"
	ResultCooldown = "cooldown"
	ResultDup      = "duplicate"
)

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Instrument records request count and latency labelled by the chi route
// pattern, so path parameters never explode label cardinality.
func Instrument(next http.Handler) http.Handler {
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
		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func EngagementWrite(kind, result string) {
	engagementWrites.WithLabelValues(kind, result).Inc()
}

func LedgerAward(kind, result string) {
	ledgerAwards.WithLabelValues(kind, result).Inc()
}
