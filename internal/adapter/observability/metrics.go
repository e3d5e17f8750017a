package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fairyhunter13/screening-gate/internal/domain"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"route", "method"},
	)

	GateEvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_evaluations_total",
			Help: "Session gate transitions by resulting status",
		},
		[]string{"status"},
	)
	ApplicationsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "applications_created_total",
			Help: "Applications created by channel",
		},
		[]string{"channel"},
	)
	ApplicationsDuplicateTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "applications_duplicate_total",
			Help: "Application attempts rejected as duplicates by channel",
		},
		[]string{"channel"},
	)
	SessionsAbandonedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessions_abandoned_total",
			Help: "Sessions moved to ABANDONED by the sweeper",
		},
		[]string{"reason"},
	)
)

var registerOnce sync.Once

// InitMetrics registers all collectors with the default registry once.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			GateEvaluationsTotal,
			ApplicationsCreatedTotal,
			ApplicationsDuplicateTotal,
			SessionsAbandonedTotal,
		)
	})
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		HTTPRequestsTotal.WithLabelValues(route, r.Method, http.StatusText(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(dur)
	})
}

// RecordGateEvaluation counts a won IN_PROGRESS transition.
func RecordGateEvaluation(status domain.SessionStatus) {
	GateEvaluationsTotal.WithLabelValues(string(status)).Inc()
}

func RecordApplicationCreated(channel string) {
	ApplicationsCreatedTotal.WithLabelValues(channel).Inc()
}

func RecordDuplicateApplication(channel string) {
	ApplicationsDuplicateTotal.WithLabelValues(channel).Inc()
}

// RecordSweep adds one sweep's counts.
func RecordSweep(res domain.SweepResult) {
	SessionsAbandonedTotal.WithLabelValues("in_progress_stale").Add(float64(res.InProgressSwept))
	SessionsAbandonedTotal.WithLabelValues("passed_without_application").Add(float64(res.OrphanedPassedSwept))
}
