package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"casedesk/backend/internal/server/interceptors"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casedesk_http_requests_total",
			Help: "HTTP requests served, by method, route pattern and status.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "casedesk_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	httpImpersonatedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casedesk_http_impersonated_requests_total",
			Help: "HTTP requests that presented an impersonation session, by outcome.",
		},
		[]string{"outcome"},
	)
)

// Metrics records request counts and latency. Routes are labelled with the chi pattern so ids in
// the path do not multiply series.
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r)

			route := routePattern(r)
			httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.statusCode)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())

			if r.Header.Get(interceptors.HeaderSession) == "" {
				return
			}
			outcome := "active"
			switch {
			case sw.Header().Get(interceptors.HeaderInvalid) != "":
				outcome = "invalid"
			case sw.statusCode == http.StatusServiceUnavailable:
				outcome = "unavailable"
			}
			httpImpersonatedRequests.WithLabelValues(outcome).Inc()
		})
	}
}
