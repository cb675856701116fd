// Package server assembles the HTTP and gRPC servers: middleware order, public routes and the
// routes of the impersonation and support APIs.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"casedesk/backend/internal/audit"
	healthhandler "casedesk/backend/internal/health/handler"
	"casedesk/backend/internal/security"
	"casedesk/backend/internal/server/interceptors"
	"casedesk/backend/internal/server/middleware"
)

// APIPrefix is where the authenticated API is mounted.
const APIPrefix = "/api/v1"

// RouteRegistrar mounts a group of API routes.
type RouteRegistrar interface {
	Routes(r chi.Router)
}

// HTTPDeps holds the dependencies of the HTTP router.
type HTTPDeps struct {
	Verifier   security.TokenVerifier
	Propagator *interceptors.Propagator
	// Requests records REQUEST_COMPLETED for requests served under impersonation. Optional.
	Requests audit.RequestLogger
	Health   *healthhandler.HTTP
	// APIs are mounted under APIPrefix behind authentication and impersonation propagation.
	APIs []RouteRegistrar
	// Metrics serves /metrics. Nil means the default Prometheus registry.
	Metrics http.Handler
	Logger  *zap.Logger
}

// NewRouter returns the HTTP handler. Health and metrics are public; everything under APIPrefix
// requires an operator token and runs Authenticate, Impersonation, CaptureIdentity and RequestAudit
// in that order.
func NewRouter(d HTTPDeps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Metrics == nil {
		d.Metrics = promhttp.Handler()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(middleware.Metrics())

	if d.Health != nil {
		d.Health.Routes(r)
	}
	r.Method(http.MethodGet, "/metrics", d.Metrics)

	r.Route(APIPrefix, func(r chi.Router) {
		r.Use(middleware.Authenticate(d.Verifier, d.Logger))
		r.Use(middleware.Impersonation(d.Propagator))
		r.Use(middleware.CaptureIdentity)
		r.Use(middleware.RequestAudit(d.Requests))
		for _, api := range d.APIs {
			api.Routes(r)
		}
	})
	return r
}

// NewHTTPServer wraps handler in an http.Server with conservative timeouts.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
