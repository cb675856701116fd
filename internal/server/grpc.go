package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"casedesk/backend/internal/audit"
	healthhandler "casedesk/backend/internal/health/handler"
	"casedesk/backend/internal/security"
	"casedesk/backend/internal/server/interceptors"
)

// Full method names that skip operator authentication and the request audit.
const (
	healthCheckMethod = "/grpc.health.v1.Health/Check"
	healthWatchMethod = "/grpc.health.v1.Health/Watch"
	healthListMethod  = "/grpc.health.v1.Health/List"
)

// GRPCDeps holds the dependencies of the gRPC server.
type GRPCDeps struct {
	// Verifier checks operator Bearer tokens. Required.
	Verifier security.TokenVerifier
	// Propagator resolves x-impersonation-session metadata. Required.
	Propagator *interceptors.Propagator
	// Requests records REQUEST_COMPLETED for RPCs served under impersonation. If nil, no RPCs are audited.
	Requests audit.RequestLogger
	// Health answers grpc.health.v1. If nil, a server without readiness checks is registered.
	Health *healthhandler.Server
	// TracerProvider and MeterProvider instrument the server through otelgrpc. Nil means the globals.
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	Logger         *zap.Logger
}

// NewGRPCServer returns a gRPC server with the interceptor chain
// AuthUnary -> ImpersonationUnary -> AuditUnary and the health service registered.
// Services built on the session engine register themselves on the returned server.
func NewGRPCServer(d GRPCDeps, opts ...grpc.ServerOption) *grpc.Server {
	public := map[string]bool{
		healthCheckMethod: true,
		healthWatchMethod: true,
		healthListMethod:  true,
	}
	var statsOpts []otelgrpc.Option
	if d.TracerProvider != nil {
		statsOpts = append(statsOpts, otelgrpc.WithTracerProvider(d.TracerProvider))
	}
	if d.MeterProvider != nil {
		statsOpts = append(statsOpts, otelgrpc.WithMeterProvider(d.MeterProvider))
	}
	all := append([]grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler(statsOpts...)),
		grpc.ChainUnaryInterceptor(
			interceptors.AuthUnary(d.Verifier, public, d.Logger),
			interceptors.ImpersonationUnary(d.Propagator),
			interceptors.AuditUnary(d.Requests, public),
		),
	}, opts...)

	s := grpc.NewServer(all...)
	health := d.Health
	if health == nil {
		health = healthhandler.NewServer(nil)
	}
	healthpb.RegisterHealthServer(s, health)
	return s
}
