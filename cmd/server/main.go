// server runs the CaseDesk HTTP API and gRPC server on top of the impersonation session engine.
// Without DATABASE_URL it runs on in-memory stores loaded with the development fixture.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"casedesk/backend/internal/audit"
	"casedesk/backend/internal/config"
	healthhandler "casedesk/backend/internal/health/handler"
	impersonationhandler "casedesk/backend/internal/impersonation/handler"
	"casedesk/backend/internal/impersonation/service"
	"casedesk/backend/internal/logger"
	"casedesk/backend/internal/platform/rbac"
	"casedesk/backend/internal/security"
	"casedesk/backend/internal/server"
	"casedesk/backend/internal/server/interceptors"
	supporthandler "casedesk/backend/internal/support/handler"
	"casedesk/backend/internal/telemetry"
	otelsetup "casedesk/backend/internal/telemetry/otel"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log, err := logger.New(cfg.Env, cfg.LogLevel, cfg.OTelServiceName)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	providers, err := otelsetup.NewProviders(ctx, otelsetup.Options{
		Endpoint:    cfg.OTelEndpoint,
		ServiceName: cfg.OTelServiceName,
		Environment: cfg.Env,
		Insecure:    cfg.OTelInsecure,
	}, log)
	if err != nil {
		return err
	}
	providers.SetGlobal()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	evaluator, err := newEvaluator(ctx, cfg)
	if err != nil {
		return err
	}
	checker := rbac.NewChecker(st.roles, evaluator)

	mirror := telemetry.NewMirror(otelsetup.NewAuditEmitter(providers.LoggerProvider), log)
	svc, err := service.New(service.Deps{
		Sessions:       st.sessions,
		Audit:          st.audit,
		Tx:             st.tx,
		Operators:      st.operators,
		Organizations:  st.organizations,
		Permissions:    checker,
		Mirror:         mirror,
		Logger:         log,
		TracerProvider: providers.TracerProvider,
		MeterProvider:  providers.MeterProvider,
	})
	if err != nil {
		return err
	}

	verifier, err := newVerifier(cfg, log)
	if err != nil {
		return err
	}

	guard := rbac.NewGuard(svc)
	propagator := interceptors.NewPropagator(svc, log)
	requests := audit.NewLogger(svc, log)
	readiness := healthhandler.NewChecker(st.pinger, evaluator)

	router := server.NewRouter(server.HTTPDeps{
		Verifier:   verifier,
		Propagator: propagator,
		Requests:   requests,
		Health:     healthhandler.NewHTTP(readiness, log),
		APIs: []server.RouteRegistrar{
			impersonationhandler.New(svc, guard, rbac.NewAuditAccess(st.operators, checker), log),
			supporthandler.New(guard, svc, st.organizations, st.users, log),
		},
		Logger: log,
	})
	httpSrv := server.NewHTTPServer(cfg.HTTPAddr, router)

	grpcSrv := server.NewGRPCServer(server.GRPCDeps{
		Verifier:       verifier,
		Propagator:     propagator,
		Requests:       requests,
		Health:         healthhandler.NewServer(readiness),
		TracerProvider: providers.TracerProvider,
		MeterProvider:  providers.MeterProvider,
		Logger:         log,
	})
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}

	errc := make(chan error, 2)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()
	go func() {
		log.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcSrv.Serve(lis); err != nil {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err = <-errc:
		log.Error("server failed, shutting down", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace())
	defer cancel()
	if serr := httpSrv.Shutdown(shutdownCtx); serr != nil {
		log.Warn("HTTP shutdown", zap.Error(serr))
	}
	stopGRPC(shutdownCtx, grpcSrv.GracefulStop, grpcSrv.Stop)
	if derr := mirror.Drain(shutdownCtx); derr != nil {
		log.Warn("audit mirror drain", zap.Error(derr))
	}
	if perr := providers.Shutdown(shutdownCtx); perr != nil {
		log.Warn("telemetry shutdown", zap.Error(perr))
	}
	log.Info("stopped")
	return err
}

// stopGRPC waits for in-flight RPCs until ctx is done, then forces the server down.
func stopGRPC(ctx context.Context, graceful, force func()) {
	done := make(chan struct{})
	go func() {
		graceful()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		force()
		<-done
	}
}

func newVerifier(cfg *config.Config, log *zap.Logger) (security.TokenVerifier, error) {
	if cfg.OperatorJWKSURL != "" {
		return security.NewJWKSVerifier(cfg.OperatorJWKSURL, cfg.JWTIssuer, cfg.JWTAudience, time.Hour, log)
	}
	if cfg.JWTPublicKey == "" && cfg.JWTPrivateKey == "" {
		log.Warn("no operator token key configured; accepting tokens signed with the built-in development key",
			zap.String("issuer", security.TestIssuer), zap.String("audience", security.TestAudience))
		return security.NewTestTokenProvider()
	}
	signer, pub, err := security.LoadKeyPair(cfg.JWTPrivateKey, cfg.JWTPublicKey)
	if err != nil {
		return nil, err
	}
	return security.NewTokenProvider(signer, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL()), nil
}
