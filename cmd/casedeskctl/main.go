// casedeskctl operates impersonation sessions and audit trails against DATABASE_URL.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"casedesk/backend/internal/cli"
	"casedesk/backend/internal/config"
	"casedesk/backend/internal/db"
	"casedesk/backend/internal/impersonation/repository"
	"casedesk/backend/internal/impersonation/service"
	"casedesk/backend/internal/logger"
	oprepo "casedesk/backend/internal/operator/repository"
	orgrepo "casedesk/backend/internal/organization/repository"
	"casedesk/backend/internal/platform/rbac"
	"casedesk/backend/internal/policy/engine"
	"casedesk/backend/internal/security"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Env, "warn", "casedeskctl")
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	root := cli.NewRootCommand(cli.Deps{
		OpenSessions: func(ctx context.Context) (cli.Sessions, func(), error) {
			return openSessions(ctx, cfg, log)
		},
		Tokens: func(dev bool) (cli.TokenIssuer, error) {
			return tokenIssuer(cfg, dev)
		},
	})
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if errors.Is(err, cli.ErrChainBroken) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func openSessions(ctx context.Context, cfg *config.Config, log *zap.Logger) (cli.Sessions, func(), error) {
	if cfg.DatabaseURL == "" {
		return nil, nil, errors.New("DATABASE_URL is not set")
	}
	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("database: %w", err)
	}
	store := repository.NewPostgresRepository(pool)
	svc, err := service.New(service.Deps{
		Sessions:      store,
		Audit:         store,
		Tx:            store,
		Operators:     oprepo.NewPostgresRepository(pool),
		Organizations: orgrepo.NewPostgresRepository(pool),
		Permissions:   rbac.NewChecker(rbac.NewPostgresRoleRepository(pool), engine.NewStaticEvaluator()),
		Logger:        log,
	})
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return svc, pool.Close, nil
}

func tokenIssuer(cfg *config.Config, dev bool) (cli.TokenIssuer, error) {
	if dev {
		return security.NewTestTokenProvider()
	}
	if cfg.JWTPrivateKey == "" {
		return nil, errors.New("JWT_PRIVATE_KEY is not set; use --dev for a development token")
	}
	signer, pub, err := security.LoadKeyPair(cfg.JWTPrivateKey, cfg.JWTPublicKey)
	if err != nil {
		return nil, err
	}
	return security.NewTokenProvider(signer, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL()), nil
}
