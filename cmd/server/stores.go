package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"casedesk/backend/internal/config"
	"casedesk/backend/internal/db"
	"casedesk/backend/internal/devdata"
	healthhandler "casedesk/backend/internal/health/handler"
	"casedesk/backend/internal/impersonation/repository"
	oprepo "casedesk/backend/internal/operator/repository"
	orgrepo "casedesk/backend/internal/organization/repository"
	"casedesk/backend/internal/platform/rbac"
	"casedesk/backend/internal/policy/engine"
	userrepo "casedesk/backend/internal/user/repository"
)

// stores are the backing stores of the server, either all Postgres or all in-memory.
type stores struct {
	sessions      repository.SessionRepository
	audit         repository.AuditRepository
	tx            repository.TxRunner
	operators     devdata.Operators
	organizations devdata.Organizations
	users         userrepo.Repository
	roles         rbac.RoleRepository
	pinger        healthhandler.Pinger
	close         func()
}

func openStores(ctx context.Context, cfg *config.Config, log *zap.Logger) (*stores, error) {
	if cfg.UseMemoryStores() {
		return memoryStores(ctx, log)
	}
	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	return postgresStores(pool, cfg), nil
}

func postgresStores(pool *pgxpool.Pool, cfg *config.Config) *stores {
	impersonation := repository.NewPostgresRepository(pool)
	return &stores{
		sessions:      impersonation,
		audit:         impersonation,
		tx:            impersonation,
		operators:     oprepo.NewPostgresRepository(pool),
		organizations: orgrepo.NewPostgresRepository(pool),
		users:         userrepo.NewPostgresRepository(pool, db.NewSessionVariableIsolator(cfg.TenantSetting)),
		roles:         rbac.NewPostgresRoleRepository(pool),
		pinger:        pool,
		close:         pool.Close,
	}
}

func memoryStores(ctx context.Context, log *zap.Logger) (*stores, error) {
	log.Warn("DATABASE_URL not set; using in-memory stores with the development fixture")
	impersonation := repository.NewMemoryStore()
	roles := rbac.NewMemoryRoleRepository(map[string][]rbac.Capability{})
	st := &stores{
		sessions:      impersonation,
		audit:         impersonation,
		tx:            impersonation,
		operators:     oprepo.NewMemoryRepository(),
		organizations: orgrepo.NewMemoryRepository(),
		users:         userrepo.NewMemoryRepository(),
		roles:         roles,
		close:         func() {},
	}
	err := devdata.Apply(ctx, devdata.Targets{
		Roles:         roles,
		Organizations: st.organizations,
		Operators:     st.operators,
		Users:         st.users,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("load development fixture: %w", err)
	}
	return st, nil
}

func newEvaluator(ctx context.Context, cfg *config.Config) (engine.Evaluator, error) {
	if cfg.PolicyEngine == config.PolicyEngineStatic {
		return engine.NewStaticEvaluator(), nil
	}
	e, err := engine.NewOPAEvaluator(ctx)
	if err != nil {
		return nil, fmt.Errorf("policy engine: %w", err)
	}
	return e, nil
}
