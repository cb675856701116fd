// seed loads the development fixture into DATABASE_URL. It is idempotent and safe to re-run.
package main

import (
	"context"
	"os"

	"go.uber.org/zap"

	"casedesk/backend/internal/config"
	"casedesk/backend/internal/db"
	"casedesk/backend/internal/devdata"
	"casedesk/backend/internal/logger"
	oprepo "casedesk/backend/internal/operator/repository"
	orgrepo "casedesk/backend/internal/organization/repository"
	"casedesk/backend/internal/platform/rbac"
	userrepo "casedesk/backend/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log, err := logger.New(cfg.Env, cfg.LogLevel, "casedesk-seed")
	if err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}
	if cfg.IsProduction() {
		log.Fatal("refusing to seed development data when APP_ENV=production")
	}

	ctx := context.Background()
	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	err = devdata.Apply(ctx, devdata.Targets{
		Roles:         rbac.NewPostgresRoleRepository(pool),
		Organizations: orgrepo.NewPostgresRepository(pool),
		Operators:     oprepo.NewPostgresRepository(pool),
		Users:         userrepo.NewPostgresRepository(pool, db.NewSessionVariableIsolator(cfg.TenantSetting)),
	}, log)
	if err != nil {
		log.Fatal("seed failed", zap.Error(err))
	}
	log.Info("seed completed",
		zap.String("support_agent", devdata.SupportAgentID),
		zap.String("compliance_officer", devdata.ComplianceID),
		zap.String("target_org", devdata.AcmeOrgID))
}
