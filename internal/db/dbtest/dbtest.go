// Package dbtest starts a migrated PostgreSQL container for integration tests.
// Tests using it are skipped unless TEST_INTEGRATION is set.
package dbtest

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"casedesk/backend/internal/db"
	"casedesk/backend/internal/db/migrate"
)

const (
	appRole     = "casedesk_app"
	appPassword = "app-password"
)

// Postgres holds pools on a freshly migrated database.
// Owner connects as the superuser that ran the migrations; App connects as a plain role
// so row-level security applies to it.
type Postgres struct {
	Owner *pgxpool.Pool
	App   *pgxpool.Pool
	// DSN is the owner connection string.
	DSN string
}

// Start runs PostgreSQL in Docker, applies migrations and returns pools closed on test cleanup.
func Start(t *testing.T) *Postgres {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION is not set")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("casedesk_test"),
		postgres.WithUsername("casedesk"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	if err := migrate.Run(dsn, "up"); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	owner, err := db.Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open owner pool: %v", err)
	}
	t.Cleanup(owner.Close)

	stmts := []string{
		fmt.Sprintf("CREATE ROLE %s LOGIN PASSWORD '%s' NOSUPERUSER NOBYPASSRLS", appRole, appPassword),
		fmt.Sprintf("GRANT SELECT, INSERT, UPDATE ON ALL TABLES IN SCHEMA public TO %s", appRole),
	}
	for _, s := range stmts {
		if _, err := owner.Exec(ctx, s); err != nil {
			t.Fatalf("prepare app role: %v", err)
		}
	}

	u, err := url.Parse(dsn)
	if err != nil {
		t.Fatalf("parse dsn: %v", err)
	}
	u.User = url.UserPassword(appRole, appPassword)
	app, err := db.Open(ctx, u.String())
	if err != nil {
		t.Fatalf("open app pool: %v", err)
	}
	t.Cleanup(app.Close)

	return &Postgres{Owner: owner, App: app, DSN: dsn}
}
