package db

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"casedesk/backend/internal/tenancy"
)

// DefaultTenantSetting is the Postgres run-time parameter read by the row-level security policies.
const DefaultTenantSetting = "app.current_org_id"

// ErrNoTenant is returned when a tenant-scoped transaction is requested without an effective tenant.
var ErrNoTenant = errors.New("no effective tenant for request")

// TenantIsolator tells the storage layer, for one transaction only, which organization is the effective tenant.
type TenantIsolator interface {
	SetEffectiveTenant(ctx context.Context, tx pgx.Tx, orgID string) error
}

// SessionVariableIsolator sets a transaction-local run-time parameter consumed by row-level security.
// set_config(..., true) is equivalent to SET LOCAL: the value is discarded at commit or rollback,
// so a pooled connection never carries one request's tenant into another.
type SessionVariableIsolator struct {
	Setting string
}

// NewSessionVariableIsolator returns an isolator for setting, or DefaultTenantSetting when empty.
func NewSessionVariableIsolator(setting string) *SessionVariableIsolator {
	if setting == "" {
		setting = DefaultTenantSetting
	}
	return &SessionVariableIsolator{Setting: setting}
}

// SetEffectiveTenant implements TenantIsolator.
func (i *SessionVariableIsolator) SetEffectiveTenant(ctx context.Context, tx pgx.Tx, orgID string) error {
	if orgID == "" {
		return ErrNoTenant
	}
	if _, err := tx.Exec(ctx, "SELECT set_config($1, $2, true)", i.Setting, orgID); err != nil {
		return fmt.Errorf("set effective tenant: %w", err)
	}
	return nil
}

var schemaSafe = regexp.MustCompile(`^[a-z0-9_]+$`)

// SearchPathIsolator scopes a transaction to a schema-per-tenant layout (prefix + org id).
type SearchPathIsolator struct {
	Prefix string
}

// SetEffectiveTenant implements TenantIsolator using a transaction-local search_path.
func (i *SearchPathIsolator) SetEffectiveTenant(ctx context.Context, tx pgx.Tx, orgID string) error {
	schema, err := i.schema(orgID)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, "SELECT set_config('search_path', $1, true)", schema); err != nil {
		return fmt.Errorf("set effective tenant: %w", err)
	}
	return nil
}

func (i *SearchPathIsolator) schema(orgID string) (string, error) {
	if orgID == "" {
		return "", ErrNoTenant
	}
	schema := i.Prefix + orgID
	if !schemaSafe.MatchString(schema) {
		return "", fmt.Errorf("set effective tenant: invalid schema name %q", schema)
	}
	return schema, nil
}

// TenantTxRunner opens transactions scoped to the effective tenant found in the context.
type TenantTxRunner struct {
	pool     *pgxpool.Pool
	isolator TenantIsolator
}

// NewTenantTxRunner returns a TenantTxRunner using isolator on every transaction it opens.
func NewTenantTxRunner(pool *pgxpool.Pool, isolator TenantIsolator) *TenantTxRunner {
	return &TenantTxRunner{pool: pool, isolator: isolator}
}

// RunInTenantTx begins a transaction, applies the effective tenant of ctx, and runs fn with the
// transaction bound to its context. It fails closed with ErrNoTenant when ctx has no tenant.
func (r *TenantTxRunner) RunInTenantTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t, ok := tenancy.EffectiveTenant(ctx)
	if !ok {
		return ErrNoTenant
	}
	if _, ok := TxFromContext(ctx); ok {
		return errors.New("tenant transaction cannot be nested in another transaction")
	}
	return runTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return r.isolator.SetEffectiveTenant(ctx, tx, t.OrganizationID)
	}, fn)
}
