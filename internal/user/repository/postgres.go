package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"casedesk/backend/internal/db"
	"casedesk/backend/internal/tenancy"
	"casedesk/backend/internal/user/domain"
)

// PostgresRepository reads and writes users inside tenant-scoped transactions, so row-level security
// decides visibility.
type PostgresRepository struct {
	tx *db.TenantTxRunner
}

// NewPostgresRepository returns a user repository on pool that scopes every transaction with isolator.
func NewPostgresRepository(pool *pgxpool.Pool, isolator db.TenantIsolator) *PostgresRepository {
	return &PostgresRepository{tx: db.NewTenantTxRunner(pool, isolator)}
}

// ListByOrg returns the users visible to the effective tenant, which must be orgID.
// The query has no org filter of its own: row-level security alone scopes it.
func (r *PostgresRepository) ListByOrg(ctx context.Context, orgID string) ([]*domain.User, error) {
	if err := requireTenant(ctx, orgID); err != nil {
		return nil, err
	}
	var out []*domain.User
	err := r.tx.RunInTenantTx(ctx, func(ctx context.Context) error {
		tx, _ := db.TxFromContext(ctx)
		rows, err := tx.Query(ctx, `SELECT id, org_id, email, name, status, created_at FROM users ORDER BY email, id`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var u domain.User
			if err := rows.Scan(&u.ID, &u.OrgID, &u.Email, &u.Name, &u.Status, &u.CreatedAt); err != nil {
				return err
			}
			out = append(out, &u)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}

// Create persists u in its organization. The insert is checked by the row-level security policy.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	if err := requireTenant(ctx, u.OrgID); err != nil {
		return err
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	err := r.tx.RunInTenantTx(ctx, func(ctx context.Context) error {
		tx, _ := db.TxFromContext(ctx)
		_, err := tx.Exec(ctx, `
			INSERT INTO users (id, org_id, email, name, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			u.ID, u.OrgID, u.Email, u.Name, u.Status, u.CreatedAt)
		return err
	})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func requireTenant(ctx context.Context, orgID string) error {
	t, ok := tenancy.EffectiveTenant(ctx)
	if !ok {
		return db.ErrNoTenant
	}
	if t.OrganizationID != orgID {
		return ErrTenantMismatch
	}
	return nil
}
