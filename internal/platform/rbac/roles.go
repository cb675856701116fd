package rbac

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"casedesk/backend/internal/db"
)

// Capability is a permission flag carried by a role.
type Capability string

const (
	// CapAll is the blanket capability; it implies every other.
	CapAll         Capability = "all"
	CapImpersonate Capability = "impersonate"
	CapAuditRead   Capability = "audit_read"
)

// Role names used by the seed data and tests.
const (
	RoleSuperAdmin        = "super_admin"
	RoleSupportAgent      = "support_agent"
	RoleComplianceOfficer = "compliance_officer"
	RoleAnalyst           = "analyst"
)

// DefaultRoles is the role table shipped with the seed data.
var DefaultRoles = map[string][]Capability{
	RoleSuperAdmin:        {CapAll},
	RoleSupportAgent:      {CapImpersonate},
	RoleComplianceOfficer: {CapAuditRead},
	RoleAnalyst:           {},
}

// RoleRepository resolves a role to its capabilities.
type RoleRepository interface {
	// GetCapabilities returns the role's capabilities and false if the role does not exist.
	GetCapabilities(ctx context.Context, role string) ([]Capability, bool, error)
}

// PostgresRoleRepository reads the roles table.
type PostgresRoleRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRoleRepository(pool *pgxpool.Pool) *PostgresRoleRepository {
	return &PostgresRoleRepository{pool: pool}
}

func (r *PostgresRoleRepository) GetCapabilities(ctx context.Context, role string) ([]Capability, bool, error) {
	var caps []string
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT capabilities FROM roles WHERE name = $1`, role).Scan(&caps)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get role capabilities: %w", err)
	}
	out := make([]Capability, len(caps))
	for i, c := range caps {
		out[i] = Capability(c)
	}
	return out, true, nil
}

// UpsertRole writes role with caps. Used by the seed command.
func (r *PostgresRoleRepository) UpsertRole(ctx context.Context, role string, caps []Capability) error {
	names := make([]string, len(caps))
	for i, c := range caps {
		names[i] = string(c)
	}
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO roles (name, capabilities) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET capabilities = EXCLUDED.capabilities`, role, names)
	if err != nil {
		return fmt.Errorf("upsert role: %w", err)
	}
	return nil
}

// MemoryRoleRepository is a RoleRepository over an in-process table.
type MemoryRoleRepository struct {
	mu    sync.RWMutex
	roles map[string][]Capability
}

// NewMemoryRoleRepository copies roles; a nil map means DefaultRoles.
func NewMemoryRoleRepository(roles map[string][]Capability) *MemoryRoleRepository {
	if roles == nil {
		roles = DefaultRoles
	}
	m := make(map[string][]Capability, len(roles))
	for k, v := range roles {
		m[k] = slices.Clone(v)
	}
	return &MemoryRoleRepository{roles: m}
}

func (r *MemoryRoleRepository) GetCapabilities(_ context.Context, role string) ([]Capability, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	caps, ok := r.roles[role]
	return slices.Clone(caps), ok, nil
}

func (r *MemoryRoleRepository) UpsertRole(_ context.Context, role string, caps []Capability) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles[role] = slices.Clone(caps)
	return nil
}
