package repository

import (
	"context"
	"errors"

	"casedesk/backend/internal/user/domain"
)

// ErrTenantMismatch is returned when a caller asks for another organization than the request's effective tenant.
var ErrTenantMismatch = errors.New("organization is not the effective tenant")

// Repository defines persistence for tenant users. Every call is scoped to the effective tenant of ctx.
type Repository interface {
	// ListByOrg returns the users of orgID, which must be the effective tenant of ctx.
	ListByOrg(ctx context.Context, orgID string) ([]*domain.User, error)
	// Create persists u; u.OrgID must be the effective tenant of ctx.
	Create(ctx context.Context, u *domain.User) error
}
