package repository

import (
	"context"

	"casedesk/backend/internal/organization/domain"
)

// Repository defines persistence for organizations.
type Repository interface {
	// GetOrganizationByID returns the organization, or nil if it does not exist.
	GetOrganizationByID(ctx context.Context, id string) (*domain.Org, error)
	CreateOrganization(ctx context.Context, o *domain.Org) error
	ListOrganizations(ctx context.Context) ([]*domain.Org, error)
}
