package repository

import (
	"context"

	"casedesk/backend/internal/operator/domain"
)

// Repository defines persistence for operators.
type Repository interface {
	// GetByID returns the operator, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Operator, error)
	Create(ctx context.Context, o *domain.Operator) error
}
