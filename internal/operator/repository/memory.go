package repository

import (
	"context"
	"fmt"
	"sync"

	"casedesk/backend/internal/operator/domain"
)

// MemoryRepository keeps operators in process memory.
type MemoryRepository struct {
	mu        sync.RWMutex
	operators map[string]domain.Operator
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{operators: make(map[string]domain.Operator)}
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*domain.Operator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.operators[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (r *MemoryRepository) Create(_ context.Context, o *domain.Operator) error {
	if err := o.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.operators[o.ID]; ok {
		return fmt.Errorf("create operator: duplicate id %s", o.ID)
	}
	r.operators[o.ID] = *o
	return nil
}

// SetRole changes an operator's role. Sessions already started keep the role they were started with.
func (r *MemoryRepository) SetRole(id, role string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.operators[id]; ok {
		o.Role = role
		r.operators[id] = o
	}
}
