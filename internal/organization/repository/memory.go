package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"casedesk/backend/internal/organization/domain"
)

// MemoryRepository keeps organizations in process memory.
type MemoryRepository struct {
	mu   sync.RWMutex
	orgs map[string]domain.Org
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{orgs: make(map[string]domain.Org)}
}

func (r *MemoryRepository) GetOrganizationByID(_ context.Context, id string) (*domain.Org, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orgs[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (r *MemoryRepository) CreateOrganization(_ context.Context, o *domain.Org) error {
	if err := o.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orgs[o.ID]; ok {
		return fmt.Errorf("create organization: duplicate id %s", o.ID)
	}
	r.orgs[o.ID] = *o
	return nil
}

func (r *MemoryRepository) ListOrganizations(_ context.Context) ([]*domain.Org, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Org, 0, len(r.orgs))
	for _, o := range r.orgs {
		o := o
		out = append(out, &o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
