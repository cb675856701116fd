package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"casedesk/backend/internal/user/domain"
)

// MemoryRepository keeps users in process memory and applies the same tenant scoping as the Postgres policies.
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[string]domain.User)}
}

func (r *MemoryRepository) ListByOrg(ctx context.Context, orgID string) ([]*domain.User, error) {
	if err := requireTenant(ctx, orgID); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.User
	for _, u := range r.users {
		if u.OrgID == orgID {
			u := u
			out = append(out, &u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Email != out[j].Email {
			return out[i].Email < out[j].Email
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *MemoryRepository) Create(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	if err := requireTenant(ctx, u.OrgID); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.ID]; ok {
		return fmt.Errorf("create user: duplicate id %s", u.ID)
	}
	r.users[u.ID] = *u
	return nil
}
