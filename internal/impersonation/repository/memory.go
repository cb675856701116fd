package repository

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"casedesk/backend/internal/impersonation/domain"
)

// MemoryStore is an in-process SessionRepository, AuditRepository and TxRunner for development and tests.
// Transactions are serialized and undone on error; readers outside a transaction may observe
// uncommitted writes.
type MemoryStore struct {
	txMu sync.Mutex // one transaction at a time

	mu       sync.RWMutex
	sessions map[string]*domain.Session
	order    []string // session ids in creation order
	entries  map[string][]*domain.AuditEntry
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*domain.Session),
		entries:  make(map[string][]*domain.AuditEntry),
	}
}

type memTx struct {
	undo []func()
}

type memTxKey struct{}

func (m *MemoryStore) recordUndo(ctx context.Context, fn func()) {
	if tx, ok := ctx.Value(memTxKey{}).(*memTx); ok {
		tx.undo = append(tx.undo, fn)
	}
}

// RunInTx implements TxRunner. Nested calls join the outer transaction.
func (m *MemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(memTxKey{}).(*memTx); ok {
		return fn(ctx)
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()

	tx := &memTx{}
	if err := fn(context.WithValue(ctx, memTxKey{}, tx)); err != nil {
		m.mu.Lock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		m.mu.Unlock()
		return err
	}
	return nil
}

// Create implements SessionRepository.
func (m *MemoryStore) Create(ctx context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; ok {
		return fmt.Errorf("insert impersonation session: duplicate id %s", s.ID)
	}
	m.sessions[s.ID] = cloneSession(s)
	m.order = append(m.order, s.ID)
	m.recordUndo(ctx, func() {
		delete(m.sessions, s.ID)
		m.order = slices.DeleteFunc(m.order, func(id string) bool { return id == s.ID })
	})
	return nil
}

// GetByID implements SessionRepository.
func (m *MemoryStore) GetByID(_ context.Context, id string) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return cloneSession(s), nil
}

// End implements SessionRepository.
func (m *MemoryStore) End(ctx context.Context, id string, endedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if s.EndedAt != nil {
		return ErrAlreadyEnded
	}
	t := endedAt.UTC().Truncate(time.Microsecond)
	s.EndedAt = &t
	m.recordUndo(ctx, func() { s.EndedAt = nil })
	return nil
}

// ListActiveByOperator implements SessionRepository.
func (m *MemoryStore) ListActiveByOperator(_ context.Context, operatorUserID string, now time.Time) ([]*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Session
	for i := len(m.order) - 1; i >= 0; i-- {
		s := m.sessions[m.order[i]]
		if s.OperatorUserID == operatorUserID && s.IsActive(now) {
			out = append(out, cloneSession(s))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

// Append implements AuditRepository. Details are stored in their canonical form, as Postgres would return them.
func (m *MemoryStore) Append(ctx context.Context, e *domain.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[e.SessionID]; !ok {
		return ErrNotFound
	}
	list := m.entries[e.SessionID]
	var prev *domain.AuditEntry
	if len(list) > 0 {
		prev = list[len(list)-1]
	}
	if err := e.Seal(prev); err != nil {
		return err
	}
	stored := *e
	raw, err := domain.CanonicalDetails(e.Details)
	if err != nil {
		return err
	}
	if stored.Details, err = domain.DecodeDetails(raw); err != nil {
		return err
	}
	m.entries[e.SessionID] = append(list, &stored)
	m.recordUndo(ctx, func() {
		m.entries[stored.SessionID] = slices.DeleteFunc(m.entries[stored.SessionID], func(x *domain.AuditEntry) bool {
			return x.ID == stored.ID
		})
	})
	return nil
}

// ListBySession implements AuditRepository.
func (m *MemoryStore) ListBySession(_ context.Context, sessionID string, limit int) ([]*domain.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.entries[sessionID]
	if limit >= 0 && len(list) > limit {
		list = list[:limit]
	}
	out := make([]*domain.AuditEntry, 0, len(list))
	for _, e := range list {
		out = append(out, cloneEntry(e))
	}
	return out, nil
}

// ListByOrganization implements AuditRepository.
func (m *MemoryStore) ListByOrganization(_ context.Context, orgID string, r *domain.TimeRange) ([]*domain.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.AuditEntry
	for id, s := range m.sessions {
		if s.TargetOrganizationID != orgID {
			continue
		}
		for _, e := range m.entries[id] {
			if r.Contains(e.CreatedAt) {
				out = append(out, cloneEntry(e))
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if a.SessionID != b.SessionID {
			return a.SessionID < b.SessionID
		}
		return a.Sequence < b.Sequence
	})
	return out, nil
}

func cloneSession(s *domain.Session) *domain.Session {
	c := *s
	c.StartedAt = s.StartedAt.UTC().Truncate(time.Microsecond)
	c.ExpiresAt = s.ExpiresAt.UTC().Truncate(time.Microsecond)
	if s.EndedAt != nil {
		t := *s.EndedAt
		c.EndedAt = &t
	}
	return &c
}

func cloneEntry(e *domain.AuditEntry) *domain.AuditEntry {
	c := *e
	c.Details = maps.Clone(e.Details)
	return &c
}
