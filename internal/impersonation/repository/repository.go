// Package repository persists impersonation sessions and their audit trails.
package repository

import (
	"context"
	"errors"
	"time"

	"casedesk/backend/internal/impersonation/domain"
)

var (
	// ErrNotFound is returned when a write references a session that does not exist.
	ErrNotFound = errors.New("impersonation session not found")
	// ErrAlreadyEnded is returned by End when ended_at was already set.
	ErrAlreadyEnded = errors.New("impersonation session already ended")
)

// SessionRepository stores sessions. Sessions are never deleted; the only mutation is End.
type SessionRepository interface {
	Create(ctx context.Context, s *domain.Session) error
	// GetByID returns the session for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	// End sets ended_at to endedAt only if it is still null. Returns ErrNotFound or ErrAlreadyEnded otherwise.
	End(ctx context.Context, id string, endedAt time.Time) error
	// ListActiveByOperator returns sessions not ended and not expired at now, newest first.
	ListActiveByOperator(ctx context.Context, operatorUserID string, now time.Time) ([]*domain.Session, error)
}

// AuditRepository stores audit entries. It has no update or delete.
type AuditRepository interface {
	// Append seals e after the session's latest entry and persists it.
	// The caller sets ID, SessionID, Action, optional fields and CreatedAt; Sequence, PrevHash and Hash are assigned here.
	Append(ctx context.Context, e *domain.AuditEntry) error
	// ListBySession returns the first limit entries of a session in ascending order. A negative limit means no limit.
	ListBySession(ctx context.Context, sessionID string, limit int) ([]*domain.AuditEntry, error)
	// ListByOrganization returns entries of every session targeting orgID, ascending, filtered by r when non-nil.
	ListByOrganization(ctx context.Context, orgID string, r *domain.TimeRange) ([]*domain.AuditEntry, error)
}

// TxRunner runs fn atomically. Repository calls made with the callback's ctx join the transaction.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
