package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"casedesk/backend/internal/db"
	"casedesk/backend/internal/impersonation/domain"
)

// PostgresRepository implements SessionRepository, AuditRepository and TxRunner on a pgx pool.
// Calls join the transaction carried by ctx when there is one.
type PostgresRepository struct {
	pool *pgxpool.Pool
	tx   *db.TxRunner
}

// NewPostgresRepository returns a repository that uses pool for persistence.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool, tx: db.NewTxRunner(pool)}
}

// RunInTx implements TxRunner.
func (r *PostgresRepository) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.tx.RunInTx(ctx, fn)
}

const sessionColumns = `id, operator_user_id, operator_role, target_organization_id, reason,
	COALESCE(ticket_id, ''), started_at, expires_at, ended_at, COALESCE(ip_address, ''), COALESCE(user_agent, '')`

// Create persists the session. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO impersonation_sessions
			(id, operator_user_id, operator_role, target_organization_id, reason, ticket_id,
			 started_at, expires_at, ended_at, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, NULLIF($10, ''), NULLIF($11, ''))`,
		s.ID, s.OperatorUserID, s.OperatorRole, s.TargetOrganizationID, s.Reason, s.TicketID,
		s.StartedAt, s.ExpiresAt, s.EndedAt, s.IPAddress, s.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("insert impersonation session: %w", err)
	}
	return nil
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+sessionColumns+` FROM impersonation_sessions WHERE id = $1`, id)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get impersonation session: %w", err)
	}
	return s, nil
}

// End sets ended_at only while it is null, so of two concurrent calls exactly one succeeds.
func (r *PostgresRepository) End(ctx context.Context, id string, endedAt time.Time) error {
	conn := db.Conn(ctx, r.pool)
	tag, err := conn.Exec(ctx,
		`UPDATE impersonation_sessions SET ended_at = $2 WHERE id = $1 AND ended_at IS NULL`, id, endedAt)
	if err != nil {
		return fmt.Errorf("end impersonation session: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM impersonation_sessions WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("end impersonation session: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrAlreadyEnded
}

// ListActiveByOperator returns the operator's sessions that are neither ended nor expired at now.
func (r *PostgresRepository) ListActiveByOperator(ctx context.Context, operatorUserID string, now time.Time) ([]*domain.Session, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+sessionColumns+`
		FROM impersonation_sessions
		WHERE operator_user_id = $1 AND ended_at IS NULL AND expires_at > $2
		ORDER BY started_at DESC, id`, operatorUserID, now)
	if err != nil {
		return nil, fmt.Errorf("list active impersonation sessions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan impersonation session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Append locks the session row so appends to one session are serialized, then seals e after the latest entry.
func (r *PostgresRepository) Append(ctx context.Context, e *domain.AuditEntry) error {
	return r.tx.RunInTx(ctx, func(ctx context.Context) error {
		conn := db.Conn(ctx, r.pool)
		var locked string
		err := conn.QueryRow(ctx, `SELECT id FROM impersonation_sessions WHERE id = $1 FOR UPDATE`, e.SessionID).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock impersonation session: %w", err)
		}

		prev, err := scanEntry(conn.QueryRow(ctx, `SELECT `+entryColumns+`
			FROM impersonation_audit_logs WHERE session_id = $1
			ORDER BY sequence DESC LIMIT 1`, e.SessionID))
		if errors.Is(err, pgx.ErrNoRows) {
			prev, err = nil, nil
		}
		if err != nil {
			return fmt.Errorf("read last audit entry: %w", err)
		}
		if err := e.Seal(prev); err != nil {
			return err
		}
		details, err := domain.CanonicalDetails(e.Details)
		if err != nil {
			return err
		}
		var detailsArg *string
		if details != nil {
			s := string(details)
			detailsArg = &s
		}
		_, err = conn.Exec(ctx, `
			INSERT INTO impersonation_audit_logs
				(id, session_id, sequence, action, entity_type, entity_id, details, created_at, prev_hash, hash)
			VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7::json, $8, $9, $10)`,
			e.ID, e.SessionID, e.Sequence, e.Action, e.EntityType, e.EntityID, detailsArg, e.CreatedAt, e.PrevHash, e.Hash,
		)
		if err != nil {
			return fmt.Errorf("insert audit entry: %w", err)
		}
		return nil
	})
}

const entryColumns = `id, session_id, sequence, action, COALESCE(entity_type, ''), COALESCE(entity_id, ''),
	details::text, created_at, prev_hash, hash`

const joinedEntryColumns = `a.id, a.session_id, a.sequence, a.action, COALESCE(a.entity_type, ''), COALESCE(a.entity_id, ''),
	a.details::text, a.created_at, a.prev_hash, a.hash`

// ListBySession returns up to limit entries of the session in sequence order; a negative limit returns all.
func (r *PostgresRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]*domain.AuditEntry, error) {
	var lim *int
	if limit >= 0 {
		lim = &limit
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+entryColumns+`
		FROM impersonation_audit_logs WHERE session_id = $1
		ORDER BY sequence LIMIT $2`, sessionID, lim)
	if err != nil {
		return nil, fmt.Errorf("list session audit logs: %w", err)
	}
	return collectEntries(rows)
}

// ListByOrganization returns entries of every session that targeted orgID, oldest first.
func (r *PostgresRepository) ListByOrganization(ctx context.Context, orgID string, tr *domain.TimeRange) ([]*domain.AuditEntry, error) {
	var from, to *time.Time
	if tr != nil {
		if !tr.From.IsZero() {
			from = &tr.From
		}
		if !tr.To.IsZero() {
			to = &tr.To
		}
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+joinedEntryColumns+`
		FROM impersonation_audit_logs a
		JOIN impersonation_sessions s ON s.id = a.session_id
		WHERE s.target_organization_id = $1
		  AND ($2::timestamptz IS NULL OR a.created_at >= $2)
		  AND ($3::timestamptz IS NULL OR a.created_at < $3)
		ORDER BY a.created_at, a.session_id, a.sequence`, orgID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list organization audit logs: %w", err)
	}
	return collectEntries(rows)
}

func collectEntries(rows pgx.Rows) ([]*domain.AuditEntry, error) {
	defer rows.Close()
	var out []*domain.AuditEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var s domain.Session
	if err := row.Scan(&s.ID, &s.OperatorUserID, &s.OperatorRole, &s.TargetOrganizationID, &s.Reason,
		&s.TicketID, &s.StartedAt, &s.ExpiresAt, &s.EndedAt, &s.IPAddress, &s.UserAgent); err != nil {
		return nil, err
	}
	s.StartedAt = s.StartedAt.UTC()
	s.ExpiresAt = s.ExpiresAt.UTC()
	if s.EndedAt != nil {
		t := s.EndedAt.UTC()
		s.EndedAt = &t
	}
	return &s, nil
}

func scanEntry(row pgx.Row) (*domain.AuditEntry, error) {
	var (
		e       domain.AuditEntry
		details *string
	)
	if err := row.Scan(&e.ID, &e.SessionID, &e.Sequence, &e.Action, &e.EntityType, &e.EntityID,
		&details, &e.CreatedAt, &e.PrevHash, &e.Hash); err != nil {
		return nil, err
	}
	e.CreatedAt = e.CreatedAt.UTC()
	if details != nil {
		m, err := domain.DecodeDetails([]byte(*details))
		if err != nil {
			return nil, err
		}
		e.Details = m
	}
	return &e, nil
}
