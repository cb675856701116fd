// Package service implements the impersonation session engine: starting, validating and ending
// time-boxed cross-tenant sessions, and writing their audit trail.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"casedesk/backend/internal/impersonation/domain"
	"casedesk/backend/internal/impersonation/repository"
	operatordomain "casedesk/backend/internal/operator/domain"
	orgdomain "casedesk/backend/internal/organization/domain"
)

const (
	// DefaultAuditLimit is used by GetSessionAuditLogs when limit is not positive.
	DefaultAuditLimit = 100
	// MaxAuditLimit caps GetSessionAuditLogs.
	MaxAuditLimit = 1000
)

// Entity type recorded on lifecycle entries.
const entitySession = "impersonation_session"

// OperatorDirectory is the minimal operator lookup needed by the service.
type OperatorDirectory interface {
	// GetByID returns the operator, or nil if not found.
	GetByID(ctx context.Context, id string) (*operatordomain.Operator, error)
}

// OrganizationDirectory is the minimal organization lookup needed by the service.
type OrganizationDirectory interface {
	// GetOrganizationByID returns the organization, or nil if not found.
	GetOrganizationByID(ctx context.Context, id string) (*orgdomain.Org, error)
}

// PermissionChecker decides whether a role may start impersonation sessions.
type PermissionChecker interface {
	CanImpersonate(ctx context.Context, role string) (bool, error)
}

// AuditMirror receives every persisted audit entry. Implementations must not block.
type AuditMirror interface {
	Mirror(e *domain.AuditEntry)
}

// Deps holds the collaborators of Service. Mirror, Logger, Now, NewID and the OTel providers are optional.
type Deps struct {
	Sessions      repository.SessionRepository
	Audit         repository.AuditRepository
	Tx            repository.TxRunner
	Operators     OperatorDirectory
	Organizations OrganizationDirectory
	Permissions   PermissionChecker

	Mirror         AuditMirror
	Logger         *zap.Logger
	Now            func() time.Time
	NewID          func() string
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Service is the session engine. It keeps no session state of its own: every check reads the store.
type Service struct {
	sessions repository.SessionRepository
	audit    repository.AuditRepository
	tx       repository.TxRunner
	ops      OperatorDirectory
	orgs     OrganizationDirectory
	perms    PermissionChecker
	mirror   AuditMirror
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string
	tracer   trace.Tracer
	metrics  *instruments
}

// New returns a Service. It fails when a required dependency is missing.
func New(d Deps) (*Service, error) {
	switch {
	case d.Sessions == nil:
		return nil, errors.New("impersonation service: session repository is required")
	case d.Audit == nil:
		return nil, errors.New("impersonation service: audit repository is required")
	case d.Tx == nil:
		return nil, errors.New("impersonation service: tx runner is required")
	case d.Operators == nil:
		return nil, errors.New("impersonation service: operator directory is required")
	case d.Organizations == nil:
		return nil, errors.New("impersonation service: organization directory is required")
	case d.Permissions == nil:
		return nil, errors.New("impersonation service: permission checker is required")
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	if d.TracerProvider == nil {
		d.TracerProvider = otel.GetTracerProvider()
	}
	if d.MeterProvider == nil {
		d.MeterProvider = otel.GetMeterProvider()
	}
	in, err := newInstruments(d.MeterProvider)
	if err != nil {
		return nil, fmt.Errorf("impersonation service: metrics: %w", err)
	}
	return &Service{
		sessions: d.Sessions,
		audit:    d.Audit,
		tx:       d.Tx,
		ops:      d.Operators,
		orgs:     d.Organizations,
		perms:    d.Permissions,
		mirror:   d.Mirror,
		logger:   d.Logger.Named("impersonation"),
		now:      d.Now,
		newID:    d.NewID,
		tracer:   d.TracerProvider.Tracer(instrumentationName),
		metrics:  in,
	}, nil
}

// StartInput is the request to open a session.
type StartInput struct {
	OperatorUserID       string
	TargetOrganizationID string
	Reason               string
	TicketID             string
	IPAddress            string
	UserAgent            string
}

// StartResult identifies a newly opened session.
type StartResult struct {
	SessionID string
	ExpiresAt time.Time
}

// LogActionInput describes an action taken under a session.
type LogActionInput struct {
	Action     string
	EntityType string
	EntityID   string
	Details    map[string]any
}

// StartSession opens a session for the operator against the target organization.
// The reason is checked before anything is read. The session row and its SESSION_STARTED entry are
// written in one transaction; if either fails nothing is persisted.
func (s *Service) StartSession(ctx context.Context, in StartInput) (_ *StartResult, err error) {
	ctx, span := s.tracer.Start(ctx, "impersonation.StartSession", trace.WithAttributes(
		attribute.String("operator.id", in.OperatorUserID),
		attribute.String("target.organization_id", in.TargetOrganizationID),
	))
	defer func() { endSpan(span, err) }()

	reason := strings.TrimSpace(in.Reason)
	if utf8.RuneCountInString(reason) < domain.MinReasonLength {
		return nil, fmt.Errorf("%w: reason must be at least %d characters", ErrInvalidArgument, domain.MinReasonLength)
	}
	if in.OperatorUserID == "" {
		return nil, fmt.Errorf("%w: operator is required", ErrForbidden)
	}

	op, err := s.ops.GetByID(ctx, in.OperatorUserID)
	if err != nil {
		return nil, fmt.Errorf("load operator: %w", err)
	}
	if op == nil || !op.IsActive() {
		s.metrics.denied.Add(ctx, 1)
		return nil, fmt.Errorf("%w: operator not found or inactive", ErrForbidden)
	}
	allowed, err := s.perms.CanImpersonate(ctx, op.Role)
	if err != nil {
		return nil, fmt.Errorf("check impersonation permission: %w", err)
	}
	if !allowed {
		s.metrics.denied.Add(ctx, 1)
		return nil, fmt.Errorf("%w: role %q cannot impersonate", ErrForbidden, op.Role)
	}

	org, err := s.orgs.GetOrganizationByID(ctx, in.TargetOrganizationID)
	if err != nil {
		return nil, fmt.Errorf("load organization: %w", err)
	}
	if org == nil {
		return nil, fmt.Errorf("%w: organization %q", ErrNotFound, in.TargetOrganizationID)
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	sess := &domain.Session{
		ID:                   s.newID(),
		OperatorUserID:       op.ID,
		OperatorRole:         op.Role,
		TargetOrganizationID: org.ID,
		Reason:               reason,
		TicketID:             strings.TrimSpace(in.TicketID),
		StartedAt:            now,
		ExpiresAt:            now.Add(domain.MaxSessionDuration),
		IPAddress:            in.IPAddress,
		UserAgent:            in.UserAgent,
	}
	var ticket any
	if sess.TicketID != "" {
		ticket = sess.TicketID
	}
	entry := &domain.AuditEntry{
		ID:         s.newID(),
		SessionID:  sess.ID,
		Action:     domain.ActionSessionStarted,
		EntityType: entitySession,
		EntityID:   sess.ID,
		Details: map[string]any{
			"organization_name": org.Name,
			"reason":            reason,
			"ticket_id":         ticket,
		},
		CreatedAt: now,
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.sessions.Create(ctx, sess); err != nil {
			return err
		}
		return s.audit.Append(ctx, entry)
	})
	if err != nil {
		return nil, fmt.Errorf("start impersonation session: %w", err)
	}

	s.metrics.started.Add(ctx, 1)
	s.metrics.entry(ctx, entry.Action)
	s.mirrorEntry(entry)
	span.SetAttributes(attribute.String("session.id", sess.ID))
	s.logger.Info("impersonation session started",
		zap.String("session_id", sess.ID),
		zap.String("operator_id", op.ID),
		zap.String("operator_role", op.Role),
		zap.String("target_org_id", org.ID),
		zap.Time("expires_at", sess.ExpiresAt))
	return &StartResult{SessionID: sess.ID, ExpiresAt: sess.ExpiresAt}, nil
}

// ValidateSession resolves sessionID to its context. It returns nil without error when the session
// is missing, ended or expired; only store failures are errors. The clock is read once per call.
func (s *Service) ValidateSession(ctx context.Context, sessionID string) (_ *domain.SessionContext, err error) {
	ctx, span := s.tracer.Start(ctx, "impersonation.ValidateSession")
	defer func() { endSpan(span, err) }()

	if sessionID == "" {
		s.metrics.validation(ctx, outcomeMissing)
		return nil, nil
	}
	now := s.now()
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if sess == nil {
		s.metrics.validation(ctx, outcomeMissing)
		return nil, nil
	}
	switch sess.State(now) {
	case domain.StateEnded:
		s.metrics.validation(ctx, outcomeEnded)
		return nil, nil
	case domain.StateExpired:
		s.metrics.validation(ctx, outcomeExpired)
		return nil, nil
	}
	s.metrics.validation(ctx, outcomeValid)
	return sess.Context(), nil
}

// GetSession returns the session regardless of state, or ErrNotFound.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get impersonation session: %w", err)
	}
	if sess == nil {
		return nil, fmt.Errorf("%w: impersonation session %q", ErrNotFound, sessionID)
	}
	return sess, nil
}

// EndSession closes the session and appends SESSION_ENDED with the optional notes, atomically.
// Ending is a compare-and-set on ended_at, so of two concurrent calls exactly one succeeds and the
// other gets ErrAlreadyEnded. Expired sessions that were never ended can still be ended.
func (s *Service) EndSession(ctx context.Context, sessionID, notes string) (err error) {
	ctx, span := s.tracer.Start(ctx, "impersonation.EndSession", trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer func() { endSpan(span, err) }()

	now := s.now().UTC().Truncate(time.Microsecond)
	details := map[string]any{"notes": nil}
	if notes = strings.TrimSpace(notes); notes != "" {
		details["notes"] = notes
	}
	entry := &domain.AuditEntry{
		ID:         s.newID(),
		SessionID:  sessionID,
		Action:     domain.ActionSessionEnded,
		EntityType: entitySession,
		EntityID:   sessionID,
		Details:    details,
		CreatedAt:  now,
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.sessions.End(ctx, sessionID, now); err != nil {
			return err
		}
		return s.audit.Append(ctx, entry)
	})
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: impersonation session %q", ErrNotFound, sessionID)
	case errors.Is(err, repository.ErrAlreadyEnded):
		return ErrAlreadyEnded
	case err != nil:
		return fmt.Errorf("end impersonation session: %w", err)
	}

	markEnded(ctx, sessionID)
	s.metrics.ended.Add(ctx, 1)
	s.metrics.entry(ctx, entry.Action)
	s.mirrorEntry(entry)
	s.logger.Info("impersonation session ended", zap.String("session_id", sessionID))
	return nil
}

// LogAction appends an entry to the session's trail. It does not check that the session is active;
// callers that need that go through the access guard first. Unknown sessions yield ErrNotFound.
func (s *Service) LogAction(ctx context.Context, sessionID string, in LogActionInput) (err error) {
	ctx, span := s.tracer.Start(ctx, "impersonation.LogAction", trace.WithAttributes(
		attribute.String("session.id", sessionID),
		attribute.String("audit.action", in.Action),
	))
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(in.Action) == "" {
		return fmt.Errorf("%w: action is required", ErrInvalidArgument)
	}
	entry := &domain.AuditEntry{
		ID:         s.newID(),
		SessionID:  sessionID,
		Action:     in.Action,
		EntityType: in.EntityType,
		EntityID:   in.EntityID,
		Details:    in.Details,
		CreatedAt:  s.now(),
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: impersonation session %q", ErrNotFound, sessionID)
		}
		return fmt.Errorf("log impersonation action: %w", err)
	}
	s.metrics.entry(ctx, entry.Action)
	s.mirrorEntry(entry)
	return nil
}

// GetActiveSessions returns the operator's sessions that are neither ended nor expired, newest first.
func (s *Service) GetActiveSessions(ctx context.Context, operatorUserID string) ([]*domain.Session, error) {
	list, err := s.sessions.ListActiveByOperator(ctx, operatorUserID, s.now())
	if err != nil {
		return nil, fmt.Errorf("list active impersonation sessions: %w", err)
	}
	return list, nil
}

// GetSessionAuditLogs returns the session's entries oldest first. A non-positive limit means
// DefaultAuditLimit; larger limits are capped at MaxAuditLimit.
func (s *Service) GetSessionAuditLogs(ctx context.Context, sessionID string, limit int) ([]*domain.AuditEntry, error) {
	switch {
	case limit <= 0:
		limit = DefaultAuditLimit
	case limit > MaxAuditLimit:
		limit = MaxAuditLimit
	}
	list, err := s.audit.ListBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list session audit logs: %w", err)
	}
	return list, nil
}

// GetOrganizationAuditLogs returns the entries of every session that targeted organizationID,
// optionally bounded by r, oldest first.
func (s *Service) GetOrganizationAuditLogs(ctx context.Context, organizationID string, r *domain.TimeRange) ([]*domain.AuditEntry, error) {
	if organizationID == "" {
		return nil, fmt.Errorf("%w: organization is required", ErrInvalidArgument)
	}
	if r != nil && !r.From.IsZero() && !r.To.IsZero() && !r.From.Before(r.To) {
		return nil, fmt.Errorf("%w: from must be before to", ErrInvalidArgument)
	}
	list, err := s.audit.ListByOrganization(ctx, organizationID, r)
	if err != nil {
		return nil, fmt.Errorf("list organization audit logs: %w", err)
	}
	return list, nil
}

// ChainReport is the outcome of verifying one session's trail.
type ChainReport struct {
	SessionID string
	Entries   int
	Valid     bool
	// Broken is set when Valid is false.
	Broken *domain.ChainError
}

// VerifySessionChain reads the complete trail of the session and checks its hash chain.
func (s *Service) VerifySessionChain(ctx context.Context, sessionID string) (*ChainReport, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	entries, err := s.audit.ListBySession(ctx, sessionID, -1)
	if err != nil {
		return nil, fmt.Errorf("list session audit logs: %w", err)
	}
	report := &ChainReport{SessionID: sessionID, Entries: len(entries), Valid: true}
	if err := domain.VerifyChain(entries); err != nil {
		var ce *domain.ChainError
		if !errors.As(err, &ce) {
			return nil, err
		}
		report.Valid = false
		report.Broken = ce
		s.logger.Error("impersonation audit chain broken",
			zap.String("session_id", sessionID),
			zap.Int64("sequence", ce.Sequence),
			zap.String("reason", ce.Reason))
	}
	return report, nil
}

func (s *Service) mirrorEntry(e *domain.AuditEntry) {
	if s.mirror != nil {
		s.mirror.Mirror(e)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
	}
	span.End()
}
