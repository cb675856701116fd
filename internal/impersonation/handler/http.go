// Package handler exposes the impersonation session engine over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"casedesk/backend/internal/impersonation/domain"
	"casedesk/backend/internal/impersonation/service"
	"casedesk/backend/internal/platform/rbac"
	"casedesk/backend/internal/security"
	"casedesk/backend/internal/server/apierrors"
	"casedesk/backend/internal/server/middleware"
)

// Sessions is the part of *service.Service the handler uses.
type Sessions interface {
	StartSession(ctx context.Context, in service.StartInput) (*service.StartResult, error)
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	EndSession(ctx context.Context, sessionID, notes string) error
	GetActiveSessions(ctx context.Context, operatorUserID string) ([]*domain.Session, error)
	GetSessionAuditLogs(ctx context.Context, sessionID string, limit int) ([]*domain.AuditEntry, error)
	GetOrganizationAuditLogs(ctx context.Context, organizationID string, r *domain.TimeRange) ([]*domain.AuditEntry, error)
	VerifySessionChain(ctx context.Context, sessionID string) (*service.ChainReport, error)
}

// Guard requires an active impersonation session on an HTTP request.
type Guard interface {
	RequireImpersonationRequest(r *http.Request) (context.Context, *domain.SessionContext, error)
}

// AuditAccess decides whether the caller may act on a session it does not own.
type AuditAccess interface {
	RequireAuditAccess(ctx context.Context, ownerID string) (*security.Principal, error)
}

// Handler serves /impersonation.
type Handler struct {
	sessions Sessions
	guard    Guard
	access   AuditAccess
	logger   *zap.Logger
	now      func() time.Time
}

// New returns a Handler.
func New(sessions Sessions, guard Guard, access AuditAccess, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{sessions: sessions, guard: guard, access: access, logger: logger, now: time.Now}
}

// Routes mounts the impersonation API on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/impersonation", func(r chi.Router) {
		r.Post("/sessions", h.start)
		r.Get("/sessions", h.listActive)
		r.Get("/sessions/current", h.current)
		r.Post("/sessions/{id}/end", h.end)
		r.Get("/sessions/{id}/audit-logs", h.sessionAuditLogs)
		r.Get("/sessions/{id}/audit-logs/verify", h.verify)
		r.Get("/organizations/{orgID}/audit-logs", h.organizationAuditLogs)
	})
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	p, err := rbac.RequireOperator(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "invalid JSON body")
		return
	}
	res, err := h.sessions.StartSession(r.Context(), service.StartInput{
		OperatorUserID:       p.OperatorID,
		TargetOrganizationID: req.TargetOrganizationID,
		Reason:               req.Reason,
		TicketID:             req.TicketID,
		IPAddress:            middleware.ClientIP(r),
		UserAgent:            r.UserAgent(),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	apierrors.WriteJSON(w, http.StatusCreated, startResponse{SessionID: res.SessionID, ExpiresAt: res.ExpiresAt})
}

func (h *Handler) listActive(w http.ResponseWriter, r *http.Request) {
	p, err := rbac.RequireOperator(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.sessions.GetActiveSessions(r.Context(), p.OperatorID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	now := h.now()
	out := make([]sessionResponse, len(list))
	for i, s := range list {
		out[i] = toSession(s, now)
	}
	apierrors.WriteJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	_, sc, err := h.guard.RequireImpersonationRequest(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, currentResponse{
		SessionID:            sc.SessionID,
		OperatorUserID:       sc.OperatorUserID,
		OperatorRole:         sc.OperatorRole,
		TargetOrganizationID: sc.TargetOrganizationID,
		Reason:               sc.Reason,
		TicketID:             sc.TicketID,
		ExpiresAt:            sc.ExpiresAt,
		RemainingSeconds:     sc.RemainingSeconds(h.now()),
	})
}

func (h *Handler) end(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.ownedSession(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	var req endRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apierrors.ValidationError(w, "invalid JSON body")
			return
		}
	}
	if err := h.sessions.EndSession(r.Context(), id, req.Notes); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) sessionAuditLogs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			apierrors.ValidationError(w, "limit must be an integer")
			return
		}
		limit = n
	}
	if _, err := h.ownedSession(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.sessions.GetSessionAuditLogs(r.Context(), id, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, map[string]any{"entries": toEntries(list)})
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.ownedSession(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	report, err := h.sessions.VerifySessionChain(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, toChain(report))
}

func (h *Handler) organizationAuditLogs(w http.ResponseWriter, r *http.Request) {
	if _, err := h.access.RequireAuditAccess(r.Context(), ""); err != nil {
		h.fail(w, r, err)
		return
	}
	tr, err := parseRange(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	list, err := h.sessions.GetOrganizationAuditLogs(r.Context(), chi.URLParam(r, "orgID"), tr)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, map[string]any{"entries": toEntries(list)})
}

// ownedSession loads the session and checks the caller may act on it.
func (h *Handler) ownedSession(ctx context.Context, id string) (*domain.Session, error) {
	if _, err := rbac.RequireOperator(ctx); err != nil {
		return nil, err
	}
	sess, err := h.sessions.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := h.access.RequireAuditAccess(ctx, sess.OperatorUserID); err != nil {
		return nil, err
	}
	return sess, nil
}

func parseRange(r *http.Request) (*domain.TimeRange, error) {
	q := r.URL.Query()
	var tr domain.TimeRange
	for _, f := range []struct {
		name string
		dst  *time.Time
	}{{"from", &tr.From}, {"to", &tr.To}} {
		v := q.Get(f.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("%s must be an RFC 3339 timestamp", f.name)
		}
		*f.dst = t
	}
	if tr.From.IsZero() && tr.To.IsZero() {
		return nil, nil
	}
	return &tr, nil
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, _ := apierrors.Status(err)
	if status >= http.StatusInternalServerError && !errors.Is(err, context.Canceled) {
		h.logger.Error("impersonation request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	apierrors.FromError(w, err)
}
