// Package handler serves the support tools an operator uses inside an impersonated organization.
// Every route requires an active impersonation session targeting the organization in the path, and
// every read is recorded on the session's trail before the data is returned.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"casedesk/backend/internal/impersonation/domain"
	"casedesk/backend/internal/impersonation/service"
	orgdomain "casedesk/backend/internal/organization/domain"
	"casedesk/backend/internal/platform/rbac"
	"casedesk/backend/internal/server/apierrors"
	userdomain "casedesk/backend/internal/user/domain"
	userrepo "casedesk/backend/internal/user/repository"
)

// Guard requires an active impersonation session on an HTTP request.
type Guard interface {
	RequireImpersonationRequest(r *http.Request) (context.Context, *domain.SessionContext, error)
}

// ActionLogger appends to a session's trail.
type ActionLogger interface {
	LogAction(ctx context.Context, sessionID string, in service.LogActionInput) error
}

// Organizations looks up organizations by id.
type Organizations interface {
	GetOrganizationByID(ctx context.Context, id string) (*orgdomain.Org, error)
}

// Handler serves /support.
type Handler struct {
	guard   Guard
	actions ActionLogger
	orgs    Organizations
	users   userrepo.Repository
	logger  *zap.Logger
}

// New returns a Handler.
func New(guard Guard, actions ActionLogger, orgs Organizations, users userrepo.Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{guard: guard, actions: actions, orgs: orgs, users: users, logger: logger}
}

// Routes mounts the support API on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/support/organizations/{orgID}", func(r chi.Router) {
		r.Get("/", h.getOrganization)
		r.Get("/users", h.listUsers)
	})
}

type organizationResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *Handler) getOrganization(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	ctx, sc, err := h.authorize(r, orgID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	org, err := h.orgs.GetOrganizationByID(ctx, orgID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if org == nil {
		h.fail(w, r, fmt.Errorf("%w: organization %q", service.ErrNotFound, orgID))
		return
	}
	err = h.actions.LogAction(ctx, sc.SessionID, service.LogActionInput{
		Action:     domain.ActionViewTenantDetails,
		EntityType: "organization",
		EntityID:   org.ID,
		Details:    map[string]any{"organization_name": org.Name},
	})
	if err != nil {
		h.fail(w, r, fmt.Errorf("record %s: %w", domain.ActionViewTenantDetails, err))
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, organizationResponse{
		ID:        org.ID,
		Name:      org.Name,
		Status:    string(org.Status),
		CreatedAt: org.CreatedAt,
	})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	ctx, sc, err := h.authorize(r, orgID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.users.ListByOrg(ctx, orgID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	err = h.actions.LogAction(ctx, sc.SessionID, service.LogActionInput{
		Action:     domain.ActionViewTenantUsers,
		EntityType: "organization",
		EntityID:   orgID,
		Details:    map[string]any{"user_count": len(list)},
	})
	if err != nil {
		h.fail(w, r, fmt.Errorf("record %s: %w", domain.ActionViewTenantUsers, err))
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, map[string]any{"users": toUsers(list)})
}

// authorize requires an active session targeting orgID.
func (h *Handler) authorize(r *http.Request, orgID string) (context.Context, *domain.SessionContext, error) {
	ctx, sc, err := h.guard.RequireImpersonationRequest(r)
	if err != nil {
		return ctx, nil, err
	}
	if err := rbac.RequireTargetOrganization(sc, orgID); err != nil {
		return ctx, nil, err
	}
	return ctx, sc, nil
}

func toUsers(list []*userdomain.User) []userResponse {
	out := make([]userResponse, len(list))
	for i, u := range list {
		out[i] = userResponse{ID: u.ID, Email: u.Email, Name: u.Name, Status: string(u.Status), CreatedAt: u.CreatedAt}
	}
	return out
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, userrepo.ErrTenantMismatch) {
		apierrors.Forbidden(w, err.Error())
		return
	}
	if status, _ := apierrors.Status(err); status >= http.StatusInternalServerError {
		h.logger.Error("support request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	apierrors.FromError(w, err)
}
