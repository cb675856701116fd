package rbac

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"casedesk/backend/internal/impersonation/domain"
	"casedesk/backend/internal/impersonation/service"
	"casedesk/backend/internal/server/interceptors"
)

// SessionValidator resolves a session token; nil means missing, ended or expired.
type SessionValidator interface {
	ValidateSession(ctx context.Context, sessionID string) (*domain.SessionContext, error)
}

// Guard requires an active impersonation session on the request.
type Guard struct {
	validator SessionValidator
	now       func() time.Time
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithGuardClock sets the clock used to check the expiry of an attached session.
func WithGuardClock(now func() time.Time) GuardOption {
	return func(g *Guard) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGuard returns a Guard that falls back to validator when no usable session is attached.
func NewGuard(validator SessionValidator, opts ...GuardOption) *Guard {
	g := &Guard{validator: validator, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// RequireImpersonation returns the request's session context, or a wrapped service.ErrForbidden.
// A session already attached by the propagation middleware is reused while it has not expired;
// otherwise the presented token is validated against the store and the result attached to the
// returned context. The token is taken from the context, then from incoming gRPC metadata.
// Store failures are returned unchanged.
func (g *Guard) RequireImpersonation(ctx context.Context) (context.Context, *domain.SessionContext, error) {
	token, ok := interceptors.PresentedSessionToken(ctx)
	if !ok {
		return ctx, nil, fmt.Errorf("%w: impersonation session required", service.ErrForbidden)
	}
	if sc, ok := interceptors.GetImpersonation(ctx); ok && sc.SessionID == token && !sc.Expired(g.now()) {
		return ctx, sc, nil
	}
	sc, err := g.validator.ValidateSession(ctx, token)
	if err != nil {
		return ctx, nil, err
	}
	if sc == nil {
		return ctx, nil, fmt.Errorf("%w: impersonation session invalid or expired", service.ErrForbidden)
	}
	return interceptors.WithImpersonation(ctx, sc), sc, nil
}

// RequireImpersonationRequest is RequireImpersonation for HTTP handlers. When the propagation
// middleware did not run, the token is read from the X-Impersonation-Session header.
func (g *Guard) RequireImpersonationRequest(r *http.Request) (context.Context, *domain.SessionContext, error) {
	ctx := r.Context()
	if _, ok := interceptors.GetImpersonationToken(ctx); !ok {
		if token := strings.TrimSpace(r.Header.Get(interceptors.HeaderSession)); token != "" {
			ctx = interceptors.WithImpersonationToken(ctx, token)
		}
	}
	return g.RequireImpersonation(ctx)
}

// RequireTargetOrganization fails with service.ErrForbidden when the session targets another organization.
func RequireTargetOrganization(sc *domain.SessionContext, orgID string) error {
	if sc == nil || sc.TargetOrganizationID != orgID {
		return fmt.Errorf("%w: impersonation session does not target organization %q", service.ErrForbidden, orgID)
	}
	return nil
}
