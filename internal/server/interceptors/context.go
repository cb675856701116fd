package interceptors

import (
	"context"
	"strings"

	"casedesk/backend/internal/impersonation/domain"
	"casedesk/backend/internal/security"
	"casedesk/backend/internal/tenancy"
)

type contextKey struct{ name string }

var (
	principalKey          = contextKey{"principal"}
	impersonationTokenKey = contextKey{"impersonation_token"}
	impersonationKey      = contextKey{"impersonation"}
)

// WithPrincipal returns a context carrying the verified operator. The operator's home organization
// becomes the effective tenant until an impersonation session overrides it.
func WithPrincipal(ctx context.Context, p *security.Principal) context.Context {
	ctx = context.WithValue(ctx, principalKey, p)
	return tenancy.WithEffectiveTenant(ctx, p.HomeOrgID, tenancy.SourceHome)
}

// GetPrincipal returns the verified operator from context and true if set; otherwise nil, false.
func GetPrincipal(ctx context.Context) (*security.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*security.Principal)
	return p, ok && p != nil
}

// GetOperatorID returns the verified operator's id and true if set; otherwise "", false.
func GetOperatorID(ctx context.Context) (string, bool) {
	p, ok := GetPrincipal(ctx)
	if !ok || p.OperatorID == "" {
		return "", false
	}
	return p.OperatorID, true
}

// WithImpersonationToken records the raw session token presented by the caller, valid or not.
func WithImpersonationToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, impersonationTokenKey, token)
}

// GetImpersonationToken returns the presented session token and true if one was sent.
func GetImpersonationToken(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(impersonationTokenKey).(string)
	return v, ok && v != ""
}

// PresentedSessionToken returns the session token recorded on ctx or, when none was recorded, the
// x-impersonation-session value of the incoming gRPC metadata.
func PresentedSessionToken(ctx context.Context) (string, bool) {
	if v, ok := GetImpersonationToken(ctx); ok {
		return v, true
	}
	if v := strings.TrimSpace(metadataValue(ctx, MetadataSession)); v != "" {
		return v, true
	}
	return "", false
}

// WithImpersonation attaches a validated session and makes its target organization the effective
// tenant of the derived context. Contexts of other requests are not affected.
func WithImpersonation(ctx context.Context, sc *domain.SessionContext) context.Context {
	ctx = context.WithValue(ctx, impersonationKey, sc)
	return tenancy.WithEffectiveTenant(ctx, sc.TargetOrganizationID, tenancy.SourceImpersonation)
}

// GetImpersonation returns the attached session context and true if the request is impersonating.
func GetImpersonation(ctx context.Context) (*domain.SessionContext, bool) {
	sc, ok := ctx.Value(impersonationKey).(*domain.SessionContext)
	return sc, ok && sc != nil
}
