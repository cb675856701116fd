// Package tenancy carries the request's effective tenant through context.Context.
//
// Authentication sets the operator's home organization; impersonation overrides it with the
// session's target organization. The storage layer reads it when opening a tenant-scoped transaction.
package tenancy

import "context"

type tenantKey struct{}

// Source records why a tenant is effective for the request.
type Source string

const (
	SourceHome          Source = "home"
	SourceImpersonation Source = "impersonation"
)

// Tenant is the effective tenant of a request.
type Tenant struct {
	OrganizationID string
	Source         Source
}

// WithEffectiveTenant returns a copy of ctx whose effective tenant is orgID.
// A later call on the derived context overrides an earlier one; parent contexts are unaffected.
func WithEffectiveTenant(ctx context.Context, orgID string, source Source) context.Context {
	return context.WithValue(ctx, tenantKey{}, Tenant{OrganizationID: orgID, Source: source})
}

// EffectiveTenant returns the effective tenant and true if one is set and non-empty.
func EffectiveTenant(ctx context.Context) (Tenant, bool) {
	t, ok := ctx.Value(tenantKey{}).(Tenant)
	if !ok || t.OrganizationID == "" {
		return Tenant{}, false
	}
	return t, true
}
