package interceptors

import (
	"context"
	"testing"
	"time"

	"casedesk/backend/internal/security"
	"casedesk/backend/internal/tenancy"
)

func TestWithPrincipal_SetsHomeTenant(t *testing.T) {
	ctx := WithPrincipal(context.Background(), &security.Principal{OperatorID: "u1", HomeOrgID: "o1"})

	p, ok := GetPrincipal(ctx)
	if !ok || p.OperatorID != "u1" {
		t.Fatalf("GetPrincipal = %+v, %v", p, ok)
	}
	id, ok := GetOperatorID(ctx)
	if !ok || id != "u1" {
		t.Errorf("GetOperatorID = %q, %v; want u1", id, ok)
	}
	tenant, ok := tenancy.EffectiveTenant(ctx)
	if !ok || tenant.OrganizationID != "o1" || tenant.Source != tenancy.SourceHome {
		t.Errorf("tenant = %+v, %v; want o1 via home", tenant, ok)
	}
}

func TestGetters_EmptyContext(t *testing.T) {
	ctx := context.Background()
	if _, ok := GetPrincipal(ctx); ok {
		t.Error("GetPrincipal on empty context should return false")
	}
	if _, ok := GetOperatorID(ctx); ok {
		t.Error("GetOperatorID on empty context should return false")
	}
	if _, ok := GetImpersonationToken(ctx); ok {
		t.Error("GetImpersonationToken on empty context should return false")
	}
	if _, ok := GetImpersonationToken(WithImpersonationToken(ctx, "")); ok {
		t.Error("empty token should not count as presented")
	}
	if _, ok := GetImpersonation(ctx); ok {
		t.Error("GetImpersonation on empty context should return false")
	}
}

func TestWithImpersonation_OverridesTenantForDerivedContextOnly(t *testing.T) {
	home := WithPrincipal(context.Background(), &security.Principal{OperatorID: "u1", HomeOrgID: "o1"})
	imp := WithImpersonation(home, activeSession("s1", "o2", time.Hour))

	sc, ok := GetImpersonation(imp)
	if !ok || sc.SessionID != "s1" {
		t.Fatalf("GetImpersonation = %+v, %v", sc, ok)
	}
	tenant, _ := tenancy.EffectiveTenant(imp)
	if tenant.OrganizationID != "o2" || tenant.Source != tenancy.SourceImpersonation {
		t.Errorf("impersonated tenant = %+v; want o2 via impersonation", tenant)
	}
	if p, ok := GetPrincipal(imp); !ok || p.HomeOrgID != "o1" {
		t.Error("principal should survive the override")
	}

	tenant, _ = tenancy.EffectiveTenant(home)
	if tenant.OrganizationID != "o1" {
		t.Errorf("parent tenant = %q; want o1", tenant.OrganizationID)
	}
}
