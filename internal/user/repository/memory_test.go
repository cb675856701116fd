package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casedesk/backend/internal/db"
	"casedesk/backend/internal/tenancy"
	"casedesk/backend/internal/user/domain"
)

func tenantCtx(orgID string, source tenancy.Source) context.Context {
	return tenancy.WithEffectiveTenant(context.Background(), orgID, source)
}

// runIsolationContract seeds two tenants and checks visibility is bounded by the effective tenant.
func runIsolationContract(t *testing.T, repo Repository, orgA, orgB string) {
	t.Helper()
	for _, u := range []*domain.User{
		{ID: uuid.NewString(), OrgID: orgA, Email: "a1@example.com", Name: "A One"},
		{ID: uuid.NewString(), OrgID: orgA, Email: "a2@example.com", Name: "A Two"},
		{ID: uuid.NewString(), OrgID: orgB, Email: "b1@example.com", Name: "B One"},
	} {
		require.NoError(t, repo.Create(tenantCtx(u.OrgID, tenancy.SourceHome), u))
	}

	a, err := repo.ListByOrg(tenantCtx(orgA, tenancy.SourceHome), orgA)
	require.NoError(t, err)
	require.Len(t, a, 2)
	for _, u := range a {
		assert.Equal(t, orgA, u.OrgID)
	}

	b, err := repo.ListByOrg(tenantCtx(orgB, tenancy.SourceImpersonation), orgB)
	require.NoError(t, err)
	require.Len(t, b, 1)
	assert.Equal(t, "b1@example.com", b[0].Email)

	_, err = repo.ListByOrg(context.Background(), orgA)
	assert.True(t, errors.Is(err, db.ErrNoTenant), "no tenant: err = %v", err)

	_, err = repo.ListByOrg(tenantCtx(orgA, tenancy.SourceHome), orgB)
	assert.ErrorIs(t, err, ErrTenantMismatch)

	err = repo.Create(tenantCtx(orgA, tenancy.SourceHome), &domain.User{ID: uuid.NewString(), OrgID: orgB, Email: "x@example.com"})
	assert.ErrorIs(t, err, ErrTenantMismatch)
}

func TestMemoryRepository_Isolation(t *testing.T) {
	runIsolationContract(t, NewMemoryRepository(), "o1", "o2")
}
