package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casedesk/backend/internal/db/dbtest"
	"casedesk/backend/internal/organization/domain"
)

func runContract(t *testing.T, repo Repository) {
	ctx := context.Background()

	got, err := repo.GetOrganizationByID(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got, "not found is nil, nil")

	assert.Error(t, repo.CreateOrganization(ctx, &domain.Org{ID: "o1"}), "name is required")
	require.NoError(t, repo.CreateOrganization(ctx, &domain.Org{ID: "o2", Name: "Beta Legal"}))
	require.NoError(t, repo.CreateOrganization(ctx, &domain.Org{ID: "o1", Name: "Acme Compliance"}))
	assert.Error(t, repo.CreateOrganization(ctx, &domain.Org{ID: "o1", Name: "Duplicate"}))

	got, err = repo.GetOrganizationByID(ctx, "o1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Acme Compliance", got.Name)
	assert.Equal(t, domain.OrgStatusActive, got.Status)

	list, err := repo.ListOrganizations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "o1", list[0].ID, "ordered by name")
}

func TestMemoryRepository(t *testing.T) {
	runContract(t, NewMemoryRepository())
}

func TestPostgresRepository(t *testing.T) {
	pg := dbtest.Start(t)
	runContract(t, NewPostgresRepository(pg.Owner))
}
