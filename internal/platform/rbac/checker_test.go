package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casedesk/backend/internal/policy/engine"
)

type failingRoles struct{}

func (failingRoles) GetCapabilities(context.Context, string) ([]Capability, bool, error) {
	return nil, false, errors.New("roles unavailable")
}

func TestChecker(t *testing.T) {
	opa, err := engine.NewOPAEvaluator(context.Background())
	require.NoError(t, err)
	evaluators := map[string]engine.Evaluator{"static": engine.NewStaticEvaluator(), "opa": opa}

	tests := []struct {
		role            string
		wantImpersonate bool
		wantAudit       bool
	}{
		{RoleSuperAdmin, true, true},
		{RoleSupportAgent, true, false},
		{RoleComplianceOfficer, false, true},
		{RoleAnalyst, false, false},
		{"unknown", false, false},
		{"", false, false},
	}
	for name, ev := range evaluators {
		c := NewChecker(NewMemoryRoleRepository(nil), ev)
		for _, tt := range tests {
			got, err := c.CanImpersonate(context.Background(), tt.role)
			require.NoError(t, err)
			assert.Equal(t, tt.wantImpersonate, got, "%s: CanImpersonate(%q)", name, tt.role)

			got, err = c.CanReadAudit(context.Background(), tt.role)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAudit, got, "%s: CanReadAudit(%q)", name, tt.role)
		}
	}
}

func TestChecker_RoleLookupFailure(t *testing.T) {
	c := NewChecker(failingRoles{}, engine.NewStaticEvaluator())
	ok, err := c.CanImpersonate(context.Background(), RoleSuperAdmin)
	assert.Error(t, err)
	assert.False(t, ok)
}
