package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"casedesk/backend/internal/audit"
	"casedesk/backend/internal/impersonation/domain"
	"casedesk/backend/internal/impersonation/repository"
	"casedesk/backend/internal/impersonation/service"
	operatordomain "casedesk/backend/internal/operator/domain"
	oprepo "casedesk/backend/internal/operator/repository"
	orgdomain "casedesk/backend/internal/organization/domain"
	orgrepo "casedesk/backend/internal/organization/repository"
	"casedesk/backend/internal/platform/rbac"
	"casedesk/backend/internal/policy/engine"
	"casedesk/backend/internal/security"
	"casedesk/backend/internal/server/apierrors"
	"casedesk/backend/internal/server/interceptors"
	supporthandler "casedesk/backend/internal/support/handler"
	"casedesk/backend/internal/tenancy"
	userdomain "casedesk/backend/internal/user/domain"
	userrepo "casedesk/backend/internal/user/repository"
)

// brokenValidator simulates an unreachable session store.
type brokenValidator struct{}

func (brokenValidator) ValidateSession(context.Context, string) (*domain.SessionContext, error) {
	return nil, fmt.Errorf("%w: %w", service.ErrUnavailable, errors.New("connection refused"))
}

// whoami reports the effective tenant of the request as "org:source".
type whoami struct{}

func (whoami) Routes(r chi.Router) {
	r.Get("/whoami", func(w http.ResponseWriter, r *http.Request) {
		apierrors.WriteJSON(w, http.StatusOK, map[string]string{"tenant": effectiveTenant(r.Context())})
	})
}

func effectiveTenant(ctx context.Context) string {
	t, ok := tenancy.EffectiveTenant(ctx)
	if !ok {
		return "none"
	}
	return t.OrganizationID + ":" + string(t.Source)
}

type env struct {
	svc      *service.Service
	tokens   *security.TokenProvider
	guard    *rbac.Guard
	access   *rbac.AuditAccess
	orgs     *orgrepo.MemoryRepository
	users    *userrepo.MemoryRepository
	requests *audit.Logger
}

// newEnv seeds the scenario used across server tests: operator u1 (support agent, home o1),
// tenants o1 and o2 with one user each.
func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	ops := oprepo.NewMemoryRepository()
	require.NoError(t, ops.Create(ctx, &operatordomain.Operator{ID: "u1", Email: "u1@casedesk.test", HomeOrgID: "o1", Role: rbac.RoleSupportAgent}))
	orgs := orgrepo.NewMemoryRepository()
	for _, o := range []*orgdomain.Org{{ID: "o1", Name: "CaseDesk Internal"}, {ID: "o2", Name: "Acme Compliance"}} {
		require.NoError(t, orgs.CreateOrganization(ctx, o))
	}
	users := userrepo.NewMemoryRepository()
	for _, u := range []*userdomain.User{{ID: "x1", OrgID: "o1", Email: "staff@casedesk.test"}, {ID: "x2", OrgID: "o2", Email: "owner@acme.test"}} {
		require.NoError(t, users.Create(tenancy.WithEffectiveTenant(ctx, u.OrgID, tenancy.SourceHome), u))
	}
	checker := rbac.NewChecker(rbac.NewMemoryRoleRepository(nil), engine.NewStaticEvaluator())
	store := repository.NewMemoryStore()
	svc, err := service.New(service.Deps{
		Sessions: store, Audit: store, Tx: store,
		Operators: ops, Organizations: orgs, Permissions: checker,
	})
	require.NoError(t, err)
	tokens, err := security.NewTestTokenProvider()
	require.NoError(t, err)
	return &env{
		svc:      svc,
		tokens:   tokens,
		guard:    rbac.NewGuard(svc),
		access:   rbac.NewAuditAccess(ops, checker),
		orgs:     orgs,
		users:    users,
		requests: audit.NewLogger(svc, nil),
	}
}

func (e *env) token(t *testing.T) string {
	t.Helper()
	tok, _, err := e.tokens.IssueOperatorToken("u1", "o1")
	require.NoError(t, err)
	return tok
}

func (e *env) startSession(t *testing.T, org string) string {
	t.Helper()
	res, err := e.svc.StartSession(context.Background(), service.StartInput{
		OperatorUserID: "u1", TargetOrganizationID: org, Reason: "Customer reported missing documents",
	})
	require.NoError(t, err)
	return res.SessionID
}

func (e *env) support() *supporthandler.Handler {
	return supporthandler.New(e.guard, e.svc, e.orgs, e.users, nil)
}

func (e *env) propagator() *interceptors.Propagator {
	return interceptors.NewPropagator(e.svc, nil)
}

func (e *env) actions(t *testing.T, sessionID string) []string {
	t.Helper()
	entries, err := e.svc.GetSessionAuditLogs(context.Background(), sessionID, 0)
	require.NoError(t, err)
	out := make([]string, len(entries))
	for i, en := range entries {
		out[i] = en.Action
	}
	return out
}
