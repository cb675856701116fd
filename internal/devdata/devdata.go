// Package devdata loads the development fixture: the default roles, a home organization for staff,
// two customer organizations with users, and one operator per role.
package devdata

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	operatordomain "casedesk/backend/internal/operator/domain"
	orgdomain "casedesk/backend/internal/organization/domain"
	"casedesk/backend/internal/platform/rbac"
	"casedesk/backend/internal/tenancy"
	userdomain "casedesk/backend/internal/user/domain"
)

// Well-known ids of the fixture.
const (
	HomeOrgID       = "org-casedesk"
	AcmeOrgID       = "org-acme"
	GlobexOrgID     = "org-globex"
	SupportAgentID  = "op-support"
	ComplianceID    = "op-compliance"
	SuperAdminID    = "op-admin"
	AnalystID       = "op-analyst"
	acmeOwnerUserID = "usr-acme-owner"
)

// Roles is the role table the fixture writes to.
type Roles interface {
	UpsertRole(ctx context.Context, role string, caps []rbac.Capability) error
}

// Organizations is the organization directory the fixture writes to.
type Organizations interface {
	GetOrganizationByID(ctx context.Context, id string) (*orgdomain.Org, error)
	CreateOrganization(ctx context.Context, o *orgdomain.Org) error
}

// Operators is the operator directory the fixture writes to.
type Operators interface {
	GetByID(ctx context.Context, id string) (*operatordomain.Operator, error)
	Create(ctx context.Context, o *operatordomain.Operator) error
}

// Users is the tenant-scoped user store the fixture writes to.
type Users interface {
	ListByOrg(ctx context.Context, orgID string) ([]*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
}

// Targets are the stores Apply writes to.
type Targets struct {
	Roles         Roles
	Organizations Organizations
	Operators     Operators
	Users         Users
}

var organizations = []*orgdomain.Org{
	{ID: HomeOrgID, Name: "CaseDesk"},
	{ID: AcmeOrgID, Name: "Acme Compliance"},
	{ID: GlobexOrgID, Name: "Globex Legal"},
}

var operators = []*operatordomain.Operator{
	{ID: SupportAgentID, Email: "support@casedesk.dev", Name: "Sam Support", HomeOrgID: HomeOrgID, Role: rbac.RoleSupportAgent},
	{ID: ComplianceID, Email: "compliance@casedesk.dev", Name: "Cora Compliance", HomeOrgID: HomeOrgID, Role: rbac.RoleComplianceOfficer},
	{ID: SuperAdminID, Email: "admin@casedesk.dev", Name: "Ada Admin", HomeOrgID: HomeOrgID, Role: rbac.RoleSuperAdmin},
	{ID: AnalystID, Email: "analyst@casedesk.dev", Name: "Andy Analyst", HomeOrgID: HomeOrgID, Role: rbac.RoleAnalyst},
}

var users = []*userdomain.User{
	{ID: acmeOwnerUserID, OrgID: AcmeOrgID, Email: "owner@acme.example", Name: "Alice Owner"},
	{ID: "usr-acme-reviewer", OrgID: AcmeOrgID, Email: "reviewer@acme.example", Name: "Rob Reviewer"},
	{ID: "usr-globex-counsel", OrgID: GlobexOrgID, Email: "counsel@globex.example", Name: "Gina Counsel"},
}

// Apply writes the fixture. It is idempotent: existing organizations, operators and users (by email
// within their organization) are left as they are; roles are always upserted to their defaults.
func Apply(ctx context.Context, t Targets, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	for role, caps := range rbac.DefaultRoles {
		if err := t.Roles.UpsertRole(ctx, role, caps); err != nil {
			return fmt.Errorf("upsert role %s: %w", role, err)
		}
	}
	for _, o := range organizations {
		existing, err := t.Organizations.GetOrganizationByID(ctx, o.ID)
		if err != nil {
			return fmt.Errorf("get organization %s: %w", o.ID, err)
		}
		if existing != nil {
			continue
		}
		org := *o
		if err := t.Organizations.CreateOrganization(ctx, &org); err != nil {
			return fmt.Errorf("create organization %s: %w", o.ID, err)
		}
		logger.Info("seeded organization", zap.String("org_id", o.ID))
	}
	for _, o := range operators {
		existing, err := t.Operators.GetByID(ctx, o.ID)
		if err != nil {
			return fmt.Errorf("get operator %s: %w", o.ID, err)
		}
		if existing != nil {
			continue
		}
		op := *o
		if err := t.Operators.Create(ctx, &op); err != nil {
			return fmt.Errorf("create operator %s: %w", o.ID, err)
		}
		logger.Info("seeded operator", zap.String("operator_id", o.ID), zap.String("role", o.Role))
	}
	for _, u := range users {
		tctx := tenancy.WithEffectiveTenant(ctx, u.OrgID, tenancy.SourceHome)
		existing, err := t.Users.ListByOrg(tctx, u.OrgID)
		if err != nil {
			return fmt.Errorf("list users of %s: %w", u.OrgID, err)
		}
		if hasEmail(existing, u.Email) {
			continue
		}
		usr := *u
		if err := t.Users.Create(tctx, &usr); err != nil {
			return fmt.Errorf("create user %s: %w", u.ID, err)
		}
	}
	return nil
}

func hasEmail(list []*userdomain.User, email string) bool {
	for _, u := range list {
		if u.Email == email {
			return true
		}
	}
	return false
}
