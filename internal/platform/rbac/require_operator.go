package rbac

import (
	"context"
	"fmt"

	"casedesk/backend/internal/impersonation/service"
	operatordomain "casedesk/backend/internal/operator/domain"
	"casedesk/backend/internal/security"
	"casedesk/backend/internal/server/interceptors"
)

// RequireOperator returns the verified operator of the request, or security.ErrUnauthenticated.
func RequireOperator(ctx context.Context) (*security.Principal, error) {
	p, ok := interceptors.GetPrincipal(ctx)
	if !ok || p.OperatorID == "" {
		return nil, security.ErrUnauthenticated
	}
	return p, nil
}

// OperatorGetter is the minimal operator lookup needed by AuditAccess.
type OperatorGetter interface {
	GetByID(ctx context.Context, id string) (*operatordomain.Operator, error)
}

// AuditAccess decides who may read or close sessions they did not start.
type AuditAccess struct {
	operators OperatorGetter
	checker   *Checker
}

// NewAuditAccess returns an AuditAccess.
func NewAuditAccess(operators OperatorGetter, checker *Checker) *AuditAccess {
	return &AuditAccess{operators: operators, checker: checker}
}

// RequireAuditAccess allows the caller when it is ownerID (the operator who started the session),
// or when its current role carries audit_read or all. Pass an empty ownerID for resources that
// have no owner, such as an organization's compliance report.
func (a *AuditAccess) RequireAuditAccess(ctx context.Context, ownerID string) (*security.Principal, error) {
	p, err := RequireOperator(ctx)
	if err != nil {
		return nil, err
	}
	if ownerID != "" && p.OperatorID == ownerID {
		return p, nil
	}
	op, err := a.operators.GetByID(ctx, p.OperatorID)
	if err != nil {
		return nil, fmt.Errorf("load operator: %w", err)
	}
	if op == nil || !op.IsActive() {
		return nil, fmt.Errorf("%w: operator not found or inactive", service.ErrForbidden)
	}
	ok, err := a.checker.CanReadAudit(ctx, op.Role)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: role %q cannot read other operators' audit trails", service.ErrForbidden, op.Role)
	}
	return p, nil
}
