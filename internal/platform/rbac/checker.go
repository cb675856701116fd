package rbac

import (
	"context"
	"fmt"

	"casedesk/backend/internal/policy/engine"
)

// Checker answers capability questions about a role by loading its capabilities and asking the policy engine.
type Checker struct {
	roles     RoleRepository
	evaluator engine.Evaluator
}

// NewChecker returns a Checker.
func NewChecker(roles RoleRepository, evaluator engine.Evaluator) *Checker {
	return &Checker{roles: roles, evaluator: evaluator}
}

// CanImpersonate reports whether role carries "all" or "impersonate". Unknown roles cannot.
func (c *Checker) CanImpersonate(ctx context.Context, role string) (bool, error) {
	return c.allowed(ctx, engine.ActionImpersonate, role)
}

// CanReadAudit reports whether role may read audit trails of sessions it does not own.
func (c *Checker) CanReadAudit(ctx context.Context, role string) (bool, error) {
	return c.allowed(ctx, engine.ActionAuditRead, role)
}

func (c *Checker) allowed(ctx context.Context, action, role string) (bool, error) {
	caps, ok, err := c.roles.GetCapabilities(ctx, role)
	if err != nil {
		return false, fmt.Errorf("load role %q: %w", role, err)
	}
	if !ok {
		return false, nil
	}
	names := make([]string, len(caps))
	for i, cap := range caps {
		names[i] = string(cap)
	}
	allowed, err := c.evaluator.Allowed(ctx, action, role, names)
	if err != nil {
		return false, fmt.Errorf("evaluate %s for role %q: %w", action, role, err)
	}
	return allowed, nil
}
