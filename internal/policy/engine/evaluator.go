package engine

import (
	"context"
	"slices"
)

// Actions understood by the default policy. Each is also the capability that grants it.
const (
	ActionImpersonate = "impersonate"
	ActionAuditRead   = "audit_read"
)

// CapabilityAll grants every action.
const CapabilityAll = "all"

// Evaluator decides whether a role holding capabilities may perform action.
// Implementations fail closed: on error the result is false.
type Evaluator interface {
	Allowed(ctx context.Context, action string, role string, capabilities []string) (bool, error)
	HealthCheck(ctx context.Context) error
}

// StaticEvaluator applies the default rule in Go: allowed iff the capabilities contain "all" or the action.
type StaticEvaluator struct{}

// NewStaticEvaluator returns a StaticEvaluator.
func NewStaticEvaluator() StaticEvaluator { return StaticEvaluator{} }

// Allowed implements Evaluator.
func (StaticEvaluator) Allowed(_ context.Context, action string, _ string, capabilities []string) (bool, error) {
	if action == "" {
		return false, nil
	}
	return slices.Contains(capabilities, CapabilityAll) || slices.Contains(capabilities, action), nil
}

// HealthCheck implements Evaluator.
func (StaticEvaluator) HealthCheck(context.Context) error { return nil }
