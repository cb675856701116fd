package engine

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const defaultPolicyQuery = "data.casedesk.access.allow"

// Default Rego policy: a role may perform an action when its capability set contains "all" or the action itself.
const defaultRegoPolicy = `package casedesk.access

default allow := false

allow if {
	some c in input.capabilities
	c == "all"
}

allow if {
	input.action != ""
	some c in input.capabilities
	c == input.action
}
`

// OPAEvaluator evaluates access decisions with OPA Rego. The policy is compiled once at construction.
type OPAEvaluator struct {
	query rego.PreparedEvalQuery
}

// NewOPAEvaluator compiles modules (or the default policy when none are given) and prepares the allow query.
// Custom modules must define data.casedesk.access.allow.
func NewOPAEvaluator(ctx context.Context, modules ...string) (*OPAEvaluator, error) {
	if len(modules) == 0 {
		modules = []string{defaultRegoPolicy}
	}
	files := make(map[string]string, len(modules))
	for i, m := range modules {
		files[fmt.Sprintf("policy_%d.rego", i)] = m
	}
	compiler, err := ast.CompileModules(files)
	if err != nil {
		return nil, fmt.Errorf("compile policies: %w", err)
	}
	q, err := rego.New(
		rego.Query(defaultPolicyQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare policy query: %w", err)
	}
	return &OPAEvaluator{query: q}, nil
}

// Allowed implements Evaluator. Any evaluation problem denies.
func (e *OPAEvaluator) Allowed(ctx context.Context, action string, role string, capabilities []string) (bool, error) {
	caps := make([]any, len(capabilities))
	for i, c := range capabilities {
		caps[i] = c
	}
	input := map[string]any{
		"action":       action,
		"role":         role,
		"capabilities": caps,
	}
	rs, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("eval policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, fmt.Errorf("policy query returned no result")
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("policy result is %T, want bool", rs[0].Expressions[0].Value)
	}
	return allowed, nil
}

// HealthCheck evaluates the prepared query against a minimal input. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	if _, err := e.Allowed(ctx, ActionImpersonate, "", nil); err != nil {
		return err
	}
	return nil
}
