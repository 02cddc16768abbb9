package policy

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/open-policy-agent/opa/rego"
	"github.com/rs/zerolog"

	"github.com/dbxdeploy/dbxdeploy/pkg/deploy"
)

// Gate evaluates every enabled policy against a run's input and denies
// the run on any error-severity violation. It implements deploy.Gate.
type Gate struct {
	mu       sync.RWMutex
	policies map[string]*Policy
	log      zerolog.Logger
}

// NewGate creates a gate preloaded with the builtin policies.
func NewGate(logger zerolog.Logger) *Gate {
	g := &Gate{
		policies: make(map[string]*Policy),
		log:      logger.With().Str("component", "policy-gate").Logger(),
	}
	for _, p := range BuiltinPolicies() {
		policy := p
		g.policies[policy.Name] = &policy
	}
	return g
}

// Add registers or replaces a policy.
func (g *Gate) Add(policy Policy) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.policies[policy.Name] = &policy
}

// LoadPaths loads additional policies from .rego files.
func (g *Gate) LoadPaths(paths []string) error {
	policies, err := LoadFromPaths(paths)
	if err != nil {
		return err
	}
	for _, policy := range policies {
		g.Add(policy)
	}
	return nil
}

// Policies returns the registered policies.
func (g *Gate) Policies() []Policy {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Policy, 0, len(g.policies))
	for _, p := range g.policies {
		out = append(out, *p)
	}
	return out
}

// Authorize evaluates all enabled policies. Error-severity violations
// produce a denial; warnings are logged and let the run continue.
func (g *Gate) Authorize(ctx context.Context, input deploy.GateInput) error {
	violations, err := g.Evaluate(ctx, input)
	if err != nil {
		return err
	}

	var denials []string
	for _, v := range violations {
		if v.Severity == string(SeverityError) {
			denials = append(denials, v.Message)
			continue
		}
		g.log.Warn().Str("policy", v.Policy).Msg(v.Message)
	}

	if len(denials) > 0 {
		return deploy.NewError(deploy.KindPolicyDenied,
			"deployment denied by policy: "+strings.Join(denials, "; "))
	}
	return nil
}

// Evaluate runs every enabled policy and returns all violations.
func (g *Gate) Evaluate(ctx context.Context, input deploy.GateInput) ([]Violation, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var violations []Violation
	for _, policy := range g.policies {
		if !policy.Enabled {
			continue
		}

		found, err := g.evaluatePolicy(ctx, policy, input)
		if err != nil {
			return nil, fmt.Errorf("evaluating policy %s: %w", policy.Name, err)
		}
		violations = append(violations, found...)
	}
	return violations, nil
}

// evaluatePolicy queries the policy package's deny set.
func (g *Gate) evaluatePolicy(ctx context.Context, policy *Policy, input deploy.GateInput) ([]Violation, error) {
	query := fmt.Sprintf("data.%s.deny", packageName(policy.Rego))

	r := rego.New(
		rego.Module(policy.Name, policy.Rego),
		rego.Query(query),
		rego.Input(input),
	)

	results, err := r.Eval(ctx)
	if err != nil {
		return nil, err
	}

	var violations []Violation
	for _, result := range results {
		for _, expr := range result.Expressions {
			denySet, ok := expr.Value.([]interface{})
			if !ok {
				continue
			}
			for _, entry := range denySet {
				violations = append(violations, newViolation(policy, entry))
			}
		}
	}
	return violations, nil
}

// newViolation converts one deny-set entry into a Violation. Entries are
// objects with message/severity, or bare strings.
func newViolation(policy *Policy, entry interface{}) Violation {
	violation := Violation{
		Policy:   policy.Name,
		Severity: string(policy.Severity),
	}

	switch v := entry.(type) {
	case string:
		violation.Message = v
	case map[string]interface{}:
		if msg, ok := v["message"].(string); ok {
			violation.Message = msg
		}
		if sev, ok := v["severity"].(string); ok {
			violation.Severity = sev
		}
	default:
		violation.Message = fmt.Sprintf("%v", entry)
	}
	return violation
}

// packageName extracts the Rego package of a policy document.
func packageName(source string) string {
	for _, line := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "package ") {
			fields := strings.Fields(trimmed)
			if len(fields) >= 2 {
				return fields[1]
			}
		}
	}
	return "dbxdeploy.policies"
}
