package compliance

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// CustomRule is an operator-supplied compliance rule expressed as a
// CEL boolean expression. The expression is evaluated once per entity
// with three variables in scope:
//
//   - kind: the entity kind ("network", "subnet", "route_domain",
//     "gateway", "access_group", "identity", "binding", "compute")
//   - name: the entity's logical name
//   - properties: the entity's attribute map
//
// An expression evaluating to true records a violation against the
// entity. For example, to forbid unmonitored networks:
//
//	rule, err := compliance.NewCustomRule(
//	    "network-monitoring-enabled",
//	    `kind == "network" && !properties.monitoring_enabled`,
//	    compliance.SeverityMedium,
//	    "network declares no continuous-monitoring recorder",
//	)
type CustomRule struct {
	name     string
	severity Severity
	message  string
	program  cel.Program
}

// ruleEnv builds the CEL environment custom rules compile against.
func ruleEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("kind", cel.StringType),
		cel.Variable("name", cel.StringType),
		cel.Variable("properties", cel.MapType(cel.StringType, cel.DynType)),
	)
}

// NewCustomRule compiles a CEL expression into a rule. The expression
// must produce a boolean. Compilation errors are returned immediately
// so misconfigured rules fail at registration, not mid-check.
func NewCustomRule(name, expression string, severity Severity, message string) (*CustomRule, error) {
	if name == "" {
		return nil, fmt.Errorf("custom rule: name is required")
	}
	if !severity.IsValid() {
		return nil, fmt.Errorf("custom rule %q: severity %q is not valid", name, severity)
	}

	env, err := ruleEnv()
	if err != nil {
		return nil, fmt.Errorf("custom rule %q: build environment: %w", name, err)
	}
	ast, iss := env.Compile(expression)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("custom rule %q: compile: %w", name, iss.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("custom rule %q: expression yields %s, want bool", name, ast.OutputType())
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("custom rule %q: build program: %w", name, err)
	}

	return &CustomRule{
		name:     name,
		severity: severity,
		message:  message,
		program:  program,
	}, nil
}

// Name returns the rule's name, used as the violation invariant name.
func (r *CustomRule) Name() string { return r.name }

// Severity returns the severity recorded for matches.
func (r *CustomRule) Severity() Severity { return r.severity }

// Message returns the violation message recorded for matches.
func (r *CustomRule) Message() string { return r.message }

// eval runs the rule against one entity.
func (r *CustomRule) eval(kind, name string, properties map[string]any) (bool, error) {
	out, _, err := r.program.Eval(map[string]any{
		"kind":       kind,
		"name":       name,
		"properties": properties,
	})
	if err != nil {
		return false, err
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression yielded %T, want bool", out.Value())
	}
	return matched, nil
}
