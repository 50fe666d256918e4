package jurisdiction

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/mindburn-labs/kernels/pkg/types"
)

// evaluateRules compiles and runs every CEL rule against req, returning
// one violation per rule that does not evaluate to exactly `true`.
// Compilation and evaluation errors are themselves violations —
// per spec's fail-closed posture, a broken rule denies rather than
// silently passing.
//
// The `request` variable exposed to CEL is a plain map so that rule
// authors can write expressions like:
//
//	request.actor == "ops-bot" && request.intent.startsWith("deploy")
//	has(request.tool_call) && request.tool_call.name != "rm_rf"
func evaluateRules(req *types.Request, rules []Rule) []string {
	if len(rules) == 0 {
		return nil
	}

	env, err := cel.NewEnv(cel.Variable("request", cel.DynType))
	if err != nil {
		out := make([]string, len(rules))
		for i, r := range rules {
			out[i] = fmt.Sprintf("rule %q: CEL environment failed to initialize: %v", r.Name, err)
		}
		return out
	}

	input := map[string]any{
		"request_id": req.RequestID,
		"ts_ms":      req.TsMS,
		"actor":      req.Actor,
		"intent":     req.Intent,
		"evidence":   req.Evidence,
		"params":     req.Params,
	}
	if req.ToolCall != nil {
		input["tool_call"] = map[string]any{
			"name":   req.ToolCall.Name,
			"params": req.ToolCall.Params,
		}
	}
	vars := map[string]any{"request": input}

	var violations []string
	for _, rule := range rules {
		ast, iss := env.Compile(rule.Expression)
		if iss != nil && iss.Err() != nil {
			violations = append(violations, fmt.Sprintf("rule %q: compile error: %v", rule.Name, iss.Err()))
			continue
		}
		prg, err := env.Program(ast)
		if err != nil {
			violations = append(violations, fmt.Sprintf("rule %q: program build failed: %v", rule.Name, err))
			continue
		}
		out, _, err := prg.Eval(vars)
		if err != nil {
			violations = append(violations, fmt.Sprintf("rule %q: evaluation error: %v", rule.Name, err))
			continue
		}
		ok, isBool := out.Value().(bool)
		if !isBool || !ok {
			violations = append(violations, fmt.Sprintf("rule %q did not hold", rule.Name))
		}
	}
	return violations
}
