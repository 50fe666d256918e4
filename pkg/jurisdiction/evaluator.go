package jurisdiction

import (
	"fmt"

	"github.com/mindburn-labs/kernels/pkg/codec"
	"github.com/mindburn-labs/kernels/pkg/types"
)

// Result is the outcome of Evaluate.
type Result struct {
	Allowed    bool
	Violations []string
}

// Evaluate runs every fixed check in spec §4.3 against req and policy,
// accumulating all violations — it never short-circuits on the first
// failure, so a caller sees the full list of what's wrong with a
// request in one pass.
func Evaluate(req *types.Request, policy *Policy) Result {
	var violations []string

	// 1. Required fields: every field in policy.RequiredFields must be
	// non-empty on the request.
	for _, field := range policy.RequiredFields {
		if !fieldPresent(req, field) {
			violations = append(violations, fmt.Sprintf("required field %q is empty", field))
		}
	}

	// 2. Actor.
	if !policy.AllowsActor(req.Actor) {
		violations = append(violations, fmt.Sprintf("actor %q is not permitted", req.Actor))
	}

	// 3. Tool: only checked if tool_call is present.
	if req.ToolCall != nil {
		if !policy.AllowsTool(req.ToolCall.Name) {
			violations = append(violations, fmt.Sprintf("tool %q is not permitted", req.ToolCall.Name))
		}
	}

	// 4. Param size: canonical-serialized params must fit within
	// policy.MaxParamBytes. A serialization failure is itself a
	// violation.
	if req.Params != nil {
		b, err := codec.Canonical(req.Params)
		if err != nil {
			violations = append(violations, fmt.Sprintf("params failed canonicalization: %v", err))
		} else if len(b) > policy.MaxParamBytes {
			violations = append(violations, fmt.Sprintf("params exceed max_param_bytes (%d > %d)", len(b), policy.MaxParamBytes))
		}
	}

	// 5. Intent length.
	if len(req.Intent) > policy.MaxIntentLength {
		violations = append(violations, fmt.Sprintf("intent exceeds max_intent_length (%d > %d)", len(req.Intent), policy.MaxIntentLength))
	}

	// 6. Tool-call shape: name non-empty, params is a mapping (always
	// true for the typed ToolCall.Params field, but Params being nil
	// on a present tool_call is not itself a shape violation — the
	// dispatcher treats a nil map as an empty mapping).
	if req.ToolCall != nil && req.ToolCall.Name == "" {
		violations = append(violations, "tool_call.name must be non-empty")
	}

	// CEL rules, if the policy carries any.
	if ruleViolations := evaluateRules(req, policy.Rules); len(ruleViolations) > 0 {
		violations = append(violations, ruleViolations...)
	}

	return Result{Allowed: len(violations) == 0, Violations: violations}
}

func fieldPresent(req *types.Request, field string) bool {
	switch field {
	case "request_id":
		return req.RequestID != ""
	case "actor":
		return req.Actor != ""
	case "intent":
		return req.Intent != ""
	case "evidence":
		return req.Evidence != ""
	default:
		// Unknown required field names are treated as absent — a
		// policy cannot require a field that doesn't exist on the
		// request schema and have it silently pass.
		return false
	}
}
