package jurisdiction

import (
	"testing"

	"github.com/mindburn-labs/kernels/pkg/types"
	"github.com/stretchr/testify/assert"
)

func baseRequest() *types.Request {
	return &types.Request{
		RequestID: "r1",
		TsMS:      1000,
		Actor:     "alice",
		Intent:    "echo something",
	}
}

func TestEvaluateAllowsWildcardPolicy(t *testing.T) {
	p := NewBuilder().AllowActors("*").AllowTools("*").AllowIntentOnly(true).Build()
	res := Evaluate(baseRequest(), p)
	assert.True(t, res.Allowed)
	assert.Empty(t, res.Violations)
}

func TestEvaluateDeniesUnlistedActor(t *testing.T) {
	p := NewBuilder().AllowActors("bob").Build()
	res := Evaluate(baseRequest(), p)
	assert.False(t, res.Allowed)
	assert.Contains(t, res.Violations[0], "alice")
}

func TestEvaluateDeniesUnlistedTool(t *testing.T) {
	req := baseRequest()
	req.ToolCall = &types.ToolCall{Name: "missing", Params: map[string]any{}}
	p := NewBuilder().AllowActors("*").AllowTools("echo").Build()
	res := Evaluate(req, p)
	assert.False(t, res.Allowed)
	found := false
	for _, v := range res.Violations {
		if v != "" {
			found = found || (v == `tool "missing" is not permitted`)
		}
	}
	assert.True(t, found)
}

func TestEvaluateAccumulatesAllViolations(t *testing.T) {
	req := &types.Request{RequestID: "", Actor: "", Intent: ""}
	p := NewBuilder().AllowActors("only-this").Build()
	res := Evaluate(req, p)
	assert.False(t, res.Allowed)
	// request_id, actor, intent required fields + actor not permitted
	assert.GreaterOrEqual(t, len(res.Violations), 3)
}

func TestEvaluateRejectsOversizedParams(t *testing.T) {
	req := baseRequest()
	big := make(map[string]any)
	for i := 0; i < 20; i++ {
		big[string(rune('a'+i))] = "0123456789012345678901234567890123456789"
	}
	req.Params = big
	p := NewBuilder().AllowActors("alice").MaxParamBytes(10).Build()
	res := Evaluate(req, p)
	assert.False(t, res.Allowed)
}

func TestEvaluateRejectsOverlongIntent(t *testing.T) {
	req := baseRequest()
	req.Intent = "this is far too long for the policy"
	p := NewBuilder().AllowActors("alice").MaxIntentLength(5).Build()
	res := Evaluate(req, p)
	assert.False(t, res.Allowed)
}

func TestEvaluateRejectsEmptyToolName(t *testing.T) {
	req := baseRequest()
	req.ToolCall = &types.ToolCall{Name: "", Params: map[string]any{}}
	p := NewBuilder().AllowActors("alice").AllowTools("*").Build()
	res := Evaluate(req, p)
	assert.False(t, res.Allowed)
}

func TestEvaluateCELRulePasses(t *testing.T) {
	req := baseRequest()
	p := NewBuilder().AllowActors("alice").WithRules(Rule{
		Name:       "actor-is-alice",
		Expression: `request.actor == "alice"`,
	}).Build()
	res := Evaluate(req, p)
	assert.True(t, res.Allowed)
}

func TestEvaluateCELRuleFails(t *testing.T) {
	req := baseRequest()
	p := NewBuilder().AllowActors("alice").WithRules(Rule{
		Name:       "actor-is-bob",
		Expression: `request.actor == "bob"`,
	}).Build()
	res := Evaluate(req, p)
	assert.False(t, res.Allowed)
	assert.Contains(t, res.Violations[0], "actor-is-bob")
}

func TestEvaluateCELRuleCompileErrorIsViolation(t *testing.T) {
	req := baseRequest()
	p := NewBuilder().AllowActors("alice").WithRules(Rule{
		Name:       "broken",
		Expression: `request.actor ===`,
	}).Build()
	res := Evaluate(req, p)
	assert.False(t, res.Allowed)
	assert.Contains(t, res.Violations[0], "broken")
}

func TestEvaluateCELRuleOnToolCall(t *testing.T) {
	req := baseRequest()
	req.ToolCall = &types.ToolCall{Name: "rm_rf", Params: map[string]any{}}
	p := NewBuilder().AllowActors("alice").AllowTools("*").WithRules(Rule{
		Name:       "no-rm-rf",
		Expression: `!(has(request.tool_call) && request.tool_call.name == "rm_rf")`,
	}).Build()
	res := Evaluate(req, p)
	assert.False(t, res.Allowed)
}
