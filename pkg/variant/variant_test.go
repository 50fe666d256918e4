package variant

import (
	"testing"

	"github.com/mindburn-labs/kernels/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForUnknownVariantErrors(t *testing.T) {
	_, err := For(Name("bogus"))
	require.Error(t, err)
}

func TestStrictHookAlwaysEmpty(t *testing.T) {
	cfg, err := For(Strict)
	require.NoError(t, err)
	assert.False(t, cfg.Policy.AllowIntentOnly)
	assert.Empty(t, cfg.Hook(types.Request{}))
}

func TestPermissivePolicyIsWildcardAndIntentOnly(t *testing.T) {
	cfg, err := For(Permissive)
	require.NoError(t, err)
	assert.True(t, cfg.Policy.AllowsActor("anyone"))
	assert.True(t, cfg.Policy.AllowsTool("anything"))
	assert.True(t, cfg.Policy.AllowIntentOnly)
	assert.Equal(t, 8192, cfg.Policy.MaxIntentLength)
	assert.Empty(t, cfg.Hook(types.Request{}))
}

func TestEvidenceFirstHookRequiresNonWhitespaceEvidence(t *testing.T) {
	cfg, err := For(EvidenceFirst)
	require.NoError(t, err)
	assert.True(t, cfg.Policy.AllowIntentOnly)

	assert.NotEmpty(t, cfg.Hook(types.Request{}))
	assert.NotEmpty(t, cfg.Hook(types.Request{Evidence: "   "}))
	assert.Empty(t, cfg.Hook(types.Request{Evidence: "saw it happen"}))
}

func TestDualChannelHookRequiresAllConstraintKeys(t *testing.T) {
	cfg, err := For(DualChannel)
	require.NoError(t, err)
	assert.True(t, cfg.Policy.AllowIntentOnly)

	assert.NotEmpty(t, cfg.Hook(types.Request{}))

	partial := types.Request{Params: map[string]any{"constraints": map[string]any{"scope": "x"}}}
	violations := cfg.Hook(partial)
	assert.NotEmpty(t, violations)

	complete := types.Request{Params: map[string]any{"constraints": map[string]any{
		"scope": "x", "non_goals": "y", "success_criteria": "z",
	}}}
	assert.Empty(t, cfg.Hook(complete))

	withEmpty := types.Request{Params: map[string]any{"constraints": map[string]any{
		"scope": "", "non_goals": "y", "success_criteria": "z",
	}}}
	assert.NotEmpty(t, cfg.Hook(withEmpty))
}
