// Package variant holds the four named (Policy, Hook) configurations a
// kernel can boot with (spec §4.4): strict, permissive, evidence-first,
// and dual-channel. Each contributes one additional pure check that runs
// alongside the jurisdiction evaluator in ARBITRATING.
package variant

import (
	"fmt"
	"strings"

	"github.com/mindburn-labs/kernels/pkg/jurisdiction"
	"github.com/mindburn-labs/kernels/pkg/types"
)

// Name identifies one of the four fixed variants.
type Name string

const (
	Strict        Name = "strict"
	Permissive    Name = "permissive"
	EvidenceFirst Name = "evidence-first"
	DualChannel   Name = "dual-channel"
)

// Hook is a variant's additional pure check, run in ARBITRATING
// alongside the jurisdiction evaluator; its violations merge with the
// evaluator's (spec §4.4).
type Hook func(req types.Request) []string

// Config pairs a variant's policy with its hook.
type Config struct {
	Name   Name
	Policy *jurisdiction.Policy
	Hook   Hook
}

// requiredConstraintKeys are the dual-channel variant's required keys,
// matching the original implementation's REQUIRED_CONSTRAINT_KEYS.
var requiredConstraintKeys = []string{"scope", "non_goals", "success_criteria"}

// For resolves a variant name to its fixed Config. An unknown name is a
// boot-time configuration error — there is no default variant to fall
// back to silently.
func For(name Name) (Config, error) {
	switch name {
	case Strict:
		return Config{
			Name:   Strict,
			Policy: jurisdiction.NewBuilder().Build(),
			Hook:   func(types.Request) []string { return nil },
		}, nil
	case Permissive:
		return Config{
			Name: Permissive,
			Policy: jurisdiction.NewBuilder().
				AllowActors("*").
				AllowTools("*").
				AllowIntentOnly(true).
				MaxIntentLength(8192).
				Build(),
			Hook: func(types.Request) []string { return nil },
		}, nil
	case EvidenceFirst:
		return Config{
			Name:   EvidenceFirst,
			Policy: jurisdiction.NewBuilder().AllowIntentOnly(true).Build(),
			Hook:   evidenceFirstHook,
		}, nil
	case DualChannel:
		return Config{
			Name:   DualChannel,
			Policy: jurisdiction.NewBuilder().AllowIntentOnly(true).Build(),
			Hook:   dualChannelHook,
		}, nil
	default:
		return Config{}, fmt.Errorf("variant: unknown variant %q", name)
	}
}

func evidenceFirstHook(req types.Request) []string {
	if strings.TrimSpace(req.Evidence) == "" {
		return []string{"evidence field is required for this kernel variant"}
	}
	return nil
}

// dualChannelHook reads constraints from request.params.constraints
// (spec §4.4), not the top-level Request.Constraints field — the two
// are distinct per spec §3's data model, and this variant's check is
// pinned to the params-nested location per the original implementation.
func dualChannelHook(req types.Request) []string {
	raw, ok := req.Params["constraints"]
	if !ok {
		return []string{"constraints mapping is required in params"}
	}
	constraints, ok := raw.(map[string]any)
	if !ok {
		return []string{"constraints must be a mapping"}
	}

	var missing []string
	var empty []string
	for _, key := range requiredConstraintKeys {
		v, ok := constraints[key]
		if !ok {
			missing = append(missing, key)
			continue
		}
		s, isString := v.(string)
		if !isString || strings.TrimSpace(s) == "" {
			empty = append(empty, key)
		}
	}

	var errs []string
	if len(missing) > 0 {
		errs = append(errs, fmt.Sprintf("missing required constraint keys: %s", strings.Join(missing, ", ")))
	}
	for _, key := range empty {
		errs = append(errs, fmt.Sprintf("constraint %q cannot be empty", key))
	}
	return errs
}
