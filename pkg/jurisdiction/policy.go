// Package jurisdiction implements the jurisdiction evaluator: a pure
// function from (request, policy) to a list of violations (spec §4.3),
// plus an optional layer of CEL expression rules that a policy may
// carry on top of the fixed checks.
package jurisdiction

// Policy is the immutable set of actors, tools, states, and size
// bounds a kernel admits (spec §3). Construct via Builder or the
// literal struct; once built, a Policy is never mutated.
type Policy struct {
	AllowedActors    map[string]struct{}
	AllowedTools     map[string]struct{}
	AllowedStates    map[string]struct{}
	RequiredFields   []string
	MaxParamBytes    int
	MaxIntentLength  int
	AllowIntentOnly  bool
	// Rules is an optional list of CEL boolean expressions evaluated
	// against the request as additional jurisdiction checks, beyond
	// the fixed checks in evaluator.go. See cel_rules.go.
	Rules []Rule
}

// Rule names and expresses one additional jurisdiction check as a CEL
// boolean expression over a `request` variable. The expression must
// evaluate to true for the rule to be satisfied; a false result or
// evaluation error becomes a violation naming Name.
type Rule struct {
	Name       string
	Expression string
}

const wildcard = "*"

func newSet(values ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

// AllowsActor reports whether actor is admitted, honoring the "*"
// wildcard.
func (p *Policy) AllowsActor(actor string) bool {
	if _, ok := p.AllowedActors[wildcard]; ok {
		return true
	}
	_, ok := p.AllowedActors[actor]
	return ok
}

// AllowsTool reports whether tool is admitted, honoring the "*"
// wildcard.
func (p *Policy) AllowsTool(tool string) bool {
	if _, ok := p.AllowedTools[wildcard]; ok {
		return true
	}
	_, ok := p.AllowedTools[tool]
	return ok
}

// AllowsState reports whether operations are permitted while the
// kernel is in state s. An empty AllowedStates set means "no
// restriction" (every state is permitted) — most policies never
// populate it, since the state machine itself is the primary gate.
func (p *Policy) AllowsState(s string) bool {
	if len(p.AllowedStates) == 0 {
		return true
	}
	_, ok := p.AllowedStates[s]
	return ok
}

// Builder constructs a Policy field by field. It exists to keep
// Policy's zero value unambiguous (an empty AllowedActors set denies
// everyone, which is the strict/deny-by-default posture, not an
// accident of a missing field).
type Builder struct {
	p Policy
}

// NewBuilder starts a Policy with spec's stated defaults:
// max_param_bytes=65536, max_intent_length=4096, allow_intent_only=false,
// required_fields={request_id, actor, intent}, no actors/tools allowed.
func NewBuilder() *Builder {
	return &Builder{p: Policy{
		AllowedActors:   map[string]struct{}{},
		AllowedTools:    map[string]struct{}{},
		AllowedStates:   map[string]struct{}{},
		RequiredFields:  []string{"request_id", "actor", "intent"},
		MaxParamBytes:   65536,
		MaxIntentLength: 4096,
		AllowIntentOnly: false,
	}}
}

func (b *Builder) AllowActors(actors ...string) *Builder {
	b.p.AllowedActors = newSet(actors...)
	return b
}

func (b *Builder) AllowTools(tools ...string) *Builder {
	b.p.AllowedTools = newSet(tools...)
	return b
}

func (b *Builder) AllowStates(states ...string) *Builder {
	b.p.AllowedStates = newSet(states...)
	return b
}

func (b *Builder) RequireFields(fields ...string) *Builder {
	b.p.RequiredFields = append([]string(nil), fields...)
	return b
}

func (b *Builder) MaxParamBytes(n int) *Builder {
	b.p.MaxParamBytes = n
	return b
}

func (b *Builder) MaxIntentLength(n int) *Builder {
	b.p.MaxIntentLength = n
	return b
}

func (b *Builder) AllowIntentOnly(v bool) *Builder {
	b.p.AllowIntentOnly = v
	return b
}

func (b *Builder) WithRules(rules ...Rule) *Builder {
	b.p.Rules = append([]Rule(nil), rules...)
	return b
}

func (b *Builder) Build() *Policy {
	p := b.p
	return &p
}
