// Package kernel drives a request through the pipeline described in
// spec §4.6: validate, arbitrate, (optionally) execute, audit. It is
// the only package that wires clock, codec, state machine, jurisdiction
// evaluator, tool registry, ledger, variant, permit, ratelimit,
// ledgerstore, and observability together into one unit of work per
// call to Submit.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mindburn-labs/kernels/pkg/clock"
	"github.com/mindburn-labs/kernels/pkg/codec"
	"github.com/mindburn-labs/kernels/pkg/evidence"
	"github.com/mindburn-labs/kernels/pkg/jurisdiction"
	"github.com/mindburn-labs/kernels/pkg/kernelerr"
	"github.com/mindburn-labs/kernels/pkg/ledger"
	"github.com/mindburn-labs/kernels/pkg/ledgerstore"
	"github.com/mindburn-labs/kernels/pkg/observability"
	"github.com/mindburn-labs/kernels/pkg/permit"
	"github.com/mindburn-labs/kernels/pkg/ratelimit"
	"github.com/mindburn-labs/kernels/pkg/registry"
	"github.com/mindburn-labs/kernels/pkg/statemachine"
	"github.com/mindburn-labs/kernels/pkg/types"
	"github.com/mindburn-labs/kernels/pkg/variant"
)

// Config is a kernel's boot configuration (spec §4.6 boot(), §6
// "Configuration options"). Only KernelID and Variant are required;
// everything else has a safe, fail-closed default.
type Config struct {
	KernelID string
	Variant  variant.Name

	// Clock is the kernel's only time source. Defaults to a Monotonic
	// clock starting at 0 if nil — never time.Now().
	Clock clock.Clock

	// Registry holds the kernel's registered tools. Defaults to an
	// empty Registry if nil; tools may still be registered after boot.
	Registry *registry.Registry

	// Policy overrides on top of the variant's defaults. Zero values
	// leave the variant's default in place.
	AllowedActors   []string
	AllowedTools    []string
	RequiredFields  []string
	MaxParamBytes   int
	MaxIntentLength int
	Rules           []jurisdiction.Rule

	// AppendDenialOnHalt resolves spec §9 Open Question 1: whether a
	// submit() arriving after halt() appends a ledger entry. Defaults
	// to false (short-circuit, matching the source).
	AppendDenialOnHalt bool

	// HashAlgorithm must be "sha256" if set; defaults to "sha256".
	HashAlgorithm string

	PermitVerifier *permit.Verifier
	RateLimiter    ratelimit.Limiter
	Store          ledgerstore.Store
	Archiver       evidence.Archiver
	Observability  *observability.Provider
	Logger         *slog.Logger
}

// Kernel is one booted, self-contained pipeline instance (spec §9:
// "Global state: none. Each kernel is self-contained"). Submit, Halt,
// and ExportEvidence all execute under mu, the single cooperative guard
// spec §5 requires.
type Kernel struct {
	mu sync.Mutex

	kernelID string
	variant  variant.Name

	machine  *statemachine.Machine
	policy   *jurisdiction.Policy
	hook     variant.Hook
	registry *registry.Registry
	ledger   *ledger.Ledger
	clock    clock.Clock

	appendDenialOnHalt bool
	permitVerifier     *permit.Verifier
	rateLimiter        ratelimit.Limiter
	store              ledgerstore.Store
	archiver           evidence.Archiver
	obs                *observability.Provider
	logger             *slog.Logger

	haltReason string
}

// Boot constructs and boots a Kernel (spec §4.6 construct()+boot()).
// Construction and boot are fused into one call here because nothing
// observable happens between BOOTING and IDLE — no caller can ever
// reach a constructed-but-unbooted Kernel.
func Boot(cfg Config) (*Kernel, error) {
	if cfg.KernelID == "" {
		cfg.KernelID = uuid.NewString()
	}
	if cfg.HashAlgorithm == "" {
		cfg.HashAlgorithm = "sha256"
	}
	if err := codec.HashAlgorithm(cfg.HashAlgorithm); err != nil {
		return nil, kernelerr.Wrap(kernelerr.KindBoot, "unsupported hash algorithm", err)
	}

	vcfg, err := variant.For(cfg.Variant)
	if err != nil {
		return nil, kernelerr.Wrap(kernelerr.KindBoot, "unknown variant", err)
	}

	policy := applyPolicyOverrides(vcfg.Policy, cfg)

	reg := cfg.Registry
	if reg == nil {
		reg = registry.New()
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.NewMonotonic(0, 1)
	}

	limiter := cfg.RateLimiter
	if limiter == nil {
		limiter = ratelimit.NoLimit{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("kernel_id", cfg.KernelID, "variant", string(cfg.Variant))

	machine := statemachine.New()
	if _, err := machine.Transition(statemachine.Idle); err != nil {
		return nil, kernelerr.Wrap(kernelerr.KindBoot, "failed to reach IDLE", err)
	}

	k := &Kernel{
		kernelID:           cfg.KernelID,
		variant:            cfg.Variant,
		machine:            machine,
		policy:             policy,
		hook:               vcfg.Hook,
		registry:           reg,
		ledger:             ledger.New(cfg.KernelID, string(cfg.Variant)),
		clock:              clk,
		appendDenialOnHalt: cfg.AppendDenialOnHalt,
		permitVerifier:     cfg.PermitVerifier,
		rateLimiter:        limiter,
		store:              cfg.Store,
		archiver:           cfg.Archiver,
		obs:                cfg.Observability,
		logger:             logger,
	}

	logger.Debug("kernel booted")
	return k, nil
}

func applyPolicyOverrides(base *jurisdiction.Policy, cfg Config) *jurisdiction.Policy {
	p := *base
	if len(cfg.AllowedActors) > 0 {
		p.AllowedActors = toSet(cfg.AllowedActors)
	}
	if len(cfg.AllowedTools) > 0 {
		p.AllowedTools = toSet(cfg.AllowedTools)
	}
	if len(cfg.RequiredFields) > 0 {
		p.RequiredFields = append([]string(nil), cfg.RequiredFields...)
	}
	if cfg.MaxParamBytes > 0 {
		p.MaxParamBytes = cfg.MaxParamBytes
	}
	if cfg.MaxIntentLength > 0 {
		p.MaxIntentLength = cfg.MaxIntentLength
	}
	if len(cfg.Rules) > 0 {
		p.Rules = append([]jurisdiction.Rule(nil), cfg.Rules...)
	}
	return &p
}

func toSet(values []string) map[string]struct{} {
	s := make(map[string]struct{}, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

// KernelID returns the kernel's id.
func (k *Kernel) KernelID() string { return k.kernelID }

// Variant returns the kernel's configured variant name.
func (k *Kernel) Variant() variant.Name { return k.variant }

// State returns the kernel's current state. Only ever observed as IDLE
// or HALTED between Submit calls (spec §8 property 6) — State takes mu,
// so it waits for an in-flight Submit or Halt to finish.
func (k *Kernel) State() statemachine.State {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.machine.Current()
}

// Ledger exposes the kernel's ledger for inspection (e.g. replay,
// tests). Entries() already returns an immutable snapshot.
func (k *Kernel) Ledger() *ledger.Ledger { return k.ledger }

// Registry exposes the kernel's tool registry so callers can register
// tools after boot.
func (k *Kernel) Registry() *registry.Registry { return k.registry }

// Submit is the kernel's single serialized entry point (spec §4.6
// submit(request), §5). It always returns a Receipt; no error escapes.
func (k *Kernel) Submit(ctx context.Context, req types.Request) types.Receipt {
	k.mu.Lock()
	defer k.mu.Unlock()

	ctx, done := k.trackOp(ctx, "kernel.submit", attribute.String("request_id", req.RequestID))
	var outcomeErr error
	defer func() { done(outcomeErr) }()

	stateFrom := k.machine.Current()

	// Step 2: HALTED short-circuit.
	if stateFrom == statemachine.Halted {
		outcomeErr = errors.New("kernel halted")
		return k.haltedReceipt(req)
	}

	evHash := evidenceHash(req)

	// Step 3: IDLE -> VALIDATING, structural validation.
	if _, err := k.machine.Transition(statemachine.Validating); err != nil {
		outcomeErr = err
		return k.internalFailure(req, stateFrom, err)
	}

	// Rate limiting gates entry into arbitration (domain-stack
	// addition; synchronous and CPU/IO-bound per spec §5, no
	// suspension point) — checked alongside structural validation,
	// both of which end the same way: deny-and-audit from VALIDATING.
	if allowed, err := k.rateLimiter.Allow(ctx, req.Actor); err != nil || !allowed {
		msg := "rate limit exceeded"
		if err != nil {
			msg = fmt.Sprintf("rate limit check failed: %v", err)
		}
		outcomeErr = errors.New(msg)
		return k.denyAndAudit(req, stateFrom, msg, evHash, "", nil)
	}

	if violations := structuralViolations(req, k.policy); len(violations) > 0 {
		msg := strings.Join(violations, "; ")
		outcomeErr = errors.New(msg)
		return k.denyAndAudit(req, stateFrom, msg, evHash, "", nil)
	}

	// Step 4: VALIDATING -> ARBITRATING, evaluator + hook + ambiguity.
	if _, err := k.machine.Transition(statemachine.Arbitrating); err != nil {
		outcomeErr = err
		return k.internalFailure(req, stateFrom, err)
	}

	jres := jurisdiction.Evaluate(&req, k.policy)
	violations := append([]string{}, jres.Violations...)
	violations = append(violations, k.hook(req)...)
	violations = append(violations, ambiguityViolations(req, k.policy)...)

	permitDigest, permitVerified := k.verifyPermit(req)

	if len(violations) > 0 {
		msg := strings.Join(violations, "; ")
		outcomeErr = errors.New(msg)
		return k.denyAndAudit(req, stateFrom, msg, evHash, permitDigest, permitVerified)
	}

	// Step 5: no tool_call.
	if req.ToolCall == nil {
		if !k.policy.AllowIntentOnly {
			outcomeErr = errors.New("tool_call is required")
			return k.denyAndAudit(req, stateFrom, "tool_call is required (allow_intent_only=false)", evHash, permitDigest, permitVerified)
		}
		return k.allowAndAudit(req, stateFrom, "", "", evHash, nil, permitDigest, permitVerified)
	}

	// Step 6: ARBITRATING -> EXECUTING, dispatch.
	if _, err := k.machine.Transition(statemachine.Executing); err != nil {
		outcomeErr = err
		return k.internalFailure(req, stateFrom, err)
	}

	result, dispatchErr := k.registry.Dispatch(ctx, req.ToolCall.Name, req.ToolCall.Params)

	paramsHash, err := codec.HashValue(req.ToolCall.Params)
	if err != nil {
		paramsHash = ""
	}

	if dispatchErr != nil {
		outcomeErr = dispatchErr
		msg := dispatchErr.Error()
		// TOOL_UNKNOWN and TOOL_BAD_PARAMS are caught before the
		// handler ever ran — the request itself was invalid, so the
		// dispatcher's discovery reads as a DENY rather than a failed
		// execution (spec §7: a TOOL error may surface as "DENY or
		// ALLOW+error"). A handler that ran and errored (TOOL_FAILED)
		// is a genuine execution failure: decision stays ALLOW, the
		// receipt is FAILED.
		if strings.Contains(msg, "TOOL_UNKNOWN") || strings.Contains(msg, "TOOL_BAD_PARAMS") {
			return k.denyAndAudit(req, stateFrom, msg, evHash, permitDigest, permitVerified)
		}
		return k.allowAndAudit(req, stateFrom, req.ToolCall.Name, paramsHash, evHash, nil, permitDigest, permitVerified, msg)
	}

	// Step 7/8: EXECUTING -> AUDITING -> IDLE.
	return k.allowAndAudit(req, stateFrom, req.ToolCall.Name, paramsHash, evHash, result, permitDigest, permitVerified)
}

func (k *Kernel) verifyPermit(req types.Request) (digest string, verified *bool) {
	if k.permitVerifier == nil {
		return "", nil
	}
	raw, ok := req.Constraints["permit"]
	if !ok {
		return "", nil
	}
	token, ok := raw.(string)
	if !ok {
		return "", nil
	}
	v := k.permitVerifier.Verify(token)
	ok2 := v.Verified
	return v.Digest, &ok2
}

func (k *Kernel) haltedReceipt(req types.Request) types.Receipt {
	ts := k.clock.NowMS()
	if k.appendDenialOnHalt {
		k.appendEntry(ledger.AppendInput{
			RequestID: req.RequestID,
			Actor:     req.Actor,
			Intent:    req.Intent,
			Decision:  string(types.DecisionDeny),
			StateFrom: string(statemachine.Halted),
			StateTo:   string(statemachine.Halted),
			TsMS:      ts,
			Error:     "kernel halted",
		})
	}
	return types.Receipt{
		RequestID: req.RequestID,
		Status:    types.StatusRejected,
		StateFrom: statemachine.Halted,
		StateTo:   statemachine.Halted,
		TsMS:      ts,
		Decision:  types.DecisionHalt,
		Error:     "kernel halted",
	}
}

// denyAndAudit finishes a request with decision=DENY: transitions the
// current state to AUDITING then IDLE, appends one entry, and returns
// a REJECTED receipt.
func (k *Kernel) denyAndAudit(req types.Request, stateFrom statemachine.State, errMsg, evHash, permitDigest string, permitVerified *bool) types.Receipt {
	ts := k.clock.NowMS()
	if _, err := k.machine.Transition(statemachine.Auditing); err != nil {
		return k.internalFailure(req, stateFrom, err)
	}
	_, appendErr := k.appendEntry(ledger.AppendInput{
		RequestID:      req.RequestID,
		Actor:          req.Actor,
		Intent:         req.Intent,
		Decision:       string(types.DecisionDeny),
		StateFrom:      string(stateFrom),
		StateTo:        string(statemachine.Idle),
		TsMS:           ts,
		EvidenceHash:   evHash,
		Error:          errMsg,
		PermitDigest:   permitDigest,
		PermitVerified: permitVerified,
	})
	if appendErr != nil {
		return k.auditFailure(req, stateFrom, appendErr)
	}
	if _, err := k.machine.Transition(statemachine.Idle); err != nil {
		return k.internalFailure(req, stateFrom, err)
	}
	return types.Receipt{
		RequestID:    req.RequestID,
		Status:       types.StatusRejected,
		StateFrom:    stateFrom,
		StateTo:      statemachine.Idle,
		TsMS:         ts,
		Decision:     types.DecisionDeny,
		Error:        errMsg,
		EvidenceHash: evHash,
	}
}

// allowAndAudit finishes a request with decision=ALLOW: the receipt is
// ACCEPTED if errMsg (an optional trailing vararg) is empty/absent, or
// FAILED if the tool handler raised.
func (k *Kernel) allowAndAudit(req types.Request, stateFrom statemachine.State, toolName, paramsHash, evHash string, toolResult any, permitDigest string, permitVerified *bool, errMsg ...string) types.Receipt {
	msg := ""
	if len(errMsg) > 0 {
		msg = errMsg[0]
	}

	ts := k.clock.NowMS()
	if _, err := k.machine.Transition(statemachine.Auditing); err != nil {
		return k.internalFailure(req, stateFrom, err)
	}
	_, appendErr := k.appendEntry(ledger.AppendInput{
		RequestID:      req.RequestID,
		Actor:          req.Actor,
		Intent:         req.Intent,
		Decision:       string(types.DecisionAllow),
		StateFrom:      string(stateFrom),
		StateTo:        string(statemachine.Idle),
		TsMS:           ts,
		ToolName:       toolName,
		ParamsHash:     paramsHash,
		EvidenceHash:   evHash,
		Error:          msg,
		PermitDigest:   permitDigest,
		PermitVerified: permitVerified,
	})
	if appendErr != nil {
		return k.auditFailure(req, stateFrom, appendErr)
	}
	if _, err := k.machine.Transition(statemachine.Idle); err != nil {
		return k.internalFailure(req, stateFrom, err)
	}

	status := types.StatusAccepted
	if msg != "" {
		status = types.StatusFailed
	}

	return types.Receipt{
		RequestID:    req.RequestID,
		Status:       status,
		StateFrom:    stateFrom,
		StateTo:      statemachine.Idle,
		TsMS:         ts,
		Decision:     types.DecisionAllow,
		Error:        msg,
		EvidenceHash: evHash,
		ToolResult:   toolResult,
	}
}

// internalFailure handles a STATE-kind error: an illegal transition
// attempted by the pipeline itself (a programmer error, never a caller
// error). It is caught at the boundary — spec §4.6: "produce a FAILED
// receipt plus a ledger entry whose decision=DENY and error=internal" —
// and never lets the raw error or a panic escape Submit.
func (k *Kernel) internalFailure(req types.Request, stateFrom statemachine.State, cause error) types.Receipt {
	k.logger.Error("internal pipeline error", "error", cause)
	ts := k.clock.NowMS()
	k.machine.Halt()
	k.appendEntry(ledger.AppendInput{
		RequestID: req.RequestID,
		Actor:     req.Actor,
		Intent:    req.Intent,
		Decision:  string(types.DecisionDeny),
		StateFrom: string(stateFrom),
		StateTo:   string(statemachine.Halted),
		TsMS:      ts,
		Error:     "internal",
	})
	k.haltReason = fmt.Sprintf("internal error: %v", cause)
	return types.Receipt{
		RequestID: req.RequestID,
		Status:    types.StatusFailed,
		StateFrom: stateFrom,
		StateTo:   statemachine.Halted,
		TsMS:      ts,
		Decision:  types.DecisionDeny,
		Error:     "internal",
	}
}

// auditFailure handles an AUDIT-kind error: the ledger itself failed
// to append (e.g. an unserializable field). Spec §7: always fatal,
// halts the kernel; no further entry is attempted since the ledger
// already rejected this one.
func (k *Kernel) auditFailure(req types.Request, stateFrom statemachine.State, cause error) types.Receipt {
	k.logger.Error("audit append failed, halting", "error", cause)
	ts := k.clock.NowMS()
	k.machine.Halt()
	k.haltReason = fmt.Sprintf("audit failure: %v", cause)
	return types.Receipt{
		RequestID: req.RequestID,
		Status:    types.StatusFailed,
		StateFrom: stateFrom,
		StateTo:   statemachine.Halted,
		TsMS:      ts,
		Decision:  types.DecisionDeny,
		Error:     "internal",
	}
}

// appendEntry appends to the in-memory ledger and, if a durable store
// is configured, best-effort mirrors the entry — a mirror failure is
// logged but never turns an otherwise-successful submit into a fatal
// AUDIT error, since the in-memory ledger remains the source of truth.
func (k *Kernel) appendEntry(in ledger.AppendInput) (ledger.AuditEntry, error) {
	entry, err := k.ledger.Append(in)
	if err != nil {
		return entry, kernelerr.Wrap(kernelerr.KindAudit, "ledger append failed", err)
	}
	if k.store != nil {
		if mirrorErr := k.store.Append(context.Background(), k.kernelID, entry); mirrorErr != nil {
			k.logger.Warn("ledger store mirror failed", "error", mirrorErr)
		}
	}
	return entry, nil
}

func (k *Kernel) trackOp(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	if k.obs == nil {
		return ctx, func(error) {}
	}
	return k.obs.TrackOperation(ctx, name, attrs...)
}

// Halt transitions the kernel to HALTED (spec §4.6 halt(reason)) and
// appends one ledger entry with decision=HALT. Idempotent: halting an
// already-halted kernel is a no-op, matching statemachine.Halt.
func (k *Kernel) Halt(reason string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.machine.Current() == statemachine.Halted {
		return
	}
	stateFrom := k.machine.Current()
	ts := k.clock.NowMS()
	k.machine.Halt()
	k.haltReason = reason
	k.appendEntry(ledger.AppendInput{
		Decision:  string(types.DecisionHalt),
		StateFrom: string(stateFrom),
		StateTo:   string(statemachine.Halted),
		TsMS:      ts,
		Error:     reason,
	})
	k.logger.Warn("kernel halted", "reason", reason)
}

// HaltReason returns the reason passed to the most recent Halt call,
// or the empty string if the kernel has never been halted.
func (k *Kernel) HaltReason() string { return k.haltReason }

// ExportEvidence snapshots the ledger into an EvidenceBundle stamped
// with the kernel's clock (spec §4.6 export_evidence()), and archives
// it if an Archiver is configured.
func (k *Kernel) ExportEvidence(ctx context.Context) (evidence.Bundle, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	b, err := evidence.Export(k.ledger, k.clock.NowMS())
	if err != nil {
		return evidence.Bundle{}, kernelerr.Wrap(kernelerr.KindAudit, "evidence export failed", err)
	}
	if k.archiver != nil {
		key := fmt.Sprintf("%s/%d", k.kernelID, b.ExportedAtMS)
		if archErr := k.archiver.Archive(ctx, key, b); archErr != nil {
			k.logger.Error("evidence archive failed", "error", archErr)
		}
	}
	return b, nil
}

func evidenceHash(req types.Request) string {
	if req.Evidence == "" {
		return ""
	}
	h, err := codec.HashValue(req.Evidence)
	if err != nil {
		return ""
	}
	return h
}

// structuralViolations implements spec §4.6 step 3: field presence,
// types, non-negative ts_ms, param/intent size.
func structuralViolations(req types.Request, policy *jurisdiction.Policy) []string {
	var v []string
	if req.RequestID == "" {
		v = append(v, "request_id must be non-empty")
	}
	if req.TsMS < 0 {
		v = append(v, "ts_ms must be non-negative")
	}
	if req.Params != nil {
		if b, err := codec.Canonical(req.Params); err != nil {
			v = append(v, fmt.Sprintf("params failed canonicalization: %v", err))
		} else if len(b) > policy.MaxParamBytes {
			v = append(v, fmt.Sprintf("params exceed max_param_bytes (%d > %d)", len(b), policy.MaxParamBytes))
		}
	}
	if len(req.Intent) > policy.MaxIntentLength {
		v = append(v, fmt.Sprintf("intent exceeds max_intent_length (%d > %d)", len(req.Intent), policy.MaxIntentLength))
	}
	if req.ToolCall != nil && req.ToolCall.Name == "" {
		v = append(v, "tool_call.name must be non-empty when tool_call is present")
	}
	return v
}

// ambiguityViolations implements spec §4.6 step 4's ambiguity
// heuristics: empty/whitespace intent, empty tool name, intent over
// the (variant-specific) limit. The limit is policy.MaxIntentLength:
// the permissive variant installs a larger one (8192), while strict,
// evidence-first and dual-channel keep the 4096 default — no separate
// threshold logic is needed here.
func ambiguityViolations(req types.Request, policy *jurisdiction.Policy) []string {
	var v []string
	if strings.TrimSpace(req.Intent) == "" {
		v = append(v, "ambiguous: intent is empty")
	}
	if req.ToolCall != nil && strings.TrimSpace(req.ToolCall.Name) == "" {
		v = append(v, "ambiguous: tool_call.name is empty")
	}
	if len(req.Intent) > policy.MaxIntentLength {
		v = append(v, "ambiguous: intent exceeds max_intent_length")
	}
	return v
}
