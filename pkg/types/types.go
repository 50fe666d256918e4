// Package types holds the value objects shared across the kernel's
// boundary (spec §3): Request, ToolCall, Decision, ReceiptStatus, and
// Receipt. These are plain data — immutable once constructed, passed
// by value (or by pointer-to-immutable-value) across every package
// boundary in this module.
package types

import "github.com/mindburn-labs/kernels/pkg/statemachine"

// ToolCall names a registered tool and its invocation parameters.
type ToolCall struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params"`
}

// Request is the single structured input to the kernel pipeline.
type Request struct {
	RequestID   string         `json:"request_id"`
	TsMS        int64          `json:"ts_ms"`
	Actor       string         `json:"actor"`
	Intent      string         `json:"intent"`
	ToolCall    *ToolCall      `json:"tool_call,omitempty"`
	Params      map[string]any `json:"params,omitempty"`
	Evidence    string         `json:"evidence,omitempty"`
	Constraints map[string]any `json:"constraints,omitempty"`
}

// Decision is the kernel's ALLOW/DENY/HALT verdict for a request.
type Decision string

const (
	DecisionAllow Decision = "ALLOW"
	DecisionDeny  Decision = "DENY"
	DecisionHalt  Decision = "HALT"
)

// ReceiptStatus classifies the outcome of a Submit call.
type ReceiptStatus string

const (
	// StatusAccepted: Decision=ALLOW and no execution error.
	StatusAccepted ReceiptStatus = "ACCEPTED"
	// StatusRejected: Decision=DENY, or Decision=HALT for a request
	// submitted after the kernel halted.
	StatusRejected ReceiptStatus = "REJECTED"
	// StatusFailed: Decision=ALLOW but execution raised, or
	// Decision=DENY when the pipeline itself failed internally and the
	// kernel halted.
	StatusFailed ReceiptStatus = "FAILED"
)

// Receipt is the kernel's structured response to a Request (spec §3).
type Receipt struct {
	RequestID    string               `json:"request_id"`
	Status       ReceiptStatus        `json:"status"`
	StateFrom    statemachine.State   `json:"state_from"`
	StateTo      statemachine.State   `json:"state_to"`
	TsMS         int64                `json:"ts_ms"`
	Decision     Decision             `json:"decision"`
	Error        string               `json:"error,omitempty"`
	EvidenceHash string               `json:"evidence_hash,omitempty"`
	ToolResult   any                  `json:"tool_result,omitempty"`
}
