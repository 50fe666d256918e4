// Package kernelerr defines the kernel's structured error taxonomy
// (spec §7). Nothing below the pipeline ever escapes a raw error —
// every internal failure is classified into one of these kinds before
// it can influence a receipt.
package kernelerr

import "fmt"

// Kind classifies where and why an error originated.
type Kind string

const (
	// KindBoot covers boot() failures before the kernel reaches IDLE,
	// or misconfiguration (e.g. an unsupported hash algorithm). No
	// ledger entry is ever associated with a boot error.
	KindBoot Kind = "BOOT"
	// KindState covers an illegal state transition attempted
	// internally by the pipeline itself (a programmer error, not a
	// caller error).
	KindState Kind = "STATE"
	// KindJurisdiction covers a policy/variant violation raised in
	// ARBITRATING.
	KindJurisdiction Kind = "JURISDICTION"
	// KindAmbiguity covers ambiguity heuristics raised in VALIDATING
	// or ARBITRATING.
	KindAmbiguity Kind = "AMBIGUITY"
	// KindTool covers dispatcher/handler failures in EXECUTING.
	KindTool Kind = "TOOL"
	// KindAudit covers a ledger append failure (e.g. a codec failure
	// while hashing an entry). This kind is always fatal: it halts
	// the kernel.
	KindAudit Kind = "AUDIT"
)

// Error is the kernel's structured error type. It is comparable with
// errors.As and carries a stable Kind a caller can switch on without
// parsing Message.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}
