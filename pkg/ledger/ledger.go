// Package ledger implements the append-only, hash-chained audit ledger
// (spec §4.7). A Ledger is owned entirely by the kernel that appends to
// it; entries are exposed only as immutable snapshots.
package ledger

import (
	"encoding/json"
	"sync"

	"github.com/mindburn-labs/kernels/pkg/codec"
)

// AuditEntry is one immutable, hash-chained record (spec §3/§4.7).
type AuditEntry struct {
	PrevHash     string `json:"prev_hash"`
	EntryHash    string `json:"entry_hash"`
	TsMS         int64  `json:"ts_ms"`
	RequestID    string `json:"request_id"`
	Actor        string `json:"actor"`
	Intent       string `json:"intent"`
	Decision     string `json:"decision"`
	StateFrom    string `json:"state_from"`
	StateTo      string `json:"state_to"`
	ToolName     string `json:"tool_name"`
	ParamsHash   string `json:"params_hash"`
	EvidenceHash string `json:"evidence_hash"`
	Error        string `json:"error"`
	// PermitDigest/PermitVerified are reserved for the permit-digest
	// integration (GLOSSARY): never produced by the ledger itself, only
	// serialized when the kernel pipeline supplies them.
	PermitDigest   string `json:"permit_digest"`
	PermitVerified *bool  `json:"permit_verified"`
}

// MarshalJSON emits ToolName/ParamsHash/EvidenceHash/Error/PermitDigest
// as explicit JSON null when absent, per spec §6's exported AuditEntry
// wire format — the struct tags above are never consulted because this
// method overrides the default encoding.
func (e AuditEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		PrevHash       string  `json:"prev_hash"`
		EntryHash      string  `json:"entry_hash"`
		TsMS           int64   `json:"ts_ms"`
		RequestID      string  `json:"request_id"`
		Actor          string  `json:"actor"`
		Intent         string  `json:"intent"`
		Decision       string  `json:"decision"`
		StateFrom      string  `json:"state_from"`
		StateTo        string  `json:"state_to"`
		ToolName       *string `json:"tool_name"`
		ParamsHash     *string `json:"params_hash"`
		EvidenceHash   *string `json:"evidence_hash"`
		Error          *string `json:"error"`
		PermitDigest   *string `json:"permit_digest"`
		PermitVerified *bool   `json:"permit_verified"`
	}{
		PrevHash:       e.PrevHash,
		EntryHash:      e.EntryHash,
		TsMS:           e.TsMS,
		RequestID:      e.RequestID,
		Actor:          e.Actor,
		Intent:         e.Intent,
		Decision:       e.Decision,
		StateFrom:      e.StateFrom,
		StateTo:        e.StateTo,
		ToolName:       ptrOrNil(e.ToolName),
		ParamsHash:     ptrOrNil(e.ParamsHash),
		EvidenceHash:   ptrOrNil(e.EvidenceHash),
		Error:          ptrOrNil(e.Error),
		PermitDigest:   ptrOrNil(e.PermitDigest),
		PermitVerified: e.PermitVerified,
	})
}

// hashedFields is the canonical-serialization view of an entry used to
// compute its hash — it excludes EntryHash itself and normalizes
// absent optional fields to null, per spec §4.7 step 2.
type hashedFields struct {
	PrevHash     string  `json:"prev_hash"`
	TsMS         int64   `json:"ts_ms"`
	RequestID    string  `json:"request_id"`
	Actor        string  `json:"actor"`
	Intent       string  `json:"intent"`
	Decision     string  `json:"decision"`
	StateFrom    string  `json:"state_from"`
	StateTo      string  `json:"state_to"`
	ToolName       *string `json:"tool_name"`
	ParamsHash     *string `json:"params_hash"`
	EvidenceHash   *string `json:"evidence_hash"`
	Error          *string `json:"error"`
	PermitDigest   *string `json:"permit_digest"`
	PermitVerified *bool   `json:"permit_verified"`
}

func ptrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// AppendInput carries the fields needed to construct and append one
// entry (spec §4.7 step 1 input list).
type AppendInput struct {
	RequestID    string
	Actor        string
	Intent       string
	Decision     string
	StateFrom    string
	StateTo      string
	TsMS         int64
	ToolName       string
	ParamsHash     string
	EvidenceHash   string
	Error          string
	PermitDigest   string
	PermitVerified *bool
}

// Ledger is an append-only, hash-chained sequence of AuditEntry.
type Ledger struct {
	mu      sync.RWMutex
	entries []AuditEntry
	kernel  string
	variant string
}

// New returns an empty Ledger stamped with the owning kernel's id and
// variant — these are captured once, at boot, into the ledger header
// (spec §4.6 boot()).
func New(kernelID, variant string) *Ledger {
	return &Ledger{kernel: kernelID, variant: variant}
}

// KernelID returns the owning kernel's id.
func (l *Ledger) KernelID() string { return l.kernel }

// Variant returns the owning kernel's configured variant.
func (l *Ledger) Variant() string { return l.variant }

// RootHash returns the last appended entry's hash, or the genesis hash
// if the ledger is empty.
func (l *Ledger) RootHash() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.rootHashLocked()
}

func (l *Ledger) rootHashLocked() string {
	if len(l.entries) == 0 {
		return codec.Genesis
	}
	return l.entries[len(l.entries)-1].EntryHash
}

// Len returns the number of appended entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Entries returns an immutable snapshot (a copy) of the ledger's
// entries, in append order. Callers cannot observe later mutations
// through the returned slice because it is not the ledger's backing
// array.
func (l *Ledger) Entries() []AuditEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]AuditEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Append computes the entry's hash chain and appends it (spec §4.7).
// Only a canonicalization failure (an unserializable field — in
// practice unreachable given AuditEntry's plain string fields, but the
// error path exists because codec.Canonical can fail) returns an
// error; that failure is an AUDIT-kind error the caller must treat as
// fatal and halt the kernel (spec §7).
func (l *Ledger) Append(in AppendInput) (AuditEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := l.rootHashLocked()

	hf := hashedFields{
		PrevHash:     prev,
		TsMS:         in.TsMS,
		RequestID:    in.RequestID,
		Actor:        in.Actor,
		Intent:       in.Intent,
		Decision:     in.Decision,
		StateFrom:    in.StateFrom,
		StateTo:      in.StateTo,
		ToolName:       ptrOrNil(in.ToolName),
		ParamsHash:     ptrOrNil(in.ParamsHash),
		EvidenceHash:   ptrOrNil(in.EvidenceHash),
		Error:          ptrOrNil(in.Error),
		PermitDigest:   ptrOrNil(in.PermitDigest),
		PermitVerified: in.PermitVerified,
	}

	body, err := codec.Canonical(hf)
	if err != nil {
		return AuditEntry{}, err
	}

	entry := AuditEntry{
		PrevHash:       prev,
		EntryHash:      codec.Chain(prev, body),
		TsMS:           in.TsMS,
		RequestID:      in.RequestID,
		Actor:          in.Actor,
		Intent:         in.Intent,
		Decision:       in.Decision,
		StateFrom:      in.StateFrom,
		StateTo:        in.StateTo,
		ToolName:       in.ToolName,
		ParamsHash:     in.ParamsHash,
		EvidenceHash:   in.EvidenceHash,
		Error:          in.Error,
		PermitDigest:   in.PermitDigest,
		PermitVerified: in.PermitVerified,
	}

	l.entries = append(l.entries, entry)
	return entry, nil
}

// EntryBody recomputes the canonical body bytes for entry e — exported
// so pkg/replay can recompute the exact same hash independently,
// without duplicating the hashedFields shape.
func EntryBody(e AuditEntry) ([]byte, error) {
	hf := hashedFields{
		PrevHash:     e.PrevHash,
		TsMS:         e.TsMS,
		RequestID:    e.RequestID,
		Actor:        e.Actor,
		Intent:       e.Intent,
		Decision:     e.Decision,
		StateFrom:    e.StateFrom,
		StateTo:      e.StateTo,
		ToolName:       ptrOrNil(e.ToolName),
		ParamsHash:     ptrOrNil(e.ParamsHash),
		EvidenceHash:   ptrOrNil(e.EvidenceHash),
		Error:          ptrOrNil(e.Error),
		PermitDigest:   ptrOrNil(e.PermitDigest),
		PermitVerified: e.PermitVerified,
	}
	return codec.Canonical(hf)
}
