// Package evidence builds and archives the exported evidence bundle
// (spec §6). A bundle is a sealed snapshot of a kernel's ledger — hash-
// sealed so the bundle's own integrity can be checked without a live
// kernel, but never cryptographically signed: key management is outside
// this system's jurisdiction boundary.
package evidence

import (
	"context"
	"fmt"

	"github.com/mindburn-labs/kernels/pkg/codec"
	"github.com/mindburn-labs/kernels/pkg/ledger"
)

// Bundle is the top-level exported evidence object (spec §6).
type Bundle struct {
	KernelID      string              `json:"kernel_id"`
	Variant       string              `json:"variant"`
	ExportedAtMS  int64               `json:"exported_at_ms"`
	RootHash      string              `json:"root_hash"`
	LedgerEntries []ledger.AuditEntry `json:"ledger_entries"`
	BundleHash    string              `json:"bundle_hash"`
}

// sealedView is the canonicalized shape used to compute BundleHash — it
// excludes BundleHash itself, mirroring ledger's hashedFields pattern.
type sealedView struct {
	KernelID      string              `json:"kernel_id"`
	Variant       string              `json:"variant"`
	ExportedAtMS  int64               `json:"exported_at_ms"`
	RootHash      string              `json:"root_hash"`
	LedgerEntries []ledger.AuditEntry `json:"ledger_entries"`
}

// Export builds a sealed Bundle from a ledger's current snapshot (spec
// §4.6 export_evidence()). nowMS is supplied by the caller's clock, not
// read here, so export timestamps stay under the same deterministic
// clock discipline as the rest of the pipeline.
func Export(l *ledger.Ledger, nowMS int64) (Bundle, error) {
	entries := l.Entries()
	if entries == nil {
		entries = []ledger.AuditEntry{}
	}

	view := sealedView{
		KernelID:      l.KernelID(),
		Variant:       l.Variant(),
		ExportedAtMS:  nowMS,
		RootHash:      l.RootHash(),
		LedgerEntries: entries,
	}

	hash, err := codec.HashValue(view)
	if err != nil {
		return Bundle{}, fmt.Errorf("evidence: seal bundle: %w", err)
	}

	return Bundle{
		KernelID:      view.KernelID,
		Variant:       view.Variant,
		ExportedAtMS:  view.ExportedAtMS,
		RootHash:      view.RootHash,
		LedgerEntries: view.LedgerEntries,
		BundleHash:    hash,
	}, nil
}

// Verify recomputes a bundle's seal and reports whether it matches
// BundleHash, detecting post-export tampering of the bundle itself
// (independent of replay.Verify, which checks the ledger chain inside it).
func Verify(b Bundle) (bool, error) {
	view := sealedView{
		KernelID:      b.KernelID,
		Variant:       b.Variant,
		ExportedAtMS:  b.ExportedAtMS,
		RootHash:      b.RootHash,
		LedgerEntries: b.LedgerEntries,
	}
	hash, err := codec.HashValue(view)
	if err != nil {
		return false, fmt.Errorf("evidence: reseal bundle: %w", err)
	}
	return hash == b.BundleHash, nil
}

// Archiver persists a sealed Bundle to durable storage.
type Archiver interface {
	Archive(ctx context.Context, key string, b Bundle) error
}
