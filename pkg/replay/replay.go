// Package replay independently recomputes a ledger's hash chain (spec
// §4.8). It accepts only plain ledger.AuditEntry values — never a live
// *ledger.Ledger — so verification can run offline, long after the
// kernel that produced the entries has exited, against whatever was
// archived (a ledgerstore dump or an exported evidence bundle).
package replay

import (
	"fmt"

	"github.com/mindburn-labs/kernels/pkg/codec"
	"github.com/mindburn-labs/kernels/pkg/ledger"
)

// Result holds the outcome of replaying one entry sequence.
type Result struct {
	TotalEntries int      `json:"total_entries"`
	Valid        bool     `json:"valid"`
	Errors       []string `json:"errors,omitempty"`
	RootHash     string   `json:"root_hash"`
}

// Verify replays entries from genesis, recomputing each entry's hash
// chain per spec §4.8. expectedRoot is optional (pass "" to skip); when
// set, a mismatch against the last entry's claimed entry_hash is also
// recorded.
//
// Verification never short-circuits: every entry is checked and every
// mismatch recorded, even after an earlier one, because downstream
// entries are checked against what the ledger *claims* (entry.EntryHash),
// not against the last known-good hash — isolating exactly where a tamper
// occurred rather than treating the whole tail as unverifiable.
func Verify(entries []ledger.AuditEntry, expectedRoot string) (*Result, error) {
	result := &Result{
		TotalEntries: len(entries),
		Valid:        true,
		RootHash:     codec.Genesis,
	}

	prev := codec.Genesis
	for i, e := range entries {
		if e.PrevHash != prev {
			result.Errors = append(result.Errors, fmt.Sprintf("entry %d: prev_hash mismatch (expected %s, got %s)", i, prev, e.PrevHash))
			result.Valid = false
		}

		body, err := ledger.EntryBody(e)
		if err != nil {
			return nil, fmt.Errorf("replay: entry %d: %w", i, err)
		}
		computed := codec.Chain(prev, body)
		if computed != e.EntryHash {
			result.Errors = append(result.Errors, fmt.Sprintf("entry %d: entry_hash mismatch (expected %s, got %s)", i, computed, e.EntryHash))
			result.Valid = false
		}

		prev = e.EntryHash
	}

	result.RootHash = prev

	if expectedRoot != "" && prev != expectedRoot {
		result.Errors = append(result.Errors, fmt.Sprintf("root hash mismatch (expected %s, got %s)", expectedRoot, prev))
		result.Valid = false
	}

	return result, nil
}
