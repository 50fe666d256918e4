package replay

import (
	"strings"
	"testing"

	"github.com/mindburn-labs/kernels/pkg/codec"
	"github.com/mindburn-labs/kernels/pkg/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chainOf(t *testing.T, inputs []ledger.AppendInput) []ledger.AuditEntry {
	t.Helper()
	l := ledger.New("k1", "strict")
	var out []ledger.AuditEntry
	for _, in := range inputs {
		e, err := l.Append(in)
		require.NoError(t, err)
		out = append(out, e)
	}
	return out
}

func TestVerifyEmptyIsTriviallyValid(t *testing.T) {
	result, err := Verify(nil, "")
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, codec.Genesis, result.RootHash)
}

func TestVerifyValidChainFromRealLedger(t *testing.T) {
	entries := chainOf(t, []ledger.AppendInput{
		{RequestID: "r1", Actor: "a", Intent: "i1", Decision: "ALLOW", StateFrom: "IDLE", StateTo: "IDLE", TsMS: 1},
		{RequestID: "r2", Actor: "a", Intent: "i2", Decision: "DENY", StateFrom: "IDLE", StateTo: "IDLE", TsMS: 2},
	})

	result, err := Verify(entries, entries[len(entries)-1].EntryHash)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 2, result.TotalEntries)
}

func TestVerifyDetectsEntryHashTamper(t *testing.T) {
	entries := chainOf(t, []ledger.AppendInput{
		{RequestID: "r1", Actor: "a", Intent: "i1", Decision: "ALLOW", StateFrom: "IDLE", StateTo: "IDLE", TsMS: 1},
		{RequestID: "r2", Actor: "a", Intent: "i2", Decision: "DENY", StateFrom: "IDLE", StateTo: "IDLE", TsMS: 2},
	})
	entries[0].Intent = "tampered" // body content changed after hashing

	result, err := Verify(entries, "")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "entry 0")
}

func TestVerifyDetectsPrevHashBreakAndContinuesCheckingDownstream(t *testing.T) {
	entries := chainOf(t, []ledger.AppendInput{
		{RequestID: "r1", Actor: "a", Intent: "i1", Decision: "ALLOW", StateFrom: "IDLE", StateTo: "IDLE", TsMS: 1},
		{RequestID: "r2", Actor: "a", Intent: "i2", Decision: "DENY", StateFrom: "IDLE", StateTo: "IDLE", TsMS: 2},
		{RequestID: "r3", Actor: "a", Intent: "i3", Decision: "ALLOW", StateFrom: "IDLE", StateTo: "IDLE", TsMS: 3},
	})
	entries[1].PrevHash = "deadbeef"

	result, err := Verify(entries, "")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	// entry 1 breaks on prev_hash; entry 2 still checked (and should pass,
	// since it chains from entry 1's claimed — unmodified — entry_hash).
	foundBreak := false
	for _, e := range result.Errors {
		if strings.Contains(e, "entry 1") {
			foundBreak = true
		}
	}
	assert.True(t, foundBreak)
	assert.Equal(t, 3, result.TotalEntries)
}

func TestVerifyDetectsRootHashMismatch(t *testing.T) {
	entries := chainOf(t, []ledger.AppendInput{
		{RequestID: "r1", Actor: "a", Intent: "i1", Decision: "ALLOW", StateFrom: "IDLE", StateTo: "IDLE", TsMS: 1},
	})

	result, err := Verify(entries, "0000000000000000000000000000000000000000000000000000000000000001")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors[0], "root hash mismatch")
}
