package ledger

import (
	"encoding/json"
	"testing"

	"github.com/mindburn-labs/kernels/pkg/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyLedgerRootIsGenesis(t *testing.T) {
	l := New("k1", "strict")
	assert.Equal(t, codec.Genesis, l.RootHash())
	assert.Equal(t, 0, l.Len())
}

func TestFirstEntryChainsFromGenesis(t *testing.T) {
	l := New("k1", "strict")
	entry, err := l.Append(AppendInput{
		RequestID: "r1", Actor: "a", Intent: "echo", Decision: "ALLOW",
		StateFrom: "IDLE", StateTo: "IDLE", TsMS: 1000,
	})
	require.NoError(t, err)
	assert.Equal(t, codec.Genesis, entry.PrevHash)
	assert.Len(t, entry.EntryHash, 64)
	assert.Equal(t, entry.EntryHash, l.RootHash())
}

func TestChainLinksSequentialEntries(t *testing.T) {
	l := New("k1", "strict")
	e1, err := l.Append(AppendInput{RequestID: "r1", Actor: "a", Intent: "i1", Decision: "ALLOW", StateFrom: "IDLE", StateTo: "IDLE", TsMS: 1})
	require.NoError(t, err)
	e2, err := l.Append(AppendInput{RequestID: "r2", Actor: "a", Intent: "i2", Decision: "DENY", StateFrom: "IDLE", StateTo: "IDLE", TsMS: 2})
	require.NoError(t, err)

	assert.Equal(t, e1.EntryHash, e2.PrevHash)
	assert.Equal(t, 2, l.Len())
}

func TestEntriesSnapshotIsImmutable(t *testing.T) {
	l := New("k1", "strict")
	_, err := l.Append(AppendInput{RequestID: "r1", Actor: "a", Intent: "i", Decision: "ALLOW", StateFrom: "IDLE", StateTo: "IDLE", TsMS: 1})
	require.NoError(t, err)

	snap := l.Entries()
	snap[0].RequestID = "tampered"

	fresh := l.Entries()
	assert.Equal(t, "r1", fresh[0].RequestID)
}

func TestEntryHashDeterministicForEquivalentInput(t *testing.T) {
	l1 := New("k1", "strict")
	l2 := New("k1", "strict")

	in := AppendInput{RequestID: "r1", Actor: "a", Intent: "i", Decision: "ALLOW", StateFrom: "IDLE", StateTo: "IDLE", TsMS: 1000, ToolName: "echo"}
	e1, err := l1.Append(in)
	require.NoError(t, err)
	e2, err := l2.Append(in)
	require.NoError(t, err)

	assert.Equal(t, e1.EntryHash, e2.EntryHash)
}

func TestOptionalFieldPresenceChangesHash(t *testing.T) {
	l := New("k1", "strict")
	withTool, err := l.Append(AppendInput{RequestID: "r1", Actor: "a", Intent: "i", Decision: "ALLOW", StateFrom: "IDLE", StateTo: "IDLE", TsMS: 1, ToolName: "echo"})
	require.NoError(t, err)

	l2 := New("k1", "strict")
	withoutTool, err := l2.Append(AppendInput{RequestID: "r1", Actor: "a", Intent: "i", Decision: "ALLOW", StateFrom: "IDLE", StateTo: "IDLE", TsMS: 1})
	require.NoError(t, err)

	assert.NotEqual(t, withTool.EntryHash, withoutTool.EntryHash)
}

func TestPermitFieldsAffectHashWhenPresent(t *testing.T) {
	l := New("k1", "strict")
	verified := true
	withPermit, err := l.Append(AppendInput{
		RequestID: "r1", Actor: "a", Intent: "i", Decision: "ALLOW",
		StateFrom: "IDLE", StateTo: "IDLE", TsMS: 1,
		PermitDigest: "abc123", PermitVerified: &verified,
	})
	require.NoError(t, err)
	assert.Equal(t, "abc123", withPermit.PermitDigest)
	assert.True(t, *withPermit.PermitVerified)

	l2 := New("k1", "strict")
	withoutPermit, err := l2.Append(AppendInput{RequestID: "r1", Actor: "a", Intent: "i", Decision: "ALLOW", StateFrom: "IDLE", StateTo: "IDLE", TsMS: 1})
	require.NoError(t, err)

	assert.NotEqual(t, withPermit.EntryHash, withoutPermit.EntryHash)
}

func TestMarshalJSONEmitsNullForAbsentOptionalFields(t *testing.T) {
	l := New("k1", "strict")
	entry, err := l.Append(AppendInput{RequestID: "r1", Actor: "a", Intent: "i", Decision: "ALLOW", StateFrom: "IDLE", StateTo: "IDLE", TsMS: 1})
	require.NoError(t, err)

	raw, err := json.Marshal(entry)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))

	for _, key := range []string{"tool_name", "params_hash", "evidence_hash", "error", "permit_digest", "permit_verified"} {
		value, present := fields[key]
		assert.True(t, present, "key %q must be present", key)
		assert.Nil(t, value, "key %q must be null when absent", key)
	}
}

func TestEntryBodyMatchesAppendedHash(t *testing.T) {
	l := New("k1", "strict")
	entry, err := l.Append(AppendInput{RequestID: "r1", Actor: "a", Intent: "i", Decision: "ALLOW", StateFrom: "IDLE", StateTo: "IDLE", TsMS: 1})
	require.NoError(t, err)

	body, err := EntryBody(entry)
	require.NoError(t, err)
	assert.Equal(t, entry.EntryHash, codec.Chain(entry.PrevHash, body))
}
