package evidence

import (
	"testing"

	"github.com/mindburn-labs/kernels/pkg/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedgerWithEntries(t *testing.T) *ledger.Ledger {
	t.Helper()
	l := ledger.New("kernel-1", "strict")
	_, err := l.Append(ledger.AppendInput{RequestID: "r1", Actor: "a", Intent: "i1", Decision: "ALLOW", StateFrom: "IDLE", StateTo: "IDLE", TsMS: 1})
	require.NoError(t, err)
	_, err = l.Append(ledger.AppendInput{RequestID: "r2", Actor: "a", Intent: "i2", Decision: "DENY", StateFrom: "IDLE", StateTo: "IDLE", TsMS: 2})
	require.NoError(t, err)
	return l
}

func TestExportCapturesLedgerSnapshot(t *testing.T) {
	l := newLedgerWithEntries(t)

	bundle, err := Export(l, 5000)
	require.NoError(t, err)

	assert.Equal(t, "kernel-1", bundle.KernelID)
	assert.Equal(t, "strict", bundle.Variant)
	assert.Equal(t, int64(5000), bundle.ExportedAtMS)
	assert.Equal(t, l.RootHash(), bundle.RootHash)
	assert.Len(t, bundle.LedgerEntries, 2)
	assert.NotEmpty(t, bundle.BundleHash)
}

func TestExportEmptyLedgerStillSeals(t *testing.T) {
	l := ledger.New("kernel-empty", "permissive")
	bundle, err := Export(l, 1)
	require.NoError(t, err)
	assert.Empty(t, bundle.LedgerEntries)
	assert.NotEmpty(t, bundle.BundleHash)
}

func TestVerifyAcceptsUntamperedBundle(t *testing.T) {
	l := newLedgerWithEntries(t)
	bundle, err := Export(l, 5000)
	require.NoError(t, err)

	ok, err := Verify(bundle)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyRejectsTamperedBundle(t *testing.T) {
	l := newLedgerWithEntries(t)
	bundle, err := Export(l, 5000)
	require.NoError(t, err)

	bundle.LedgerEntries[0].Decision = "DENY"

	ok, err := Verify(bundle)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyRejectsTamperedRootHash(t *testing.T) {
	l := newLedgerWithEntries(t)
	bundle, err := Export(l, 5000)
	require.NoError(t, err)

	bundle.RootHash = "0000000000000000000000000000000000000000000000000000000000000001"

	ok, err := Verify(bundle)
	require.NoError(t, err)
	assert.False(t, ok)
}
