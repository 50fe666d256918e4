package codec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalSortsKeys(t *testing.T) {
	a, err := CanonicalString(map[string]interface{}{"b": 1, "a": 2})
	require.NoError(t, err)
	assert.Equal(t, `{"a":2,"b":1}`, a)
}

func TestCanonicalDeterministicAcrossEquivalentMaps(t *testing.T) {
	m1 := map[string]interface{}{"x": 1, "y": "hi", "z": true}
	m2 := map[string]interface{}{"z": true, "y": "hi", "x": 1}

	c1, err := CanonicalString(m1)
	require.NoError(t, err)
	c2, err := CanonicalString(m2)
	require.NoError(t, err)
	assert.Equal(t, c1, c2)
}

func TestCanonicalPreservesArrayOrder(t *testing.T) {
	out, err := CanonicalString([]interface{}{3, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, "[3,1,2]", out)
}

func TestCanonicalNullForAbsentFields(t *testing.T) {
	type entry struct {
		A string  `json:"a"`
		B *string `json:"b"`
	}
	out, err := CanonicalString(entry{A: "x"})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","b":null}`, out)
}

func TestHashValueIsStableSHA256(t *testing.T) {
	h1, err := HashValue(map[string]interface{}{"k": "v"})
	require.NoError(t, err)
	h2, err := HashValue(map[string]interface{}{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
	assert.Equal(t, strings.ToLower(h1), h1)
}

func TestGenesisIs64Zeros(t *testing.T) {
	assert.Equal(t, 64, len(Genesis))
	assert.Equal(t, strings.Repeat("0", 64), Genesis)
}

func TestChainIsOrderSensitive(t *testing.T) {
	a := Chain(Genesis, []byte(`{"x":1}`))
	b := Chain("f"+Genesis[1:], []byte(`{"x":1}`))
	assert.NotEqual(t, a, b)
}

func TestHashAlgorithmRejectsNonSHA256(t *testing.T) {
	require.NoError(t, HashAlgorithm("sha256"))
	err := HashAlgorithm("md5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")
}

func TestCanonicalRejectsUnmarshalableValue(t *testing.T) {
	_, err := Canonical(map[string]interface{}{"f": func() {}})
	require.Error(t, err)
}
