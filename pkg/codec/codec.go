// Package codec provides the canonical serialization and hashing
// primitives that every hashed artifact in the kernel funnels through.
//
// Canonicalization follows RFC 8785 (the JSON Canonicalization Scheme):
// object keys sorted lexicographically by UTF-8 bytes, no HTML escaping,
// numbers and array order preserved. Two kernels given the same value
// must produce byte-identical canonical output, or their ledgers will
// diverge even when they agree on every decision.
package codec

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gowebpki/jcs"
)

// Genesis is the fixed predecessor hash of the first ledger entry: 64
// ASCII zeros, per spec §4.1.
var Genesis = strings.Repeat("0", 64)

// Canonical returns the RFC 8785 canonical JSON encoding of v.
//
// v is first marshaled with the standard library (so struct tags and
// custom MarshalJSON methods are respected), then transformed into
// canonical form. Marshal failures (e.g. a channel or func value nested
// in params) are returned as errors, not panics — the jurisdiction
// evaluator treats them as a size-check violation.
func Canonical(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: marshal failed: %w", err)
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("codec: canonicalization failed: %w", err)
	}
	return out, nil
}

// CanonicalString is Canonical rendered as a string.
func CanonicalString(v interface{}) (string, error) {
	b, err := Canonical(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Hash returns the lower-case hex SHA-256 digest of b.
func Hash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// HashValue canonicalizes v and returns the hex SHA-256 digest of the
// canonical bytes. Only "sha256" is supported anywhere in the kernel;
// HashAlgorithm exists purely so configuration can name it and reject
// anything else at boot.
func HashValue(v interface{}) (string, error) {
	b, err := Canonical(v)
	if err != nil {
		return "", err
	}
	return Hash(b), nil
}

// Chain computes the hash-chain link for a ledger entry:
// H(prev || ":" || body) where body is the canonical serialization of
// the entry's hashed fields.
func Chain(prevHash string, body []byte) string {
	combined := make([]byte, 0, len(prevHash)+1+len(body))
	combined = append(combined, prevHash...)
	combined = append(combined, ':')
	combined = append(combined, body...)
	return Hash(combined)
}

// HashAlgorithm validates a requested hash algorithm name. Only
// "sha256" is supported; any other value is a configuration error
// (spec §4.1 — "any request for another algorithm fails with a
// configuration error").
func HashAlgorithm(name string) error {
	if name != "sha256" {
		return fmt.Errorf("codec: unsupported hash algorithm %q (only sha256)", name)
	}
	return nil
}
