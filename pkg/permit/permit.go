// Package permit implements the kernel-side half of the "permit digest
// / permit verification" integration point named in spec's GLOSSARY: an
// external authorization issuer can attach a signed JWT permit to a
// request's constraints, and the kernel verifies it without ever
// producing permits itself.
package permit

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mindburn-labs/kernels/pkg/codec"
)

// Claims is the set of claims a permit token carries. The issuer signs
// these; the kernel only ever verifies.
type Claims struct {
	jwt.RegisteredClaims
	Actor  string   `json:"actor"`
	Scopes []string `json:"scopes,omitempty"`
}

// Verifier validates permit JWTs against a fixed key.
type Verifier struct {
	key []byte
}

// NewVerifier returns a Verifier that checks HMAC-signed permits
// against key. Production deployments would use an asymmetric key
// (RS256/ES256) fetched from the issuer's JWKS; HMAC keeps this
// reference verifier dependency-free of a network call.
func NewVerifier(key []byte) *Verifier {
	return &Verifier{key: key}
}

// Verification is the result of verifying a permit string.
type Verification struct {
	Verified bool
	Digest   string // codec hash of the verified claims, bound into the audit entry
	Actor    string
	Scopes   []string
	Reason   string // populated when Verified is false
}

// Verify parses and validates a permit token. A missing or malformed
// token, an expired token, or a signature mismatch all produce
// Verification{Verified: false}, never an error escaping to the
// caller — permit verification is advisory to the pipeline, which
// decides what (if anything) an unverified permit means for
// arbitration.
func (v *Verifier) Verify(token string) Verification {
	if token == "" {
		return Verification{Verified: false, Reason: "permit token is empty"}
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.key, nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil || !parsed.Valid {
		return Verification{Verified: false, Reason: fmt.Sprintf("permit verification failed: %v", err)}
	}

	digest, err := codec.HashValue(map[string]any{
		"actor":      claims.Actor,
		"scopes":     claims.Scopes,
		"subject":    claims.Subject,
		"expires_at": claims.ExpiresAt,
	})
	if err != nil {
		return Verification{Verified: false, Reason: fmt.Sprintf("permit digest failed: %v", err)}
	}

	return Verification{
		Verified: true,
		Digest:   digest,
		Actor:    claims.Actor,
		Scopes:   claims.Scopes,
	}
}

// Issue is a test/reference helper for constructing a signed permit —
// it exists so Verifier can be exercised end to end in tests without a
// separate issuer service. Production issuance lives entirely outside
// this module (spec: "not produced by the core").
func Issue(key []byte, actor string, scopes []string, ttl time.Duration) (string, error) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Actor:  actor,
		Scopes: scopes,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(key)
}
