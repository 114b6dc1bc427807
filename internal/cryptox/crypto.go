// Package cryptox provides the one-way credential digest used as the
// reverse-binding lookup key, plus constant-time secret comparison.
package cryptox

import (
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// CredentialDigest returns the lowercase hex SHA3-256 digest of credential.
// The digest is deterministic and non-reversible; it is the only form of a
// credential that may appear in indexes, admin listings or logs.
func CredentialDigest(credential string) string {
	sum := sha3.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}

// SecretsEqual compares two secrets in constant time.
func SecretsEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
