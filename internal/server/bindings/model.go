// Package bindings implements the credential store: the bijective
// association between a username and an upstream API credential, with a
// digest-keyed reverse index. The store is the binding authority; every
// identity decision in the join workflow goes through it.
package bindings

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// MaxCredentialLen bounds the opaque upstream credential.
const MaxCredentialLen = 180

var usernameRe = regexp.MustCompile(`^[a-z0-9_.-]{3,20}$`)

// Binding is one username↔credential association. Digest is the one-way
// credential digest used as the reverse-index key; admin surfaces expose
// only the digest, never the credential.
type Binding struct {
	Username   string
	Credential string
	Digest     string
}

// NormalizeUsername canonicalizes a proposed username: Unicode NFKC
// normalization, whitespace trim, lowercase. Bindings and profiles key on
// the normalized form.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFKC.String(username)))
}

// ValidUsername reports whether the already-normalized username satisfies
// the allowed charset and length.
func ValidUsername(username string) bool {
	return usernameRe.MatchString(username)
}

// ValidCredential reports whether the raw credential satisfies the shape
// bound: non-empty and within length limit.
func ValidCredential(credential string) bool {
	return credential != "" && len(credential) <= MaxCredentialLen
}
