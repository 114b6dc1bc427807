package bindings

import (
	"context"
)

// Repository is the credential store contract.
//
// Invariant: at most one username maps to one credential and at most one
// digest maps to one username. Upsert must retract the stale reverse entry
// when a username is rebound to a new credential, atomically with respect
// to observers of the two indices.
type Repository interface {
	// Upsert creates or replaces the binding for username (already
	// normalized by the caller).
	Upsert(ctx context.Context, username, credential string) error

	// GetCredential returns the credential bound to username, or
	// common.ErrNotFound.
	GetCredential(ctx context.Context, username string) (string, error)

	// FindUsernameByDigest resolves the reverse index, or common.ErrNotFound.
	FindUsernameByDigest(ctx context.Context, digest string) (string, error)

	// Delete removes the forward entry and, only if the reverse entry still
	// points at this exact username, the reverse entry too. Deleting an
	// unknown username returns common.ErrNotFound.
	Delete(ctx context.Context, username string) error

	// List returns every binding with its digest, ordered by username.
	List(ctx context.Context) ([]Binding, error)
}
