package profiles

import "context"

// Repository is the profile store contract. Deletion is expressed by
// saving a filtered list; the sweep decides what survives.
type Repository interface {
	// LoadAll returns every profile in stored order.
	LoadAll(ctx context.Context) ([]Profile, error)

	// SaveAll atomically replaces the whole profile list.
	SaveAll(ctx context.Context, list []Profile) error

	// Upsert replaces the profile matching p.Username case-insensitively,
	// or appends it.
	Upsert(ctx context.Context, p Profile) error
}
