// Package store selects and wires the persistence backend for both
// durable collections: JSON files by default, Postgres when a DSN is
// configured.
package store

import (
	"github.com/dmitrijs2005/typerank/internal/server/bindings"
	"github.com/dmitrijs2005/typerank/internal/server/profiles"
)

// RepositoryManager hands out the two repositories backed by one storage
// choice.
type RepositoryManager interface {
	Bindings() bindings.Repository
	Profiles() profiles.Repository
	Close() error
}
