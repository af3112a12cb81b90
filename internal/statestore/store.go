// Package statestore persists the sync progress record across independent
// processes: a dashboard request, a CLI run, and a status poll all see the
// same record through one of these drivers.
package statestore

import (
	"context"
	"errors"

	"github.com/contentdex/contentdex/internal/domain/syncstate"
)

// ErrNotFound signals that no sync state record exists.
var ErrNotFound = errors.New("statestore: no record")

// Store reads and writes the single sync state record. Writes are
// last-writer-wins; only one indexing process is expected to hold the
// advancing role at a time.
type Store interface {
	Load(ctx context.Context) (*syncstate.State, error)
	Save(ctx context.Context, st *syncstate.State) error
	Clear(ctx context.Context) error
	Ping(ctx context.Context) error
}
