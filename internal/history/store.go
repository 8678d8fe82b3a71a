// Package history persists the last observed price of every (product, source)
// pair between cycles.
package history

import (
	"context"

	"PriceSentinel/internal/model"
)

// Store loads and saves history snapshots. Load never fails: an unreadable
// store yields an empty snapshot, which the alert engine treats as first
// sightings.
type Store interface {
	Load(ctx context.Context) model.Snapshot
	Save(ctx context.Context, snap model.Snapshot) error
	// Lock gives the caller exclusive ownership of the store until Unlock.
	Lock(ctx context.Context) error
	Unlock() error
}
