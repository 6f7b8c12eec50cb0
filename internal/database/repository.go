package database

import (
	"context"
)

// SnapshotReader provides read-only access to the persisted corpus
type SnapshotReader interface {
	// Load returns the latest snapshot, or nil if none has been saved
	Load(ctx context.Context) (*Snapshot, error)
}

// SnapshotWriter provides write access to the persisted corpus
type SnapshotWriter interface {
	SnapshotReader

	// Save replaces the stored snapshot atomically
	Save(ctx context.Context, s *Snapshot) error
}
