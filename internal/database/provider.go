package database

import (
	"context"
	"errors"
	"sync"
)

var (
	snapshotStore     func() SnapshotWriter
	snapshotStoreName string
	providerMu        sync.RWMutex
)

// RegisterSnapshotStore registers the constructor of the active snapshot
// backend. Backends register themselves to avoid import cycles.
func RegisterSnapshotStore(name string, store func() SnapshotWriter) {
	providerMu.Lock()
	defer providerMu.Unlock()
	snapshotStore = store
	snapshotStoreName = name
}

// IsInitialized returns whether a snapshot backend has been registered.
func IsInitialized() bool {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return snapshotStore != nil
}

// BackendName returns the name of the registered backend.
func BackendName() string {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return snapshotStoreName
}

// GetSnapshotStore returns the registered snapshot backend
func GetSnapshotStore(ctx context.Context) (SnapshotWriter, error) {
	providerMu.RLock()
	defer providerMu.RUnlock()
	if snapshotStore == nil {
		return nil, errors.New("snapshot store not initialized: set DATABASE_URL, MARIADB_DSN, SQLITE_PATH or STORE_PATH")
	}
	return snapshotStore(), nil
}

// resetProvider clears the registration. Used by tests.
func resetProvider() {
	providerMu.Lock()
	defer providerMu.Unlock()
	snapshotStore = nil
	snapshotStoreName = ""
}
