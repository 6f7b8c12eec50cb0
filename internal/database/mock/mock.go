// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sync"

	"github.com/kozaktomas/image-search/internal/database"
)

// MockSnapshotStore is an in-memory implementation of database.SnapshotWriter
type MockSnapshotStore struct {
	mu       sync.RWMutex
	snapshot *database.Snapshot
	saves    int

	// Error injection
	LoadError error
	SaveError error
}

// NewMockSnapshotStore creates an empty mock store
func NewMockSnapshotStore() *MockSnapshotStore {
	return &MockSnapshotStore{}
}

// SetSnapshot stores a snapshot without validation or counting a save
func (m *MockSnapshotStore) SetSnapshot(s *database.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = s
}

// Load returns the stored snapshot, or nil if none
func (m *MockSnapshotStore) Load(ctx context.Context) (*database.Snapshot, error) {
	if m.LoadError != nil {
		return nil, m.LoadError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot, nil
}

// Save validates and stores the snapshot
func (m *MockSnapshotStore) Save(ctx context.Context, s *database.Snapshot) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	if err := s.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = s
	m.saves++
	return nil
}

// Saves returns how many times Save succeeded
func (m *MockSnapshotStore) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}
