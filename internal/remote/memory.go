// Package remote provides an in-memory Store for tests and local use.
package remote

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory append-only Store. References are allocated as
// UUIDs and each reference accepts exactly one snapshot.
type MemoryStore struct {
	mu        sync.Mutex
	allocated map[string]bool
	published map[string]Snapshot
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		allocated: make(map[string]bool),
		published: make(map[string]Snapshot),
	}
}

// AllocateReference mints a fresh UUID reference.
func (m *MemoryStore) AllocateReference(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ref := uuid.New().String()
	m.allocated[ref] = true
	return ref, nil
}

// Publish stores the snapshot under ref. A reference must have been allocated
// and may only be written once.
func (m *MemoryStore) Publish(ctx context.Context, ref string, snap Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.allocated[ref] {
		return fmt.Errorf("unknown reference %q", ref)
	}
	if _, ok := m.published[ref]; ok {
		return fmt.Errorf("reference %q already published", ref)
	}
	m.published[ref] = snap
	return nil
}

// Get returns the snapshot published under ref, if any.
func (m *MemoryStore) Get(ref string) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap, ok := m.published[ref]
	return snap, ok
}

// Len returns the number of published snapshots.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.published)
}
