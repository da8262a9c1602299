package entitlement

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store used in tests and when no provider URL
// is configured (dev mode). Unknown users resolve to a fresh free-tier
// entitlement rather than an error, so a local setup works without seeding.
type MemoryStore struct {
	mu    sync.Mutex
	users map[string]Entitlement
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]Entitlement)}
}

// Set stores an entitlement for userID, replacing any previous value.
func (m *MemoryStore) Set(userID string, ent Entitlement) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID] = ent
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, userID string) (Entitlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ent, ok := m.users[userID]; ok {
		return ent, nil
	}
	return Entitlement{Plan: PlanFree}, nil
}

// IncrementFreeUsage implements Store.
func (m *MemoryStore) IncrementFreeUsage(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ent := m.users[userID]
	if ent.Plan == "" {
		ent.Plan = PlanFree
	}
	ent.FreeUsage++
	m.users[userID] = ent
	return nil
}
