// Optimistic creation cache.
//
// This file implements the query cache the QuickAI dashboard uses: two
// query keys (the caller's creations and the community gallery), lazy
// fetching with staleness invalidation, and optimistic delete/like
// mutations. A mutation applies its effect to the cached lists immediately,
// then settles against the server: confirmation marks the affected queries
// stale so the next read refetches, and a failure restores the snapshot
// taken before the local edit. Mutations are independent; concurrent toggles
// are not coalesced.
package client

import (
	"context"
	"sync"

	"github.com/quickai/go-quickai-backend/internal/domain"
)

// Key identifies a cached query.
type Key string

const (
	// KeyMyCreations caches the caller's creation list.
	KeyMyCreations Key = "my-creations"
	// KeyPublishedCreations caches the community gallery.
	KeyPublishedCreations Key = "published-creations"
)

// MutationState is the lifecycle of an optimistic mutation.
type MutationState uint8

const (
	// MutationIdle: no local effect was applied (e.g. validation failed).
	MutationIdle MutationState = iota
	// MutationAppliedLocally: the cached lists were edited, server pending.
	MutationAppliedLocally
	// MutationConfirmed: the server accepted the mutation.
	MutationConfirmed
	// MutationRolledBack: the server rejected it and the snapshot was
	// restored.
	MutationRolledBack
)

func (s MutationState) String() string {
	switch s {
	case MutationAppliedLocally:
		return "applied-locally"
	case MutationConfirmed:
		return "confirmed"
	case MutationRolledBack:
		return "rolled-back"
	default:
		return "idle"
	}
}

// API is the subset of Client the cache depends on.
type API interface {
	GetUserCreations(ctx context.Context) ([]domain.Creation, error)
	GetPublishedCreations(ctx context.Context, limit int) ([]domain.Creation, error)
	ToggleLikeCreation(ctx context.Context, id string) (string, error)
	DeleteCreation(ctx context.Context, id string) error
}

// query is one cached listing.
type query struct {
	items  []domain.Creation
	loaded bool
	stale  bool
}

// Cache is a lazily populated, invalidation-driven view of the caller's
// creations and the gallery. Safe for concurrent use. The network settle of
// a mutation happens outside the lock; only local edits are serialized.
type Cache struct {
	api    API
	userID string

	mu      sync.Mutex
	queries map[Key]*query
}

// NewCache constructs a Cache. userID is the caller's own id, needed to
// apply like toggles locally the same way the server will.
func NewCache(api API, userID string) *Cache {
	return &Cache{
		api:    api,
		userID: userID,
		queries: map[Key]*query{
			KeyMyCreations:        {},
			KeyPublishedCreations: {},
		},
	}
}

// MyCreations returns the caller's creations, fetching from the server when
// the cache is cold or stale.
func (c *Cache) MyCreations(ctx context.Context) ([]domain.Creation, error) {
	return c.read(ctx, KeyMyCreations, func(ctx context.Context) ([]domain.Creation, error) {
		return c.api.GetUserCreations(ctx)
	})
}

// PublishedCreations returns the community gallery, fetching when cold or
// stale.
func (c *Cache) PublishedCreations(ctx context.Context) ([]domain.Creation, error) {
	return c.read(ctx, KeyPublishedCreations, func(ctx context.Context) ([]domain.Creation, error) {
		return c.api.GetPublishedCreations(ctx, 0)
	})
}

// Invalidate marks the given queries stale; no keys marks everything. The
// next read refetches.
func (c *Cache) Invalidate(keys ...Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(keys) == 0 {
		for _, q := range c.queries {
			q.stale = true
		}
		return
	}
	for _, k := range keys {
		if q, ok := c.queries[k]; ok {
			q.stale = true
		}
	}
}

// DeleteCreation optimistically removes the creation from both cached lists,
// then settles against the server. On failure the snapshot is restored and
// the error returned alongside MutationRolledBack.
func (c *Cache) DeleteCreation(ctx context.Context, id string) (MutationState, error) {
	snap := c.snapshot()
	c.applyLocally(func(items []domain.Creation) []domain.Creation {
		out := items[:0]
		for _, it := range items {
			if it.ID != id {
				out = append(out, it)
			}
		}
		return out
	})

	if err := c.api.DeleteCreation(ctx, id); err != nil {
		c.restore(snap)
		c.Invalidate()
		return MutationRolledBack, err
	}
	c.Invalidate()
	return MutationConfirmed, nil
}

// ToggleLike optimistically flips the caller's like on the creation in both
// cached lists, then settles against the server. Returns the server's
// outcome message on confirmation.
func (c *Cache) ToggleLike(ctx context.Context, id string) (MutationState, string, error) {
	snap := c.snapshot()
	c.applyLocally(func(items []domain.Creation) []domain.Creation {
		for i := range items {
			if items[i].ID == id {
				items[i].Likes, _ = items[i].Likes.Toggle(c.userID)
			}
		}
		return items
	})

	message, err := c.api.ToggleLikeCreation(ctx, id)
	if err != nil {
		c.restore(snap)
		c.Invalidate()
		return MutationRolledBack, "", err
	}
	c.Invalidate()
	return MutationConfirmed, message, nil
}

// read returns the cached items for key, fetching when cold or stale.
func (c *Cache) read(ctx context.Context, key Key, fetch func(context.Context) ([]domain.Creation, error)) ([]domain.Creation, error) {
	c.mu.Lock()
	q := c.queries[key]
	if q.loaded && !q.stale {
		items := cloneCreations(q.items)
		c.mu.Unlock()
		return items, nil
	}
	c.mu.Unlock()

	items, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	q.items = items
	q.loaded = true
	q.stale = false
	out := cloneCreations(q.items)
	c.mu.Unlock()
	return out, nil
}

// snapshot captures the current items of every loaded query for rollback.
func (c *Cache) snapshot() map[Key][]domain.Creation {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := make(map[Key][]domain.Creation, len(c.queries))
	for k, q := range c.queries {
		if q.loaded {
			snap[k] = cloneCreations(q.items)
		}
	}
	return snap
}

// restore puts snapshotted items back, leaving unloaded queries untouched.
func (c *Cache) restore(snap map[Key][]domain.Creation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, items := range snap {
		if q, ok := c.queries[k]; ok {
			q.items = items
			q.loaded = true
		}
	}
}

// applyLocally runs edit over every loaded query's items under the lock.
func (c *Cache) applyLocally(edit func([]domain.Creation) []domain.Creation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, q := range c.queries {
		if q.loaded {
			q.items = edit(q.items)
		}
	}
}

// cloneCreations copies a list so callers never alias cache internals.
func cloneCreations(items []domain.Creation) []domain.Creation {
	out := make([]domain.Creation, len(items))
	copy(out, items)
	for i := range out {
		out[i].Likes = append(domain.StringList(nil), out[i].Likes...)
	}
	return out
}
