package client

import (
	"context"
	"errors"
	"testing"

	"github.com/quickai/go-quickai-backend/internal/domain"
)

// fakeAPI scripts server behavior for cache tests and counts fetches.
type fakeAPI struct {
	mine      []domain.Creation
	published []domain.Creation

	mineFetches      int
	publishedFetches int

	toggleMsg string
	toggleErr error
	deleteErr error
}

func (f *fakeAPI) GetUserCreations(ctx context.Context) ([]domain.Creation, error) {
	f.mineFetches++
	return append([]domain.Creation(nil), f.mine...), nil
}

func (f *fakeAPI) GetPublishedCreations(ctx context.Context, limit int) ([]domain.Creation, error) {
	f.publishedFetches++
	return append([]domain.Creation(nil), f.published...), nil
}

func (f *fakeAPI) ToggleLikeCreation(ctx context.Context, id string) (string, error) {
	return f.toggleMsg, f.toggleErr
}

func (f *fakeAPI) DeleteCreation(ctx context.Context, id string) error {
	return f.deleteErr
}

func TestCache_LazyFetchAndReuse(t *testing.T) {
	api := &fakeAPI{mine: []domain.Creation{{ID: "c1"}, {ID: "c2"}}}
	cache := NewCache(api, "u1")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		items, err := cache.MyCreations(ctx)
		if err != nil {
			t.Fatalf("MyCreations: %v", err)
		}
		if len(items) != 2 {
			t.Fatalf("unexpected items: %#v", items)
		}
	}
	if api.mineFetches != 1 {
		t.Fatalf("warm cache must not refetch, got %d fetches", api.mineFetches)
	}
}

func TestCache_InvalidateForcesRefetch(t *testing.T) {
	api := &fakeAPI{mine: []domain.Creation{{ID: "c1"}}}
	cache := NewCache(api, "u1")
	ctx := context.Background()

	if _, err := cache.MyCreations(ctx); err != nil {
		t.Fatalf("warm up: %v", err)
	}
	cache.Invalidate(KeyMyCreations)

	api.mine = []domain.Creation{{ID: "c1"}, {ID: "c2"}}
	items, err := cache.MyCreations(ctx)
	if err != nil {
		t.Fatalf("MyCreations: %v", err)
	}
	if len(items) != 2 || api.mineFetches != 2 {
		t.Fatalf("stale read must refetch: items=%d fetches=%d", len(items), api.mineFetches)
	}
}

func TestCache_ReturnsClones(t *testing.T) {
	api := &fakeAPI{mine: []domain.Creation{{ID: "c1", Likes: domain.StringList{"x"}}}}
	cache := NewCache(api, "u1")
	ctx := context.Background()

	items, _ := cache.MyCreations(ctx)
	items[0].ID = "mutated"
	items[0].Likes[0] = "mutated"

	again, _ := cache.MyCreations(ctx)
	if again[0].ID != "c1" || again[0].Likes[0] != "x" {
		t.Fatalf("caller mutation leaked into cache: %#v", again[0])
	}
}

func TestCache_DeleteConfirmed(t *testing.T) {
	api := &fakeAPI{
		mine:      []domain.Creation{{ID: "c1"}, {ID: "c2"}},
		published: []domain.Creation{{ID: "c1", Publish: true}},
	}
	cache := NewCache(api, "u1")
	ctx := context.Background()

	// Warm both queries so the optimistic edit has something to touch.
	if _, err := cache.MyCreations(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.PublishedCreations(ctx); err != nil {
		t.Fatal(err)
	}

	state, err := cache.DeleteCreation(ctx, "c1")
	if err != nil || state != MutationConfirmed {
		t.Fatalf("delete: state=%v err=%v", state, err)
	}

	// Confirmation marks queries stale; the next read refetches server truth.
	api.mine = []domain.Creation{{ID: "c2"}}
	api.published = nil
	items, _ := cache.MyCreations(ctx)
	if len(items) != 1 || items[0].ID != "c2" {
		t.Fatalf("post-delete listing: %#v", items)
	}
	if api.mineFetches != 2 {
		t.Fatalf("settle must invalidate, got %d fetches", api.mineFetches)
	}
}

func TestCache_DeleteRolledBackRestoresSnapshot(t *testing.T) {
	boom := errors.New("server rejected")
	api := &fakeAPI{
		mine:      []domain.Creation{{ID: "c1"}, {ID: "c2"}},
		deleteErr: boom,
	}
	cache := NewCache(api, "u1")
	ctx := context.Background()

	if _, err := cache.MyCreations(ctx); err != nil {
		t.Fatal(err)
	}

	state, err := cache.DeleteCreation(ctx, "c1")
	if !errors.Is(err, boom) || state != MutationRolledBack {
		t.Fatalf("delete: state=%v err=%v", state, err)
	}

	// Rollback restored the snapshot; the follow-up read refetches anyway
	// (rollback also invalidates) and still shows both rows.
	items, _ := cache.MyCreations(ctx)
	if len(items) != 2 {
		t.Fatalf("snapshot not restored: %#v", items)
	}
}

func TestCache_ToggleLikeConfirmed(t *testing.T) {
	api := &fakeAPI{
		mine:      []domain.Creation{{ID: "c1", Likes: domain.StringList{}}},
		toggleMsg: "Like added",
	}
	cache := NewCache(api, "u1")
	ctx := context.Background()

	if _, err := cache.MyCreations(ctx); err != nil {
		t.Fatal(err)
	}

	state, msg, err := cache.ToggleLike(ctx, "c1")
	if err != nil || state != MutationConfirmed || msg != "Like added" {
		t.Fatalf("toggle: state=%v msg=%q err=%v", state, msg, err)
	}
}

func TestCache_ToggleLikeRolledBack(t *testing.T) {
	boom := errors.New("not found")
	api := &fakeAPI{
		mine:      []domain.Creation{{ID: "c1", Likes: domain.StringList{}}},
		toggleErr: boom,
	}
	cache := NewCache(api, "u1")
	ctx := context.Background()

	if _, err := cache.MyCreations(ctx); err != nil {
		t.Fatal(err)
	}

	state, _, err := cache.ToggleLike(ctx, "c1")
	if !errors.Is(err, boom) || state != MutationRolledBack {
		t.Fatalf("toggle: state=%v err=%v", state, err)
	}

	items, _ := cache.MyCreations(ctx)
	if items[0].Likes.Contains("u1") {
		t.Fatalf("optimistic like must be rolled back: %#v", items[0].Likes)
	}
}

func TestMutationState_String(t *testing.T) {
	cases := map[MutationState]string{
		MutationIdle:           "idle",
		MutationAppliedLocally: "applied-locally",
		MutationConfirmed:      "confirmed",
		MutationRolledBack:     "rolled-back",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", state, got, want)
		}
	}
}
