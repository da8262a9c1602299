package services

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/quickai/go-quickai-backend/internal/domain"
)

// fakeCreationRepo scripts repository behavior for the service tests.
type fakeCreationRepo struct {
	creations map[string]*domain.Creation

	updateErrs []error // popped per UpdateCreationLikes call; empty means success
	deleteErr  error

	reads   int
	updates int

	lastPrev domain.StringList
	lastNext domain.StringList
}

func (f *fakeCreationRepo) ListCreations(ctx context.Context, db *gorm.DB, userID string) ([]domain.Creation, error) {
	var out []domain.Creation
	for _, c := range f.creations {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeCreationRepo) ListPublishedCreations(ctx context.Context, db *gorm.DB, limit int) ([]domain.Creation, error) {
	var out []domain.Creation
	for _, c := range f.creations {
		if c.Publish {
			out = append(out, *c)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeCreationRepo) GetCreation(ctx context.Context, db *gorm.DB, id string) (*domain.Creation, error) {
	f.reads++
	c, ok := f.creations[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *c
	cp.Likes = append(domain.StringList{}, c.Likes...)
	return &cp, nil
}

func (f *fakeCreationRepo) DeleteCreation(ctx context.Context, db *gorm.DB, id, userID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.creations, id)
	return nil
}

func (f *fakeCreationRepo) UpdateCreationLikes(ctx context.Context, db *gorm.DB, id string, prev, next domain.StringList) error {
	f.updates++
	f.lastPrev = prev
	f.lastNext = next
	if len(f.updateErrs) > 0 {
		err := f.updateErrs[0]
		f.updateErrs = f.updateErrs[1:]
		if err != nil {
			return err
		}
	}
	if c, ok := f.creations[id]; ok {
		c.Likes = next
	}
	return nil
}

func TestToggleLike_AddThenRemove(t *testing.T) {
	repo := &fakeCreationRepo{creations: map[string]*domain.Creation{
		"c1": {ID: "c1", UserID: "owner", Likes: domain.StringList{}},
	}}
	svc := NewCreationService(nil, repo)
	ctx := context.Background()

	liked, msg, err := svc.ToggleLike(ctx, "u1", "c1")
	if err != nil {
		t.Fatalf("ToggleLike: %v", err)
	}
	if !liked || msg != "Like added" {
		t.Fatalf("add: liked=%v msg=%q", liked, msg)
	}
	if !repo.lastNext.Contains("u1") {
		t.Fatalf("likes not updated: %#v", repo.lastNext)
	}

	liked, msg, err = svc.ToggleLike(ctx, "u1", "c1")
	if err != nil {
		t.Fatalf("ToggleLike remove: %v", err)
	}
	if liked || msg != "Like removed" {
		t.Fatalf("remove: liked=%v msg=%q", liked, msg)
	}
	if repo.lastNext.Contains("u1") {
		t.Fatalf("double toggle should restore state: %#v", repo.lastNext)
	}
}

func TestToggleLike_MissingCreation(t *testing.T) {
	svc := NewCreationService(nil, &fakeCreationRepo{creations: map[string]*domain.Creation{}})
	if _, _, err := svc.ToggleLike(context.Background(), "u1", "nope"); !errors.Is(err, ErrCreationNotFound) {
		t.Fatalf("expected ErrCreationNotFound, got %v", err)
	}
}

func TestToggleLike_RetriesOnceOnGuardMiss(t *testing.T) {
	repo := &fakeCreationRepo{
		creations: map[string]*domain.Creation{
			"c1": {ID: "c1", Likes: domain.StringList{"rival"}},
		},
		// First CAS loses the race, second succeeds on fresh state.
		updateErrs: []error{gorm.ErrRecordNotFound, nil},
	}
	svc := NewCreationService(nil, repo)

	liked, _, err := svc.ToggleLike(context.Background(), "u1", "c1")
	if err != nil {
		t.Fatalf("ToggleLike: %v", err)
	}
	if !liked {
		t.Fatal("toggle should land on retry")
	}
	if repo.reads != 2 || repo.updates != 2 {
		t.Fatalf("expected one retry (2 reads, 2 updates), got reads=%d updates=%d", repo.reads, repo.updates)
	}
}

func TestToggleLike_GivesUpAfterRetry(t *testing.T) {
	repo := &fakeCreationRepo{
		creations: map[string]*domain.Creation{
			"c1": {ID: "c1", Likes: domain.StringList{}},
		},
		updateErrs: []error{gorm.ErrRecordNotFound, gorm.ErrRecordNotFound},
	}
	svc := NewCreationService(nil, repo)

	if _, _, err := svc.ToggleLike(context.Background(), "u1", "c1"); !errors.Is(err, ErrCreationNotFound) {
		t.Fatalf("expected ErrCreationNotFound after exhausted retry, got %v", err)
	}
	if repo.updates != 2 {
		t.Fatalf("expected exactly 2 CAS attempts, got %d", repo.updates)
	}
}

func TestToggleLike_OtherRepoErrorPassesThrough(t *testing.T) {
	boom := errors.New("disk on fire")
	repo := &fakeCreationRepo{
		creations:  map[string]*domain.Creation{"c1": {ID: "c1", Likes: domain.StringList{}}},
		updateErrs: []error{boom},
	}
	svc := NewCreationService(nil, repo)

	if _, _, err := svc.ToggleLike(context.Background(), "u1", "c1"); !errors.Is(err, boom) {
		t.Fatalf("expected repo error to pass through, got %v", err)
	}
	if repo.updates != 1 {
		t.Fatalf("non-guard errors must not retry, got %d attempts", repo.updates)
	}
}

func TestDelete_MapsNotFound(t *testing.T) {
	repo := &fakeCreationRepo{
		creations: map[string]*domain.Creation{},
		deleteErr: gorm.ErrRecordNotFound,
	}
	svc := NewCreationService(nil, repo)

	if err := svc.Delete(context.Background(), "u1", "ghost"); !errors.Is(err, ErrCreationNotFound) {
		t.Fatalf("expected ErrCreationNotFound, got %v", err)
	}
}

func TestDelete_Success(t *testing.T) {
	repo := &fakeCreationRepo{
		creations: map[string]*domain.Creation{"c1": {ID: "c1", UserID: "u1"}},
	}
	svc := NewCreationService(nil, repo)

	if err := svc.Delete(context.Background(), "u1", "c1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := repo.creations["c1"]; ok {
		t.Fatal("creation should be gone")
	}
}
