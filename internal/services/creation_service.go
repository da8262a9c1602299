// Package services – CreationService
//
// This file implements the CreationService, which manages persisted
// creations after generation: per-user listings, the public gallery, the
// like toggle, and permanent deletion. It enforces ownership rules and
// coordinates repository operations; generation itself lives in
// GenerationService.
//
// Service-level errors (e.g., ErrCreationNotFound) are returned for
// predictable cases so handlers can map them to response envelopes
// consistently.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/quickai/go-quickai-backend/internal/domain"
)

// Like-toggle outcome messages surfaced to the caller.
const (
	msgLikeAdded   = "Like added"
	msgLikeRemoved = "Like removed"
)

// CreationRepo defines the repository contract required by CreationService.
// Implementations are responsible for persistence of creation rows.
type CreationRepo interface {
	// ListCreations returns all creations belonging to the user, newest first.
	ListCreations(ctx context.Context, db *gorm.DB, userID string) ([]domain.Creation, error)

	// ListPublishedCreations returns the public gallery, newest first.
	ListPublishedCreations(ctx context.Context, db *gorm.DB, limit int) ([]domain.Creation, error)

	// GetCreation fetches a creation by ID regardless of owner.
	GetCreation(ctx context.Context, db *gorm.DB, id string) (*domain.Creation, error)

	// DeleteCreation removes a creation permanently (only if owned by the user).
	DeleteCreation(ctx context.Context, db *gorm.DB, id, userID string) error

	// UpdateCreationLikes replaces the likes array, guarded by the previously
	// read value.
	UpdateCreationLikes(ctx context.Context, db *gorm.DB, id string, prev, next domain.StringList) error
}

// CreationService provides listing, like-toggle, and delete operations over
// persisted creations.
type CreationService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the creation repository used by this service.
	Repo CreationRepo
}

// NewCreationService constructs a CreationService.
func NewCreationService(db *gorm.DB, r CreationRepo) *CreationService {
	return &CreationService{DB: db, Repo: r}
}

// ListMine returns all creations for a user, newest first.
func (s *CreationService) ListMine(ctx context.Context, userID string) ([]domain.Creation, error) {
	return s.Repo.ListCreations(ctx, s.DB, userID)
}

// ListPublished returns the public gallery, newest first. A limit <= 0
// returns every published creation.
func (s *CreationService) ListPublished(ctx context.Context, limit int) ([]domain.Creation, error) {
	return s.Repo.ListPublishedCreations(ctx, s.DB, limit)
}

// ToggleLike flips membership of userID in the creation's likes set and
// reports the outcome. The toggle is idempotent from the caller's view:
// applying it twice restores the original state.
//
// The update is a compare-and-set on the previously read likes value. When a
// concurrent toggle wins the race, the read+update pair is retried once with
// fresh state, so neither toggle is silently lost.
func (s *CreationService) ToggleLike(ctx context.Context, userID, creationID string) (liked bool, message string, err error) {
	for attempt := 0; attempt < 2; attempt++ {
		c, err := s.Repo.GetCreation(ctx, s.DB, creationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return false, "", ErrCreationNotFound
			}
			return false, "", err
		}

		next, nowLiked := c.Likes.Toggle(userID)
		err = s.Repo.UpdateCreationLikes(ctx, s.DB, creationID, c.Likes, next)
		if err == nil {
			if nowLiked {
				return true, msgLikeAdded, nil
			}
			return false, msgLikeRemoved, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return false, "", err
		}
		// Guard miss: either the row vanished or the likes changed underneath
		// us. Loop re-reads to distinguish; a deleted row surfaces on re-read.
	}
	return false, "", ErrCreationNotFound
}

// Delete permanently removes a creation owned by userID. Deleting another
// user's creation (or a missing id) returns ErrCreationNotFound and touches
// no rows.
func (s *CreationService) Delete(ctx context.Context, userID, creationID string) error {
	if err := s.Repo.DeleteCreation(ctx, s.DB, creationID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCreationNotFound
		}
		return err
	}
	return nil
}
