// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Creation
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a creation is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// All writes are auto-committed single statements; there are no
// multi-statement transactions in this layer.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quickai/go-quickai-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateCreation inserts a new Creation row owned by userID. The row ID is a
// randomly generated UUID (string), CreatedAt is set to UTC, and likes start
// empty.
//
// On success, it returns the persisted Creation. On failure, it returns a DB error.
func CreateCreation(ctx context.Context, db *gorm.DB, userID, prompt, content, ctype string, publish bool) (*domain.Creation, error) {
	c := &domain.Creation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Prompt:    prompt,
		Content:   content,
		Type:      ctype,
		Publish:   publish,
		Likes:     domain.StringList{},
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// ListCreations returns all creations belonging to userID, ordered by
// creation time descending (most recent first). It returns an empty slice if
// the user has no creations. On DB error, it returns the error.
func ListCreations(ctx context.Context, db *gorm.DB, userID string) ([]domain.Creation, error) {
	var out []domain.Creation
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// ListPublishedCreations returns all creations with publish = true across
// every user, ordered by creation time descending. A limit <= 0 returns the
// full gallery.
func ListPublishedCreations(ctx context.Context, db *gorm.DB, limit int) ([]domain.Creation, error) {
	var out []domain.Creation
	q := db.WithContext(ctx).
		Where("publish = ?", true).
		Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// GetCreation fetches a single creation by its ID regardless of owner. If the
// record does not exist, it returns ErrNotFound.
func GetCreation(ctx context.Context, db *gorm.DB, id string) (*domain.Creation, error) {
	var c domain.Creation
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// DeleteCreation permanently removes a creation identified by id and owned by
// userID. If no rows are affected (creation missing or owned by someone
// else), it returns ErrNotFound so another user's rows are never touched.
func DeleteCreation(ctx context.Context, db *gorm.DB, id, userID string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&domain.Creation{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateCreationLikes replaces the likes column of creation id with next,
// guarded by the previously read value prev. The guard turns the
// read-modify-write into a compare-and-set: when another toggle landed in
// between, no rows match and ErrNotFound is returned so the caller can
// re-read and retry instead of silently losing the concurrent update.
func UpdateCreationLikes(ctx context.Context, db *gorm.DB, id string, prev, next domain.StringList) error {
	prevVal, err := prev.Value()
	if err != nil {
		return err
	}
	res := db.WithContext(ctx).
		Model(&domain.Creation{}).
		Where("id = ? AND likes = ?", id, prevVal).
		Update("likes", next)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
