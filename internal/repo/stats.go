// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer. Each function is context-aware and safe to call from services or
// handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/quickai/go-quickai-backend/internal/domain"
)

// CreationsStats returns aggregate metadata for a user's creations: the total
// number of rows and the maximum UpdatedAt timestamp among those rows.
//
// When the user has no creations, the returned count is 0 and maxUpdatedAt
// is nil.
func CreationsStats(ctx context.Context, db *gorm.DB, userID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Creation{}).Where("user_id = ?", userID)
	return scanStats(q)
}

// PublishedStats returns aggregate metadata for the public gallery: the total
// number of published rows and the maximum UpdatedAt timestamp among them.
// Likes updates bump UpdatedAt, so the gallery ETag changes on toggles too.
func PublishedStats(ctx context.Context, db *gorm.DB) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Creation{}).Where("publish = ?", true)
	return scanStats(q)
}

// scanStats executes the shared count + latest-updated_at pair of queries.
func scanStats(q *gorm.DB) (count int64, maxUpdatedAt *time.Time, err error) {
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
