// Package domain defines the persistence models for creations. These types
// are mapped with GORM and form the core data layer of the application.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Creation types. The type is fixed when the row is inserted and never
// changes afterwards.
const (
	TypeArticle      = "article"
	TypeBlogTitle    = "blog_title"
	TypeImage        = "image"
	TypeResumeReview = "resume-review"
)

// StringList is a string array persisted as a JSON text column. It backs the
// likes field, which holds the user ids that currently like a creation.
type StringList []string

// Value implements driver.Valuer. A nil list is stored as an empty array so
// reads never produce NULL likes.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for TEXT and BLOB column representations.
func (l *StringList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case string:
		if v == "" {
			*l = StringList{}
			return nil
		}
		return json.Unmarshal([]byte(v), l)
	case []byte:
		if len(v) == 0 {
			*l = StringList{}
			return nil
		}
		return json.Unmarshal(v, l)
	default:
		return errors.New("unsupported likes column type")
	}
}

// Contains reports whether id is a member of the list.
func (l StringList) Contains(id string) bool {
	for _, v := range l {
		if v == id {
			return true
		}
	}
	return false
}

// Toggle returns a copy of the list with id added when absent or removed when
// present, plus whether the result contains id. The receiver is not mutated
// and the result never holds duplicates.
func (l StringList) Toggle(id string) (StringList, bool) {
	if l.Contains(id) {
		out := make(StringList, 0, len(l)-1)
		for _, v := range l {
			if v != id {
				out = append(out, v)
			}
		}
		return out, false
	}
	out := make(StringList, 0, len(l)+1)
	out = append(out, l...)
	out = append(out, id)
	return out, true
}

// Creation represents one AI-generated or AI-processed result together with
// the prompt that produced it. Rows are append-mostly: after insert only the
// likes column changes, and deletion removes the row permanently (no soft
// delete, so a deleted creation disappears from every listing at once).
//
// Fields:
//   - ID: stable UUID primary key (char(36)), assigned on insert.
//   - UserID: owning identity from the auth provider; immutable, indexed.
//   - Prompt: free-text description of the request.
//   - Content: generated markdown, or a URL for processed media.
//   - Type: article | blog_title | image | resume-review.
//   - Publish: gallery visibility; meaningful for image creations only and
//     set exclusively at creation time.
//   - Likes: user ids that like this creation; no duplicates.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type Creation struct {
	ID        string     `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string     `json:"user_id"    gorm:"type:varchar(64);not null;index:idx_user_creations"`
	Prompt    string     `json:"prompt"     gorm:"type:text;not null"`
	Content   string     `json:"content"    gorm:"type:text;not null"`
	Type      string     `json:"type"       gorm:"type:varchar(32);not null;check:type IN ('article','blog_title','image','resume-review')"`
	Publish   bool       `json:"publish"    gorm:"not null;default:false;index"`
	Likes     StringList `json:"likes"      gorm:"type:text;not null"`
	CreatedAt time.Time  `json:"created_at" gorm:"index"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Creation.
func (Creation) TableName() string { return "creations" }
