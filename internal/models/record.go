// Package models defines the domain types for filedex.
package models

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultCategory is assigned when a record is created or re-tagged with a
// blank category. Normalization happens at the boundary (constructor and
// setter), never later.
const DefaultCategory = "General"

// shortIDLen is the prefix of the ID used for human-friendly display and lookup.
const shortIDLen = 8

// Record is one tracked file: its identity, on-disk location, cached content,
// and category tag. The registry content may be stale versus disk until a
// caller explicitly refreshes it.
type Record struct {
	ID          string    `json:"id"`
	FileName    string    `json:"file_name"`
	Content     string    `json:"-"`
	StoragePath string    `json:"storage_path"`
	Category    string    `json:"category"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// New creates a fresh record with a generated id and both timestamps set to now.
func New(fileName, content, storagePath, category string) *Record {
	now := time.Now()
	return &Record{
		ID:          uuid.NewString(),
		FileName:    fileName,
		Content:     content,
		StoragePath: storagePath,
		Category:    NormalizeCategory(category),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Restore rehydrates a record from persisted fields, keeping the original id
// and timestamps.
func Restore(id, fileName, content, storagePath, category string, createdAt, updatedAt time.Time) *Record {
	return &Record{
		ID:          id,
		FileName:    fileName,
		Content:     content,
		StoragePath: storagePath,
		Category:    NormalizeCategory(category),
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}
}

// Clone returns an independent copy of the record. The registry hands out
// clones so callers can never mutate a record the store is still encoding.
func (r *Record) Clone() *Record {
	c := *r
	return &c
}

// NormalizeCategory trims the tag and substitutes DefaultCategory for blank input.
func NormalizeCategory(category string) string {
	category = strings.TrimSpace(category)
	if category == "" {
		return DefaultCategory
	}
	return category
}

// SetFileName updates the file name and bumps UpdatedAt.
func (r *Record) SetFileName(name string) {
	r.FileName = name
	r.touch()
}

// SetContent updates the cached content and bumps UpdatedAt.
func (r *Record) SetContent(content string) {
	r.Content = content
	r.touch()
}

// SetStoragePath updates the storage directory and bumps UpdatedAt.
func (r *Record) SetStoragePath(dir string) {
	r.StoragePath = dir
	r.touch()
}

// SetCategory updates the category tag, normalizing blank input, and bumps UpdatedAt.
func (r *Record) SetCategory(category string) {
	r.Category = NormalizeCategory(category)
	r.touch()
}

// ShortID returns the display prefix of the id.
func (r *Record) ShortID() string {
	if len(r.ID) <= shortIDLen {
		return r.ID
	}
	return r.ID[:shortIDLen]
}

// Path returns the combined on-disk location of the tracked file.
func (r *Record) Path() string {
	return filepath.Join(r.StoragePath, r.FileName)
}

func (r *Record) touch() {
	r.UpdatedAt = time.Now()
}
