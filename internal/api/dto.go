package api

import (
	"time"

	"github.com/softmill/filedex/internal/checksum"
	"github.com/softmill/filedex/internal/models"
)

// CreateRecordRequest is the request body for registering a new file.
type CreateRecordRequest struct {
	FileName    string `json:"file_name"`
	Content     string `json:"content"`
	StoragePath string `json:"storage_path"`
	Category    string `json:"category"`
}

// UpdateContentRequest is the request body for overwriting file content.
type UpdateContentRequest struct {
	Content string `json:"content"`
}

// RenameRequest is the request body for renaming a tracked file.
type RenameRequest struct {
	FileName string `json:"file_name"`
}

// MoveRequest is the request body for relocating a tracked file.
type MoveRequest struct {
	StoragePath string `json:"storage_path"`
}

// CategoryRequest is the request body for re-tagging a record.
type CategoryRequest struct {
	Category string `json:"category"`
}

// RecordDetail is the full representation of a record.
type RecordDetail struct {
	ID          string    `json:"id"`
	ShortID     string    `json:"short_id"`
	FileName    string    `json:"file_name"`
	StoragePath string    `json:"storage_path"`
	Path        string    `json:"path"`
	Category    string    `json:"category"`
	Content     string    `json:"content"`
	Checksum    string    `json:"checksum"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RecordListItem is a lightweight item in a list response.
type RecordListItem struct {
	ID        string    `json:"id"`
	ShortID   string    `json:"short_id"`
	FileName  string    `json:"file_name"`
	Category  string    `json:"category"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecordListResponse wraps record listings.
type RecordListResponse struct {
	Records []RecordListItem `json:"records"`
	Total   int              `json:"total"`
}

// DiskContentResponse carries live on-disk content, which may differ from the
// registry's cached content.
type DiskContentResponse struct {
	ID      string `json:"id"`
	Path    string `json:"path"`
	Content string `json:"content"`
}

func toDetail(rec *models.Record) RecordDetail {
	return RecordDetail{
		ID:          rec.ID,
		ShortID:     rec.ShortID(),
		FileName:    rec.FileName,
		StoragePath: rec.StoragePath,
		Path:        rec.Path(),
		Category:    rec.Category,
		Content:     rec.Content,
		Checksum:    checksum.SumString(rec.Content),
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
}

func toListItem(rec *models.Record) RecordListItem {
	return RecordListItem{
		ID:        rec.ID,
		ShortID:   rec.ShortID(),
		FileName:  rec.FileName,
		Category:  rec.Category,
		Path:      rec.Path(),
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}
