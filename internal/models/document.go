package models

import (
	"time"

	"github.com/google/uuid"
)

type DocumentStatus string

const (
	DocStatusPending    DocumentStatus = "pending"
	DocStatusProcessing DocumentStatus = "processing"
	DocStatusCompleted  DocumentStatus = "completed"
	DocStatusFailed     DocumentStatus = "failed"
)

// Terminal reports whether no further transition is allowed out of s.
func (s DocumentStatus) Terminal() bool {
	return s == DocStatusCompleted || s == DocStatusFailed
}

type Document struct {
	ID            uuid.UUID      `json:"id" db:"id"`
	OwnerID       uuid.UUID      `json:"owner_id" db:"owner_id"`
	Filename      string         `json:"filename" db:"filename"`
	BlobKey       string         `json:"blob_key" db:"blob_key"`
	Size          int64          `json:"size" db:"size"`
	ContentType   string         `json:"content_type" db:"content_type"`
	Status        DocumentStatus `json:"status" db:"status"`
	ExtractedText string         `json:"extracted_text,omitempty" db:"extracted_text"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
}
