package models

import (
	"time"
)

// Indexing states for a document's remote index membership.
const (
	IndexStatusIndexed = "indexed"
	IndexStatusFailed  = "failed"
)

// Document is a file owned by exactly one assistant. The owning assistant
// never changes; deleting the assistant deletes the document.
type Document struct {
	ID           uint      `json:"id" gorm:"primarykey"`
	AssistantID  uint      `json:"assistant_id" gorm:"index;not null"`
	Filename     string    `json:"filename" gorm:"not null"`
	SizeBytes    int64     `json:"size_bytes"`
	MimeType     string    `json:"mime_type"`
	StagedPath   string    `json:"-"`
	RemoteFileID string    `json:"remote_file_id" gorm:"index"`
	IndexStatus  string    `json:"index_status"`
	Description  string    `json:"description,omitempty"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// Indexed reports whether the document is searchable in the remote index
func (d *Document) Indexed() bool {
	return d.IndexStatus == IndexStatusIndexed
}
