package models

import "time"

// Upload statuses for File.UploadStatus.
const (
	UploadStatusPending   = "pending"
	UploadStatusCompleted = "completed"
)

// File describes server-side metadata for an uploaded object. The content
// itself is stored in object storage; clients PUT it via a presigned URL.
type File struct {
	ID     int64
	UserID int64

	// StorageKey is the object-storage key (path) of the blob.
	StorageKey  string
	FileName    string
	ContentType string
	Size        int64

	UploadStatus string
	CreatedAt    time.Time
}
