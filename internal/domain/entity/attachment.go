package entity

import "time"

// Attachment represents attachment metadata for a request. FileName is the
// display name as uploaded; StorageKey is the generated object key the blob
// is stored under and is never derived from the display name.
type Attachment struct {
	ID          int64     `json:"id"`
	RequestID   int64     `json:"request_id"`
	FileName    string    `json:"file_name"`
	StorageKey  string    `json:"-"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// AttachmentUpload carries an incoming file before it is persisted
type AttachmentUpload struct {
	FileName    string
	ContentType string
	Content     []byte
}
