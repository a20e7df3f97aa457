package storage

import (
	"context"
)

// Uploader stores binary objects (QR codes, thumbnails) and returns their
// public location. Implementations must be safe for concurrent use.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte) (*UploadResult, error)
	Delete(ctx context.Context, key string) error
}

// UploadResult describes a stored object.
type UploadResult struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

var (
	_ Uploader = (*S3Uploader)(nil)
	_ Uploader = (*LocalUploader)(nil)
	_ Uploader = (*MemoryUploader)(nil)
)
