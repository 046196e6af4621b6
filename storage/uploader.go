// Package storage archives generation snapshots in S3-compatible object
// storage.
package storage

import (
	"context"
	"io"
)

// UploadResult identifies a stored object. Location is empty when the bucket
// has no public base URL.
type UploadResult struct {
	Key      string `json:"key"`
	Location string `json:"location,omitempty"`
	ETag     string `json:"etag,omitempty"`
}

// FileUploader writes objects under caller-chosen keys. Snapshot keys are
// unique per run, so objects are never overwritten or deleted.
type FileUploader interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (*UploadResult, error)
	GetPublicURL(key string) string
}
