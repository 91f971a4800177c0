// Package storage owns the scratch space used while assembling videos and
// the optional publication of finished videos to S3.
package storage

import (
	"context"
	"io"
	"time"
)

// Storage defines staging and publication of editor artifacts.
type Storage interface {
	// CreateStagingDir creates a new empty directory under the temp root.
	// The prefix is used as a hint for the directory name.
	CreateStagingDir(ctx context.Context, prefix string) (dir string, err error)

	// RemoveStagingDir deletes a directory created by CreateStagingDir.
	// Paths outside the temp root are refused.
	RemoveStagingDir(ctx context.Context, dir string) error

	// PurgeStale removes staging directories older than maxAge and returns
	// how many were removed. It continues past directories that fail to delete.
	PurgeStale(ctx context.Context, maxAge time.Duration) (removed int, err error)

	// Upload stores data under key and returns its URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	Upload(ctx context.Context, key string, data io.Reader) (url string, err error)
}
