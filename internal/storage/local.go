package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Static errors for storage operations.
var (
	// ErrS3NotConfigured is returned when S3 operations are attempted
	// without proper configuration.
	ErrS3NotConfigured = errors.New("S3 storage is not configured")
	// ErrOutsideTempDir is returned when asked to remove a path that is not
	// a staging directory of this storage.
	ErrOutsideTempDir = errors.New("path is outside the temp directory")
)

const stagingSuffix = "_staging_"

// LocalStorage implements the Storage interface using local disk.
// Staging directories live under a configurable temp root. It does not
// support uploads unless wrapped with S3Storage.
type LocalStorage struct {
	tempDir string
}

// NewLocalStorage creates a new LocalStorage instance.
// If tempDir is empty, <os.TempDir()>/timelapse-editor is used.
// The directory is created if it doesn't exist.
func NewLocalStorage(tempDir string) (*LocalStorage, error) {
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "timelapse-editor")
	}

	if err := os.MkdirAll(tempDir, 0750); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}

	abs, err := filepath.Abs(tempDir)
	if err != nil {
		return nil, fmt.Errorf("resolve temp directory: %w", err)
	}
	return &LocalStorage{tempDir: abs}, nil
}

// TempDir returns the temporary directory path.
func (s *LocalStorage) TempDir() string {
	return s.tempDir
}

// CreateStagingDir creates a uniquely named directory <prefix>_staging_* under the temp root.
func (s *LocalStorage) CreateStagingDir(ctx context.Context, prefix string) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	prefix = strings.ReplaceAll(filepath.Base(prefix), string(filepath.Separator), "_")
	dir, err := os.MkdirTemp(s.tempDir, prefix+stagingSuffix+"*")
	if err != nil {
		return "", fmt.Errorf("create staging directory: %w", err)
	}
	return dir, nil
}

// RemoveStagingDir deletes dir and its contents. A missing directory is not an error.
func (s *LocalStorage) RemoveStagingDir(ctx context.Context, dir string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	if !s.owns(dir) {
		return fmt.Errorf("%w: %s", ErrOutsideTempDir, dir)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove staging directory %s: %w", dir, err)
	}
	return nil
}

// PurgeStale removes staging directories whose modification time is older
// than maxAge, returning the first error encountered.
func (s *LocalStorage) PurgeStale(ctx context.Context, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.tempDir)
	if err != nil {
		return 0, fmt.Errorf("read temp directory: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	var firstErr error
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return removed, fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		if !entry.IsDir() || !strings.Contains(entry.Name(), stagingSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.tempDir, entry.Name())); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove stale staging directory %s: %w", entry.Name(), err)
			}
			continue
		}
		removed++
	}
	return removed, firstErr
}

// Upload is not supported by LocalStorage and returns ErrS3NotConfigured.
func (s *LocalStorage) Upload(_ context.Context, _ string, _ io.Reader) (string, error) {
	return "", ErrS3NotConfigured
}

// owns reports whether dir is a direct child of the temp root.
func (s *LocalStorage) owns(dir string) bool {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	return filepath.Dir(abs) == s.tempDir && abs != s.tempDir
}
