/*
storage.go - Content-addressed file storage

PURPOSE:
  Stores uploads under their SHA-256 content hash, sharded two levels deep
  (ab/cd/<hash>) so no directory grows unbounded. Identical content
  deduplicates to one stored file and one file ID, which is also how the
  ledger detects re-uploads.

ATOMICITY:
  Content is written to a uniquely named temp file and renamed into place,
  so a reader never observes a partially written document.
*/
package document

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Storage is a content-addressed document store rooted at a directory.
type Storage struct {
	baseDir string
	logger  *slog.Logger
}

// NewStorage creates (if needed) and opens the storage root.
func NewStorage(baseDir string, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &Storage{baseDir: baseDir, logger: logger}, nil
}

// shardedPath returns the relative storage path for a file ID: ab/cd/<id>.
func shardedPath(fileID string) string {
	return filepath.Join(fileID[:2], fileID[2:4], fileID)
}

// Save stores content under its SHA-256 hash and returns (fileID, relative
// path). Re-saving identical content is a no-op returning the same ID.
func (s *Storage) Save(ctx context.Context, content []byte) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	sum := sha256.Sum256(content)
	fileID := hex.EncodeToString(sum[:])
	relPath := shardedPath(fileID)
	fullPath := filepath.Join(s.baseDir, relPath)

	if _, err := os.Stat(fullPath); err == nil {
		s.logger.Debug("duplicate upload, already stored", "file_id", fileID)
		return fileID, relPath, nil
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", "", fmt.Errorf("create shard directory: %w", err)
	}

	// Write-then-rename so a concurrent reader never sees partial content.
	tmpPath := filepath.Join(s.baseDir, ".tmp-"+uuid.NewString())
	if err := os.WriteFile(tmpPath, content, 0o644); err != nil {
		return "", "", fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return "", "", fmt.Errorf("move into place: %w", err)
	}
	return fileID, relPath, nil
}

// Path returns the absolute path of a stored file, or an error if the file
// ID is unknown.
func (s *Storage) Path(fileID string) (string, error) {
	if len(fileID) < 4 {
		return "", fmt.Errorf("invalid file id %q", fileID)
	}
	fullPath := filepath.Join(s.baseDir, shardedPath(fileID))
	if _, err := os.Stat(fullPath); err != nil {
		return "", fmt.Errorf("file %s not in storage: %w", fileID, err)
	}
	return fullPath, nil
}
