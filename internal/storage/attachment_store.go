// Package storage keeps attachment payloads on the local filesystem under
// generated keys. The uploaded display name never becomes part of the path;
// only its extension is carried over for content sniffing by file servers.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/primar/rendiciones/internal/application/port"
)

var extPattern = regexp.MustCompile(`^\.[a-zA-Z0-9]{1,10}$`)

// AttachmentStore implements port.BlobStorage on a local directory
type AttachmentStore struct {
	baseDir string
	logger  *zap.Logger
}

// NewAttachmentStore creates the store and its base directory
func NewAttachmentStore(baseDir string, logger *zap.Logger) (*AttachmentStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create attachment directory: %w", err)
	}
	return &AttachmentStore{baseDir: baseDir, logger: logger}, nil
}

// Save writes content under a fresh uuid-based key and returns the key
func (s *AttachmentStore) Save(content []byte, displayName string) (string, error) {
	key := uuid.NewString() + safeExt(displayName)

	path, err := s.resolve(key)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, content, 0644); err != nil {
		s.logger.Error("failed to write attachment blob",
			zap.String("key", key),
			zap.Error(err))
		return "", fmt.Errorf("failed to write attachment: %w", err)
	}

	s.logger.Debug("attachment blob saved",
		zap.String("key", key),
		zap.Int("size", len(content)))

	return key, nil
}

// Delete removes the object. A missing object is not an error.
func (s *AttachmentStore) Delete(key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete attachment: %w", err)
	}
	return nil
}

// Path resolves a key to the local file path for serving
func (s *AttachmentStore) Path(key string) (string, error) {
	return s.resolve(key)
}

// resolve joins the key onto the base directory and rejects anything that
// escapes it. Generated keys are flat names; any path structure in a key is
// hostile input.
func (s *AttachmentStore) resolve(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || filepath.IsAbs(key) {
		return "", fmt.Errorf("invalid storage key: %s", key)
	}

	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base path: %w", err)
	}

	absPath, err := filepath.Abs(filepath.Join(absBase, key))
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("key escapes storage directory: %s", key)
	}

	return absPath, nil
}

// safeExt extracts a plain extension from the display name, discarding
// anything suspicious
func safeExt(displayName string) string {
	ext := filepath.Ext(displayName)
	if extPattern.MatchString(ext) {
		return strings.ToLower(ext)
	}
	return ""
}

// Verify interface compliance
var _ port.BlobStorage = (*AttachmentStore)(nil)
