package storage

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// AttachmentStore persists task attachments on local disk under a base
// directory. Stored paths are opaque references kept on the task row.
type AttachmentStore struct {
	baseDir string
}

// NewAttachmentStore creates the store, ensuring the base directory exists.
func NewAttachmentStore(baseDir string) (*AttachmentStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &AttachmentStore{baseDir: baseDir}, nil
}

// Save writes an uploaded file under a fresh name and returns its stored path.
func (s *AttachmentStore) Save(header *multipart.FileHeader) (string, error) {
	src, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	name := uuid.New().String() + filepath.Ext(header.Filename)
	path := filepath.Join(s.baseDir, name)

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create attachment file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write attachment: %w", err)
	}
	return path, nil
}

// Remove deletes a stored attachment. Missing files are not an error.
func (s *AttachmentStore) Remove(path string) {
	if path == "" {
		return
	}
	_ = os.Remove(path)
}
