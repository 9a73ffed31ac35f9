package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalStore archives bodies as files below a base directory.
type LocalStore struct {
	basePath string
}

// NewLocalStore creates a LocalStore at basePath, creating the directory
// if it does not exist.
func NewLocalStore(basePath string) (*LocalStore, error) {
	if basePath == "" {
		basePath = "data/webhooks"
	}
	if err := os.MkdirAll(basePath, 0o750); err != nil {
		return nil, fmt.Errorf("archive: create base directory: %w", err)
	}
	return &LocalStore{basePath: basePath}, nil
}

// Put writes data to basePath/key through a temp file and rename, so a
// reader never sees a partial body.
func (s *LocalStore) Put(_ context.Context, key string, data []byte) error {
	finalPath := filepath.Join(s.basePath, filepath.FromSlash(key))
	dir := filepath.Dir(finalPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("archive: create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("archive: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("archive: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("archive: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, finalPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("archive: rename temp file: %w", err)
	}
	return nil
}
