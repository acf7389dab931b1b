package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Store persists the bearer token between runs.
type Store interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// FileStore keeps the token in a single file, created 0600.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() (string, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load token: %w", err)
	}

	return strings.TrimSpace(string(raw)), nil
}

func (s *FileStore) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("save token: %w", err)
	}

	if err := os.WriteFile(s.path, []byte(token), 0o600); err != nil {
		return fmt.Errorf("save token: %w", err)
	}

	return nil
}

func (s *FileStore) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear token: %w", err)
	}

	return nil
}
