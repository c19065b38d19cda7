package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalSource reads uploads from a directory on the worker's disk.
type LocalSource struct {
	root    string
	maxSize int64
}

func NewLocalSource(root string, maxSize int64) *LocalSource {
	return &LocalSource{root: root, maxSize: maxSize}
}

func (s *LocalSource) Name() string {
	return "local"
}

// Resolve maps a storage key to a path under the root directory.
func (s *LocalSource) Resolve(storageKey string) (string, error) {
	key := strings.TrimSpace(storageKey)
	if key == "" {
		return "", fmt.Errorf("%w: empty key", ErrInvalidKey)
	}

	root, err := filepath.Abs(s.root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve storage root: %w", err)
	}
	path := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(key, "/")))
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes storage root", ErrInvalidKey, storageKey)
	}
	return path, nil
}

func (s *LocalSource) Fetch(ctx context.Context, storageKey string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := s.Resolve(storageKey)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrSourceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat source file: %w", err)
	}
	if stat.IsDir() {
		return nil, ErrSourceNotFound
	}
	if s.maxSize > 0 && stat.Size() > s.maxSize {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, stat.Size(), s.maxSize)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source file: %w", err)
	}
	return content, nil
}
