// Package storage resolves File storage keys to raw bytes.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrSourceNotFound means the storage key points at nothing (not uploaded yet, deleted).
	ErrSourceNotFound = errors.New("source file not found")
	// ErrTooLarge means the object exceeds the configured in-memory limit.
	ErrTooLarge = errors.New("source file too large")
	// ErrInvalidKey is returned for keys that escape the storage root.
	ErrInvalidKey = errors.New("invalid storage key")
)

// Source fetches the bytes behind a storage key.
type Source interface {
	Fetch(ctx context.Context, storageKey string) ([]byte, error)
	Name() string
}
