package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when the URL map does not exist in the store
var ErrNotFound = errors.New("url map not found")

// Store loads and saves the raw bytes of a URL map document
type Store interface {
	// Load reads the whole document
	Load(ctx context.Context) ([]byte, error)
	// Save replaces the whole document
	Save(ctx context.Context, data []byte) error
	// String describes where the document lives, for logging
	String() string
}
