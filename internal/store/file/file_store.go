package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/moonkev/urlmapedit/internal/store"
)

type Config struct {
	Path string
}

// Store keeps the URL map in a local YAML file. Saves rewrite the file in place.
type Store struct {
	path string
}

func NewStore(config Config) (*Store, error) {
	if config.Path == "" {
		return nil, errors.New("file store requires a path")
	}
	return &Store{path: config.Path}, nil
}

func (s *Store) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", store.ErrNotFound, s.path)
		}
		return nil, fmt.Errorf("failed to read url map: %w", err)
	}
	slog.Debug("Loaded url map from file", "path", s.path, "bytes", len(data))
	return data, nil
}

func (s *Store) Save(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mode := fs.FileMode(0o644)
	if info, err := os.Stat(s.path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(s.path, data, mode); err != nil {
		return fmt.Errorf("failed to write url map: %w", err)
	}
	slog.Debug("Wrote url map to file", "path", s.path, "bytes", len(data))
	return nil
}

func (s *Store) String() string {
	return "file:" + s.path
}
