package assets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// LocalStore keeps payloads as files in one directory. The reference is the key.
type LocalStore struct {
	dir    string
	logger *slog.Logger
}

var _ Store = (*LocalStore)(nil)

// NewLocalStore creates the directory if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: asset directory is required", ErrInvalidKey)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating asset directory: %w", err)
	}
	return &LocalStore{
		dir:    dir,
		logger: slog.Default().With("component", "asset-store", "kind", "local"),
	}, nil
}

// Put writes data atomically through a temp file and rename.
func (s *LocalStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if !validKey(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(s.dir, ".put-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, key)); err != nil {
		return "", err
	}

	s.logger.Debug("stored asset", "key", key, "bytes", len(data), "content_type", contentType)
	return key, nil
}

// Get reads a stored payload.
func (s *LocalStore) Get(ctx context.Context, ref string) ([]byte, error) {
	if !validKey(ref) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, ref)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, ref))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, ref)
	}
	return data, err
}

// Exists reports whether ref names a stored file.
func (s *LocalStore) Exists(ctx context.Context, ref string) (bool, error) {
	if !validKey(ref) {
		return false, fmt.Errorf("%w: %q", ErrInvalidKey, ref)
	}
	_, err := os.Stat(filepath.Join(s.dir, ref))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}
