package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	asmerrors "asmlsp/internal/errors"
	"asmlsp/internal/schema"
)

// FileStore keeps one <kind>.<key>.kb.zst file per store in a directory. The
// directory is created on first write.
type FileStore struct {
	dir    string
	logger *zap.Logger
}

// NewFileStore returns a store rooted at dir.
func NewFileStore(dir string, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{dir: dir, logger: logger}
}

// Dir returns the store directory.
func (s *FileStore) Dir() string { return s.dir }

// Path returns the file that holds key.
func (s *FileStore) Path(key schema.StoreKey) string {
	return filepath.Join(s.dir, key.FileName())
}

func (s *FileStore) Read(ctx context.Context, key schema.StoreKey) (*Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrStoreNotFound
	}
	if err != nil {
		return nil, asmerrors.NewStoreError(key.String(), "failed to read store file", err)
	}
	return Decode(data, key)
}

func (s *FileStore) Write(ctx context.Context, p *Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	// Write to a temp file and rename so readers never see a partial store.
	target := s.Path(p.StoreKey())
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close store: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to install store: %w", err)
	}

	s.logger.Debug("wrote store",
		zap.String("key", p.StoreKey().String()),
		zap.Int("records", p.Len()),
		zap.Int("bytes", len(data)))
	return nil
}

func (s *FileStore) Keys(ctx context.Context) ([]schema.StoreKey, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list stores: %w", err)
	}
	var keys []schema.StoreKey
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if k, ok := schema.ParseFileName(e.Name()); ok {
			keys = append(keys, k)
		}
	}
	sortKeys(keys)
	return keys, nil
}

func (s *FileStore) Close() error { return nil }
