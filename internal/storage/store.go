// Package storage persists normalized documentation as one compressed store
// per (document kind, architecture or assembler). Stores live either as files
// in a directory or as rows of a single sqlite bundle.
package storage

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"

	"asmlsp/internal/schema"
)

// ErrStoreNotFound is returned by Read when no store exists for the key. An
// absent store is not a failure; the knowledge base simply has no records.
var ErrStoreNotFound = errors.New("store not found")

// Store reads and writes serialized stores.
type Store interface {
	// Read loads and validates the store for key. It returns ErrStoreNotFound
	// when the store is absent and a StoreError when it cannot be decoded.
	Read(ctx context.Context, key schema.StoreKey) (*Payload, error)
	// Write encodes p and replaces any existing store with the same key.
	Write(ctx context.Context, p *Payload) error
	// Keys lists every store present, in canonical key order.
	Keys(ctx context.Context) ([]schema.StoreKey, error)
	Close() error
}

// IsBundlePath reports whether path names a sqlite bundle rather than a
// store directory.
func IsBundlePath(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".db") || strings.HasSuffix(lower, ".sqlite")
}

// Open opens the store at path, choosing the backend by extension.
func Open(path string, logger *zap.Logger) (Store, error) {
	if IsBundlePath(path) {
		return OpenBundle(path, logger)
	}
	return NewFileStore(path, logger), nil
}

func sortKeys(keys []schema.StoreKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}
