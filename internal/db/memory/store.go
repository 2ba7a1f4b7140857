// Package memory implements the key-value store contract in process with
// LRU eviction. Used when no Redis is configured: the embedding cache then
// lives for the duration of one run.
package memory

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kailas-cloud/rankfuse/internal/db"
)

// DefaultSize is the entry cap when none is configured.
const DefaultSize = 10000

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Store is an in-process LRU key-value store.
type Store struct {
	cache *lru.Cache[string, []byte]
}

// NewStore creates a memory store. size <= 0 falls back to DefaultSize.
func NewStore(size int) (*Store, error) {
	if size <= 0 {
		size = DefaultSize
	}
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &Store{cache: cache}, nil
}

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close purges the cache.
func (s *Store) Close() { s.cache.Purge() }

// WaitForReady returns immediately.
func (s *Store) WaitForReady(_ context.Context, _ time.Duration) error { return nil }

// Get retrieves a value by key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	if v, ok := s.cache.Get(key); ok {
		return v, nil
	}
	return nil, db.ErrKeyNotFound
}

// Set stores a value at the given key.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.cache.Add(key, value)
	return nil
}

// SetWithTTL stores a value; the memory store relies on LRU eviction
// instead of expiry.
func (s *Store) SetWithTTL(ctx context.Context, key string, value []byte, _ time.Duration) error {
	return s.Set(ctx, key, value)
}
