package testutil

import (
	"context"
	"io"
	"sync"

	"academic-vault/internal/av"
	"academic-vault/internal/storage"
)

// NewTestStore creates a new in-memory object store for testing.
func NewTestStore() *storage.MemoryStore {
	return storage.NewMemoryStore()
}

// SpyStore wraps an ObjectStore, counting calls and allowing failures to be
// injected. Hooks must be set before the store is shared between goroutines.
type SpyStore struct {
	av.ObjectStore

	BeforePut    func(key string) error
	BeforeDelete func(keys []string) error

	mu      sync.Mutex
	puts    int
	deleted []string
}

var _ av.ObjectStore = (*SpyStore)(nil)

// NewSpyStore wraps inner.
func NewSpyStore(inner av.ObjectStore) *SpyStore {
	return &SpyStore{ObjectStore: inner}
}

func (s *SpyStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	s.mu.Lock()
	s.puts++
	s.mu.Unlock()
	if s.BeforePut != nil {
		if err := s.BeforePut(key); err != nil {
			return err
		}
	}
	return s.ObjectStore.Put(ctx, key, r, size, contentType)
}

func (s *SpyStore) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	s.deleted = append(s.deleted, keys...)
	s.mu.Unlock()
	if s.BeforeDelete != nil {
		if err := s.BeforeDelete(keys); err != nil {
			return err
		}
	}
	return s.ObjectStore.Delete(ctx, keys...)
}

// Puts returns the number of Put calls.
func (s *SpyStore) Puts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts
}

// Deleted returns every key passed to Delete.
func (s *SpyStore) Deleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}
