package storage

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"

	"github.com/z316data/salespipe/internal/pipeline"
)

// MemoryStore is an in-process ObjectStore used by tests and local
// runs. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	bucket  string
	objects map[string]memObject
}

type memObject struct {
	data     []byte
	metadata map[string]string
}

func NewMemoryStore(bucket string) *MemoryStore {
	return &MemoryStore{
		bucket:  bucket,
		objects: make(map[string]memObject),
	}
}

func (s *MemoryStore) Bucket() string { return s.bucket }

func (s *MemoryStore) CreateIfAbsent(ctx context.Context, key string, data []byte, metadata map[string]string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.objects[key]; exists {
		return false, nil
	}
	s.objects[key] = memObject{
		data:     append([]byte(nil), data...),
		metadata: maps.Clone(metadata),
	}
	return true, nil
}

func (s *MemoryStore) Put(ctx context.Context, key string, data []byte, metadata map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects[key] = memObject{
		data:     append([]byte(nil), data...),
		metadata: maps.Clone(metadata),
	}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, pipeline.ErrNotFound)
	}
	return append([]byte(nil), obj.data...), nil
}

func (s *MemoryStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for key := range s.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Metadata returns the metadata stored with key, for test assertions.
func (s *MemoryStore) Metadata(key string) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.objects[key].metadata)
}

// Len returns the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

func (s *MemoryStore) Close() error { return nil }
