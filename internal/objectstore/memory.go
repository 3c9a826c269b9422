package objectstore

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps objects in memory. Used when the service runs without
// storage credentials (local dev) and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	bucket  string
	objects map[string]PutInput
}

func NewMemoryStore(bucket string) *MemoryStore {
	return &MemoryStore{bucket: bucket, objects: map[string]PutInput{}}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Put(_ context.Context, in PutInput) (*PutResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects[in.Key] = in
	return &PutResult{
		Key:       in.Key,
		URL:       fmt.Sprintf("memory://%s/%s", s.bucket, in.Key),
		Bucket:    s.bucket,
		SizeBytes: int64(len(in.Body)),
	}, nil
}

func (s *MemoryStore) SignedURL(key string, expires time.Duration) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.objects[key]; !ok {
		return "", fmt.Errorf("object not found: %s", key)
	}
	return fmt.Sprintf("memory://%s/%s?expires=%d", s.bucket, key, int64(expires.Seconds())), nil
}

// Object returns a stored object for test assertions.
func (s *MemoryStore) Object(key string) (PutInput, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	in, ok := s.objects[key]
	return in, ok
}

// Len reports how many objects are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
