// Package memory stores images in-memory for development and tests.
package memory

import (
	"context"
	"fmt"
	"os"
	"sync"
)

// ImageStore keeps image bytes keyed by file name and never replaces an
// existing entry.
type ImageStore struct {
	mu   sync.RWMutex
	data map[string][]byte
	err  error
}

// NewImageStore creates an empty in-memory image store.
func NewImageStore() *ImageStore {
	return &ImageStore{data: make(map[string][]byte)}
}

// FailWith makes subsequent writes return err. A nil err restores success.
func (s *ImageStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Put stores a copy of data under name and returns a pseudo URI. A name
// already present yields an error matching os.ErrExist.
func (s *ImageStore) Put(_ context.Context, name, _ string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	if _, ok := s.data[name]; ok {
		return "", fmt.Errorf("image %s: %w", name, os.ErrExist)
	}
	s.data[name] = append([]byte(nil), data...)
	return "memory://" + name, nil
}

// Get returns the bytes stored under name.
func (s *ImageStore) Get(name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[name]
	return data, ok
}

// Len reports how many images are stored.
func (s *ImageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
