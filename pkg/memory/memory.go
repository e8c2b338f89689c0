// Package memory implements object.ObjectStorage in process memory.
// It backs the "memory" driver for local development and the gateway tests.
package memory

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"filegate/pkg/object"
)

type entry struct {
	meta object.Object
	data []byte
}

// Storage keeps objects in a map guarded by a RWMutex.
type Storage struct {
	mu      sync.RWMutex
	objects map[string]entry
}

// New returns an initialized, empty Storage.
func New() *Storage {
	return &Storage{objects: make(map[string]entry)}
}

// Init resets the storage. param is ignored.
func (s *Storage) Init(_ context.Context, _ any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects = make(map[string]entry)
	return nil
}

// Close is a no-op.
func (s *Storage) Close(_ context.Context) error {
	return nil
}

// Put reads r fully and replaces whatever is stored under key.
// Nothing is stored if reading fails or ctx is done.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, _ int64, contentType string) (object.Object, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return object.Object{}, fmt.Errorf("memory: read content: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return object.Object{}, err
	}

	sum := sha256.Sum256(data)
	meta := object.Object{
		Key:          key,
		Size:         int64(len(data)),
		ETag:         hex.EncodeToString(sum[:]),
		ContentType:  contentType,
		LastModified: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.objects == nil {
		return object.Object{}, errors.New("memory: storage not initialized")
	}
	s.objects[key] = entry{meta: meta, data: data}
	return meta, nil
}

// Get returns a reader over a private copy of the stored bytes.
func (s *Storage) Get(ctx context.Context, key string) (object.Object, io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return object.Object{}, nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.objects[key]
	if !ok {
		return object.Object{}, nil, object.ErrNotFound
	}
	return e.meta, io.NopCloser(bytes.NewReader(bytes.Clone(e.data))), nil
}

// Stat returns metadata only.
func (s *Storage) Stat(ctx context.Context, key string) (object.Object, error) {
	if err := ctx.Err(); err != nil {
		return object.Object{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.objects[key]
	if !ok {
		return object.Object{}, object.ErrNotFound
	}
	return e.meta, nil
}

// Delete removes key, reporting ErrNotFound when it was absent.
func (s *Storage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return object.ErrNotFound
	}
	delete(s.objects, key)
	return nil
}

// Len reports how many objects are stored.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

var _ object.ObjectStorage = (*Storage)(nil)
