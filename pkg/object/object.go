// Package object contains the object storage contract the gateway talks to.
// Implementations live in sibling packages (s3store, miniostore, sqlite, memory).
package object

import (
	"context"
	"errors"
	"io"
	"time"
)

// Object holds metadata about a stored item.
type Object struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
}

// ErrNotFound is returned by implementations when the key does not exist.
var ErrNotFound = errors.New("object not found")

// Lifecycle defines init/teardown behavior.
type Lifecycle interface {
	Init(ctx context.Context, param any) error
	Close(ctx context.Context) error
}

// Reader exposes read-related operations.
type Reader interface {
	// Get returns object metadata and a stream the caller must close.
	Get(ctx context.Context, key string) (Object, io.ReadCloser, error)
	// Stat returns metadata without streaming the body.
	Stat(ctx context.Context, key string) (Object, error)
}

// Writer exposes write-related operations.
type Writer interface {
	// Put stores the whole of r under key, replacing any previous object.
	// size is -1 when unknown.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (Object, error)
}

// Deleter exposes delete behavior.
type Deleter interface {
	Delete(ctx context.Context, key string) error
}

// ObjectStorage aggregates the full contract for object backends.
// All calls address the single namespace chosen at Init.
type ObjectStorage interface {
	Lifecycle
	Reader
	Writer
	Deleter
}
