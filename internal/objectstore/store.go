// Package objectstore provides bucket-scoped object storage and the run
// summary archive built on it.
package objectstore

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when an object or bucket does not exist
var ErrNotFound = errors.New("object not found")

// Object describes a stored object
type Object struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// Store is the object storage contract. Every operation is scoped to a bucket.
type Store interface {
	// List returns the objects under prefix, recursively
	List(ctx context.Context, bucket, prefix string) ([]Object, error)
	// Upload writes size bytes from r to key, replacing any existing object
	Upload(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error
	// PublicURL returns the unauthenticated URL of key
	PublicURL(bucket, key string) string
	// Remove deletes the given keys. Missing keys are not an error.
	Remove(ctx context.Context, bucket string, keys ...string) error
}
