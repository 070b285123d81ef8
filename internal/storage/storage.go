// Package storage provides the object store the pipeline publishes to
// and downloads from, with a local-disk implementation and an S3
// implementation for published videos and stored uploads.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned by Get and Delete when no object exists
// under a key.
var ErrObjectNotFound = errors.New("object not found")

// Storage defines the object store consumed by the pipeline and the
// HTTP boundary.
type Storage interface {
	// Put stores an object under key and returns its public URL.
	Put(ctx context.Context, key string, data io.Reader, contentType string) (url string, err error)

	// Get retrieves an object by key. The caller closes the reader.
	// Returns ErrObjectNotFound when the key does not exist.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the object stored under key.
	Delete(ctx context.Context, key string) error
}
