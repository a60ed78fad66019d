package storage

import (
	"context"
	"io"
)

// Storage holds the canonical and derived image files.
type Storage interface {
	// Save stores a file at the given path
	Save(ctx context.Context, path string, file io.Reader) error

	// Delete removes a file at the given path; a missing file is not an error
	Delete(ctx context.Context, path string) error

	// Exists reports whether a complete file is present at the given path
	Exists(ctx context.Context, path string) (bool, error)
}

// Publisher copies a local file to a remote store and returns a URL that
// grants temporary read access to it.
type Publisher interface {
	Publish(ctx context.Context, key, localPath, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}
