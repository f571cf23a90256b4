package object

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a path has no stored object.
var ErrNotFound = errors.New("object not found")

// Store is the blob contract for original, signed and audit PDFs.
// Paths are slash separated and relative to the store root.
type Store interface {
	Exists(ctx context.Context, path string) (bool, error)
	Get(ctx context.Context, path string) ([]byte, error)
	Put(ctx context.Context, path string, data []byte) error
	// Delete is idempotent; deleting a missing path is not an error.
	Delete(ctx context.Context, path string) error
	Copy(ctx context.Context, src, dst string) error
	// MakeDirectory is a no-op when the directory already exists.
	MakeDirectory(ctx context.Context, path string) error
	PublicURL(path string) string
}
