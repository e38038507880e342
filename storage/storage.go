package storage

import (
	"context"
	"io"
)

// Storage is the filesystem abstraction every source and target adapter
// reads and writes metadata through. Write is always atomic: a caller
// never observes a partially-written file at filepath, whether the
// implementation is a local rename-into-place or a single object PUT.
type Storage interface {
	Write(ctx context.Context, filepath string, data io.Reader) error
	Read(ctx context.Context, filepath string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Exists(ctx context.Context, filepath string) (bool, error)
	Delete(ctx context.Context, filepath string) error
}
