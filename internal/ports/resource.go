package ports

import (
	"context"
	"io"
)

// ResourceSource enumerates and opens mapping resources. It may be backed by a
// directory tree, an archive, an embedded filesystem or an object store.
type ResourceSource interface {
	// Enumerate returns every resource identifier reachable from root.
	// Identifiers are slash separated and relative to the source.
	Enumerate(ctx context.Context, root string) ([]string, error)

	Open(ctx context.Context, id string) (io.ReadCloser, error)
}
