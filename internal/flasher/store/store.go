// Package store provides access to the remote firmware store holding the
// manifest and the image archives.
package store

import (
	"context"
	"io"
)

// Store fetches objects from the firmware store.
type Store interface {
	// Fetch opens the named object for reading. The returned size is -1
	// when unknown. The caller must close the reader.
	Fetch(ctx context.Context, key string) (io.ReadCloser, int64, error)

	// Check verifies the store is reachable and the firmware bucket
	// exists; used by the capability check at startup.
	Check(ctx context.Context) error
}
