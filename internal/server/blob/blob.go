// Package blob abstracts the remote object store that holds encrypted
// envelopes. The pipelines and the reaper only ever see this interface; the
// S3 implementation is one provider among possible others.
package blob

import "context"

// Backend stores opaque byte payloads under backend-assigned locations.
//
// Implementations must support concurrent independent object operations and
// must make Delete idempotent: deleting a location that no longer exists is
// reported as common.ErrNotFoundOnBackend, which callers treat as success.
type Backend interface {
	// Put persists data and returns an opaque location handle for it.
	// Fails with common.ErrBackendUnavailable when the store is unreachable.
	Put(ctx context.Context, data []byte) (string, error)

	// Get fetches the payload stored at location. Fails with
	// common.ErrNotFoundOnBackend when no such object exists.
	Get(ctx context.Context, location string) ([]byte, error)

	// Delete removes the object at location, if present.
	Delete(ctx context.Context, location string) error
}
