// Package remote provides the append-only remote publish capability.
package remote

import "context"

// Snapshot is the immutable set of publishable fields sent to the remote
// store for one reference.
type Snapshot struct {
	LocalID     int64  `json:"local_id"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	ImageURI    string `json:"image_uri,omitempty"`
	PublishedAt int64  `json:"published_at"`
}

// Store is the remote authoritative store. It is append-only from this
// system's perspective: references are only ever created, never overwritten.
type Store interface {
	// AllocateReference returns a fresh unique reference. The remote store
	// is responsible for uniqueness; callers treat it as an opaque token.
	AllocateReference(ctx context.Context) (string, error)

	// Publish stores the snapshot under the given reference.
	Publish(ctx context.Context, ref string, snap Snapshot) error
}
