package objectstore

import (
	"context"
	"time"
)

// PutInput is one object to store.
type PutInput struct {
	Key         string
	Body        []byte
	ContentType string
	Metadata    map[string]string
}

// PutResult references the stored object.
type PutResult struct {
	Key       string
	URL       string
	Bucket    string
	SizeBytes int64
}

// Store is the artifact object store. Implementations must be safe for
// concurrent use; the ECG path uploads both artifacts of a reading in
// parallel.
type Store interface {
	Put(ctx context.Context, in PutInput) (*PutResult, error)

	// SignedURL issues a time-limited read URL for an existing object.
	SignedURL(key string, expires time.Duration) (string, error)
}
