package service

import (
	"errors"
	"fmt"
)

// ErrStoreUnavailable means the durable store is down and one reconnect
// attempt already failed. Handlers map it to HTTP 503.
var ErrStoreUnavailable = errors.New("database unavailable")

// PartialUploadError means one of the two ECG artifact uploads failed. The
// successful sibling is not rolled back and no record is created; the stored
// object becomes an accepted orphan.
type PartialUploadError struct {
	Artifact string // "json" or "pdf"
	Err      error
}

func (e *PartialUploadError) Error() string {
	return fmt.Sprintf("failed to upload %s artifact: %v", e.Artifact, e.Err)
}

func (e *PartialUploadError) Unwrap() error { return e.Err }
