package service

import (
	"context"
	"fmt"
)

// Pinger reports durable-store connectivity. *sql.DB satisfies it; memory
// repositories pass nil and skip the reconnect dance.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// withReconnect runs op and, if it fails, makes exactly one reconnect
// attempt (a ping re-establishes a pooled connection) before retrying op
// once. A failed ping maps to ErrStoreUnavailable; a second op failure
// surfaces as-is. No backoff loop by design.
func withReconnect(ctx context.Context, health Pinger, op func() error) error {
	err := op()
	if err == nil {
		return nil
	}
	if health == nil {
		return err
	}
	if pingErr := health.PingContext(ctx); pingErr != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, pingErr)
	}
	return op()
}
