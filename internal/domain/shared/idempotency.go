package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers processed delivery IDs (webhook deliveries,
// integration calls) so that at-least-once delivery does not repeat work
type IdempotencyStore interface {
	// MarkProcessed marks a delivery as processed with a TTL
	// Returns true if the delivery was newly marked, false if it was already processed
	MarkProcessed(ctx context.Context, deliveryID string, ttl time.Duration) (bool, error)

	// IsProcessed checks if a delivery has already been processed
	IsProcessed(ctx context.Context, deliveryID string) (bool, error)

	// Release forgets a delivery so that a redelivery is processed again.
	// Used when processing failed after the delivery was marked.
	Release(ctx context.Context, deliveryID string) error

	// Close closes the store and releases resources
	Close() error
}
