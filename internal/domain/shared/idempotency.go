package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers processed event ids so redelivered events are dropped
type IdempotencyStore interface {
	// MarkProcessed returns true if the id was newly marked, false if already seen
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)

	// IsProcessed checks if an event has already been processed
	IsProcessed(ctx context.Context, eventID string) (bool, error)

	// Unmark forgets an id so a failed delivery can be retried
	Unmark(ctx context.Context, eventID string) error

	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	TTL     time.Duration
	Enabled bool
}

// DefaultIdempotencyConfig keeps processed ids for a day
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
