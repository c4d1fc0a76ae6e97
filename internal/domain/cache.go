package domain

import (
	"context"
	"time"
)

// OddsCache caches the current market odds view for cheap reads on the
// odds endpoint.
type OddsCache interface {
	Set(ctx context.Context, odds MarketOdds) error
	Get(ctx context.Context, marketID string) (MarketOdds, error)
	Invalidate(ctx context.Context, marketID string) error
}

// SignalBus is a lightweight publish/subscribe fabric for wheel events
// (phase changes, recorded turns, results, odds updates).
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// RateLimiter applies a sliding-window request limit per key.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides short-lived exclusive leases. Acquire returns an
// unlock function on success and ErrLockHeld when another holder owns the
// lease.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}
