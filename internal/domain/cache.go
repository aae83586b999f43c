package domain

import (
	"context"
	"time"
)

// SeriesCache caches a market's computed price series so repeated chart loads
// do not re-fetch the full transfer history from the block explorer.
type SeriesCache interface {
	GetSeries(ctx context.Context, marketID int64) ([]PriceSample, error)
	SetSeries(ctx context.Context, marketID int64, samples []PriceSample) error
	Invalidate(ctx context.Context, marketID int64) error
}

// SignalBus is a lightweight pub/sub fabric used to fan out refresh and
// payout events to WebSocket clients.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	// Allow reports whether a request for key is permitted under the given
	// limit per window, counting the request when it is.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
