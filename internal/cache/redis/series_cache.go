package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chainedmetrics/kpimarkets/internal/domain"
)

// SeriesCache implements domain.SeriesCache using Redis string values. Each
// market's computed price series is stored JSON-encoded at "series:{id}" with
// a TTL, so chart loads within the TTL skip the block-explorer round trip.
type SeriesCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSeriesCache creates a SeriesCache backed by the given Client.
func NewSeriesCache(c *Client, ttl time.Duration) *SeriesCache {
	return &SeriesCache{rdb: c.Underlying(), ttl: ttl}
}

func seriesKey(marketID int64) string {
	return "series:" + strconv.FormatInt(marketID, 10)
}

// GetSeries retrieves the cached price series for a market. It returns
// domain.ErrNotFound when no entry exists or the entry has expired.
func (sc *SeriesCache) GetSeries(ctx context.Context, marketID int64) ([]domain.PriceSample, error) {
	data, err := sc.rdb.Get(ctx, seriesKey(marketID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get series %d: %w", marketID, err)
	}

	var samples []domain.PriceSample
	if err := json.Unmarshal(data, &samples); err != nil {
		return nil, fmt.Errorf("redis: decode series %d: %w", marketID, err)
	}
	return samples, nil
}

// SetSeries stores the computed price series for a market with the cache TTL.
func (sc *SeriesCache) SetSeries(ctx context.Context, marketID int64, samples []domain.PriceSample) error {
	data, err := json.Marshal(samples)
	if err != nil {
		return fmt.Errorf("redis: encode series %d: %w", marketID, err)
	}
	if err := sc.rdb.Set(ctx, seriesKey(marketID), data, sc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set series %d: %w", marketID, err)
	}
	return nil
}

// Invalidate drops a market's cached series, forcing the next read to
// recompute from chain history.
func (sc *SeriesCache) Invalidate(ctx context.Context, marketID int64) error {
	if err := sc.rdb.Del(ctx, seriesKey(marketID)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate series %d: %w", marketID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.SeriesCache = (*SeriesCache)(nil)
