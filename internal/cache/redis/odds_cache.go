package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/townwheel/internal/domain"
)

// oddsTTL bounds staleness if an invalidate is ever missed.
const oddsTTL = 5 * time.Minute

// OddsCache implements domain.OddsCache using Redis strings with
// JSON-serialized odds snapshots.
//
// Key schema:
//
//	odds:{marketID} - JSON MarketOdds
type OddsCache struct {
	rdb *redis.Client
}

// NewOddsCache creates an OddsCache backed by the given Client.
func NewOddsCache(c *Client) *OddsCache {
	return &OddsCache{rdb: c.Underlying()}
}

func oddsKey(marketID string) string {
	return "odds:" + marketID
}

// Set stores the odds snapshot for its market.
func (oc *OddsCache) Set(ctx context.Context, odds domain.MarketOdds) error {
	data, err := json.Marshal(odds)
	if err != nil {
		return fmt.Errorf("redis: marshal odds %s: %w", odds.MarketID, err)
	}
	if err := oc.rdb.Set(ctx, oddsKey(odds.MarketID), data, oddsTTL).Err(); err != nil {
		return fmt.Errorf("redis: set odds %s: %w", odds.MarketID, err)
	}
	return nil
}

// Get retrieves the cached odds for a market. It returns
// domain.ErrNotFound when no snapshot is cached.
func (oc *OddsCache) Get(ctx context.Context, marketID string) (domain.MarketOdds, error) {
	data, err := oc.rdb.Get(ctx, oddsKey(marketID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.MarketOdds{}, domain.ErrNotFound
		}
		return domain.MarketOdds{}, fmt.Errorf("redis: get odds %s: %w", marketID, err)
	}

	var odds domain.MarketOdds
	if err := json.Unmarshal(data, &odds); err != nil {
		return domain.MarketOdds{}, fmt.Errorf("redis: unmarshal odds %s: %w", marketID, err)
	}
	return odds, nil
}

// Invalidate drops the cached snapshot for a market.
func (oc *OddsCache) Invalidate(ctx context.Context, marketID string) error {
	if err := oc.rdb.Del(ctx, oddsKey(marketID)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate odds %s: %w", marketID, err)
	}
	return nil
}

var _ domain.OddsCache = (*OddsCache)(nil)
