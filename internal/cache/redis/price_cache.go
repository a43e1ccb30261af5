package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/outcomelab/marketd/internal/domain"
)

// PriceCache implements domain.PriceCache using Redis hashes. Each market's
// prices live at "marketd:price:{conditionID}" with fields "yes", "no" and
// "ts", expiring after the configured TTL so stale reads fall back to the
// gateway.
type PriceCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPriceCache creates a PriceCache backed by the given Client. Entries
// expire after ttl; zero means 30 seconds.
func NewPriceCache(c *Client, ttl time.Duration) *PriceCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &PriceCache{rdb: c.Underlying(), ttl: ttl}
}

func priceKey(conditionID string) string {
	return "marketd:price:" + conditionID
}

// SetPrices stores the latest prices for a market.
func (pc *PriceCache) SetPrices(ctx context.Context, conditionID string, prices domain.MarketPrices) error {
	key := priceKey(conditionID)
	fields := map[string]interface{}{
		"yes": strconv.FormatFloat(prices.YesPricePercent, 'f', -1, 64),
		"no":  strconv.FormatFloat(prices.NoPricePercent, 'f', -1, 64),
		"ts":  strconv.FormatInt(time.Now().UnixNano(), 10),
	}

	pipe := pc.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, pc.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set prices %s: %w", conditionID, err)
	}
	return nil
}

// GetPrices retrieves cached prices for a market. It returns
// domain.ErrNotFound when the entry is missing or expired.
func (pc *PriceCache) GetPrices(ctx context.Context, conditionID string) (domain.MarketPrices, error) {
	vals, err := pc.rdb.HGetAll(ctx, priceKey(conditionID)).Result()
	if err != nil {
		return domain.MarketPrices{}, fmt.Errorf("redis: get prices %s: %w", conditionID, err)
	}
	if len(vals) == 0 {
		return domain.MarketPrices{}, domain.ErrNotFound
	}

	yes, err := strconv.ParseFloat(vals["yes"], 64)
	if err != nil {
		return domain.MarketPrices{}, fmt.Errorf("redis: parse yes price %s: %w", conditionID, err)
	}
	no, err := strconv.ParseFloat(vals["no"], 64)
	if err != nil {
		return domain.MarketPrices{}, fmt.Errorf("redis: parse no price %s: %w", conditionID, err)
	}

	return domain.MarketPrices{YesPricePercent: yes, NoPricePercent: no}, nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
