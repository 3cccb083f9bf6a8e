package persist

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/daisel10/kairos/internal/schema"
)

const (
	tickKeyPrefix  = "tick:last:"
	tickPubChannel = "market_ticks"
	tickTTL        = 5 * time.Minute
)

// RedisCache keeps the most recent tick per venue and symbol and fans ticks
// out on a pub/sub channel for external consumers.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache dials the cache and verifies connectivity.
func NewRedisCache(ctx context.Context, addr string) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisCache{client: client}, nil
}

// SetLastTick stores the tick under its venue/symbol key and publishes it.
func (c *RedisCache) SetLastTick(ctx context.Context, tick schema.MarketTick) error {
	payload, err := json.Marshal(tick)
	if err != nil {
		return fmt.Errorf("encode tick %s: %w", tick.ID, err)
	}
	key := tickKey(tick.Exchange, tick.Symbol)
	pipe := c.client.Pipeline()
	pipe.Set(ctx, key, payload, tickTTL)
	pipe.Publish(ctx, tickPubChannel, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache tick %s: %w", tick.ID, err)
	}
	return nil
}

// LastTick loads the cached tick for one venue/symbol pair. A cache miss
// returns found=false with no error.
func (c *RedisCache) LastTick(ctx context.Context, exchange schema.Exchange, symbol string) (schema.MarketTick, bool, error) {
	raw, err := c.client.Get(ctx, tickKey(exchange, symbol)).Bytes()
	if err == redis.Nil {
		return schema.MarketTick{}, false, nil
	}
	if err != nil {
		return schema.MarketTick{}, false, fmt.Errorf("load cached tick: %w", err)
	}
	var tick schema.MarketTick
	if err := json.Unmarshal(raw, &tick); err != nil {
		return schema.MarketTick{}, false, fmt.Errorf("decode cached tick: %w", err)
	}
	return tick, true, nil
}

// Close releases the redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func tickKey(exchange schema.Exchange, symbol string) string {
	return tickKeyPrefix + string(exchange) + ":" + symbol
}
