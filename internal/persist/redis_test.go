package persist

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/daisel10/kairos/internal/schema"
)

func TestRedisCacheLastTick(t *testing.T) {
	// CI exports KAIROS_TEST_REDIS_ADDR from a redis service
	// container, e.g. localhost:6379. Without it the test skips.
	addr := os.Getenv("KAIROS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("KAIROS_TEST_REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cache, err := NewRedisCache(ctx, addr)
	require.NoError(t, err)
	defer func() { require.NoError(t, cache.Close()) }()

	_, found, err := cache.LastTick(ctx, schema.ExchangeOKX, "NOPEUSDT")
	require.NoError(t, err)
	require.False(t, found)

	tick := schema.NewMarketTick("BTCUSDT",
		decimal.RequireFromString("43000.5"), decimal.RequireFromString("0.012"),
		schema.ExchangeOKX)
	require.NoError(t, cache.SetLastTick(ctx, tick))

	got, found, err := cache.LastTick(ctx, schema.ExchangeOKX, "BTCUSDT")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, tick.ID, got.ID)
	require.True(t, tick.Price.Equal(got.Price))
}
