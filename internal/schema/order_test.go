package schema

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestInternalOrderValue(t *testing.T) {
	price := decimal.NewFromFloat(9000)
	limit := NewInternalOrder("btcusdt", SideBuy, decimal.NewFromInt(2), &price, decimal.Zero)
	require.True(t, limit.Value().Equal(decimal.NewFromInt(18000)))
	require.Equal(t, OrderTypeLimit, limit.Type())
	require.Equal(t, "BTCUSDT", limit.Symbol)

	market := NewInternalOrder("ETHUSDT", SideSell, decimal.NewFromInt(1), nil, decimal.Zero)
	require.True(t, market.Value().IsZero())
	require.Equal(t, OrderTypeMarket, market.Type())
}

func TestInternalOrderValidate(t *testing.T) {
	price := decimal.NewFromInt(100)
	cases := []struct {
		name  string
		order InternalOrder
		ok    bool
	}{
		{"valid limit", NewInternalOrder("BTCUSDT", SideBuy, decimal.NewFromInt(1), &price, decimal.Zero), true},
		{"valid market", NewInternalOrder("BTCUSDT", SideSell, decimal.NewFromInt(1), nil, decimal.NewFromFloat(0.5)), true},
		{"empty symbol", NewInternalOrder("  ", SideBuy, decimal.NewFromInt(1), nil, decimal.Zero), false},
		{"bad side", InternalOrder{Symbol: "BTCUSDT", Side: "hold", Quantity: decimal.NewFromInt(1)}, false},
		{"zero quantity", NewInternalOrder("BTCUSDT", SideBuy, decimal.Zero, nil, decimal.Zero), false},
		{"negative risk", NewInternalOrder("BTCUSDT", SideBuy, decimal.NewFromInt(1), nil, decimal.NewFromInt(-1)), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.order.Validate()
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestMarketTickValidate(t *testing.T) {
	tick := NewMarketTick("btcusdt", decimal.NewFromFloat(43250.5), decimal.NewFromFloat(0.25), ExchangeBinance)
	require.NoError(t, tick.Validate())
	require.Equal(t, "BTCUSDT", tick.Symbol)
	require.False(t, tick.Timestamp.IsZero())

	bad := tick
	bad.Price = decimal.Zero
	require.Error(t, bad.Validate())

	unknown := tick
	unknown.Exchange = Exchange("nyse")
	require.Error(t, unknown.Validate())
}
