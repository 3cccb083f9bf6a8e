package exec

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daisel10/kairos/config"
	"github.com/daisel10/kairos/errs"
	"github.com/daisel10/kairos/internal/schema"
)

// Reference vector from the spot API documentation.
func TestSignPayloadKnownVector(t *testing.T) {
	secret := "NhqPtmdSJYdKjVHjA7PZj4Mge3R5YNiP1e3UZjInClVN65XAbvqqM6A7H5fATj0j"
	payload := "symbol=LTCBTC&side=BUY&type=LIMIT&timeInForce=GTC&quantity=1&price=0.1&recvWindow=5000&timestamp=1499827319559"

	got := signPayload(payload, secret)
	require.Equal(t, "c8db56825ae71d6d79447849e617115f4a920fa2acdcab2b053c4b2838bd6b71", got)
}

func TestNewBinanceVenueRequiresCredentials(t *testing.T) {
	_, err := NewBinanceVenue(config.Credentials{})
	require.Error(t, err)
	require.Equal(t, errs.CanonicalCredentialsMissing, errs.CanonicalOf(err))
}

func TestPlaceOrderSignsAndParsesAck(t *testing.T) {
	var captured url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v3/order", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("X-MBX-APIKEY"))
		require.NoError(t, r.ParseForm())
		captured = r.PostForm
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","orderId":4207,"clientOrderId":"x","status":"FILLED","executedQty":"0.001","transactTime":1718000000123}`))
	}))
	defer srv.Close()

	fixed := time.UnixMilli(1718000000000).UTC()
	venue, err := NewBinanceVenue(
		config.Credentials{APIKey: "test-key", APISecret: "test-secret"},
		WithBaseURL(srv.URL),
		WithClock(func() time.Time { return fixed }),
	)
	require.NoError(t, err)

	price := decimal.RequireFromString("43000.5")
	order := schema.NewInternalOrder("btcusdt", schema.SideBuy,
		decimal.RequireFromString("0.001"), &price, decimal.RequireFromString("0.5"))

	venueID, err := venue.PlaceOrder(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, "4207", venueID)

	assert.Equal(t, "BTCUSDT", captured.Get("symbol"))
	assert.Equal(t, "BUY", captured.Get("side"))
	assert.Equal(t, "LIMIT", captured.Get("type"))
	assert.Equal(t, "43000.5", captured.Get("price"))
	assert.Equal(t, "GTC", captured.Get("timeInForce"))
	assert.Equal(t, "1718000000000", captured.Get("timestamp"))
	assert.Equal(t, order.ID.String(), captured.Get("newClientOrderId"))

	unsigned := url.Values{}
	for k, vs := range captured {
		if k == "signature" {
			continue
		}
		unsigned[k] = vs
	}
	assert.Equal(t, signPayload(unsigned.Encode(), "test-secret"), captured.Get("signature"))
}

func TestPlaceOrderMarketOmitsPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "MARKET", r.PostForm.Get("type"))
		assert.Empty(t, r.PostForm.Get("price"))
		assert.Empty(t, r.PostForm.Get("timeInForce"))
		_, _ = w.Write([]byte(`{"orderId":1}`))
	}))
	defer srv.Close()

	venue, err := NewBinanceVenue(
		config.Credentials{APIKey: "k", APISecret: "s"},
		WithBaseURL(srv.URL),
	)
	require.NoError(t, err)

	order := schema.NewInternalOrder("ETHUSDT", schema.SideSell,
		decimal.RequireFromString("0.25"), nil, decimal.Zero)
	_, err = venue.PlaceOrder(context.Background(), order)
	require.NoError(t, err)
}

func TestPlaceOrderSurfacesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-2010,"msg":"Account has insufficient balance"}`))
	}))
	defer srv.Close()

	venue, err := NewBinanceVenue(
		config.Credentials{APIKey: "k", APISecret: "s"},
		WithBaseURL(srv.URL),
	)
	require.NoError(t, err)

	order := schema.NewInternalOrder("BTCUSDT", schema.SideBuy,
		decimal.RequireFromString("1"), nil, decimal.Zero)
	_, err = venue.PlaceOrder(context.Background(), order)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient balance")
}

func TestNoopVenueEchoesOrderID(t *testing.T) {
	order := schema.NewInternalOrder("BTCUSDT", schema.SideBuy,
		decimal.RequireFromString("1"), nil, decimal.Zero)
	id, err := Noop{}.PlaceOrder(context.Background(), order)
	require.NoError(t, err)
	require.Equal(t, order.ID.String(), id)
}
