package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"

	"github.com/daisel10/kairos/config"
	"github.com/daisel10/kairos/internal/bus"
	"github.com/daisel10/kairos/internal/feed"
)

// fakeStream serves scripted frames over a real websocket endpoint.
type fakeStream struct {
	frames   [][]byte
	dials    atomic.Int32
	closeErr bool
}

func (f *fakeStream) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		f.dials.Add(1)
		ctx := r.Context()
		for _, frame := range f.frames {
			if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
				return
			}
		}
		if f.closeErr {
			conn.CloseNow()
			return
		}
		conn.Close(websocket.StatusNormalClosure, "done")
	}
}

func wsURL(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func settingsFor(url string) config.ExchangeSettings {
	return config.ExchangeSettings{WebsocketURL: url, Symbols: []string{"btcusdt"}}
}

func goodFrame(price string) []byte {
	return []byte(`{"stream":"btcusdt@aggTrade","data":{"e":"aggTrade","s":"BTCUSDT","p":"` + price + `","q":"1","T":1}}`)
}

func TestMalformedFrameDoesNotCloseConnection(t *testing.T) {
	stream := &fakeStream{frames: [][]byte{
		goodFrame("100"),
		[]byte(`{"stream":"btcusdt@aggTrade","data":{"e":"aggTrade","s":"BTCUSDT","p":"not-a-number","q":"1","T":1}}`),
		goodFrame("101"),
	}}
	srv := httptest.NewServer(stream.handler())
	defer srv.Close()

	b := bus.NewMarketDataBus(bus.MarketDataConfig{BufferSize: 8})
	defer b.Close()
	_, ticks, err := b.Subscribe(context.Background())
	require.NoError(t, err)

	h := NewPublic(settingsFor(wsURL(t, srv)), b)
	require.False(t, h.Authenticated())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.ConnectAndStream(ctx))

	// Both well-formed frames made it through; the malformed one was skipped.
	first := <-ticks
	second := <-ticks
	require.Equal(t, "100", first.Price.String())
	require.Equal(t, "101", second.Price.String())
	select {
	case tk := <-ticks:
		t.Fatalf("unexpected extra tick %s", tk.Price)
	default:
	}
}

func TestCloseFrameReturnsNilAndRunnerReconnects(t *testing.T) {
	stream := &fakeStream{frames: [][]byte{goodFrame("100")}}
	srv := httptest.NewServer(stream.handler())
	defer srv.Close()

	b := bus.NewMarketDataBus(bus.MarketDataConfig{BufferSize: 8})
	defer b.Close()
	_, ticks, err := b.Subscribe(context.Background())
	require.NoError(t, err)

	h := NewPublic(settingsFor(wsURL(t, srv)), b)

	// A normal close ends the attempt cleanly.
	require.NoError(t, h.ConnectAndStream(context.Background()))

	// The runner treats a clean close like any disconnect: wait, reconnect.
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		feed.NewRunner(h, 20*time.Millisecond).Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return stream.dials.Load() >= 3
	}, 5*time.Second, 10*time.Millisecond, "runner did not reconnect")

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not honour cancellation")
	}

	// Ticks arrived across connections.
	select {
	case <-ticks:
	default:
		t.Fatal("no tick received")
	}
}

func TestDialFailureSurfacesRetryableError(t *testing.T) {
	b := bus.NewMarketDataBus(bus.MarketDataConfig{})
	defer b.Close()

	h := NewPublic(settingsFor("ws://127.0.0.1:1"), b)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.Error(t, h.ConnectAndStream(ctx))
}

func TestNewRequiresCredentials(t *testing.T) {
	b := bus.NewMarketDataBus(bus.MarketDataConfig{})
	defer b.Close()

	_, err := New(settingsFor("wss://example"), b)
	require.Error(t, err)

	settings := settingsFor("wss://example")
	settings.Credentials = config.Credentials{APIKey: "k", APISecret: "s"}
	h, err := New(settings, b)
	require.NoError(t, err)
	require.True(t, h.Authenticated())
}
