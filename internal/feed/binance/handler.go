// Package binance implements the Binance market-data feed handler.
package binance

import (
	"context"

	"github.com/coder/websocket"

	"github.com/daisel10/kairos/config"
	"github.com/daisel10/kairos/errs"
	"github.com/daisel10/kairos/internal/bus"
	"github.com/daisel10/kairos/internal/feed"
	"github.com/daisel10/kairos/internal/observability"
)

// Handler owns one Binance websocket connection and publishes every parsed
// trade to the market-data bus.
type Handler struct {
	url     string
	symbols []string
	creds   config.Credentials
	bus     *bus.MarketDataBus
}

// New builds a credential-bearing handler for private and business channels.
// Missing credentials are a construction-time failure: the handler must not
// start half-configured.
func New(settings config.ExchangeSettings, b *bus.MarketDataBus) (*Handler, error) {
	if !settings.Credentials.Configured() {
		return nil, errs.New("feed/binance", errs.CodeAuth,
			errs.WithVenue("binance"),
			errs.WithCanonicalCode(errs.CanonicalCredentialsMissing),
			errs.WithMessage("BINANCE_API_KEY and BINANCE_API_SECRET must be set"))
	}
	h := newHandler(settings, b)
	h.creds = settings.Credentials
	observability.Log().Info("binance feed handler initialised with credentials",
		observability.F("symbols", len(h.symbols)))
	return h, nil
}

// NewPublic builds a handler restricted to public trade streams; no
// credentials are required.
func NewPublic(settings config.ExchangeSettings, b *bus.MarketDataBus) *Handler {
	h := newHandler(settings, b)
	observability.Log().Info("binance feed handler initialised in public mode",
		observability.F("symbols", len(h.symbols)))
	return h
}

func newHandler(settings config.ExchangeSettings, b *bus.MarketDataBus) *Handler {
	symbols := settings.Symbols
	if len(symbols) == 0 {
		symbols = []string{"btcusdt", "ethusdt"}
	}
	return &Handler{
		url:     settings.WebsocketURL,
		symbols: symbols,
		bus:     b,
	}
}

// Name implements feed.Venue.
func (h *Handler) Name() string { return "binance" }

// ConnectAndStream dials the combined trade stream and consumes it until the
// connection fails or the venue closes it. Malformed frames are logged and
// skipped without ending the connection; a normal close returns nil so the
// outer loop reconnects.
func (h *Handler) ConnectAndStream(ctx context.Context) error {
	target := streamURL(h.url, h.symbols)
	log := observability.Log()

	conn, _, err := websocket.Dial(ctx, target, nil)
	if err != nil {
		return errs.New("feed/binance", errs.CodeNetwork,
			errs.WithVenue("binance"),
			errs.WithCanonicalCode(errs.CanonicalVenueDisconnected),
			errs.WithMessage("websocket dial failed"),
			errs.WithCause(err))
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	log.Info("connected to binance stream",
		observability.F("url", target),
		observability.F("symbols", len(h.symbols)))

	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				return nil
			}
			return errs.New("feed/binance", errs.CodeNetwork,
				errs.WithVenue("binance"),
				errs.WithCanonicalCode(errs.CanonicalVenueDisconnected),
				errs.WithMessage("websocket read failed"),
				errs.WithCause(err))
		}
		if msgType != websocket.MessageText {
			continue
		}

		tick, err := parseTrade(data)
		if err != nil {
			log.Warn("binance: skipping malformed frame",
				observability.F("error", err.Error()))
			continue
		}
		h.bus.Publish(ctx, tick)
	}
}

// Authenticated reports whether the handler carries credentials for private
// channels.
func (h *Handler) Authenticated() bool {
	return h.creds.Configured()
}

var _ feed.Venue = (*Handler)(nil)
