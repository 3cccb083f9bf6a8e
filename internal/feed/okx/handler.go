// Package okx implements the OKX market-data feed handler.
package okx

import (
	"context"

	"github.com/coder/websocket"

	"github.com/daisel10/kairos/config"
	"github.com/daisel10/kairos/errs"
	"github.com/daisel10/kairos/internal/bus"
	"github.com/daisel10/kairos/internal/feed"
	"github.com/daisel10/kairos/internal/observability"
)

// Handler owns one OKX public websocket connection, subscribes to the trade
// channels for the configured instruments, and publishes parsed ticks.
type Handler struct {
	url     string
	symbols []string
	creds   config.Credentials
	bus     *bus.MarketDataBus
}

// New builds a credential-bearing handler for private/business channels. OKX
// requires key, secret, and passphrase; any missing piece fails construction.
func New(settings config.ExchangeSettings, b *bus.MarketDataBus) (*Handler, error) {
	if !settings.Credentials.Configured() || settings.Credentials.Passphrase == "" {
		return nil, errs.New("feed/okx", errs.CodeAuth,
			errs.WithVenue("okx"),
			errs.WithCanonicalCode(errs.CanonicalCredentialsMissing),
			errs.WithMessage("OKX_API_KEY, OKX_API_SECRET and OKX_API_PASSPHRASE must be set"))
	}
	h := newHandler(settings, b)
	h.creds = settings.Credentials
	return h, nil
}

// NewPublic builds a handler restricted to public trade channels.
func NewPublic(settings config.ExchangeSettings, b *bus.MarketDataBus) *Handler {
	return newHandler(settings, b)
}

func newHandler(settings config.ExchangeSettings, b *bus.MarketDataBus) *Handler {
	return &Handler{
		url:     settings.WebsocketURL,
		symbols: settings.Symbols,
		bus:     b,
	}
}

// Name implements feed.Venue.
func (h *Handler) Name() string { return "okx" }

// ConnectAndStream dials the public endpoint, issues the trade subscription,
// and consumes pushes until the connection ends. Malformed frames are logged
// and skipped.
func (h *Handler) ConnectAndStream(ctx context.Context) error {
	log := observability.Log()

	conn, _, err := websocket.Dial(ctx, h.url, nil)
	if err != nil {
		return errs.New("feed/okx", errs.CodeNetwork,
			errs.WithVenue("okx"),
			errs.WithCanonicalCode(errs.CanonicalVenueDisconnected),
			errs.WithMessage("websocket dial failed"),
			errs.WithCause(err))
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	payload, err := subscribePayload(h.symbols)
	if err != nil {
		return errs.New("feed/okx", errs.CodeInvalid,
			errs.WithVenue("okx"),
			errs.WithMessage("build subscribe request"),
			errs.WithCause(err))
	}
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return errs.New("feed/okx", errs.CodeNetwork,
			errs.WithVenue("okx"),
			errs.WithCanonicalCode(errs.CanonicalVenueDisconnected),
			errs.WithMessage("send subscribe request"),
			errs.WithCause(err))
	}
	log.Info("connected to okx stream", observability.F("symbols", len(h.symbols)))

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
			return errs.New("feed/okx", errs.CodeNetwork,
				errs.WithVenue("okx"),
				errs.WithCanonicalCode(errs.CanonicalVenueDisconnected),
				errs.WithMessage("websocket read failed"),
				errs.WithCause(err))
		}
		if msgType != websocket.MessageText {
			continue
		}

		ticks, err := parseTrades(data)
		if err != nil {
			log.Warn("okx: skipping malformed frame",
				observability.F("error", err.Error()))
			continue
		}
		for _, tick := range ticks {
			h.bus.Publish(ctx, tick)
		}
	}
}

var _ feed.Venue = (*Handler)(nil)
