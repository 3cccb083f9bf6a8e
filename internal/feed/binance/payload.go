package binance

import (
	"fmt"
	"net/url"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/daisel10/kairos/internal/schema"
)

// wsEnvelope is the combined-stream wrapper Binance puts around every
// payload when connecting via /stream.
type wsEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// aggTrade is the inner aggregated-trade payload. Price and quantity arrive
// as decimal strings.
type aggTrade struct {
	EventType string `json:"e"`
	Symbol    string `json:"s"`
	Price     string `json:"p"`
	Quantity  string `json:"q"`
	TradeTime int64  `json:"T"`
}

// streamURL builds the combined-stream endpoint for the configured symbols,
// lower-cased and joined into one path:
// wss://host/stream?streams=btcusdt@aggTrade/ethusdt@aggTrade
func streamURL(base string, symbols []string) string {
	streams := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		streams = append(streams, s+"@aggTrade")
	}
	joined := strings.Join(streams, "/")
	if strings.Contains(base, "?") {
		return base + "&streams=" + url.QueryEscape(joined)
	}
	return base + "?streams=" + joined
}

// parseTrade converts one combined-stream frame into a canonical tick. The
// decimal strings are parsed exactly, so price and volume round-trip without
// floating-point loss.
func parseTrade(frame []byte) (schema.MarketTick, error) {
	var envelope wsEnvelope
	if err := json.Unmarshal(frame, &envelope); err != nil {
		return schema.MarketTick{}, fmt.Errorf("parse binance stream wrapper: %w", err)
	}
	if len(envelope.Data) == 0 {
		return schema.MarketTick{}, fmt.Errorf("binance frame missing data field")
	}

	var trade aggTrade
	if err := json.Unmarshal(envelope.Data, &trade); err != nil {
		return schema.MarketTick{}, fmt.Errorf("parse binance agg trade: %w", err)
	}
	if strings.TrimSpace(trade.Symbol) == "" {
		return schema.MarketTick{}, fmt.Errorf("binance trade missing symbol")
	}

	price, err := decimal.NewFromString(trade.Price)
	if err != nil {
		return schema.MarketTick{}, fmt.Errorf("parse binance price %q: %w", trade.Price, err)
	}
	volume, err := decimal.NewFromString(trade.Quantity)
	if err != nil {
		return schema.MarketTick{}, fmt.Errorf("parse binance quantity %q: %w", trade.Quantity, err)
	}

	tick := schema.NewMarketTick(trade.Symbol, price, volume, schema.ExchangeBinance)
	if err := tick.Validate(); err != nil {
		return schema.MarketTick{}, err
	}
	return tick, nil
}
