package okx

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/daisel10/kairos/internal/schema"
)

// subscribeRequest is the OKX v5 channel subscription command.
type subscribeRequest struct {
	Op   string         `json:"op"`
	Args []subscribeArg `json:"args"`
}

type subscribeArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

// wsMessage covers both event acknowledgements and data pushes on the OKX
// public endpoint.
type wsMessage struct {
	Event string          `json:"event,omitempty"`
	Code  string          `json:"code,omitempty"`
	Msg   string          `json:"msg,omitempty"`
	Arg   subscribeArg    `json:"arg,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type tradeRow struct {
	InstID    string `json:"instId"`
	Price     string `json:"px"`
	Size      string `json:"sz"`
	Side      string `json:"side"`
	TradeTime string `json:"ts"`
}

func subscribePayload(symbols []string) ([]byte, error) {
	args := make([]subscribeArg, 0, len(symbols))
	for _, s := range symbols {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		args = append(args, subscribeArg{Channel: "trades", InstID: strings.ToUpper(s)})
	}
	return json.Marshal(subscribeRequest{Op: "subscribe", Args: args})
}

// parseTrades converts one OKX data push into canonical ticks. Event
// acknowledgements yield no ticks and no error; error events surface as
// errors so the caller can log them.
func parseTrades(frame []byte) ([]schema.MarketTick, error) {
	var msg wsMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, fmt.Errorf("parse okx frame: %w", err)
	}
	if msg.Event == "error" {
		return nil, fmt.Errorf("okx error event: code=%s msg=%s", msg.Code, msg.Msg)
	}
	if msg.Event != "" || len(msg.Data) == 0 {
		return nil, nil
	}
	if msg.Arg.Channel != "trades" {
		return nil, nil
	}

	var rows []tradeRow
	if err := json.Unmarshal(msg.Data, &rows); err != nil {
		return nil, fmt.Errorf("parse okx trade rows: %w", err)
	}

	ticks := make([]schema.MarketTick, 0, len(rows))
	for _, row := range rows {
		symbol := row.InstID
		if symbol == "" {
			symbol = msg.Arg.InstID
		}
		price, err := decimal.NewFromString(row.Price)
		if err != nil {
			return nil, fmt.Errorf("parse okx price %q: %w", row.Price, err)
		}
		size, err := decimal.NewFromString(row.Size)
		if err != nil {
			return nil, fmt.Errorf("parse okx size %q: %w", row.Size, err)
		}
		tick := schema.NewMarketTick(normalizeSymbol(symbol), price, size, schema.ExchangeOKX)
		if err := tick.Validate(); err != nil {
			return nil, err
		}
		ticks = append(ticks, tick)
	}
	return ticks, nil
}

// normalizeSymbol collapses OKX instrument ids (BTC-USDT) into the canonical
// concatenated form used across the pipeline (BTCUSDT).
func normalizeSymbol(instID string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(instID)), "-", "")
}
