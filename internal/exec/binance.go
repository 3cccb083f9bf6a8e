package exec

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/daisel10/kairos/config"
	"github.com/daisel10/kairos/errs"
	"github.com/daisel10/kairos/internal/schema"
)

const (
	defaultBinanceRESTURL = "https://api.binance.com"
	orderPath             = "/api/v3/order"
	defaultHTTPTimeout    = 10 * time.Second
)

// BinanceVenue submits signed orders to the Binance spot REST API.
type BinanceVenue struct {
	baseURL string
	creds   config.Credentials
	client  *http.Client
	clock   func() time.Time
}

// BinanceOption adjusts venue construction.
type BinanceOption func(*BinanceVenue)

// WithBaseURL points the venue at a non-default REST endpoint.
func WithBaseURL(base string) BinanceOption {
	return func(v *BinanceVenue) { v.baseURL = strings.TrimRight(base, "/") }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) BinanceOption {
	return func(v *BinanceVenue) { v.client = c }
}

// WithClock replaces the timestamp source.
func WithClock(clock func() time.Time) BinanceOption {
	return func(v *BinanceVenue) { v.clock = clock }
}

// NewBinanceVenue builds a REST executor. Both API key and secret are
// required; construction fails without them.
func NewBinanceVenue(creds config.Credentials, opts ...BinanceOption) (*BinanceVenue, error) {
	if !creds.Configured() {
		return nil, errs.New("exec/binance", errs.CodeAuth,
			errs.WithVenue("binance"),
			errs.WithCanonicalCode(errs.CanonicalCredentialsMissing),
			errs.WithMessage("BINANCE_API_KEY and BINANCE_API_SECRET must be set"))
	}
	v := &BinanceVenue{
		baseURL: defaultBinanceRESTURL,
		creds:   creds,
		client:  &http.Client{Timeout: defaultHTTPTimeout},
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Name implements Venue.
func (v *BinanceVenue) Name() string { return "binance" }

// PlaceOrder implements Venue. The signed form body follows the spot API
// contract: alphabetically encoded parameters plus an HMAC-SHA256 signature
// over the encoded payload.
func (v *BinanceVenue) PlaceOrder(ctx context.Context, order schema.InternalOrder) (string, error) {
	if err := order.Validate(); err != nil {
		return "", err
	}
	params := url.Values{}
	params.Set("symbol", order.Symbol)
	params.Set("side", strings.ToUpper(string(order.Side)))
	params.Set("type", strings.ToUpper(string(order.Type())))
	params.Set("quantity", order.Quantity.String())
	if order.Type() == schema.OrderTypeLimit {
		params.Set("price", order.Price.String())
		params.Set("timeInForce", "GTC")
	}
	params.Set("newClientOrderId", order.ID.String())
	params.Set("timestamp", strconv.FormatInt(v.clock().UTC().UnixMilli(), 10))

	payload := params.Encode()
	params.Set("signature", signPayload(payload, v.creds.APISecret))
	body := params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+orderPath, strings.NewReader(body))
	if err != nil {
		return "", errs.New("exec/binance", errs.CodeInvalid, errs.WithVenue("binance"), errs.WithCause(err))
	}
	req.Header.Set("X-MBX-APIKEY", v.creds.APIKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return "", errs.New("exec/binance", errs.CodeNetwork, errs.WithVenue("binance"), errs.WithCause(err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errs.New("exec/binance", errs.CodeNetwork, errs.WithVenue("binance"), errs.WithCause(err))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", orderError(resp.StatusCode, respBody)
	}

	var ack orderResponse
	if err := json.Unmarshal(respBody, &ack); err != nil {
		return "", errs.New("exec/binance", errs.CodeParse, errs.WithVenue("binance"), errs.WithCause(err))
	}
	return strconv.FormatInt(ack.OrderID, 10), nil
}

type orderResponse struct {
	Symbol        string `json:"symbol"`
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Status        string `json:"status"`
	ExecutedQty   string `json:"executedQty"`
	TransactTime  int64  `json:"transactTime"`
}

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func orderError(status int, body []byte) error {
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Msg != "" {
		return errs.New("exec/binance", errs.CodeExchange,
			errs.WithVenue("binance"),
			errs.WithMessage(fmt.Sprintf("order rejected (%d): %s", apiErr.Code, apiErr.Msg)))
	}
	return errs.New("exec/binance", errs.CodeExchange,
		errs.WithVenue("binance"),
		errs.WithMessage(fmt.Sprintf("order rejected with status %d", status)))
}

func signPayload(payload, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

var _ Venue = (*BinanceVenue)(nil)
