// Package config centralises runtime configuration for the kairos core.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/daisel10/kairos/errs"
)

// Environment identifies the runtime environment.
type Environment string

const (
	// EnvDev marks the development environment.
	EnvDev Environment = "dev"
	// EnvTest marks the test environment.
	EnvTest Environment = "test"
	// EnvProd marks the production environment.
	EnvProd Environment = "prod"
)

// Exchange names a supported venue integration.
type Exchange string

const (
	// ExchangeBinance represents the Binance integration key.
	ExchangeBinance Exchange = "binance"
	// ExchangeOKX represents the OKX integration key.
	ExchangeOKX Exchange = "okx"
)

// Credentials captures API credentials used for authenticated channels.
// They are sourced from environment variables only, never from files.
type Credentials struct {
	APIKey     string `yaml:"-"`
	APISecret  string `yaml:"-"`
	Passphrase string `yaml:"-"`
}

// Configured reports whether key and secret are both present.
func (c Credentials) Configured() bool {
	return strings.TrimSpace(c.APIKey) != "" && strings.TrimSpace(c.APISecret) != ""
}

// ExchangeSettings aggregates transport and subscription configuration for a
// single venue.
type ExchangeSettings struct {
	WebsocketURL string      `yaml:"websocketUrl"`
	Symbols      []string    `yaml:"symbols"`
	Credentials  Credentials `yaml:"-"`
}

// FeedSettings controls the feed handler reconnect loop.
type FeedSettings struct {
	ReconnectInterval time.Duration `yaml:"reconnectInterval"`
}

// BusSettings sizes the market-data broadcast bus.
type BusSettings struct {
	BufferSize    int `yaml:"bufferSize"`
	FanoutWorkers int `yaml:"fanoutWorkers"`
}

// OrderSettings sizes the order channel and intake throttle.
type OrderSettings struct {
	Capacity   int     `yaml:"capacity"`
	IntakeRate float64 `yaml:"intakeRate"`
}

// RiskSettings seeds the risk engine ledger.
type RiskSettings struct {
	InitialBalance decimal.Decimal `yaml:"initialBalance"`
	MaxDailyRisk   decimal.Decimal `yaml:"maxDailyRisk"`
}

// StrategySettings tunes the bundled strategies.
type StrategySettings struct {
	ArbitrageSpread decimal.Decimal `yaml:"arbitrageSpread"`
	OrderQuantity   decimal.Decimal `yaml:"orderQuantity"`
}

// TelemetrySettings configures metric export.
type TelemetrySettings struct {
	OTLPEndpoint string `yaml:"otlpEndpoint"`
	ServiceName  string `yaml:"serviceName"`
}

// PersistenceSettings configures the optional tick/order sinks.
type PersistenceSettings struct {
	PostgresDSN string `yaml:"postgresDsn"`
	RedisAddr   string `yaml:"redisAddr"`
}

// Settings contains the kairos configuration tree loaded from defaults, an
// optional yaml file, and environment overrides.
type Settings struct {
	Environment Environment                   `yaml:"environment"`
	Feed        FeedSettings                  `yaml:"feed"`
	Bus         BusSettings                   `yaml:"bus"`
	Orders      OrderSettings                 `yaml:"orders"`
	Risk        RiskSettings                  `yaml:"risk"`
	Strategy    StrategySettings              `yaml:"strategy"`
	Telemetry   TelemetrySettings             `yaml:"telemetry"`
	Persistence PersistenceSettings           `yaml:"persistence"`
	Exchanges   map[Exchange]ExchangeSettings `yaml:"exchanges"`
}

// Default returns the default kairos configuration.
func Default() Settings {
	return Settings{
		Environment: EnvDev,
		Feed: FeedSettings{
			ReconnectInterval: 5 * time.Second,
		},
		Bus: BusSettings{
			BufferSize:    1000,
			FanoutWorkers: 4,
		},
		Orders: OrderSettings{
			Capacity:   100,
			IntakeRate: 50,
		},
		Risk: RiskSettings{
			InitialBalance: decimal.NewFromInt(10000),
			MaxDailyRisk:   decimal.NewFromInt(100),
		},
		Strategy: StrategySettings{
			ArbitrageSpread: decimal.NewFromFloat(0.002),
			OrderQuantity:   decimal.NewFromFloat(0.001),
		},
		Telemetry: TelemetrySettings{
			ServiceName: "kairos-core",
		},
		Exchanges: map[Exchange]ExchangeSettings{
			ExchangeBinance: {
				WebsocketURL: "wss://stream.binance.com:9443/stream",
				Symbols:      []string{"btcusdt", "ethusdt"},
			},
			ExchangeOKX: {
				WebsocketURL: "wss://ws.okx.com:8443/ws/v5/public",
				Symbols:      []string{"BTC-USDT", "ETH-USDT"},
			},
		},
	}
}

// LoadFile overlays settings from a yaml file onto the defaults. A missing
// file is not an error; credentials never load from files.
func LoadFile(path string) (Settings, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// FromEnv loads environment overrides, including the venue credentials, on
// top of the provided settings.
func FromEnv(cfg Settings) Settings {
	if v := strings.TrimSpace(os.Getenv("KAIROS_ENV")); v != "" {
		cfg.Environment = Environment(strings.ToLower(v))
	}
	if v := strings.TrimSpace(os.Getenv("KAIROS_RECONNECT_INTERVAL")); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			cfg.Feed.ReconnectInterval = dur
		}
	}
	if v := strings.TrimSpace(os.Getenv("KAIROS_BUS_BUFFER_SIZE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Bus.BufferSize = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("KAIROS_ORDER_CAPACITY")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Orders.Capacity = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("KAIROS_INITIAL_BALANCE")); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			cfg.Risk.InitialBalance = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("KAIROS_MAX_DAILY_RISK")); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			cfg.Risk.MaxDailyRisk = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("KAIROS_OTLP_ENDPOINT")); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}
	if v := strings.TrimSpace(os.Getenv("KAIROS_POSTGRES_DSN")); v != "" {
		cfg.Persistence.PostgresDSN = v
	}
	if v := strings.TrimSpace(os.Getenv("KAIROS_REDIS_ADDR")); v != "" {
		cfg.Persistence.RedisAddr = v
	}

	bin := cfg.Exchanges[ExchangeBinance]
	if v := strings.TrimSpace(os.Getenv("BINANCE_WS_URL")); v != "" {
		bin.WebsocketURL = v
	}
	bin.Credentials.APIKey = strings.TrimSpace(os.Getenv("BINANCE_API_KEY"))
	bin.Credentials.APISecret = strings.TrimSpace(os.Getenv("BINANCE_API_SECRET"))
	cfg.Exchanges[ExchangeBinance] = bin

	okx := cfg.Exchanges[ExchangeOKX]
	if v := strings.TrimSpace(os.Getenv("OKX_WS_URL")); v != "" {
		okx.WebsocketURL = v
	}
	okx.Credentials.APIKey = strings.TrimSpace(os.Getenv("OKX_API_KEY"))
	okx.Credentials.APISecret = strings.TrimSpace(os.Getenv("OKX_API_SECRET"))
	okx.Credentials.Passphrase = strings.TrimSpace(os.Getenv("OKX_API_PASSPHRASE"))
	cfg.Exchanges[ExchangeOKX] = okx

	return cfg
}

// Load resolves the full configuration: defaults, optional yaml file, then
// environment overrides.
func Load(path string) (Settings, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return cfg, err
	}
	return FromEnv(cfg), nil
}

// Exchange returns the venue-specific configuration if present.
func (s Settings) Exchange(name Exchange) (ExchangeSettings, bool) {
	es, ok := s.Exchanges[name]
	return es, ok
}

// Validate fails fast on a structurally unusable configuration.
func (s Settings) Validate() error {
	if s.Feed.ReconnectInterval <= 0 {
		return errs.New("config/validate", errs.CodeInvalid, errs.WithMessage("feed reconnect interval must be positive"))
	}
	if s.Bus.BufferSize <= 0 {
		return errs.New("config/validate", errs.CodeInvalid, errs.WithMessage("bus buffer size must be positive"))
	}
	if s.Orders.Capacity <= 0 {
		return errs.New("config/validate", errs.CodeInvalid, errs.WithMessage("order channel capacity must be positive"))
	}
	if s.Risk.InitialBalance.IsNegative() {
		return errs.New("config/validate", errs.CodeInvalid, errs.WithMessage("initial balance must be non-negative"))
	}
	if !s.Risk.MaxDailyRisk.IsPositive() {
		return errs.New("config/validate", errs.CodeInvalid, errs.WithMessage("max daily risk must be positive"))
	}
	for name, ex := range s.Exchanges {
		if strings.TrimSpace(ex.WebsocketURL) == "" {
			return errs.New("config/validate", errs.CodeInvalid,
				errs.WithVenue(string(name)),
				errs.WithMessage("websocket url required"))
		}
		if len(ex.Symbols) == 0 {
			return errs.New("config/validate", errs.CodeInvalid,
				errs.WithVenue(string(name)),
				errs.WithMessage("at least one symbol required"))
		}
	}
	return nil
}
