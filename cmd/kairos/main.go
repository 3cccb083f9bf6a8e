// Command kairos launches the market-data and order pipeline runtime.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sourcegraph/conc"

	"github.com/daisel10/kairos/config"
	"github.com/daisel10/kairos/internal/bus"
	"github.com/daisel10/kairos/internal/engine"
	"github.com/daisel10/kairos/internal/exec"
	"github.com/daisel10/kairos/internal/feed"
	"github.com/daisel10/kairos/internal/feed/binance"
	"github.com/daisel10/kairos/internal/feed/okx"
	"github.com/daisel10/kairos/internal/observability"
	"github.com/daisel10/kairos/internal/persist"
	"github.com/daisel10/kairos/internal/risk"
	"github.com/daisel10/kairos/internal/strategy"
	"github.com/daisel10/kairos/internal/telemetry"
	"github.com/daisel10/kairos/lib/async"
)

const (
	defaultConfigPath = "config/kairos.yaml"
	shutdownTimeout   = 15 * time.Second
	sinkPoolQueue     = 256
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "kairos: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := flag.String("config", defaultConfigPath, "path to the configuration file")
	flag.Parse()

	// Credentials come exclusively from the environment; a local .env file
	// is a development convenience.
	_ = godotenv.Load()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	logger, err := observability.NewZapLogger(cfg.Environment == config.EnvDev)
	if err != nil {
		return fmt.Errorf("initialise logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	observability.SetLogger(logger)
	log := observability.Log()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
	})
	if err != nil {
		return fmt.Errorf("initialise telemetry: %w", err)
	}

	marketData := bus.NewMarketDataBus(bus.MarketDataConfig{
		BufferSize:    cfg.Bus.BufferSize,
		FanoutWorkers: cfg.Bus.FanoutWorkers,
	})
	orders := bus.NewOrderChannel(cfg.Orders.Capacity)
	riskEngine := risk.NewEngine(cfg.Risk.InitialBalance, cfg.Risk.MaxDailyRisk)

	venue, err := buildVenue(cfg, log)
	if err != nil {
		return err
	}

	sink, cleanup, err := buildPersistence(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	var recorder engine.Recorder
	if sink != nil {
		recorder = sink
	}
	core := engine.New(orders, riskEngine, venue, recorder)

	var lifecycle conc.WaitGroup

	if sink != nil {
		lifecycle.Go(func() {
			if err := sink.Run(ctx, marketData); err != nil && ctx.Err() == nil {
				log.Error("persistence sink stopped", observability.F("error", err))
			}
		})
	}

	startFeeds(ctx, &lifecycle, cfg, marketData, log)
	startStrategies(ctx, &lifecycle, cfg, marketData, orders)

	lifecycle.Go(func() {
		if err := core.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("engine stopped", observability.F("error", err))
		}
	})
	lifecycle.Go(func() { resetRiskDaily(ctx, riskEngine) })

	log.Info("kairos started",
		observability.F("environment", cfg.Environment),
		observability.F("exchanges", len(cfg.Exchanges)),
		observability.F("venue", venue.Name()))

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	marketData.Close()
	lifecycle.Wait()
	if err := telemetryShutdown(shutdownCtx); err != nil {
		log.Warn("telemetry shutdown", observability.F("error", err))
	}
	log.Info("shutdown complete")
	return nil
}

// buildVenue returns the Binance REST executor when credentials are present
// and the acknowledging no-op venue otherwise.
func buildVenue(cfg config.Settings, log observability.Logger) (exec.Venue, error) {
	settings, ok := cfg.Exchange(config.ExchangeBinance)
	if !ok || !settings.Credentials.Configured() {
		log.Info("execution venue: no credentials configured, orders are acknowledged locally")
		return exec.Noop{}, nil
	}
	venue, err := exec.NewBinanceVenue(settings.Credentials)
	if err != nil {
		return nil, fmt.Errorf("initialise execution venue: %w", err)
	}
	log.Info("execution venue: binance")
	return venue, nil
}

// buildPersistence wires the optional Postgres store and Redis cache behind
// one sink. Both are skipped when unconfigured.
func buildPersistence(ctx context.Context, cfg config.Settings, log observability.Logger) (*persist.Sink, func(), error) {
	var (
		writers []persist.TickWriter
		orders  persist.OrderWriter
		cleanup []func()
	)

	if dsn := cfg.Persistence.PostgresDSN; dsn != "" {
		if err := persist.Migrate(ctx, dsn); err != nil {
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		store, err := persist.NewPostgresStore(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		writers = append(writers, store)
		orders = store
		cleanup = append(cleanup, store.Close)
		log.Info("postgres store connected")
	}

	if addr := cfg.Persistence.RedisAddr; addr != "" {
		cache, err := persist.NewRedisCache(ctx, addr)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		writers = append(writers, persist.TickWriterFunc(cache.SetLastTick))
		cleanup = append(cleanup, func() { _ = cache.Close() })
		log.Info("redis cache connected", observability.F("addr", addr))
	}

	closeStores := func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}
	if len(writers) == 0 {
		log.Info("persistence disabled")
		return nil, closeStores, nil
	}

	pool, err := async.NewPool(cfg.Bus.FanoutWorkers, sinkPoolQueue,
		async.WithErrorHandler(func(err error) {
			log.Warn("persistence write failed", observability.F("error", err))
		}))
	if err != nil {
		closeStores()
		return nil, nil, fmt.Errorf("initialise sink pool: %w", err)
	}

	// Drain in-flight writes before the stores go away.
	closeAll := func() {
		poolCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = pool.Shutdown(poolCtx)
		closeStores()
	}
	return persist.NewSink(pool, orders, writers...), closeAll, nil
}

func startFeeds(ctx context.Context, lifecycle *conc.WaitGroup, cfg config.Settings, marketData *bus.MarketDataBus, log observability.Logger) {
	for name, settings := range cfg.Exchanges {
		var venue feed.Venue
		switch name {
		case config.ExchangeBinance:
			venue = binance.NewPublic(settings, marketData)
		case config.ExchangeOKX:
			venue = okx.NewPublic(settings, marketData)
		default:
			log.Warn("unknown exchange in configuration", observability.F("exchange", name))
			continue
		}
		runner := feed.NewRunner(venue, cfg.Feed.ReconnectInterval)
		lifecycle.Go(func() { runner.Run(ctx) })
		log.Info("feed started",
			observability.F("exchange", name),
			observability.F("symbols", len(settings.Symbols)))
	}
}

func startStrategies(ctx context.Context, lifecycle *conc.WaitGroup, cfg config.Settings, marketData *bus.MarketDataBus, orders *bus.OrderChannel) {
	strategies := []strategy.Strategy{
		strategy.NewArbitrage(cfg.Strategy.ArbitrageSpread, cfg.Strategy.OrderQuantity),
		strategy.NewTriangulation(cfg.Strategy.OrderQuantity),
	}
	for _, s := range strategies {
		runner := strategy.NewRunner(s, marketData, orders.Sender())
		lifecycle.Go(func() {
			if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
				observability.Log().Error("strategy stopped",
					observability.F("strategy", s.Name()),
					observability.F("error", err))
			}
		})
	}
}

// resetRiskDaily zeroes the daily risk accumulator at each UTC midnight.
func resetRiskDaily(ctx context.Context, riskEngine *risk.Engine) {
	for {
		now := time.Now().UTC()
		next := now.Truncate(24 * time.Hour).Add(24 * time.Hour)
		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			riskEngine.ResetDailyRisk()
			observability.Log().Info("daily risk budget reset")
		}
	}
}
