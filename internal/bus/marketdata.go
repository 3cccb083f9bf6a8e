// Package bus provides the in-memory channels of the kairos pipeline: the
// market-data broadcast bus and the bounded order channel.
package bus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	concpool "github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/daisel10/kairos/internal/observability"
	"github.com/daisel10/kairos/internal/schema"
)

// SubscriptionID uniquely identifies a bus subscription.
type SubscriptionID string

// MarketDataConfig sizes the broadcast bus.
type MarketDataConfig struct {
	// BufferSize is the per-subscriber pending tick budget.
	BufferSize int
	// FanoutWorkers bounds concurrent deliveries per publish.
	FanoutWorkers int
}

func (c MarketDataConfig) normalize() MarketDataConfig {
	if c.BufferSize <= 0 {
		c.BufferSize = 1000
	}
	if c.FanoutWorkers <= 0 {
		c.FanoutWorkers = 4
	}
	return c
}

// MarketDataBus broadcasts ticks from feed handlers to every subscriber.
// Publishing never blocks: a subscriber that falls behind its buffer loses
// the oldest unread ticks instead of stalling the producer.
type MarketDataBus struct {
	cfg MarketDataConfig

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.RWMutex
	subscribers  map[SubscriptionID]*subscriber
	shutdownOnce sync.Once
	nextID       atomic.Uint64

	publishedCounter metric.Int64Counter
	droppedCounter   metric.Int64Counter
	subscriberGauge  metric.Int64UpDownCounter
	fanoutHistogram  metric.Int64Histogram
}

type subscriber struct {
	ctx    context.Context
	cancel context.CancelFunc
	ch     chan schema.MarketTick
	once   sync.Once

	// mu orders channel sends against close: deliver holds the read
	// lock around every send, close flips closed and closes ch under
	// the write lock.
	mu     sync.RWMutex
	closed bool
}

// NewMarketDataBus constructs a broadcast bus.
func NewMarketDataBus(cfg MarketDataConfig) *MarketDataBus {
	cfg = cfg.normalize()
	ctx, cancel := context.WithCancel(context.Background())
	b := &MarketDataBus{
		cfg:         cfg,
		ctx:         ctx,
		cancel:      cancel,
		subscribers: make(map[SubscriptionID]*subscriber),
	}

	meter := otel.Meter("kairos.bus")
	b.publishedCounter, _ = meter.Int64Counter("bus.ticks.published",
		metric.WithDescription("Number of ticks published to the bus"),
		metric.WithUnit("{tick}"))
	b.droppedCounter, _ = meter.Int64Counter("bus.ticks.dropped",
		metric.WithDescription("Number of ticks dropped due to subscriber backpressure"),
		metric.WithUnit("{tick}"))
	b.subscriberGauge, _ = meter.Int64UpDownCounter("bus.subscribers",
		metric.WithDescription("Number of active subscribers"),
		metric.WithUnit("{subscriber}"))
	b.fanoutHistogram, _ = meter.Int64Histogram("bus.fanout.size",
		metric.WithDescription("Number of subscribers per fanout"),
		metric.WithUnit("{subscriber}"))

	return b
}

// Publish fans the tick out to every current subscriber. With zero
// subscribers the publish is a silent no-op.
func (b *MarketDataBus) Publish(ctx context.Context, tick schema.MarketTick) {
	if ctx == nil {
		ctx = context.Background()
	}

	b.mu.RLock()
	subs := make([]*subscriber, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	if b.fanoutHistogram != nil {
		b.fanoutHistogram.Record(ctx, int64(len(subs)))
	}
	if len(subs) == 0 {
		return
	}

	if len(subs) == 1 {
		b.deliver(ctx, subs[0], tick)
	} else {
		p := concpool.New().WithMaxGoroutines(b.cfg.FanoutWorkers)
		for _, sub := range subs {
			sub := sub
			p.Go(func() {
				b.deliver(ctx, sub, tick)
			})
		}
		p.Wait()
	}

	if b.publishedCounter != nil {
		b.publishedCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("exchange", string(tick.Exchange)),
			attribute.String("symbol", tick.Symbol)))
	}
}

// Subscribe registers a new subscriber and returns its id and receive
// channel. Late subscribers see only ticks published after this call.
func (b *MarketDataBus) Subscribe(ctx context.Context) (SubscriptionID, <-chan schema.MarketTick, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-b.ctx.Done():
		return "", nil, fmt.Errorf("bus/subscribe: bus closed")
	default:
	}
	ctx, cancel := context.WithCancel(ctx)

	sub := &subscriber{
		ctx:    ctx,
		cancel: cancel,
		ch:     make(chan schema.MarketTick, b.cfg.BufferSize),
	}
	id := SubscriptionID(fmt.Sprintf("sub-%d", b.nextID.Add(1)))

	b.mu.Lock()
	b.subscribers[id] = sub
	b.mu.Unlock()

	if b.subscriberGauge != nil {
		b.subscriberGauge.Add(ctx, 1)
	}

	go b.observe(id, sub)
	return id, sub.ch, nil
}

// Unsubscribe removes the subscription and closes its channel.
func (b *MarketDataBus) Unsubscribe(id SubscriptionID) {
	if id == "" {
		return
	}
	b.mu.Lock()
	sub, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
	if !ok {
		return
	}
	if b.subscriberGauge != nil {
		b.subscriberGauge.Add(context.Background(), -1)
	}
	sub.close()
}

// Close shuts down the bus and all subscriptions.
func (b *MarketDataBus) Close() {
	b.shutdownOnce.Do(func() {
		b.cancel()
		b.mu.Lock()
		for id, sub := range b.subscribers {
			sub.close()
			delete(b.subscribers, id)
		}
		b.mu.Unlock()
	})
}

func (b *MarketDataBus) observe(id SubscriptionID, sub *subscriber) {
	<-sub.ctx.Done()
	b.mu.Lock()
	if stored, ok := b.subscribers[id]; ok && stored == sub {
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
	sub.close()
}

// deliver hands the tick to one subscriber without ever blocking the
// publisher. A full buffer sheds the oldest unread tick, then retries once.
func (b *MarketDataBus) deliver(ctx context.Context, sub *subscriber, tick schema.MarketTick) {
	sub.mu.RLock()
	defer sub.mu.RUnlock()
	if sub.closed || sub.ctx.Err() != nil {
		return
	}
	select {
	case sub.ch <- tick:
		return
	default:
	}

	select {
	case dropped := <-sub.ch:
		if b.droppedCounter != nil {
			b.droppedCounter.Add(ctx, 1, metric.WithAttributes(
				attribute.String("exchange", string(dropped.Exchange)),
				attribute.String("symbol", dropped.Symbol)))
		}
		observability.Log().Warn("bus: subscriber lagging, dropped oldest tick",
			observability.F("symbol", dropped.Symbol),
			observability.F("exchange", dropped.Exchange))
	default:
	}

	select {
	case sub.ch <- tick:
	default:
		if b.droppedCounter != nil {
			b.droppedCounter.Add(ctx, 1, metric.WithAttributes(
				attribute.String("exchange", string(tick.Exchange)),
				attribute.String("symbol", tick.Symbol)))
		}
	}
}

func (s *subscriber) close() {
	s.once.Do(func() {
		s.cancel()
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
	})
}
