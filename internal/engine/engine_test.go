package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daisel10/kairos/internal/bus"
	"github.com/daisel10/kairos/internal/risk"
	"github.com/daisel10/kairos/internal/schema"
)

type fakeVenue struct {
	mu     sync.Mutex
	placed []schema.InternalOrder
	err    error
}

func (v *fakeVenue) Name() string { return "fake" }

func (v *fakeVenue) PlaceOrder(_ context.Context, order schema.InternalOrder) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.err != nil {
		return "", v.err
	}
	v.placed = append(v.placed, order)
	return "venue-1", nil
}

func (v *fakeVenue) count() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.placed)
}

type recordingSink struct {
	mu      sync.Mutex
	records []schema.Order
	refs    []string
}

func (r *recordingSink) RecordOrder(order schema.Order, venueRef string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, order)
	r.refs = append(r.refs, venueRef)
}

func (r *recordingSink) statuses() []schema.OrderStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]schema.OrderStatus, len(r.records))
	for i, rec := range r.records {
		out[i] = rec.Status
	}
	return out
}

func newRisk(t *testing.T, balance, maxRisk string) *risk.Engine {
	t.Helper()
	return risk.NewEngine(decimal.RequireFromString(balance), decimal.RequireFromString(maxRisk))
}

func limitOrder(qty, price, score string) schema.InternalOrder {
	p := decimal.RequireFromString(price)
	return schema.NewInternalOrder("BTCUSDT", schema.SideBuy,
		decimal.RequireFromString(qty), &p, decimal.RequireFromString(score))
}

func runEngine(t *testing.T, e *Engine, orders *bus.OrderChannel, send ...schema.InternalOrder) error {
	t.Helper()
	sender := orders.Sender()
	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()
	for _, o := range send {
		require.NoError(t, sender.Send(context.Background(), o))
	}
	sender.Close()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not drain the channel")
		return nil
	}
}

func TestEngineExecutesValidOrder(t *testing.T) {
	riskEngine := newRisk(t, "10000", "100")
	venue := &fakeVenue{}
	sink := &recordingSink{}
	orders := bus.NewOrderChannel(4)
	e := New(orders, riskEngine, venue, sink)

	order := limitOrder("2", "1500", "1.5")
	require.NoError(t, runEngine(t, e, orders, order))

	assert.Equal(t, 1, venue.count())
	assert.Equal(t, "7000", riskEngine.Balance().String())
	assert.Equal(t, "1.5", riskEngine.DailyRisk().String())

	record, ok := e.Status(order.ID)
	require.True(t, ok)
	assert.Equal(t, schema.StatusExecuted, record.Status)
	assert.Equal(t, []schema.OrderStatus{schema.StatusApproved, schema.StatusExecuted}, sink.statuses())
	assert.Equal(t, "venue-1", sink.refs[len(sink.refs)-1])
}

func TestEngineRejectsOverBalance(t *testing.T) {
	riskEngine := newRisk(t, "1000", "100")
	venue := &fakeVenue{}
	orders := bus.NewOrderChannel(4)
	e := New(orders, riskEngine, venue, nil)

	order := limitOrder("1", "1500", "1")
	require.NoError(t, runEngine(t, e, orders, order))

	assert.Zero(t, venue.count())
	assert.Equal(t, "1000", riskEngine.Balance().String())

	record, ok := e.Status(order.ID)
	require.True(t, ok)
	assert.Equal(t, schema.StatusRejected, record.Status)
	assert.Contains(t, record.Reason, "insufficient")
}

func TestEngineRejectsOverRiskBudget(t *testing.T) {
	riskEngine := newRisk(t, "10000", "5")
	venue := &fakeVenue{}
	orders := bus.NewOrderChannel(4)
	e := New(orders, riskEngine, venue, nil)
	riskEngine.AddRisk(decimal.RequireFromString("4.5"))

	order := limitOrder("1", "10", "1")
	require.NoError(t, runEngine(t, e, orders, order))

	assert.Zero(t, venue.count())
	record, ok := e.Status(order.ID)
	require.True(t, ok)
	assert.Equal(t, schema.StatusRejected, record.Status)
}

func TestEngineVenueFailureLeavesLedgerUntouched(t *testing.T) {
	riskEngine := newRisk(t, "10000", "100")
	venue := &fakeVenue{err: errors.New("venue down")}
	orders := bus.NewOrderChannel(4)
	e := New(orders, riskEngine, venue, nil)

	order := limitOrder("1", "100", "1")
	require.NoError(t, runEngine(t, e, orders, order))

	assert.Equal(t, "10000", riskEngine.Balance().String())
	assert.True(t, riskEngine.DailyRisk().IsZero())

	record, ok := e.Status(order.ID)
	require.True(t, ok)
	assert.Equal(t, schema.StatusRejected, record.Status)
	assert.Contains(t, record.Reason, "venue down")
}

func TestEngineStopsOnContextCancel(t *testing.T) {
	orders := bus.NewOrderChannel(4)
	e := New(orders, newRisk(t, "10000", "100"), &fakeVenue{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestEngineDrainsBufferedOrdersBeforeExit(t *testing.T) {
	riskEngine := newRisk(t, "10000", "100")
	venue := &fakeVenue{}
	orders := bus.NewOrderChannel(8)
	e := New(orders, riskEngine, venue, nil)

	sender := orders.Sender()
	for i := 0; i < 5; i++ {
		require.NoError(t, sender.Send(context.Background(), limitOrder("1", "10", "0.1")))
	}
	sender.Close()

	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, 5, venue.count())
	assert.Equal(t, "9950", riskEngine.Balance().String())
}
