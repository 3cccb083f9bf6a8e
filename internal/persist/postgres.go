// Package persist writes pipeline records to cold and hot stores off the
// hot path.
package persist

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/daisel10/kairos/internal/schema"
)

const (
	tickInsertSQL = `
INSERT INTO market_ticks (id, symbol, price, volume, exchange, ts)
VALUES (@id, @symbol, @price, @volume, @exchange, @ts)
ON CONFLICT (id) DO NOTHING;
`

	orderInsertSQL = `
INSERT INTO orders (id, symbol, side, order_type, quantity, price, status, reason, venue_ref, created_at)
VALUES (@id, @symbol, @side, @order_type, @quantity, @price, @status, @reason, @venue_ref, @created_at)
ON CONFLICT (id) DO UPDATE SET
    status = EXCLUDED.status,
    reason = EXCLUDED.reason,
    venue_ref = EXCLUDED.venue_ref,
    updated_at = NOW();
`
)

// PostgresStore persists ticks and order records via a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects a pool for the given DSN.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// InsertTick writes one market tick. Replayed ids are ignored.
func (s *PostgresStore) InsertTick(ctx context.Context, tick schema.MarketTick) error {
	args := pgx.NamedArgs{
		"id":       tick.ID,
		"symbol":   tick.Symbol,
		"price":    tick.Price,
		"volume":   tick.Volume,
		"exchange": string(tick.Exchange),
		"ts":       tick.Timestamp,
	}
	if _, err := s.pool.Exec(ctx, tickInsertSQL, args); err != nil {
		return fmt.Errorf("insert tick %s: %w", tick.ID, err)
	}
	return nil
}

// UpsertOrder writes an order record, updating status on replays.
func (s *PostgresStore) UpsertOrder(ctx context.Context, order schema.Order, venueRef string) error {
	args := pgx.NamedArgs{
		"id":         order.ID,
		"symbol":     order.Symbol,
		"side":       string(order.Side),
		"order_type": string(order.Type),
		"quantity":   order.Quantity,
		"price":      order.Price,
		"status":     string(order.Status),
		"reason":     order.Reason,
		"venue_ref":  venueRef,
		"created_at": order.CreatedAt,
	}
	if _, err := s.pool.Exec(ctx, orderInsertSQL, args); err != nil {
		return fmt.Errorf("upsert order %s: %w", order.ID, err)
	}
	return nil
}

// Close releases the underlying pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
