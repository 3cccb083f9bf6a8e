// Package exec submits approved orders to external venues.
package exec

import (
	"context"

	"github.com/daisel10/kairos/internal/schema"
)

// Venue places orders on an exchange and returns the venue-assigned order id.
type Venue interface {
	Name() string
	PlaceOrder(ctx context.Context, order schema.InternalOrder) (string, error)
}

// Noop acknowledges every order without touching any venue. Used when no
// executor credentials are configured and in tests.
type Noop struct{}

func (Noop) Name() string { return "noop" }

func (Noop) PlaceOrder(_ context.Context, order schema.InternalOrder) (string, error) {
	return order.ID.String(), nil
}

var _ Venue = Noop{}
