// Package feed runs resilient websocket market-data handlers. Each venue
// implements Venue; Runner owns the reconnect loop that keeps a handler
// streaming until the context is cancelled.
package feed

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/daisel10/kairos/internal/observability"
)

// Venue is a single-exchange feed handler. ConnectAndStream opens one
// websocket connection, consumes it until it fails or closes, and returns.
// A nil return means the venue closed the connection cleanly.
type Venue interface {
	Name() string
	ConnectAndStream(ctx context.Context) error
}

// Runner drives one venue handler through an endless connect/stream/retry
// cycle with a fixed reconnect interval. There is no retry cap and no
// backoff growth; transient venue failures are absorbed, never surfaced.
type Runner struct {
	venue    Venue
	interval time.Duration
}

// NewRunner wraps a venue handler with reconnect behaviour.
func NewRunner(venue Venue, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Runner{venue: venue, interval: interval}
}

// Run streams until ctx is cancelled. Cancellation is honoured at every
// suspension point: dial, read, and the reconnect sleep.
func (r *Runner) Run(ctx context.Context) {
	wait := backoff.NewConstantBackOff(r.interval)
	log := observability.Log()

	for {
		if ctx.Err() != nil {
			return
		}

		err := r.venue.ConnectAndStream(ctx)
		switch {
		case ctx.Err() != nil:
			log.Info("feed: shutting down", observability.F("venue", r.venue.Name()))
			return
		case err == nil:
			log.Warn("feed: connection closed by venue, reconnecting",
				observability.F("venue", r.venue.Name()),
				observability.F("retry_in", r.interval.String()))
		default:
			log.Error("feed: connection error, reconnecting",
				observability.F("venue", r.venue.Name()),
				observability.F("retry_in", r.interval.String()),
				observability.F("error", err.Error()))
		}

		timer := time.NewTimer(wait.NextBackOff())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
