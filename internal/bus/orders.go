package bus

import (
	"context"
	"sync"

	"github.com/daisel10/kairos/errs"
	"github.com/daisel10/kairos/internal/schema"
)

// OrderChannel carries candidate orders from strategy producers to the single
// engine consumer. It is bounded: a full channel blocks producers, which is
// the pipeline's flow control ahead of risk validation. The stream closes
// once every sender handle has been closed.
type OrderChannel struct {
	ch chan schema.InternalOrder

	mu      sync.Mutex
	senders int
	closed  bool
}

// NewOrderChannel allocates a channel with the given capacity.
func NewOrderChannel(capacity int) *OrderChannel {
	if capacity <= 0 {
		capacity = 1
	}
	return &OrderChannel{ch: make(chan schema.InternalOrder, capacity)}
}

// Sender hands out a new producer handle. It returns nil once the channel
// has closed.
func (c *OrderChannel) Sender() *OrderSender {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.senders++
	return &OrderSender{parent: c}
}

// Receive exposes the consumer end. The channel closes after the last sender
// closes and all buffered orders have been drained.
func (c *OrderChannel) Receive() <-chan schema.InternalOrder {
	return c.ch
}

func (c *OrderChannel) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.senders--
	if c.senders <= 0 {
		c.closed = true
		close(c.ch)
	}
}

// OrderSender is one producer's handle onto the order channel.
type OrderSender struct {
	parent *OrderChannel
	once   sync.Once
	done   bool
}

// Send enqueues an order, blocking while the channel is full. It fails only
// on context cancellation or after the handle has been closed.
func (s *OrderSender) Send(ctx context.Context, order schema.InternalOrder) error {
	if s == nil || s.parent == nil {
		return errs.New("bus/orders", errs.CodeUnavailable, errs.WithMessage("order channel closed"))
	}
	if s.done {
		return errs.New("bus/orders", errs.CodeUnavailable, errs.WithMessage("sender closed"))
	}
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case s.parent.ch <- order:
		return nil
	}
}

// Close releases this producer handle. Closing the last handle closes the
// order stream for the consumer.
func (s *OrderSender) Close() {
	if s == nil || s.parent == nil {
		return
	}
	s.once.Do(func() {
		s.done = true
		s.parent.release()
	})
}
