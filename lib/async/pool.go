// Package async provides the bounded worker pool backing the persistence
// sinks. Submission never blocks; a saturated pool rejects the task so the
// hot path stays ahead of slow writers.
package async

import (
	"context"
	"fmt"
	"sync"

	"github.com/daisel10/kairos/errs"
)

// Task is a unit of work executed by a pool worker.
type Task func(context.Context) error

// Pool is a fixed-size worker pool with a bounded job queue.
type Pool struct {
	ctx     context.Context
	cancel  context.CancelFunc
	jobs    chan job
	wg      sync.WaitGroup
	once    sync.Once
	onError func(error)

	// mu orders queue sends against close: Submit enqueues under the
	// read lock, Close flips closed and closes jobs under the write
	// lock.
	mu     sync.RWMutex
	closed bool
}

type job struct {
	ctx context.Context
	fn  Task
}

// Option adjusts pool construction.
type Option func(*Pool)

// WithErrorHandler routes task errors to fn. Without a handler errors are
// discarded.
func WithErrorHandler(fn func(error)) Option {
	return func(p *Pool) { p.onError = fn }
}

// NewPool creates a pool with the given worker count and queue depth.
func NewPool(workers, queue int, opts ...Option) (*Pool, error) {
	if workers <= 0 {
		return nil, errs.New("lib/async", errs.CodeInvalid, errs.WithMessage("workers must be >0"))
	}
	if queue < 0 {
		queue = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(chan job, queue),
	}
	for _, opt := range opts {
		opt(p)
	}
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p, nil
}

// Submit queues fn for execution. It returns immediately; a closed or
// saturated pool yields an unavailable error instead of blocking.
func (p *Pool) Submit(ctx context.Context, fn Task) error {
	if fn == nil {
		return errs.New("lib/async", errs.CodeInvalid, errs.WithMessage("task must not be nil"))
	}
	if ctx == nil {
		ctx = context.Background()
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return errs.New("lib/async", errs.CodeUnavailable, errs.WithMessage("pool closed"))
	}
	p.wg.Add(1)
	select {
	case <-ctx.Done():
		p.wg.Done()
		return fmt.Errorf("submit context: %w", ctx.Err())
	case p.jobs <- job{ctx: ctx, fn: fn}:
		return nil
	default:
		p.wg.Done()
		return errs.New("lib/async", errs.CodeUnavailable, errs.WithMessage("pool at capacity"))
	}
}

// Close stops accepting new tasks and cancels workers.
func (p *Pool) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.jobs)
		p.mu.Unlock()
		p.cancel()
	})
}

// Shutdown closes the pool and waits for in-flight tasks or ctx expiry.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.Close()
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("shutdown context: %w", ctx.Err())
	case <-done:
		return nil
	}
}

func (p *Pool) worker() {
	for j := range p.jobs {
		p.run(j)
	}
}

func (p *Pool) run(j job) {
	defer p.wg.Done()
	defer func() {
		if r := recover(); r != nil && p.onError != nil {
			p.onError(fmt.Errorf("task panic: %v", r))
		}
	}()
	ctx := j.ctx
	if ctx == nil {
		ctx = p.ctx
	}
	select {
	case <-ctx.Done():
		return
	default:
	}
	if err := j.fn(ctx); err != nil && p.onError != nil {
		p.onError(err)
	}
}
