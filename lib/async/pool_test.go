package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPoolExecutesSubmittedTasks(t *testing.T) {
	p, err := NewPool(4, 16)
	require.NoError(t, err)

	var ran atomic.Int64
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Submit(context.Background(), func(context.Context) error {
			ran.Add(1)
			return nil
		}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Shutdown(ctx))
	require.Equal(t, int64(10), ran.Load())
}

func TestPoolRejectsWhenSaturated(t *testing.T) {
	p, err := NewPool(1, 1)
	require.NoError(t, err)
	defer p.Close()

	block := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Submit(context.Background(), func(context.Context) error {
		close(started)
		<-block
		return nil
	}))
	<-started

	// Worker is busy; this one parks in the queue slot.
	require.NoError(t, p.Submit(context.Background(), func(context.Context) error { return nil }))

	err = p.Submit(context.Background(), func(context.Context) error { return nil })
	require.Error(t, err)
	close(block)
}

func TestPoolRoutesTaskErrorsToHandler(t *testing.T) {
	var mu sync.Mutex
	var seen []error
	p, err := NewPool(1, 4, WithErrorHandler(func(e error) {
		mu.Lock()
		seen = append(seen, e)
		mu.Unlock()
	}))
	require.NoError(t, err)

	boom := errors.New("write failed")
	require.NoError(t, p.Submit(context.Background(), func(context.Context) error { return boom }))
	require.NoError(t, p.Submit(context.Background(), func(context.Context) error { panic("oops") }))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Shutdown(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	require.ErrorIs(t, seen[0], boom)
}

func TestPoolRejectsAfterClose(t *testing.T) {
	p, err := NewPool(1, 1)
	require.NoError(t, err)
	p.Close()

	err = p.Submit(context.Background(), func(context.Context) error { return nil })
	require.Error(t, err)
}

func TestPoolSubmitConcurrentWithClose(t *testing.T) {
	// Submissions racing shutdown either run or come back rejected.
	// Neither outcome may panic the queue.
	p, err := NewPool(2, 4)
	require.NoError(t, err)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					_ = p.Submit(context.Background(), func(context.Context) error { return nil })
				}
			}
		}()
	}

	time.Sleep(10 * time.Millisecond)
	p.Close()
	close(stop)
	wg.Wait()

	err = p.Submit(context.Background(), func(context.Context) error { return nil })
	require.Error(t, err)
}

func TestNewPoolValidatesWorkerCount(t *testing.T) {
	_, err := NewPool(0, 1)
	require.Error(t, err)
}
