package azurite

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asad/azctl/internal/logging"
)

func TestBridgeReturnsResult(t *testing.T) {
	b := newBridge(time.Second, logging.NewNop())
	want := errors.New("backend said no")

	err := b.run(context.Background(), "op", func(context.Context) error { return want })
	assert.Same(t, want, err)
	assert.NoError(t, b.run(context.Background(), "op", func(context.Context) error { return nil }))
}

func TestBridgeSerializesCalls(t *testing.T) {
	b := newBridge(0, logging.NewNop())
	var active, peak atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.run(context.Background(), "op", func(context.Context) error {
				n := active.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				active.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), peak.Load())
}

func TestBridgeTimeout(t *testing.T) {
	b := newBridge(20*time.Millisecond, logging.NewNop())
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	err := b.run(context.Background(), "op", func(ctx context.Context) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return ctx.Err()
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestBridgeCanceledContext(t *testing.T) {
	b := newBridge(time.Second, logging.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := b.run(ctx, "op", func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestBridgeRecoversPanic(t *testing.T) {
	b := newBridge(time.Second, logging.NewNop())

	err := b.run(context.Background(), "op", func(context.Context) error {
		panic("kaboom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestBridgeHoldsSlotUntilWorkerReturns(t *testing.T) {
	b := newBridge(20*time.Millisecond, logging.NewNop())
	var active, peak atomic.Int32

	slow := func(ctx context.Context) error {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-ctx.Done()
		time.Sleep(30 * time.Millisecond)
		active.Add(-1)
		return ctx.Err()
	}

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := b.run(context.Background(), "op", slow)
			assert.ErrorIs(t, err, context.DeadlineExceeded)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), peak.Load())
	assert.Zero(t, active.Load())
}
