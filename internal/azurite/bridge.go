package azurite

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/asad/azctl/internal/logging"
)

// bridge turns a backend call sequence into one blocking call. The sequence
// runs on its own goroutine while the caller waits for completion, the
// deadline or cancellation. At most one sequence is in flight per facade.
type bridge struct {
	sem     *semaphore.Weighted
	timeout time.Duration
	logger  logging.Logger
}

func newBridge(timeout time.Duration, logger logging.Logger) *bridge {
	return &bridge{
		sem:     semaphore.NewWeighted(1),
		timeout: timeout,
		logger:  logger,
	}
}

// run executes fn to completion. On deadline or cancellation it reports the
// context error once fn has returned. Errors returned are unwrapped; callers
// classify them.
func (b *bridge) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer b.sem.Release(1)

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in %s: %v", op, r)
			}
		}()
		done <- fn(ctx)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
		// The worker sees the same cancelled context; hold the semaphore
		// until it returns so no two sequences overlap.
		<-done
	}
	b.logger.Debug("operation finished",
		logging.String("op", op),
		logging.Duration("latency_ms", time.Since(start).Milliseconds()),
		logging.Bool("ok", err == nil),
	)
	return err
}
