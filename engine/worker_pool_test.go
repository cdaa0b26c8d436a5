package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool(t *testing.T) {
	t.Run("runs submitted tasks", func(t *testing.T) {
		wp := NewWorkerPool(4)
		defer wp.Close()

		var counter atomic.Int64
		var wg sync.WaitGroup

		for i := 0; i < 100; i++ {
			wg.Add(1)
			err := wp.Submit(context.Background(), func() {
				defer wg.Done()
				counter.Add(1)
			})
			require.NoError(t, err)
		}
		wg.Wait()

		assert.Equal(t, int64(100), counter.Load())
	})

	t.Run("submit after close", func(t *testing.T) {
		wp := NewWorkerPool(2)
		wp.Close()

		err := wp.Submit(context.Background(), func() {})
		require.ErrorIs(t, err, ErrPoolClosed)
	})

	t.Run("close is idempotent", func(t *testing.T) {
		wp := NewWorkerPool(2)
		wp.Close()
		wp.Close()
	})

	t.Run("cancelled context", func(t *testing.T) {
		wp := NewWorkerPool(1)
		defer wp.Close()

		block := make(chan struct{})
		// Saturate the single worker and the queue so Submit must wait.
		for i := 0; i < 3; i++ {
			_ = wp.Submit(context.Background(), func() { <-block })
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := wp.Submit(ctx, func() {})
		if err != nil {
			require.ErrorIs(t, err, context.Canceled)
		}
		close(block)
	})

	t.Run("defaults worker count", func(t *testing.T) {
		wp := NewWorkerPool(0)
		defer wp.Close()
		assert.Greater(t, wp.numWorkers, 0)
	})
}
