package resource

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Memory(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})

	require.NoError(t, c.AcquireMemory(context.Background(), 50))
	assert.Equal(t, int64(50), c.MemoryUsage())

	require.NoError(t, c.AcquireMemory(context.Background(), 40))
	assert.Equal(t, int64(90), c.MemoryUsage())

	assert.False(t, c.TryAcquireMemory(20))
	assert.Equal(t, int64(90), c.MemoryUsage())

	// Over the limit: blocks until cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.AcquireMemory(ctx, 20), context.DeadlineExceeded)

	c.ReleaseMemory(50)
	assert.Equal(t, int64(40), c.MemoryUsage())

	require.NoError(t, c.AcquireMemory(context.Background(), 20))
	assert.Equal(t, int64(60), c.MemoryUsage())
}

func TestController_UnlimitedMemory(t *testing.T) {
	c := NewController(Config{})

	require.NoError(t, c.AcquireMemory(context.Background(), 1000))
	assert.Equal(t, int64(1000), c.MemoryUsage())

	c.ReleaseMemory(500)
	assert.Equal(t, int64(500), c.MemoryUsage())
}

func TestController_IOSlots(t *testing.T) {
	c := NewController(Config{MaxConcurrentIO: 2})

	require.NoError(t, c.AcquireIOSlot(context.Background()))
	require.NoError(t, c.AcquireIOSlot(context.Background()))

	assert.False(t, c.TryAcquireIOSlot())

	c.ReleaseIOSlot()
	assert.True(t, c.TryAcquireIOSlot())
}

func TestController_NilIsUnlimited(t *testing.T) {
	var c *Controller

	require.NoError(t, c.AcquireMemory(context.Background(), 1<<40))
	assert.True(t, c.TryAcquireIOSlot())
	require.NoError(t, c.AcquireIOSlot(context.Background()))
	c.ReleaseIOSlot()
	require.NoError(t, c.WaitIO(context.Background(), 1<<20))
	assert.Equal(t, int64(0), c.MemoryUsage())
}

func TestThrottledWriter(t *testing.T) {
	// A generous limit: the test checks plumbing, not timing.
	c := NewController(Config{IOLimitBytesPerSec: 10 << 20})

	var buf bytes.Buffer
	tw := NewThrottledWriter(context.Background(), &buf, c)

	data := bytes.Repeat([]byte("x"), 200*1024)
	n, err := tw.Write(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, data, buf.Bytes())
}

func TestThrottledReader(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 10 << 20})

	data := bytes.Repeat([]byte("y"), 200*1024)
	tr := NewThrottledReader(context.Background(), bytes.NewReader(data), c)

	out := make([]byte, 0, len(data))
	buf := make([]byte, 100*1024)
	for {
		n, err := tr.Read(buf)
		out = append(out, buf[:n]...)
		if err != nil {
			break
		}
	}
	assert.Equal(t, data, out)
}
