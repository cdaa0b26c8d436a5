package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/anngo/resource"
)

func TestLRU(t *testing.T) {
	t.Run("get and set", func(t *testing.T) {
		c := NewLRU(1024, nil)

		c.Set("a", []byte("hello"))
		got, ok := c.Get("a")
		assert.True(t, ok)
		assert.Equal(t, []byte("hello"), got)

		_, ok = c.Get("b")
		assert.False(t, ok)
	})

	t.Run("evicts least recently used", func(t *testing.T) {
		c := NewLRU(1000, nil)

		c.Set("a", make([]byte, 400))
		c.Set("b", make([]byte, 400))

		// Touch "a" so "b" becomes the eviction candidate.
		_, _ = c.Get("a")

		c.Set("c", make([]byte, 400))

		_, ok := c.Get("a")
		assert.True(t, ok)
		_, ok = c.Get("b")
		assert.False(t, ok)
		_, ok = c.Get("c")
		assert.True(t, ok)
	})

	t.Run("oversized payload is not cached", func(t *testing.T) {
		c := NewLRU(100, nil)
		c.Set("big", make([]byte, 200))

		_, ok := c.Get("big")
		assert.False(t, ok)
		assert.Equal(t, int64(0), c.Size())
	})

	t.Run("invalidate", func(t *testing.T) {
		c := NewLRU(1024, nil)
		c.Set("a", []byte("x"))
		c.Invalidate("a")

		_, ok := c.Get("a")
		assert.False(t, ok)
	})

	t.Run("overwrite replaces size accounting", func(t *testing.T) {
		c := NewLRU(1024, nil)
		c.Set("a", make([]byte, 100))
		c.Set("a", make([]byte, 50))
		assert.Equal(t, int64(50), c.Size())
	})

	t.Run("respects resource controller budget", func(t *testing.T) {
		rc := resource.NewController(resource.Config{MemoryLimitBytes: 100})
		c := NewLRU(1024, rc)

		c.Set("a", make([]byte, 80))
		assert.Equal(t, int64(80), rc.MemoryUsage())

		// Denied by the controller, not the cache capacity.
		c.Set("b", make([]byte, 80))
		_, ok := c.Get("b")
		assert.False(t, ok)

		c.Invalidate("a")
		assert.Equal(t, int64(0), rc.MemoryUsage())
	})

	t.Run("stats", func(t *testing.T) {
		c := NewLRU(1024, nil)
		c.Set("a", []byte("x"))
		_, _ = c.Get("a")
		_, _ = c.Get("miss")

		hits, misses := c.Stats()
		assert.Equal(t, int64(1), hits)
		assert.Equal(t, int64(1), misses)
	})
}
