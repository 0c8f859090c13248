package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SetGet(t *testing.T) {
	c := NewCache(time.Minute)
	defer c.Stop()

	c.Set("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestCache_Expiry(t *testing.T) {
	c := NewCache(time.Minute)
	defer c.Stop()

	c.SetWithTTL("a", 1, 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestCache_Delete(t *testing.T) {
	c := NewCache(time.Minute)
	defer c.Stop()

	c.Set("a", 1)
	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestCache_InvalidateByPrefix(t *testing.T) {
	c := NewCache(time.Minute)
	defer c.Stop()

	c.Set("room:1", 1)
	c.Set("room:2", 2)
	c.Set("user:1", 3)

	c.Invalidate("room:")

	_, ok := c.Get("room:1")
	assert.False(t, ok)
	_, ok = c.Get("room:2")
	assert.False(t, ok)
	_, ok = c.Get("user:1")
	assert.True(t, ok)
	assert.Equal(t, 1, c.Size())
}

func TestCache_GetOrSet(t *testing.T) {
	c := NewCache(time.Minute)
	defer c.Stop()

	calls := 0
	fallback := func(context.Context) (interface{}, error) {
		calls++
		return "value", nil
	}

	v, err := c.GetOrSet(context.Background(), "k", fallback, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "value", v)

	v, err = c.GetOrSet(context.Background(), "k", fallback, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "value", v)
	assert.Equal(t, 1, calls)
}

func TestCache_GetOrSetFallbackError(t *testing.T) {
	c := NewCache(time.Minute)
	defer c.Stop()

	boom := errors.New("boom")
	_, err := c.GetOrSet(context.Background(), "k", func(context.Context) (interface{}, error) {
		return nil, boom
	}, time.Minute)
	assert.ErrorIs(t, err, boom)

	// Failures are not cached.
	_, ok := c.Get("k")
	assert.False(t, ok)
}
