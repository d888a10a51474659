package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	type snap struct {
		Rate float64 `json:"rate"`
	}
	assert.NoError(t, mc.Set(ctx, "a", snap{Rate: 0.04}, 0))
	var got snap
	assert.NoError(t, mc.Get(ctx, "a", &got))
	check.Equal(t, 0.04, got.Rate)

	assert.NoError(t, mc.Set(ctx, "s", "plain", 0))
	var s string
	assert.NoError(t, mc.Get(ctx, "s", &s))
	check.Equal(t, "plain", s)

	ok, err := mc.Exists(ctx, "missing", "a")
	check.NoError(t, err)
	check.True(t, ok)

	assert.NoError(t, mc.Delete(ctx, "a"))
	check.True(t, errors.Is(mc.Get(ctx, "a", &got), ErrCacheMiss))
}

func TestMemoryCacheExpiryAndEviction(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()

	assert.NoError(t, mc.Set(ctx, "gone", 1, time.Nanosecond))
	time.Sleep(time.Millisecond)
	var v int
	check.True(t, errors.Is(mc.Get(ctx, "gone", &v), ErrCacheMiss))

	assert.NoError(t, mc.Set(ctx, "x", 1, 0))
	time.Sleep(time.Millisecond)
	assert.NoError(t, mc.Set(ctx, "y", 2, 0))
	time.Sleep(time.Millisecond)
	assert.NoError(t, mc.Set(ctx, "z", 3, 0))

	ok, _ := mc.Exists(ctx, "x")
	check.False(t, ok)
	got, err := MGetTyped[int](ctx, mc, "y", "z")
	check.NoError(t, err)
	check.Equal(t, map[string]int{"y": 2, "z": 3}, got)
}

func TestGenerateKey(t *testing.T) {
	check.Equal(t, "rates:s1", GenerateKey("rates", "s1"))
	check.Equal(t, "strengths", GenerateKey("strengths"))
	check.Equal(t, "a:1:b", GenerateKey("a", 1, "b"))
}
