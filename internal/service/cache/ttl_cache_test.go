package cache

import (
	"testing"
	"time"

	"github.com/peterldowns/testy/check"
)

func TestTTLCacheExpiry(t *testing.T) {
	now := time.Unix(1000, 0)
	c := NewTTLCache[map[string]float64](time.Minute)
	c.now = func() time.Time { return now }

	c.Set("travel", map[string]float64{"amex": 1.5})
	got, ok := c.Get("travel")
	check.True(t, ok)
	check.Equal(t, 1.5, got["amex"])

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("travel")
	check.False(t, ok)
	check.Equal(t, 0, c.Len())
}

func TestTTLCacheForever(t *testing.T) {
	c := NewTTLCache[int](0)
	c.Set("a", 1)
	c.now = func() time.Time { return time.Now().Add(24 * time.Hour) }
	v, ok := c.Get("a")
	check.True(t, ok)
	check.Equal(t, 1, v)

	c.Delete("a")
	_, ok = c.Get("a")
	check.False(t, ok)
}
