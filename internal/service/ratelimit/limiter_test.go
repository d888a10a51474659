package ratelimit

import (
	"testing"
	"time"

	"github.com/peterldowns/testy/check"
)

func TestLimiterRefill(t *testing.T) {
	now := time.Unix(0, 0)
	l := New(2, 1)
	l.now = func() time.Time { return now }

	check.True(t, l.Allow("s1"))
	check.True(t, l.Allow("s1"))
	check.False(t, l.Allow("s1"))
	check.True(t, l.Allow("s2"))

	now = now.Add(1500 * time.Millisecond)
	check.True(t, l.Allow("s1"))
	check.False(t, l.Allow("s1"))

	l.Forget("s1")
	check.True(t, l.Allow("s1"))
}

func TestLimiterDisabled(t *testing.T) {
	l := New(0, 0)
	for i := 0; i < 10; i++ {
		check.True(t, l.Allow("any"))
	}
	var nilLimiter *Limiter
	check.True(t, nilLimiter.Allow("any"))
}
