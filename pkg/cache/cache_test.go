package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := NewTTL[string, int](time.Minute, 0)
	c.SetClock(func() time.Time { return now })

	c.Set("a", 1, 0)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	now = now.Add(time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestTTLMaxSizeEvictsEarliestExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := NewTTL[int, string](time.Hour, 2)
	c.SetClock(func() time.Time { return now })

	c.Set(1, "one", 10*time.Second)
	c.Set(2, "two", time.Minute)
	c.Set(3, "three", 0)

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get(1)
	assert.False(t, ok)
	_, ok = c.Get(3)
	assert.True(t, ok)

	// 覆盖已有 key 不触发淘汰
	c.Set(2, "two'", 0)
	v, _ := c.Get(2)
	assert.Equal(t, "two'", v)
	assert.Equal(t, 2, c.Len())

	c.Delete(2)
	assert.Equal(t, 1, c.Len())
}
