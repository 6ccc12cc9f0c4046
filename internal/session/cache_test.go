package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLRUCache_Expiry(t *testing.T) {
	now := time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC)
	c := newLRUCache[string](10)
	c.now = func() time.Time { return now }

	c.set("a", "alpha", now.Add(time.Minute))
	v, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "alpha", v)

	now = now.Add(time.Minute)
	_, ok = c.get("a")
	assert.False(t, ok, "entry expires at its deadline")
	assert.Equal(t, 0, c.len())
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := newLRUCache[int](2)
	expires := time.Now().Add(time.Hour)

	c.set("a", 1, expires)
	c.set("b", 2, expires)
	_, _ = c.get("a")
	c.set("c", 3, expires)

	_, ok := c.get("b")
	assert.False(t, ok)
	_, ok = c.get("a")
	assert.True(t, ok)
	_, ok = c.get("c")
	assert.True(t, ok)
}

func TestLRUCache_UpdateAndDelete(t *testing.T) {
	c := newLRUCache[int](2)
	expires := time.Now().Add(time.Hour)

	c.set("a", 1, expires)
	c.set("a", 2, expires)
	assert.Equal(t, 1, c.len())
	v, _ := c.get("a")
	assert.Equal(t, 2, v)

	c.delete("a")
	c.delete("missing")
	assert.Equal(t, 0, c.len())
}

func TestLRUCache_CleanupExpired(t *testing.T) {
	now := time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC)
	c := newLRUCache[int](10)
	c.now = func() time.Time { return now }

	c.set("old", 1, now.Add(-time.Second))
	c.set("older", 2, now.Add(-time.Hour))
	c.set("fresh", 3, now.Add(time.Hour))

	assert.Equal(t, 2, c.cleanupExpired())
	assert.Equal(t, 1, c.len())
}
