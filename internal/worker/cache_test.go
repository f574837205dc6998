package worker

import (
	"testing"
	"time"
)

func TestCacheHitWithinTTL(t *testing.T) {
	c := NewCache(2 * time.Second)
	base := time.Now()
	c.now = func() time.Time { return base }
	c.Put("geom:main", "0,0,1920x1080")

	c.now = func() time.Time { return base.Add(1900 * time.Millisecond) }
	if got, ok := c.Get("geom:main"); !ok || got != "0,0,1920x1080" {
		t.Fatalf("expected fresh hit, got %q ok=%v", got, ok)
	}
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache(2 * time.Second)
	base := time.Now()
	c.now = func() time.Time { return base }
	c.Put("geom:main", "0,0,1920x1080")

	c.now = func() time.Time { return base.Add(2 * time.Second) }
	if _, ok := c.Get("geom:main"); ok {
		t.Fatalf("expected entry to expire at TTL")
	}
	if _, ok := c.Get("geom:main"); ok {
		t.Fatalf("expired entry must stay gone")
	}
}

func TestCacheInvalidate(t *testing.T) {
	c := NewCache(0)
	c.Put("k", "v")
	c.Invalidate("k")
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected invalidated entry to miss")
	}
}
