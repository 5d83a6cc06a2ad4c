package cache

import (
	"context"
	"testing"
	"time"
)

func TestLRUCacheGetSet(t *testing.T) {
	c := NewLRUCache[string](10, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Set("a", "one")
	got, ok := c.Get("a")
	if !ok || got != "one" {
		t.Fatalf("Get(a) = %q, %v", got, ok)
	}

	c.Set("a", "two")
	got, _ = c.Get("a")
	if got != "two" {
		t.Fatalf("Get(a) after overwrite = %q, want two", got)
	}
	if c.Size() != 1 {
		t.Fatalf("Size = %d, want 1", c.Size())
	}
}

func TestLRUCacheTTLExpiry(t *testing.T) {
	c := NewLRUCache[string](10, 10*time.Millisecond)
	c.Set("a", "one")

	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("a"); ok {
		t.Fatal("expected expired entry to miss")
	}
	if c.Size() != 0 {
		t.Fatalf("Size = %d, expired entry must be removed on access", c.Size())
	}
}

func TestLRUCacheEviction(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	// Touch "a" so "b" becomes the oldest.
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatal("expected least recently used key to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatal("recently used key must survive eviction")
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatal("new key must be present")
	}
	if c.Size() != 2 {
		t.Fatalf("Size = %d, want 2", c.Size())
	}
}

func TestLRUCacheDeletePrefix(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.Set("report:p1:a", 1)
	c.Set("report:p1:b", 2)
	c.Set("report:p2:a", 3)

	c.DeletePrefix("report:p1:")

	if _, ok := c.Get("report:p1:a"); ok {
		t.Fatal("prefixed key must be gone")
	}
	if _, ok := c.Get("report:p1:b"); ok {
		t.Fatal("prefixed key must be gone")
	}
	if _, ok := c.Get("report:p2:a"); !ok {
		t.Fatal("key outside the prefix must survive")
	}
}

func TestLRUCacheCleanExpired(t *testing.T) {
	c := NewLRUCache[int](10, 10*time.Millisecond)
	c.Set("a", 1)
	c.Set("b", 2)

	time.Sleep(20 * time.Millisecond)
	c.Set("c", 3)

	if removed := c.CleanExpired(); removed != 2 {
		t.Fatalf("CleanExpired = %d, want 2", removed)
	}
	if c.Size() != 1 {
		t.Fatalf("Size = %d, want 1", c.Size())
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10, time.Minute)

	s.Set(ctx, "report:p1:x", []byte("payload"))
	got, ok := s.Get(ctx, "report:p1:x")
	if !ok || string(got) != "payload" {
		t.Fatalf("Get = %q, %v", got, ok)
	}

	s.Delete(ctx, "report:p1:x")
	if _, ok := s.Get(ctx, "report:p1:x"); ok {
		t.Fatal("expected miss after Delete")
	}

	s.Set(ctx, "report:p1:x", []byte("one"))
	s.Set(ctx, "report:p1:y", []byte("two"))
	s.DeletePrefix(ctx, "report:p1:")
	if _, ok := s.Get(ctx, "report:p1:x"); ok {
		t.Fatal("expected miss after DeletePrefix")
	}
}
