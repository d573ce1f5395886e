package cache

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func TestLRUCache_Eviction(t *testing.T) {
	c := NewLRUCache[int](2, time.Hour)
	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("Get(a) missed")
	}
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted as least recently used")
	}
	for _, k := range []string{"a", "c"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("Get(%s) missed", k)
		}
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}
}

func TestLRUCache_Expiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](10, time.Minute).WithClock(clock.Now)

	c.Set("long", "x")
	c.SetUntil("short", "y", clock.t.Add(10*time.Second))
	c.SetUntil("capped", "z", clock.t.Add(time.Hour))

	clock.Advance(30 * time.Second)
	if _, ok := c.Get("short"); ok {
		t.Error("short should have expired")
	}
	if v, ok := c.Get("long"); !ok || v != "x" {
		t.Errorf("Get(long) = %q, %v", v, ok)
	}

	clock.Advance(time.Minute)
	if n := c.CleanExpired(); n != 2 {
		t.Errorf("CleanExpired() = %d, want 2", n)
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d, want 0", c.Size())
	}
}

func TestLRUCache_DeletePrefix(t *testing.T) {
	c := NewLRUCache[int](10, time.Hour)
	c.Set("user:a|1", 1)
	c.Set("user:a|2", 2)
	c.Set("user:b|1", 3)

	if n := c.DeletePrefix("user:a|"); n != 2 {
		t.Fatalf("DeletePrefix() = %d, want 2", n)
	}
	if _, ok := c.Get("user:b|1"); !ok {
		t.Error("other owner's entry was removed")
	}
}

func TestLRUCache_EvictCallback(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)}
	var evicted []string
	c := NewLRUCache[int](2, time.Minute).WithClock(clock.Now).WithEvict(func(key string, _ int) {
		evicted = append(evicted, key)
	})

	c.Set("a", 1)
	c.Set("a", 2)
	if len(evicted) != 0 {
		t.Fatalf("replacing a value evicted %v", evicted)
	}
	c.Set("b", 3)
	c.Set("c", 4)
	if len(evicted) != 1 || evicted[0] != "a" {
		t.Fatalf("capacity eviction = %v, want [a]", evicted)
	}

	clock.Advance(2 * time.Minute)
	if n := c.CleanExpired(); n != 2 {
		t.Fatalf("CleanExpired() = %d, want 2", n)
	}
	if len(evicted) != 3 {
		t.Fatalf("evicted = %v, want 3 keys", evicted)
	}

	c.Set("d", 5)
	c.Delete("d")
	c.Set("e", 6)
	c.Set("f", 7)
	if n := c.Purge(); n != 2 {
		t.Fatalf("Purge() = %d, want 2", n)
	}
	if len(evicted) != 6 || c.Size() != 0 {
		t.Fatalf("evicted = %v, size = %d", evicted, c.Size())
	}
}

func TestLRUCache_EvictCallbackMayUseCache(t *testing.T) {
	c := NewLRUCache[int](1, time.Hour)
	c.WithEvict(func(key string, _ int) {
		// runs outside the lock, so reading the cache must not deadlock
		if _, ok := c.Get(key); ok {
			t.Errorf("%s still cached after eviction", key)
		}
	})
	c.Set("a", 1)
	c.Set("b", 2)
}

func TestManager_Sweep(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	a := NewLRUCache[int](10, time.Second).WithClock(clock.Now)
	b := NewLRUCache[int](10, time.Second).WithClock(clock.Now)
	a.Set("x", 1)
	b.Set("y", 2)

	m := NewManager(nil)
	m.Register(a, b)
	clock.Advance(2 * time.Second)
	if n := m.Sweep(); n != 2 {
		t.Errorf("Sweep() = %d, want 2", n)
	}

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}
