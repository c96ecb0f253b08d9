package lru

import (
	"strconv"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestGetSet(t *testing.T) {
	c := New[string, int](2)

	if _, ok := c.Get("a"); ok {
		t.Fatal("empty cache returned a value")
	}
	c.Set("a", 1)
	c.Set("b", 2)

	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %d, %v; want 1, true", v, ok)
	}
	c.Set("a", 10)
	if v, _ := c.Get("a"); v != 10 {
		t.Fatalf("Get(a) after replace = %d, want 10", v)
	}
	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	var evicted []string
	c := New(3, WithEvictHandler(func(k string, _ int) { evicted = append(evicted, k) }))

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)
	c.Get("a") // b is now the oldest
	c.Set("d", 4)
	c.Set("e", 5)

	if diff := cmp.Diff([]string{"b", "c"}, evicted); diff != "" {
		t.Errorf("evicted mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"e", "d", "a"}, c.Keys()); diff != "" {
		t.Errorf("Keys mismatch (-want +got):\n%s", diff)
	}
	if c.Contains("b") {
		t.Error("evicted key still present")
	}
}

func TestReplaceDoesNotEvict(t *testing.T) {
	evictions := 0
	c := New(1, WithEvictHandler(func(int, int) { evictions++ }))
	c.Set(1, 1)
	c.Set(1, 2)
	if evictions != 0 {
		t.Errorf("replacing a key evicted %d entries", evictions)
	}
}

func TestDeleteAndClear(t *testing.T) {
	c := New[int, int](4)
	for i := range 4 {
		c.Set(i, i)
	}
	if !c.Delete(2) || c.Delete(2) {
		t.Fatal("Delete should succeed exactly once")
	}
	if diff := cmp.Diff([]int{3, 1, 0}, c.Keys()); diff != "" {
		t.Errorf("Keys mismatch (-want +got):\n%s", diff)
	}
	c.Clear()
	if c.Len() != 0 || len(c.Keys()) != 0 {
		t.Error("Clear left entries")
	}
	c.Set(9, 9)
	if v, ok := c.Get(9); !ok || v != 9 {
		t.Error("cache unusable after Clear")
	}
}

func TestCapacityFloor(t *testing.T) {
	c := New[int, int](0)
	if c.Capacity() != 1 {
		t.Fatalf("Capacity() = %d, want 1", c.Capacity())
	}
	c.Set(1, 1)
	c.Set(2, 2)
	if c.Len() != 1 || !c.Contains(2) {
		t.Error("zero capacity cache should keep the newest entry")
	}
}

func TestStats(t *testing.T) {
	c := New[int, int](1)
	c.Set(1, 1)
	c.Get(1)
	c.Get(2)
	c.Set(2, 2)

	want := Stats{Len: 1, Capacity: 1, Hits: 1, Misses: 1, Evictions: 1}
	if diff := cmp.Diff(want, c.Stats()); diff != "" {
		t.Errorf("Stats mismatch (-want +got):\n%s", diff)
	}
	if got := c.Stats().HitRate(); got != 0.5 {
		t.Errorf("HitRate() = %v, want 0.5", got)
	}
	if got := (Stats{}).HitRate(); got != 0 {
		t.Errorf("empty HitRate() = %v, want 0", got)
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New[int, int](16)
	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 1000 {
				k := (g*31 + i) % 64
				c.Set(k, i)
				c.Get(k)
			}
		}()
	}
	wg.Wait()
	if c.Len() > 16 {
		t.Errorf("Len() = %d exceeds capacity", c.Len())
	}
	if len(c.Keys()) != c.Len() {
		t.Error("recency list and map disagree")
	}
}

func BenchmarkGet(b *testing.B) {
	c := New[string, int](1000)
	for i := range 100 {
		c.Set(strconv.Itoa(i), i)
	}
	b.ResetTimer()
	for range b.N {
		c.Get("50")
	}
}

func BenchmarkSet(b *testing.B) {
	c := New[string, int](64)
	b.ResetTimer()
	for i := range b.N {
		c.Set(strconv.Itoa(i%100), i)
	}
}
