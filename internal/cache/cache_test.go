package cache

import (
	"slices"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func appendItem(v int) func([]int) []int {
	return func(s []int) []int { return append(s, v) }
}

func TestReadWriteAge(t *testing.T) {
	clk := newClock()
	c := New[int](WithClock(clk.Now))

	if _, _, ok := c.Read("k"); ok {
		t.Fatal("Read on empty cache reported ok")
	}

	c.Write("k", []int{1, 2})
	clk.Advance(10 * time.Second)

	data, age, ok := c.Read("k")
	if !ok || !slices.Equal(data, []int{1, 2}) || age != 10*time.Second {
		t.Fatalf("Read = %v %v %v", data, age, ok)
	}
	if !c.Fresh("k", 30*time.Second) {
		t.Error("entry should be fresh within ttl")
	}
	clk.Advance(20 * time.Second)
	if c.Fresh("k", 30*time.Second) {
		t.Error("entry should be stale at ttl")
	}

	// Callers get copies.
	data[0] = 99
	again, _, _ := c.Read("k")
	if again[0] != 1 {
		t.Error("Read leaked the stored slice")
	}
}

func TestInvalidate(t *testing.T) {
	c := New[int]()
	c.Write("a", []int{1})
	c.Write("b", []int{2})

	c.Invalidate("a")
	if _, _, ok := c.Read("a"); ok {
		t.Error("a still cached after Invalidate")
	}
	c.InvalidateAll()
	if _, _, ok := c.Read("b"); ok {
		t.Error("b still cached after InvalidateAll")
	}
}

func TestRollbackRestoresExactly(t *testing.T) {
	c := New[int]()
	c.Write("k", []int{1, 2, 3})

	m := c.MutateOptimistic("k", appendItem(4), nil)
	if data, _, _ := c.Read("k"); !slices.Equal(data, []int{1, 2, 3, 4}) {
		t.Fatalf("after mutate = %v", data)
	}
	if c.Pending("k") != 1 {
		t.Fatalf("Pending = %d", c.Pending("k"))
	}

	c.Rollback(m)
	c.Rollback(m) // second call is a no-op
	if data, _, _ := c.Read("k"); !slices.Equal(data, []int{1, 2, 3}) {
		t.Fatalf("after rollback = %v", data)
	}
	if c.Pending("k") != 0 {
		t.Fatalf("Pending after rollback = %d", c.Pending("k"))
	}
}

func TestRollbackUsesUndoWhenOthersWrote(t *testing.T) {
	c := New[int]()
	c.Write("k", []int{1})

	m1 := c.MutateOptimistic("k", appendItem(2), func(s []int) []int {
		out, _ := Remove(s, 2, func(v int) int { return v })
		return out
	})
	m2 := c.MutateOptimistic("k", appendItem(3), nil)

	c.Rollback(m1)
	c.Commit(m2, nil)

	if data, _, _ := c.Read("k"); !slices.Equal(data, []int{1, 3}) {
		t.Fatalf("got %v, want [1 3]", data)
	}
}

func TestCommitReconciles(t *testing.T) {
	c := New[int]()
	c.Write("k", []int{1})

	m := c.MutateOptimistic("k", appendItem(-1), nil)
	c.Commit(m, func(s []int) []int {
		s, _ = Replace(s, -1, func(v int) int { return v }, 42)
		return s
	})

	if data, _, _ := c.Read("k"); !slices.Equal(data, []int{1, 42}) {
		t.Fatalf("got %v", data)
	}
	if c.Pending("k") != 0 {
		t.Error("mutation still pending after commit")
	}
}

func TestWriteFetchedGuard(t *testing.T) {
	clk := newClock()
	c := New[int](WithClock(clk.Now))
	c.Write("k", []int{1})

	// Refresh started, then the user mutated before it returned.
	fetchStart := c.Now()
	clk.Advance(time.Second)
	m := c.MutateOptimistic("k", appendItem(2), nil)

	if c.WriteFetched("k", []int{1}, fetchStart) {
		t.Fatal("fetch overwrote a pending mutation")
	}

	c.Commit(m, nil)
	if c.WriteFetched("k", []int{1}, fetchStart) {
		t.Fatal("fetch older than the mutation overwrote it")
	}
	if data, _, _ := c.Read("k"); !slices.Equal(data, []int{1, 2}) {
		t.Fatalf("got %v", data)
	}

	clk.Advance(time.Second)
	if !c.WriteFetched("k", []int{1, 2, 5}, c.Now()) {
		t.Fatal("fresh fetch was refused")
	}
	if data, _, _ := c.Read("k"); !slices.Equal(data, []int{1, 2, 5}) {
		t.Fatalf("got %v", data)
	}
}

func TestInvalidateKeepsPendingEntry(t *testing.T) {
	c := New[int]()
	c.Write("k", []int{1})
	m := c.MutateOptimistic("k", appendItem(2), nil)

	c.Invalidate("k")
	if c.Fresh("k", time.Hour) {
		t.Error("invalidated entry still fresh")
	}
	c.Rollback(m)
	if data, _, _ := c.Read("k"); !slices.Equal(data, []int{1}) {
		t.Fatalf("got %v", data)
	}
}

func TestResetEmptiesPendingEntry(t *testing.T) {
	c := New[int]()
	c.Write("k", []int{1})
	m := c.MutateOptimistic("k", appendItem(2), nil)

	c.Reset("k")
	if data, _, ok := c.Read("k"); !ok || len(data) != 0 {
		t.Fatalf("after reset got %v ok=%v", data, ok)
	}
	if c.Pending("k") != 1 {
		t.Fatalf("pending = %d", c.Pending("k"))
	}
	if c.WriteFetched("k", []int{7}, c.Now()) {
		t.Error("fetch written over a pending mutation")
	}
	c.Update("k", appendItem(7))

	c.Rollback(m)
	if data, _, _ := c.Read("k"); !slices.Equal(data, []int{7}) {
		t.Fatalf("rollback touched the new list: %v", data)
	}
	if c.Pending("k") != 0 {
		t.Errorf("pending = %d", c.Pending("k"))
	}

	c.Reset("k")
	if _, _, ok := c.Read("k"); ok {
		t.Error("settled entry kept after reset")
	}
}

func TestMergeUnique(t *testing.T) {
	id := func(v int) int { return v }

	merged, added := MergeUnique([]int{1, 2}, []int{2, 3, 3, 4}, id)
	if !slices.Equal(merged, []int{1, 2, 3, 4}) || added != 2 {
		t.Fatalf("MergeUnique = %v, %d", merged, added)
	}

	merged, added = MergeUnique([]int{1, 2}, []int{2, 1}, id)
	if !slices.Equal(merged, []int{1, 2}) || added != 0 {
		t.Fatalf("all-duplicate merge = %v, %d", merged, added)
	}
}

func TestRemoveInsert(t *testing.T) {
	id := func(v int) int { return v }
	s, idx := Remove([]int{1, 2, 3}, 2, id)
	if !slices.Equal(s, []int{1, 3}) || idx != 1 {
		t.Fatalf("Remove = %v, %d", s, idx)
	}
	s = Insert(s, idx, 2)
	if !slices.Equal(s, []int{1, 2, 3}) {
		t.Fatalf("Insert = %v", s)
	}
	s = Insert(s, 99, 4)
	if !slices.Equal(s, []int{1, 2, 3, 4}) {
		t.Fatalf("Insert past end = %v", s)
	}
}
