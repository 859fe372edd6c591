package cache

import (
	"errors"
	"testing"
	"time"
)

func TestTTLCache(t *testing.T) {
	c := NewTTLCache[string]()

	c.Set("k", "v", time.Minute)
	if value, found := c.Get("k"); !found || value != "v" {
		t.Errorf("Get() = %v, %v, want v, true", value, found)
	}

	c.Set("short", "x", 50*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	if _, found := c.Get("short"); found {
		t.Error("Get() after expiration should return false")
	}

	c.Delete("k")
	if _, found := c.Get("k"); found {
		t.Error("Get() after Delete() should return false")
	}

	c.Set("gone", "y", 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	c.Cleanup()
	if size := c.Size(); size != 0 {
		t.Errorf("Size() after Cleanup() = %v, want 0", size)
	}
}

func TestGetOrLoad(t *testing.T) {
	c := NewTTLCache[int]()
	calls := 0
	load := func() (int, error) {
		calls++
		return 42, nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrLoad(KeySystemdServices, time.Minute, load)
		if err != nil || v != 42 {
			t.Fatalf("GetOrLoad = %v, %v", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("load called %d times, want 1", calls)
	}

	boom := errors.New("boom")
	if _, err := c.GetOrLoad("other", time.Minute, func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if _, found := c.Get("other"); found {
		t.Error("failed load was cached")
	}
}

func TestRing(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		push     int
		expected []int
	}{
		{"未满", 5, 3, []int{0, 1, 2}},
		{"刚好满", 3, 3, []int{0, 1, 2}},
		{"溢出保留最新", 3, 7, []int{4, 5, 6}},
		{"容量为一", 1, 4, []int{3}},
		{"空", 4, 0, []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRing[int](tt.capacity)
			for i := 0; i < tt.push; i++ {
				r.Push(i)
				if r.Len() > r.Cap() {
					t.Fatalf("Len %d exceeds Cap %d", r.Len(), r.Cap())
				}
			}
			got := r.Snapshot()
			if len(got) != len(tt.expected) {
				t.Fatalf("Snapshot() = %v, expected %v", got, tt.expected)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("Snapshot() = %v, expected %v", got, tt.expected)
					break
				}
			}
		})
	}
}

func TestRingSnapshotIsCopy(t *testing.T) {
	r := NewRing[string](2)
	r.Push("a")
	snap := r.Snapshot()
	snap[0] = "mutated"
	if r.Snapshot()[0] != "a" {
		t.Error("Snapshot shares backing array")
	}
}

func TestRingLargeCapacity(t *testing.T) {
	r := NewRing[int](5000)
	for i := 0; i < 12345; i++ {
		r.Push(i)
	}
	snap := r.Snapshot()
	if len(snap) != 5000 {
		t.Fatalf("len = %d, want 5000", len(snap))
	}
	if snap[0] != 12345-5000 || snap[len(snap)-1] != 12344 {
		t.Errorf("first=%d last=%d", snap[0], snap[len(snap)-1])
	}
}
