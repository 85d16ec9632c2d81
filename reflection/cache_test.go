package reflection

import (
	"strconv"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLRUEvictsOldest(t *testing.T) {
	c := NewLRUCache[string, int](5)
	for i := 1; i <= 6; i++ {
		c.Put(strconv.Itoa(i), i)
	}
	if c.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", c.Len())
	}
	if diff := cmp.Diff([]string{"6", "5", "4", "3", "2"}, c.Keys()); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}
	if _, ok := c.Get("1"); ok {
		t.Error("key 1 should have been evicted")
	}
}

func TestLRUCapacityProperty(t *testing.T) {
	for n := 1; n <= 8; n++ {
		for k := 0; k <= 4; k++ {
			c := NewLRUCache[int, int](n)
			for i := 0; i < n+k; i++ {
				c.Put(i, i)
			}
			if c.Len() != n {
				t.Fatalf("n=%d k=%d: Len() = %d", n, k, c.Len())
			}
			keys := c.Keys()
			for j, key := range keys {
				if want := n + k - 1 - j; key != want {
					t.Fatalf("n=%d k=%d: Keys()[%d] = %d, want %d", n, k, j, key, want)
				}
			}
		}
	}
}

func TestLRUGetRefreshesRecency(t *testing.T) {
	c := NewLRUCache[string, int](3)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)
	c.Get("a")
	c.Put("d", 4)
	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted after a was touched")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v", v, ok)
	}
}

func TestLRUPutExistingUpdates(t *testing.T) {
	c := NewLRUCache[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("a", 10)
	if diff := cmp.Diff([]string{"a", "b"}, c.Keys()); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}
	if v, _ := c.Get("a"); v != 10 {
		t.Errorf("Get(a) = %d, want 10", v)
	}
}

func TestLRURemoveClearStats(t *testing.T) {
	c := NewLRUCache[string, int](0)
	if c.Capacity() != 1 {
		t.Fatalf("Capacity() = %d, want 1", c.Capacity())
	}
	c.Put("a", 1)
	if !c.Remove("a") || c.Remove("a") {
		t.Error("Remove should report presence once")
	}
	c.Put("b", 2)
	c.Get("b")
	c.Get("zzz")
	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("Stats() = %d, %d; want 1, 1", hits, misses)
	}
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d", c.Len())
	}
}

func TestLRUConcurrentAccess(t *testing.T) {
	c := NewLRUCache[int, int](16)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				c.Put(g*1000+i, i)
				c.Get(g*1000 + i/2)
			}
		}(g)
	}
	wg.Wait()
	if c.Len() != 16 {
		t.Errorf("Len() = %d, want 16", c.Len())
	}
}

func TestMethodDescriptorKey(t *testing.T) {
	a := MethodDescriptor{Class: "x.C", Name: "m", Params: []string{"lang.String", "int"}}
	b := MethodDescriptor{Class: "x.C", Name: "m", Params: []string{"lang.String", "int"}}
	c := MethodDescriptor{Class: "x.C", Name: "m", Params: []string{"lang.Stringint"}}
	d := MethodDescriptor{Class: "x.C", Name: "m", Static: true, Params: []string{"lang.String", "int"}}
	if !a.Equal(b) || a.Key() != b.Key() {
		t.Error("identical descriptors should be equal")
	}
	if a.Equal(c) || a.Key() == c.Key() {
		t.Error("differently split parameters must not collide")
	}
	if a.Equal(d) || a.Key() == d.Key() {
		t.Error("static and instance descriptors must not collide")
	}
}
