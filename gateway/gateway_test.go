package gateway

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/gobridge/callback"
	"github.com/chazu/gobridge/protocol"
	"github.com/chazu/gobridge/reflection"
)

type entry struct{ name string }

func newTestGateway() *Gateway {
	return New(reflection.NewEngine(reflection.NewRegistry(), 16), &entry{name: "main"}, nil)
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

func TestPutGetDelete(t *testing.T) {
	g := newTestGateway()
	obj := &entry{name: "a"}
	id := g.Put(obj)
	if id != "o0" {
		t.Errorf("first id = %q, want o0", id)
	}
	if id2 := g.Put(&entry{}); id2 != "o1" {
		t.Errorf("second id = %q, want o1", id2)
	}
	got, err := g.Get(id)
	if err != nil || got != obj {
		t.Fatalf("Get(%s) = %v, %v", id, got, err)
	}
	if !g.Delete(id) {
		t.Error("first Delete returned false")
	}
	if g.Delete(id) {
		t.Error("second Delete returned true")
	}
	var nf *protocol.NotFoundError
	if _, err := g.Get(id); !errors.As(err, &nf) {
		t.Errorf("Get after Delete error = %v, want NotFoundError", err)
	}
}

func TestReservedIDs(t *testing.T) {
	g := newTestGateway()
	if g.ControlObject() != nil {
		t.Error("ControlObject() should be nil before a server is bound")
	}
	if e, ok := g.EntryPoint().(*entry); !ok || e.name != "main" {
		t.Errorf("EntryPoint() = %#v", g.EntryPoint())
	}
	if g.DefaultView() == nil {
		t.Fatal("default view missing")
	}
	for _, id := range []string{protocol.EntryPointObjectID, protocol.DefaultViewID} {
		if g.Delete(id) {
			t.Errorf("Delete(%s) removed a reserved id", id)
		}
	}
	g.BindServer("control")
	if g.ControlObject() != "control" {
		t.Errorf("ControlObject() = %v", g.ControlObject())
	}
}

func TestHooksAndClear(t *testing.T) {
	g := newTestGateway()
	var mu sync.Mutex
	var puts, deletes []string
	g.OnPut(func(id string, _ any) {
		mu.Lock()
		defer mu.Unlock()
		puts = append(puts, id)
	})
	g.OnDelete(func(id string, _ any) {
		mu.Lock()
		defer mu.Unlock()
		deletes = append(deletes, id)
	})

	a := g.Put(1)
	b := g.Put(2)
	g.Delete(a)
	g.Delete(a)
	if diff := cmp.Diff([]string{a, b}, puts); diff != "" {
		t.Errorf("put hooks mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{a}, deletes); diff != "" {
		t.Errorf("delete hooks mismatch (-want +got):\n%s", diff)
	}

	size := g.Size()
	g.Shutdown()
	if g.Size() != 0 {
		t.Errorf("Size() after Shutdown = %d", g.Size())
	}
	if len(deletes) != 1+size {
		t.Errorf("delete hooks fired %d times, want %d", len(deletes), 1+size)
	}
}

func TestConcurrentPut(t *testing.T) {
	g := newTestGateway()
	base := g.Size()
	var wg sync.WaitGroup
	ids := make(chan string, 400)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				ids <- g.Put(i)
			}
		}()
	}
	wg.Wait()
	close(ids)
	seen := map[string]bool{}
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
	if g.Size() != base+400 {
		t.Errorf("Size() = %d, want %d", g.Size(), base+400)
	}
}

// ---------------------------------------------------------------------------
// Wire values
// ---------------------------------------------------------------------------

func TestBindAndResolve(t *testing.T) {
	g := newTestGateway()
	tests := []struct {
		value any
		want  string
	}{
		{nil, "n"},
		{true, "btrue"},
		{int32(5), "i5"},
		{5, "L5"},
		{"a\nb", `sa\nb`},
		{protocol.Void{}, "v"},
		{[]byte("hi"), "jaGk="},
		{protocol.ClassMarker("lang.String"), "clang.String"},
		{uint8(200), "i200"},
		{uint16(65535), "i65535"},
		{uint32(4000000000), "L4000000000"},
	}
	before := g.Size()
	for _, tt := range tests {
		got, err := g.Bind(tt.value)
		if err != nil {
			t.Fatalf("Bind(%#v): %v", tt.value, err)
		}
		if got != tt.want {
			t.Errorf("Bind(%#v) = %q, want %q", tt.value, got, tt.want)
		}
	}
	if g.Size() != before {
		t.Errorf("binding wire values registered %d objects", g.Size()-before)
	}

	obj := &entry{name: "x"}
	token, err := g.Bind(obj)
	if err != nil {
		t.Fatalf("Bind(obj): %v", err)
	}
	if token[0] != protocol.ReferenceType {
		t.Fatalf("Bind(obj) = %q, want a reference", token)
	}
	decoded, _ := protocol.Decode(token)
	back, err := g.Resolve(decoded)
	if err != nil || back != obj {
		t.Errorf("Resolve(%q) = %v, %v", token, back, err)
	}

	arr := reflection.NewArray(reflection.Int, []any{int32(1)})
	token, _ = g.Bind(arr)
	if token[0] != protocol.ArrayType {
		t.Errorf("Bind(array) = %q, want an array reference", token)
	}

	proxy, err := g.Resolve(protocol.ProxyReference{ID: "p7", Interfaces: []string{"x.Listener"}})
	if err != nil {
		t.Fatalf("Resolve(proxy): %v", err)
	}
	p, ok := proxy.(*callback.Proxy)
	if !ok || p.ID != "p7" {
		t.Fatalf("Resolve(proxy) = %#v", proxy)
	}
	if token, _ := g.Bind(p); token != "fp7" {
		t.Errorf("Bind(proxy) = %q, want fp7", token)
	}
}

func TestDecodeArgs(t *testing.T) {
	g := newTestGateway()
	id := g.Put("target")
	args, err := g.DecodeArgs([]string{"i1", "r" + id, "n"})
	if err != nil {
		t.Fatalf("DecodeArgs: %v", err)
	}
	if diff := cmp.Diff([]any{int32(1), "target", nil}, args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
	var nf *protocol.NotFoundError
	if _, err := g.DecodeArgs([]string{"rmissing"}); !errors.As(err, &nf) {
		t.Errorf("unknown reference error = %v", err)
	}
	var pe *protocol.ProtocolError
	if _, err := g.DecodeArgs([]string{"?"}); !errors.As(err, &pe) {
		t.Errorf("bad tag error = %v", err)
	}
}
