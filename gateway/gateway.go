// Package gateway holds the state shared by every connection of one
// gateway: the object registry, import views, the reflection engine and the
// reverse channel.
package gateway

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/apd/v3"
	"github.com/tliron/commonlog"

	"github.com/chazu/gobridge/callback"
	"github.com/chazu/gobridge/protocol"
	"github.com/chazu/gobridge/reflection"
)

var log = commonlog.GetLogger("gobridge.gateway")

// Hook observes a binding being added or removed.
type Hook func(id string, obj any)

type binding struct {
	value any
}

// Gateway maps opaque string ids to live objects. Ids are handed to the
// remote side and stay valid until deleted or the gateway shuts down.
type Gateway struct {
	mu       sync.RWMutex
	bindings map[string]*binding
	views    map[string]*View
	nextID   atomic.Uint64

	hooksMu  sync.RWMutex
	onPut    []Hook
	onDelete []Hook

	engine   *reflection.Engine
	callback *callback.Client
}

// New creates a gateway. entryPoint is bound to the entry point id when not
// nil; client may be nil when the remote side has no callback listener.
func New(engine *reflection.Engine, entryPoint any, client *callback.Client) *Gateway {
	g := &Gateway{
		bindings: make(map[string]*binding),
		views:    make(map[string]*View),
		engine:   engine,
		callback: client,
	}
	if entryPoint != nil {
		g.PutWithID(protocol.EntryPointObjectID, entryPoint)
	}
	g.PutWithID(protocol.DefaultViewID, NewView(protocol.DefaultViewID))
	return g
}

// Engine returns the reflection engine.
func (g *Gateway) Engine() *reflection.Engine { return g.engine }

// Callback returns the reverse channel client, or nil.
func (g *Gateway) Callback() *callback.Client { return g.callback }

// IsReserved reports whether id is one of the well-known ids that Delete
// never removes.
func IsReserved(id string) bool {
	switch id {
	case protocol.ServerObjectID, protocol.EntryPointObjectID, protocol.DefaultViewID:
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

// Put registers obj under a fresh id and returns the id.
func (g *Gateway) Put(obj any) string {
	id := protocol.ObjectIDPrefix + strconv.FormatUint(g.nextID.Add(1)-1, 10)
	g.PutWithID(id, obj)
	return id
}

// PutWithID registers obj under id, replacing any previous binding.
func (g *Gateway) PutWithID(id string, obj any) {
	g.mu.Lock()
	g.bindings[id] = &binding{value: obj}
	if v, ok := obj.(*View); ok {
		g.views[id] = v
	}
	g.mu.Unlock()
	g.fire(g.putHooks(), id, obj)
}

// Get returns the object bound to id.
func (g *Gateway) Get(id string) (any, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	b, ok := g.bindings[id]
	if !ok {
		return nil, &protocol.NotFoundError{Kind: "object", Name: id}
	}
	return b.value, nil
}

// Contains reports whether id is bound.
func (g *Gateway) Contains(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.bindings[id]
	return ok
}

// Delete removes the binding for id. Deleting an unknown id is not an
// error; Delete reports whether something was removed. Reserved ids are
// never removed.
func (g *Gateway) Delete(id string) bool {
	if IsReserved(id) {
		return false
	}
	g.mu.Lock()
	b, ok := g.bindings[id]
	if ok {
		delete(g.bindings, id)
		delete(g.views, id)
	}
	g.mu.Unlock()
	if ok {
		g.fire(g.deleteHooks(), id, b.value)
	}
	return ok
}

// Clear removes every binding, reserved ones included.
func (g *Gateway) Clear() {
	g.mu.Lock()
	old := g.bindings
	g.bindings = make(map[string]*binding)
	g.views = make(map[string]*View)
	g.mu.Unlock()

	hooks := g.deleteHooks()
	for id, b := range old {
		g.fire(hooks, id, b.value)
	}
}

// Size returns the number of live bindings.
func (g *Gateway) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.bindings)
}

// ---------------------------------------------------------------------------
// Control object and views
// ---------------------------------------------------------------------------

// BindServer binds the control object.
func (g *Gateway) BindServer(server any) {
	g.PutWithID(protocol.ServerObjectID, server)
}

// ControlObject returns the bound control object, or nil when none is bound.
func (g *Gateway) ControlObject() any {
	v, err := g.Get(protocol.ServerObjectID)
	if err != nil {
		return nil
	}
	return v
}

// EntryPoint returns the entry point object, or nil.
func (g *Gateway) EntryPoint() any {
	v, err := g.Get(protocol.EntryPointObjectID)
	if err != nil {
		return nil
	}
	return v
}

// DefaultView returns the view bound to the default view id.
func (g *Gateway) DefaultView() *View {
	v, _ := g.View(protocol.DefaultViewID)
	return v
}

// NewView creates and registers an empty view.
func (g *Gateway) NewView(name string) (string, *View) {
	v := NewView(name)
	return g.Put(v), v
}

// View returns the view bound to id.
func (g *Gateway) View(id string) (*View, error) {
	g.mu.RLock()
	v, ok := g.views[id]
	g.mu.RUnlock()
	if !ok {
		return nil, &protocol.NotFoundError{Kind: "view", Name: id}
	}
	return v, nil
}

// ---------------------------------------------------------------------------
// Hooks
// ---------------------------------------------------------------------------

// OnPut registers a hook called after every binding is added.
func (g *Gateway) OnPut(h Hook) {
	g.hooksMu.Lock()
	defer g.hooksMu.Unlock()
	g.onPut = append(g.onPut, h)
}

// OnDelete registers a hook called after every binding is removed.
func (g *Gateway) OnDelete(h Hook) {
	g.hooksMu.Lock()
	defer g.hooksMu.Unlock()
	g.onDelete = append(g.onDelete, h)
}

func (g *Gateway) putHooks() []Hook {
	g.hooksMu.RLock()
	defer g.hooksMu.RUnlock()
	return g.onPut
}

func (g *Gateway) deleteHooks() []Hook {
	g.hooksMu.RLock()
	defer g.hooksMu.RUnlock()
	return g.onDelete
}

func (g *Gateway) fire(hooks []Hook, id string, obj any) {
	for _, h := range hooks {
		h(id, obj)
	}
}

// ---------------------------------------------------------------------------
// Wire values
// ---------------------------------------------------------------------------

// Bind turns a Go value into a wire token. Values with a wire form are
// encoded directly; arrays and other objects are registered and travel as
// references.
func (g *Gateway) Bind(v any) (string, error) {
	switch x := v.(type) {
	case nil, bool, int8, int16, int32, int64, uint8, uint16, uint32, float32, float64,
		string, protocol.Char, []byte, *apd.Decimal, apd.Decimal, protocol.Void, protocol.PackageMarker, protocol.ClassMarker,
		protocol.MethodMarker, protocol.NoMember, protocol.Reference, protocol.ArrayReference:
		return protocol.Encode(x)
	case int:
		return protocol.Encode(int64(x))
	case *reflection.Array:
		return protocol.Encode(protocol.ArrayReference{ID: g.Put(x)})
	case *callback.Proxy:
		return protocol.Encode(protocol.ProxyReference{ID: x.ID})
	}
	return protocol.Encode(protocol.Reference{ID: g.Put(v)})
}

// Resolve turns a decoded token into a call argument: references are
// looked up and proxy tokens become callback proxies.
func (g *Gateway) Resolve(v any) (any, error) {
	switch x := v.(type) {
	case protocol.Reference:
		return g.Get(x.ID)
	case protocol.ArrayReference:
		return g.Get(x.ID)
	case protocol.ProxyReference:
		return callback.NewProxy(x.ID, x.Interfaces, g.callback, g), nil
	case protocol.Void:
		return nil, nil
	}
	return v, nil
}

// DecodeArgs decodes and resolves argument lines.
func (g *Gateway) DecodeArgs(lines []string) ([]any, error) {
	args := make([]any, len(lines))
	for i, line := range lines {
		v, err := protocol.Decode(line)
		if err != nil {
			return nil, err
		}
		if args[i], err = g.Resolve(v); err != nil {
			return nil, err
		}
	}
	return args, nil
}

// Reply encodes v as a success reply line.
func (g *Gateway) Reply(v any) (string, error) {
	token, err := g.Bind(v)
	if err != nil {
		return "", err
	}
	return protocol.SuccessReply(token), nil
}

// Shutdown clears the registry and closes the reverse channel.
func (g *Gateway) Shutdown() {
	n := g.Size()
	g.Clear()
	if g.callback != nil {
		g.callback.Shutdown()
	}
	log.Infof("gateway shut down, released %d bindings", n)
}

func (g *Gateway) String() string {
	return fmt.Sprintf("Gateway(%d bindings)", g.Size())
}
