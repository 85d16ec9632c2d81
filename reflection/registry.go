package reflection

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/apd/v3"

	"github.com/chazu/gobridge/protocol"
)

// Named is implemented by Go values that know their gateway class name.
type Named interface {
	ClassName() string
}

// InterfaceProxy is implemented by stand-ins for objects living in the
// remote process. Their runtime class is synthesized from the interfaces
// they claim.
type InterfaceProxy interface {
	ProxyInterfaces() []string
}

// Registry holds capability descriptors and the type graph built from them.
// Safe for concurrent registration and lookup.
type Registry struct {
	mu      sync.RWMutex
	classes map[string]*Class
	byType  map[reflect.Type]*Class

	// ancestors[child][ancestor] = distance, built lazily per child and
	// dropped whenever a class is defined.
	ancestors map[string]map[string]int
	// generation counts Define calls.
	generation uint64
}

// NewRegistry returns a registry preloaded with the built-in classes.
func NewRegistry() *Registry {
	r := NewEmptyRegistry()
	registerBuiltins(r)
	return r
}

// NewEmptyRegistry returns a registry holding only the root class and the
// primitive types.
func NewEmptyRegistry() *Registry {
	r := &Registry{
		classes:   make(map[string]*Class),
		byType:    make(map[reflect.Type]*Class),
		ancestors: make(map[string]map[string]int),
	}
	r.MustDefine(&Class{Name: ObjectClass})
	for _, p := range []string{Boolean, Byte, Short, Int, Long, Float, Double, Char} {
		r.MustDefine(&Class{Name: p, Kind: KindPrimitive})
	}
	return r
}

// Define registers a class descriptor. Redefining a name replaces the old
// descriptor.
func (r *Registry) Define(c *Class) error {
	if c == nil || c.Name == "" {
		return fmt.Errorf("reflection: class must have a name")
	}
	if c.Kind == KindClass && c.Super == "" && c.Name != ObjectClass {
		c.Super = ObjectClass
	}
	if c.Kind == KindInterface && c.Super != "" {
		return fmt.Errorf("reflection: interface %s cannot extend class %s", c.Name, c.Super)
	}
	if c.Super == c.Name {
		return fmt.Errorf("reflection: class %s cannot extend itself", c.Name)
	}
	for _, f := range c.Fields {
		f.Owner = c
	}
	for _, m := range c.Methods {
		m.Owner = c
	}
	for _, m := range c.Constructors {
		m.Owner = c
		if m.Name == "" {
			m.Name = ConstructorName
		}
		if m.IsVoid() {
			m.Return = c.Name
		}
		m.Static = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.classes[c.Name]; ok && old.GoType != nil {
		delete(r.byType, old.GoType)
	}
	r.classes[c.Name] = c
	if c.GoType != nil {
		r.byType[c.GoType] = c
	}
	r.ancestors = make(map[string]map[string]int)
	r.generation++
	return nil
}

// Generation changes whenever a class is defined or redefined. Results
// derived from the descriptors are valid only for the generation they were
// computed in.
func (r *Registry) Generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generation
}

// MustDefine is Define that panics on error. Meant for init-time registration.
func (r *Registry) MustDefine(c *Class) *Class {
	if err := r.Define(c); err != nil {
		panic(err)
	}
	return c
}

// Lookup returns the class with the given fully qualified name.
func (r *Registry) Lookup(name string) (*Class, bool) {
	if IsArrayType(name) {
		return r.ArrayClass(ElementType(name)), true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.classes[name]
	return c, ok
}

// ClassForName is Lookup returning a NotFoundError.
func (r *Registry) ClassForName(name string) (*Class, error) {
	c, ok := r.Lookup(name)
	if !ok {
		return nil, &protocol.NotFoundError{Kind: "class", Name: name}
	}
	return c, nil
}

// LookupByGoType returns the class registered for a Go type.
func (r *Registry) LookupByGoType(t reflect.Type) (*Class, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byType[t]
	return c, ok
}

// Names returns every registered class name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.classes))
	for name, c := range r.classes {
		if c.Kind == KindPrimitive {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasPackage reports whether any registered class lives in pkg or below it.
func (r *Registry) HasPackage(pkg string) bool {
	prefix := pkg + "."
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name := range r.classes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// ArrayClass returns the class of arrays with the given element type,
// creating it on first use.
func (r *Registry) ArrayClass(elem string) *Class {
	name := elem + "[]"
	r.mu.RLock()
	c, ok := r.classes[name]
	r.mu.RUnlock()
	if ok {
		return c
	}
	c = &Class{Name: name, Kind: KindArray, Super: ObjectClass}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.classes[name]; ok {
		return existing
	}
	r.classes[name] = c
	return c
}

// ProxyClass returns the synthetic class of remote proxies implementing
// ifaces, creating it on first use. Unknown interface names are allowed;
// they simply match nothing.
func (r *Registry) ProxyClass(ifaces []string) *Class {
	sorted := append([]string(nil), ifaces...)
	sort.Strings(sorted)
	name := "$Proxy(" + strings.Join(sorted, ",") + ")"
	r.mu.RLock()
	c, ok := r.classes[name]
	r.mu.RUnlock()
	if ok {
		return c
	}
	c = &Class{Name: name, Kind: KindClass, Super: ObjectClass, Interfaces: sorted}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.classes[name]; ok {
		return existing
	}
	r.classes[name] = c
	return c
}

// ClassOf returns the runtime class of a Go value. A nil value has no class.
func (r *Registry) ClassOf(obj any) (*Class, error) {
	name := ""
	switch v := obj.(type) {
	case nil:
		return nil, nil
	case bool:
		name = BooleanClass
	case int8:
		name = ByteClass
	case int16:
		name = ShortClass
	case int32:
		name = IntegerClass
	case int64:
		name = LongClass
	case float32:
		name = FloatClass
	case float64:
		name = DoubleClass
	case protocol.Char:
		name = CharacterClass
	case string:
		name = StringClass
	case *apd.Decimal:
		name = DecimalClass
	case []byte:
		return r.ArrayClass(Byte), nil
	case *Array:
		return r.ArrayClass(v.Elem), nil
	case *Class:
		name = ClassClass
	case InterfaceProxy:
		return r.ProxyClass(v.ProxyInterfaces()), nil
	}
	if name != "" {
		return r.ClassForName(name)
	}
	if c, ok := r.LookupByGoType(reflect.TypeOf(obj)); ok {
		return c, nil
	}
	if n, ok := obj.(Named); ok {
		return r.ClassForName(n.ClassName())
	}
	return nil, &protocol.NotFoundError{Kind: "class for Go type", Name: reflect.TypeOf(obj).String()}
}

// TypeName returns the runtime type name of a value, NullType for nil.
func (r *Registry) TypeName(obj any) (string, error) {
	if obj == nil {
		return NullType, nil
	}
	c, err := r.ClassOf(obj)
	if err != nil {
		return "", err
	}
	return c.Name, nil
}

// Superclass returns the superclass of c, or nil for the root and for
// interfaces and primitives.
func (r *Registry) Superclass(c *Class) *Class {
	if c.Super == "" {
		return nil
	}
	s, _ := r.Lookup(c.Super)
	return s
}

// Distance computes the inheritance distance from child up to parent:
// 0 for identical types, one per superclass hop, and for interfaces the
// hops to the implementing class plus one plus the interface's own depth in
// its hierarchy. It returns -1 when child cannot be assigned to parent.
func (r *Registry) Distance(parent, child string) int {
	if parent == child {
		return 0
	}
	if IsPrimitive(parent) || IsPrimitive(child) {
		return -1
	}
	if IsArrayType(parent) && IsArrayType(child) {
		pe, ce := ElementType(parent), ElementType(child)
		if IsPrimitive(pe) || IsPrimitive(ce) {
			return -1
		}
		return r.Distance(pe, ce)
	}
	table := r.ancestorTable(child)
	if d, ok := table[parent]; ok {
		return d
	}
	return -1
}

// ancestorTable returns the memoized distance table of child.
func (r *Registry) ancestorTable(child string) map[string]int {
	r.mu.RLock()
	table, ok := r.ancestors[child]
	gen := r.generation
	r.mu.RUnlock()
	if ok {
		return table
	}

	table = r.buildAncestorTable(child)
	r.storeAncestorTable(child, table, gen)
	return table
}

// storeAncestorTable memoizes a table built in generation gen. A Define
// during the build makes it stale, so it is dropped.
func (r *Registry) storeAncestorTable(child string, table map[string]int, gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.generation != gen {
		return false
	}
	r.ancestors[child] = table
	return true
}

func (r *Registry) buildAncestorTable(child string) map[string]int {
	table := make(map[string]int)
	c, ok := r.Lookup(child)
	if !ok {
		return table
	}

	record := func(name string, d int) bool {
		if old, seen := table[name]; seen && old <= d {
			return false
		}
		table[name] = d
		return true
	}

	// Interfaces reached from a class at hop s start at s+1 and grow by one
	// per super-interface.
	var walkInterfaces func(ifaces []string, d int)
	walkInterfaces = func(ifaces []string, d int) {
		for _, name := range ifaces {
			if !record(name, d) {
				continue
			}
			if ic, ok := r.Lookup(name); ok {
				walkInterfaces(ic.Interfaces, d+1)
			}
		}
	}

	if c.Kind == KindInterface {
		walkInterfaces(c.Interfaces, 1)
		record(ObjectClass, 1)
		return table
	}

	hops := 0
	seen := map[string]bool{}
	for cur := c; cur != nil && !seen[cur.Name]; cur = r.Superclass(cur) {
		seen[cur.Name] = true
		if hops > 0 {
			record(cur.Name, hops)
		}
		walkInterfaces(cur.Interfaces, hops+1)
		hops++
	}
	delete(table, c.Name)
	return table
}

// Depth returns the distance from the root class to name.
func (r *Registry) Depth(name string) int {
	if name == ObjectClass {
		return 0
	}
	return r.Distance(ObjectClass, name)
}
