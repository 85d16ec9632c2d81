package reflection

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/tliron/commonlog"

	"github.com/chazu/gobridge/protocol"
)

var log = commonlog.GetLogger("gobridge.reflection")

// DefaultCacheSize is the resolution cache capacity used when none is given.
const DefaultCacheSize = 100

// Engine resolves fields, methods and constructors of gateway objects.
// One Engine is shared by every connection of a gateway.
type Engine struct {
	registry *Registry
	cache    *LRUCache[string, *MethodInvoker]
}

// NewEngine creates an engine over registry with a resolution cache of
// cacheSize entries.
func NewEngine(registry *Registry, cacheSize int) *Engine {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	return &Engine{
		registry: registry,
		cache:    NewLRUCache[string, *MethodInvoker](cacheSize),
	}
}

// Registry returns the class registry.
func (e *Engine) Registry() *Registry { return e.registry }

// Cache returns the resolution cache.
func (e *Engine) Cache() *LRUCache[string, *MethodInvoker] { return e.cache }

// ClassOf returns the runtime class of obj.
func (e *Engine) ClassOf(obj any) (*Class, error) {
	if obj == nil {
		return nil, &protocol.NotFoundError{Kind: "class", Name: NullType}
	}
	return e.registry.ClassOf(obj)
}

// ClassForName looks up a class by fully qualified name.
func (e *Engine) ClassForName(name string) (*Class, error) {
	return e.registry.ClassForName(name)
}

// ---------------------------------------------------------------------------
// Methods and constructors
// ---------------------------------------------------------------------------

// GetMethod resolves an instance call of name on obj with args.
func (e *Engine) GetMethod(obj any, name string, args []any) (*MethodInvoker, error) {
	c, err := e.ClassOf(obj)
	if err != nil {
		return nil, err
	}
	return e.resolve(c, name, false, args)
}

// GetStaticMethod resolves a static call of name on class c with args.
func (e *Engine) GetStaticMethod(c *Class, name string, args []any) (*MethodInvoker, error) {
	return e.resolve(c, name, true, args)
}

// GetConstructor resolves a constructor of the named class.
func (e *Engine) GetConstructor(className string, args []any) (*MethodInvoker, error) {
	c, err := e.registry.ClassForName(className)
	if err != nil {
		return nil, err
	}
	return e.resolve(c, ConstructorName, true, args)
}

// Invoke resolves and calls an instance method in one step.
func (e *Engine) Invoke(obj any, name string, args []any) (any, error) {
	inv, err := e.GetMethod(obj, name, args)
	if err != nil {
		return nil, err
	}
	return inv.Invoke(obj, args)
}

func (e *Engine) resolve(c *Class, name string, static bool, args []any) (*MethodInvoker, error) {
	argTypes := make([]string, len(args))
	for i, a := range args {
		t, err := e.registry.TypeName(a)
		if err != nil {
			return nil, err
		}
		argTypes[i] = t
	}
	// Keyed by registry generation so a redefined class is resolved afresh.
	gen := e.registry.Generation()
	key := strconv.FormatUint(gen, 10) + ":" + MethodDescriptor{Class: c.Name, Name: name, Static: static, Params: argTypes}.Key()
	if inv, ok := e.cache.Get(key); ok {
		return inv, nil
	}

	var candidates []*Method
	if name == ConstructorName {
		candidates = publicOnly(c.Constructors)
	} else {
		candidates = e.methodCandidates(c, name, static)
	}
	if len(candidates) == 0 {
		kind := "method"
		if name == ConstructorName {
			kind = "constructor"
		}
		return nil, &protocol.NotFoundError{Kind: kind, Name: c.Name + "." + name}
	}

	inv, err := e.registry.selectInvoker(c.Name+"."+name, candidates, argTypes)
	if err != nil {
		return nil, err
	}
	log.Debugf("resolved %s.%s%v to %s (cost %d)", c.Name, name, argTypes, qualifiedSignature(inv.Method), inv.Cost)
	e.cache.Put(key, inv)
	return inv, nil
}

// methodCandidates collects the callable public methods named name visible
// from c. An override hides the overridden declaration with the same
// parameter list.
func (e *Engine) methodCandidates(c *Class, name string, staticOnly bool) []*Method {
	var out []*Method
	e.walkHierarchy(c, func(cls *Class) bool {
		for _, m := range cls.Methods {
			if m.Name != name || !m.IsPublic() || m.Call == nil {
				continue
			}
			if staticOnly && !m.Static {
				continue
			}
			hidden := false
			for _, seen := range out {
				if seen.sameParams(m) {
					hidden = true
					break
				}
			}
			if !hidden {
				out = append(out, m)
			}
		}
		return true
	})
	return out
}

func publicOnly(methods []*Method) []*Method {
	var out []*Method
	for _, m := range methods {
		if m.IsPublic() && m.Call != nil {
			out = append(out, m)
		}
	}
	return out
}

// walkHierarchy visits c, its superclasses from nearest to root, and then
// every interface reachable from them, each class once. visit returns false
// to stop.
func (e *Engine) walkHierarchy(c *Class, visit func(*Class) bool) {
	seen := map[string]bool{}
	var ifaces []string
	for cur := c; cur != nil && !seen[cur.Name]; cur = e.registry.Superclass(cur) {
		seen[cur.Name] = true
		if !visit(cur) {
			return
		}
		ifaces = append(ifaces, cur.Interfaces...)
	}
	for len(ifaces) > 0 {
		name := ifaces[0]
		ifaces = ifaces[1:]
		if seen[name] {
			continue
		}
		seen[name] = true
		ic, ok := e.registry.Lookup(name)
		if !ok {
			continue
		}
		if !visit(ic) {
			return
		}
		ifaces = append(ifaces, ic.Interfaces...)
	}
}

// ---------------------------------------------------------------------------
// Fields
// ---------------------------------------------------------------------------

// GetField returns the most derived public field called name visible from
// obj's class. Non-public declarations are skipped wherever they occur.
func (e *Engine) GetField(obj any, name string) (*Field, error) {
	c, err := e.ClassOf(obj)
	if err != nil {
		return nil, err
	}
	return e.findField(c, name, false)
}

// GetStaticField resolves a public static field of c.
func (e *Engine) GetStaticField(c *Class, name string) (*Field, error) {
	return e.findField(c, name, true)
}

// GetStaticFieldByName resolves a public static field of the named class.
func (e *Engine) GetStaticFieldByName(className, name string) (*Field, error) {
	c, err := e.registry.ClassForName(className)
	if err != nil {
		return nil, err
	}
	return e.findField(c, name, true)
}

func (e *Engine) findField(c *Class, name string, staticOnly bool) (*Field, error) {
	var found *Field
	e.walkHierarchy(c, func(cls *Class) bool {
		f := cls.DeclaredField(name)
		if f == nil || !f.IsPublic() || (staticOnly && !f.Static) {
			return true
		}
		found = f
		return false
	})
	if found == nil {
		return nil, &protocol.NotFoundError{Kind: "field", Name: c.Name + "." + name}
	}
	return found, nil
}

// GetFieldValue reads f from obj. obj may be nil for static fields.
func (e *Engine) GetFieldValue(obj any, f *Field) (any, error) {
	if !f.Static && obj == nil {
		return nil, fmt.Errorf("field %s is not static and needs a target", f.Name)
	}
	if f.Get == nil {
		return nil, fmt.Errorf("field %s cannot be read", f.Name)
	}
	if f.Static {
		obj = nil
	}
	return f.Get(obj), nil
}

// SetFieldValue converts value to the field's type and writes it.
func (e *Engine) SetFieldValue(obj any, f *Field, value any) error {
	if !f.Static && obj == nil {
		return fmt.Errorf("field %s is not static and needs a target", f.Name)
	}
	if f.Final || f.Set == nil {
		return fmt.Errorf("field %s is read-only", f.Name)
	}
	v, err := e.ConvertTo(f.Type, value)
	if err != nil {
		return err
	}
	if f.Static {
		obj = nil
	}
	return f.Set(obj, v)
}

// ConvertTo coerces value to the named type using the same rules as
// argument passing.
func (e *Engine) ConvertTo(typeName string, value any) (any, error) {
	argType, err := e.registry.TypeName(value)
	if err != nil {
		return nil, err
	}
	cost, conv := e.registry.ParameterCost(typeName, argType)
	if cost < 0 {
		return nil, &protocol.ConversionError{Value: value, From: argType, To: typeName}
	}
	return conv.Apply(value)
}

// ---------------------------------------------------------------------------
// Member names
// ---------------------------------------------------------------------------

// PublicFieldNames lists the public fields visible on obj, sorted.
func (e *Engine) PublicFieldNames(obj any) ([]string, error) {
	c, err := e.ClassOf(obj)
	if err != nil {
		return nil, err
	}
	return e.FieldNames(c, false), nil
}

// PublicMethodNames lists the public methods callable on obj, sorted.
func (e *Engine) PublicMethodNames(obj any) ([]string, error) {
	c, err := e.ClassOf(obj)
	if err != nil {
		return nil, err
	}
	return e.MethodNames(c, false), nil
}

// FieldNames lists the public fields visible from c, sorted and unique.
func (e *Engine) FieldNames(c *Class, staticOnly bool) []string {
	set := map[string]bool{}
	e.walkHierarchy(c, func(cls *Class) bool {
		for _, f := range cls.Fields {
			if f.IsPublic() && (!staticOnly || f.Static) {
				set[f.Name] = true
			}
		}
		return true
	})
	return sortedKeys(set)
}

// MethodNames lists the public methods visible from c, sorted and unique.
func (e *Engine) MethodNames(c *Class, staticOnly bool) []string {
	set := map[string]bool{}
	e.walkHierarchy(c, func(cls *Class) bool {
		for _, m := range cls.Methods {
			if m.IsPublic() && (!staticOnly || m.Static) {
				set[m.Name] = true
			}
		}
		return true
	})
	return sortedKeys(set)
}

// StaticMemberNames lists the public static fields, static methods and
// nested classes of c, sorted and unique.
func (e *Engine) StaticMemberNames(c *Class) []string {
	set := map[string]bool{}
	for _, n := range e.FieldNames(c, true) {
		set[n] = true
	}
	for _, n := range e.MethodNames(c, true) {
		set[n] = true
	}
	for _, n := range c.Nested {
		set[NestedSimpleName(n)] = true
	}
	return sortedKeys(set)
}

// NestedClass returns the nested class of c whose simple name is name.
func (e *Engine) NestedClass(c *Class, name string) (*Class, bool) {
	for _, n := range c.Nested {
		if NestedSimpleName(n) == name {
			return e.registry.Lookup(n)
		}
	}
	return nil, false
}

// HasStaticMethod reports whether c has a public static method called name.
func (e *Engine) HasStaticMethod(c *Class, name string) bool {
	return len(e.methodCandidates(c, name, true)) > 0
}

// NestedSimpleName returns the last segment of a nested class name
// ("a.Outer$Inner" gives "Inner").
func NestedSimpleName(fqn string) string {
	name := SimpleName(fqn)
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '$' {
			return name[i+1:]
		}
	}
	return name
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
