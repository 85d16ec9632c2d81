// Package reflection resolves members of gateway classes.
//
// Go has no class hierarchy to inspect at run time, so every type reachable
// through the gateway is described by an explicit capability descriptor: a
// Class listing its superclass, interfaces, fields, methods and
// constructors, each member carrying a Go accessor. Descriptors are
// registered once (by hand through Registry.Define or by generated code, see
// package gowrap) and the Registry turns them into a type graph with
// precomputed distance tables used for overload resolution.
package reflection

import (
	"reflect"
	"strings"
)

// Kind classifies a Class.
type Kind uint8

const (
	KindClass Kind = iota
	KindInterface
	KindPrimitive
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindClass:
		return "class"
	case KindInterface:
		return "interface"
	case KindPrimitive:
		return "primitive"
	case KindArray:
		return "array"
	}
	return "unknown"
}

// DefaultPackage is implicitly imported by every view.
const DefaultPackage = "lang"

// Names of the built-in classes.
const (
	ObjectClass       = "lang.Object"
	ClassClass        = "lang.Class"
	StringClass       = "lang.String"
	CharSequenceClass = "lang.CharSequence"
	ComparableClass   = "lang.Comparable"
	NumberClass       = "lang.Number"
	BooleanClass      = "lang.Boolean"
	ByteClass         = "lang.Byte"
	ShortClass        = "lang.Short"
	IntegerClass      = "lang.Integer"
	LongClass         = "lang.Long"
	FloatClass        = "lang.Float"
	DoubleClass       = "lang.Double"
	CharacterClass    = "lang.Character"
	DecimalClass      = "lang.Decimal"
	MathClass         = "lang.Math"
	StringBuilderName = "lang.StringBuilder"
)

// Names of the primitive types.
const (
	Boolean = "boolean"
	Byte    = "byte"
	Short   = "short"
	Int     = "int"
	Long    = "long"
	Float   = "float"
	Double  = "double"
	Char    = "char"
	Void    = "void"
)

// NullType is the runtime type name recorded for a nil argument.
const NullType = "null"

// ConstructorName is the method name used for constructors in descriptors
// and diagnostics.
const ConstructorName = "<init>"

// Class is the capability descriptor of one gateway type.
type Class struct {
	Name       string // fully qualified, e.g. "shapes.Circle"
	Kind       Kind
	Super      string // empty means ObjectClass for classes
	Interfaces []string

	Fields       []*Field
	Methods      []*Method
	Constructors []*Method
	Nested       []string // fully qualified names of nested classes

	// GoType maps Go values of this type back to the class.
	GoType reflect.Type
}

// Field describes a field and how to read and write it.
type Field struct {
	Name    string
	Type    string
	Static  bool
	Private bool
	Final   bool

	// Get reads the field. recv is nil for static fields.
	Get func(recv any) any
	// Set writes an already converted value. Nil means the field is read-only.
	Set func(recv any, value any) error

	Owner *Class
}

// Method describes a method or constructor and how to call it.
type Method struct {
	Name    string
	Params  []string
	Return  string // Void or empty for no return value
	Static  bool
	Private bool
	Varargs bool // last parameter is an array type receiving the tail arguments

	// Call invokes the method with converted arguments. recv is nil for
	// static methods and constructors.
	Call func(recv any, args []any) (any, error)

	Owner *Class
}

// IsPublic reports whether the field is visible to the gateway.
func (f *Field) IsPublic() bool { return !f.Private }

// IsPublic reports whether the method is visible to the gateway.
func (m *Method) IsPublic() bool { return !m.Private }

// IsVoid reports whether the method has no return value.
func (m *Method) IsVoid() bool { return m.Return == "" || m.Return == Void }

// Signature renders the method as name(param, param).
func (m *Method) Signature() string {
	params := make([]string, len(m.Params))
	copy(params, m.Params)
	if m.Varargs && len(params) > 0 {
		last := params[len(params)-1]
		params[len(params)-1] = strings.TrimSuffix(last, "[]") + "..."
	}
	return m.Name + "(" + strings.Join(params, ", ") + ")"
}

func (m *Method) sameParams(other *Method) bool {
	if len(m.Params) != len(other.Params) {
		return false
	}
	for i := range m.Params {
		if m.Params[i] != other.Params[i] {
			return false
		}
	}
	return true
}

// Package returns the package part of the class name.
func (c *Class) Package() string {
	if i := strings.LastIndex(c.Name, "."); i >= 0 {
		return c.Name[:i]
	}
	return ""
}

// SimpleName returns the class name without its package.
func (c *Class) SimpleName() string {
	return SimpleName(c.Name)
}

// IsInterface reports whether c is an interface.
func (c *Class) IsInterface() bool { return c.Kind == KindInterface }

// DeclaredField returns the field declared directly on c, public or not.
func (c *Class) DeclaredField(name string) *Field {
	for _, f := range c.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// SimpleName strips the package from a fully qualified name.
func SimpleName(fqn string) string {
	if i := strings.LastIndex(fqn, "."); i >= 0 {
		return fqn[i+1:]
	}
	return fqn
}

// IsPrimitive reports whether name denotes a primitive type.
func IsPrimitive(name string) bool {
	switch name {
	case Boolean, Byte, Short, Int, Long, Float, Double, Char:
		return true
	}
	return false
}

// IsArrayType reports whether name denotes an array type.
func IsArrayType(name string) bool {
	return strings.HasSuffix(name, "[]")
}

// ElementType returns the element type of an array type name.
func ElementType(name string) string {
	return strings.TrimSuffix(name, "[]")
}

// As returns v as a T, or the zero T when v is nil or of another type.
// Generated bindings use it to unpack converted arguments.
func As[T any](v any) T {
	t, _ := v.(T)
	return t
}

// Ref boxes a pointer, mapping a nil pointer to a nil interface.
func Ref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return p
}
