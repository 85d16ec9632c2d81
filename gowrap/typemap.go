package gowrap

import (
	"go/types"

	"github.com/dave/jennifer/jen"
)

// binding maps a Go type onto a gateway type name, with the expressions
// that convert a gateway value into the Go type and back.
type binding struct {
	typeName string
	arg      func(v jen.Code) *jen.Statement
	result   func(v jen.Code) *jen.Statement
}

func as(goType jen.Code) func(v jen.Code) *jen.Statement {
	return func(v jen.Code) *jen.Statement {
		return jen.Qual(reflectionPath, "As").Types(goType).Call(v)
	}
}

func same(v jen.Code) *jen.Statement { return jen.Add(v) }

// basicBindings covers the basic kinds with a direct gateway counterpart.
var basicBindings = map[types.BasicKind]binding{
	types.Bool:    {"boolean", as(jen.Bool()), same},
	types.String:  {"lang.String", as(jen.String()), same},
	types.Int64:   {"long", as(jen.Int64()), same},
	types.Int32:   {"int", as(jen.Int32()), same},
	types.Int16:   {"short", as(jen.Int16()), same},
	types.Int8:    {"byte", as(jen.Int8()), same},
	types.Float64: {"double", as(jen.Float64()), same},
	types.Float32: {"float", as(jen.Float32()), same},
	types.Int: {
		typeName: "long",
		arg: func(v jen.Code) *jen.Statement {
			return jen.Int().Call(as(jen.Int64())(v))
		},
		result: func(v jen.Code) *jen.Statement { return jen.Int64().Call(v) },
	},
}

var basicGoNames = map[types.BasicKind]func() *jen.Statement{
	types.Bool:    jen.Bool,
	types.String:  jen.String,
	types.Int64:   jen.Int64,
	types.Int32:   jen.Int32,
	types.Int16:   jen.Int16,
	types.Int8:    jen.Int8,
	types.Float64: jen.Float64,
	types.Float32: jen.Float32,
	types.Int:     jen.Int,
}

// bindingFor reports how t crosses the gateway. Supported are the basic
// kinds above, []byte, pointers to structs of the wrapped package, and
// named basic types of the wrapped package.
func (g *generator) bindingFor(t types.Type) (binding, bool) {
	switch t := t.(type) {
	case *types.Basic:
		b, ok := basicBindings[t.Kind()]
		return b, ok
	case *types.Slice:
		if e, ok := t.Elem().(*types.Basic); ok && e.Kind() == types.Byte {
			return binding{"byte[]", as(jen.Index().Byte()), same}, true
		}
	case *types.Pointer:
		named, ok := t.Elem().(*types.Named)
		if !ok || !g.local(named) {
			return binding{}, false
		}
		tm := g.model.Type(named.Obj().Name())
		if tm == nil || !tm.IsStruct {
			return binding{}, false
		}
		goType := jen.Op("*").Qual(g.model.ImportPath, tm.Name)
		return binding{
			typeName: ClassName(g.ns, tm.Name),
			arg:      as(goType),
			result: func(v jen.Code) *jen.Statement {
				return jen.Qual(reflectionPath, "Ref").Call(v)
			},
		}, true
	case *types.Named:
		if !g.local(t) {
			return binding{}, false
		}
		basic, ok := t.Underlying().(*types.Basic)
		if !ok {
			return binding{}, false
		}
		b, ok := basicBindings[basic.Kind()]
		if !ok {
			return binding{}, false
		}
		name := t.Obj().Name()
		goName := basicGoNames[basic.Kind()]
		return binding{
			typeName: b.typeName,
			arg: func(v jen.Code) *jen.Statement {
				return jen.Qual(g.model.ImportPath, name).Call(b.arg(v))
			},
			result: func(v jen.Code) *jen.Statement {
				return b.result(goName().Call(v))
			},
		}, true
	}
	return binding{}, false
}

func (g *generator) local(named *types.Named) bool {
	pkg := named.Obj().Pkg()
	return pkg != nil && pkg.Path() == g.model.ImportPath
}
