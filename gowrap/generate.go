package gowrap

import (
	"bytes"
	"fmt"
	"go/constant"
	"go/types"
	"strconv"

	"github.com/dave/jennifer/jen"
)

const (
	reflectionPath = "github.com/chazu/gobridge/reflection"
	pkgAlias       = "pkg"
)

// Options controls binding generation.
type Options struct {
	// PackageName of the generated file. Defaults to "bind_" + the
	// namespace.
	PackageName string
	// Namespace is the class package the bindings are registered under.
	// Defaults to DefaultNamespace of the import path.
	Namespace string
}

// Skipped records an API member that could not be bound.
type Skipped struct {
	Name   string
	Reason string
}

// Result contains the generated code and what was left out.
type Result struct {
	Code    string
	Classes []string
	Skipped []Skipped
}

type generator struct {
	model   *PackageModel
	ns      string
	skipped []Skipped
	classes []string
	// constructed maps a type name to its New<T> functions.
	constructed map[string][]FunctionModel
}

// GenerateBindings emits a Go file with a Register(*reflection.Registry)
// function that defines one gateway class per exported struct of the
// package, plus a class holding its functions and constants.
func GenerateBindings(model *PackageModel, opts Options) (*Result, error) {
	g := &generator{
		model:       model,
		ns:          opts.Namespace,
		constructed: map[string][]FunctionModel{},
	}
	if g.ns == "" {
		g.ns = DefaultNamespace(model.ImportPath)
	}
	pkgName := opts.PackageName
	if pkgName == "" {
		pkgName = "bind_" + g.ns
	}

	f := jen.NewFile(pkgName)
	f.HeaderComment("Code generated by gatewaygen. DO NOT EDIT.")
	f.ImportAlias(model.ImportPath, pkgAlias)

	var free []FunctionModel
	for _, fn := range model.Functions {
		if target, ok := g.constructorTarget(fn); ok {
			g.constructed[target] = append(g.constructed[target], fn)
			continue
		}
		free = append(free, fn)
	}

	var body []jen.Code
	for i := range model.Types {
		if stmt := g.typeClass(&model.Types[i]); stmt != nil {
			body = append(body, stmt)
		}
	}
	if stmt := g.functionsClass(free); stmt != nil {
		body = append(body, stmt)
	}

	f.Commentf("Register defines the gateway classes of package %s in r.", model.ImportPath)
	f.Func().Id("Register").Params(jen.Id("r").Op("*").Qual(reflectionPath, "Registry")).Block(body...)

	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return nil, fmt.Errorf("rendering bindings for %s: %w", model.ImportPath, err)
	}
	for _, s := range g.skipped {
		log.Debugf("skipped %s: %s", s.Name, s.Reason)
	}
	return &Result{Code: buf.String(), Classes: g.classes, Skipped: g.skipped}, nil
}

func (g *generator) skip(name, reason string) {
	g.skipped = append(g.skipped, Skipped{Name: name, Reason: reason})
}

// constructorTarget reports the struct type a New<T> function returns.
func (g *generator) constructorTarget(fn FunctionModel) (string, bool) {
	target, ok := ConstructorTarget(fn.Name)
	if !ok {
		return "", false
	}
	tm := g.model.Type(target)
	if tm == nil || !tm.IsStruct {
		return "", false
	}
	results := fn.Results
	if fn.ReturnsErr {
		results = results[:len(results)-1]
	}
	if len(results) != 1 {
		return "", false
	}
	ptr, ok := results[0].GoType.(*types.Pointer)
	if !ok || !types.Identical(ptr.Elem(), tm.GoType) {
		return "", false
	}
	return target, true
}

// ---------------------------------------------------------------------------
// Classes
// ---------------------------------------------------------------------------

func (g *generator) typeClass(tm *TypeModel) jen.Code {
	if !tm.IsStruct {
		g.skip(tm.Name, "not a struct")
		return nil
	}
	name := ClassName(g.ns, tm.Name)
	g.classes = append(g.classes, name)
	recv := jen.Qual(reflectionPath, "As").Types(jen.Op("*").Qual(g.model.ImportPath, tm.Name)).Call(jen.Id("recv"))

	var fields, methods, ctors []jen.Code
	for _, fm := range tm.Fields {
		if field := g.field(tm.Name, fm, recv); field != nil {
			fields = append(fields, field)
		}
	}
	for _, fn := range tm.Methods {
		call := recv.Clone().Dot(fn.Name)
		if m := g.method(tm.Name+"."+fn.Name, MemberName(fn.Name), fn, call, false); m != nil {
			methods = append(methods, m)
		}
	}
	for _, fn := range g.constructed[tm.Name] {
		if m := g.method(fn.Name, "", fn, jen.Qual(g.model.ImportPath, fn.Name), true); m != nil {
			ctors = append(ctors, m)
		}
	}

	dict := jen.Dict{
		jen.Id("Name"): jen.Lit(name),
		jen.Id("GoType"): jen.Qual("reflect", "TypeOf").Call(
			jen.Parens(jen.Op("*").Qual(g.model.ImportPath, tm.Name)).Call(jen.Nil()),
		),
	}
	addList(dict, "Fields", "Field", fields)
	addList(dict, "Methods", "Method", methods)
	addList(dict, "Constructors", "Method", ctors)
	return defineClass(dict)
}

func (g *generator) functionsClass(free []FunctionModel) jen.Code {
	var fields, methods []jen.Code
	for _, c := range g.model.Constants {
		if field := g.constant(c); field != nil {
			fields = append(fields, field)
		}
	}
	for _, fn := range free {
		if m := g.method(fn.Name, MemberName(fn.Name), fn, jen.Qual(g.model.ImportPath, fn.Name), true); m != nil {
			methods = append(methods, m)
		}
	}
	if len(fields) == 0 && len(methods) == 0 {
		return nil
	}
	name := FunctionsClassName(g.ns)
	g.classes = append(g.classes, name)
	dict := jen.Dict{jen.Id("Name"): jen.Lit(name)}
	addList(dict, "Fields", "Field", fields)
	addList(dict, "Methods", "Method", methods)
	return defineClass(dict)
}

func defineClass(dict jen.Dict) jen.Code {
	return jen.Id("r").Dot("MustDefine").Call(jen.Op("&").Qual(reflectionPath, "Class").Values(dict))
}

func addList(dict jen.Dict, key, elem string, items []jen.Code) {
	if len(items) == 0 {
		return
	}
	dict[jen.Id(key)] = jen.Index().Op("*").Qual(reflectionPath, elem).Values(items...)
}

// ---------------------------------------------------------------------------
// Members
// ---------------------------------------------------------------------------

func (g *generator) field(typeName string, fm FieldModel, recv *jen.Statement) jen.Code {
	b, ok := g.bindingFor(fm.GoType)
	if !ok {
		g.skip(typeName+"."+fm.Name, "unsupported field type "+fm.TypeStr)
		return nil
	}
	sel := recv.Clone().Dot(fm.Name)
	return jen.Values(jen.Dict{
		jen.Id("Name"): jen.Lit(MemberName(fm.Name)),
		jen.Id("Type"): jen.Lit(b.typeName),
		jen.Id("Get"): jen.Func().Params(jen.Id("recv").Any()).Any().Block(
			jen.Return(b.result(sel.Clone())),
		),
		jen.Id("Set"): jen.Func().Params(jen.Id("recv"), jen.Id("v").Any()).Error().Block(
			sel.Clone().Op("=").Add(b.arg(jen.Id("v"))),
			jen.Return(jen.Nil()),
		),
	})
}

func (g *generator) constant(c ConstantModel) jen.Code {
	ref := jen.Qual(g.model.ImportPath, c.Name)
	var typeName string
	var value *jen.Statement
	switch c.Kind {
	case constant.Bool:
		typeName, value = "boolean", jen.Bool().Call(ref)
	case constant.String:
		typeName, value = "lang.String", jen.String().Call(ref)
	case constant.Int:
		if _, err := strconv.ParseInt(c.Value, 10, 64); err != nil {
			g.skip(c.Name, "integer constant out of range")
			return nil
		}
		typeName, value = "long", jen.Int64().Call(ref)
	case constant.Float:
		typeName, value = "double", jen.Float64().Call(ref)
	default:
		g.skip(c.Name, "unsupported constant kind "+c.Kind.String())
		return nil
	}
	return jen.Values(jen.Dict{
		jen.Id("Name"):   jen.Lit(c.Name),
		jen.Id("Type"):   jen.Lit(typeName),
		jen.Id("Static"): jen.True(),
		jen.Id("Final"):  jen.True(),
		jen.Id("Get"):    jen.Func().Params(jen.Any()).Any().Block(jen.Return(value)),
	})
}

// method renders a method, static function or constructor descriptor.
// Constructors have an empty name.
func (g *generator) method(qualified, name string, fn FunctionModel, callee *jen.Statement, static bool) jen.Code {
	if fn.Variadic {
		g.skip(qualified, "variadic")
		return nil
	}
	results := fn.Results
	if fn.ReturnsErr {
		results = results[:len(results)-1]
	}
	if len(results) > 1 {
		g.skip(qualified, "more than one result")
		return nil
	}

	params := make([]jen.Code, len(fn.Params))
	args := make([]jen.Code, len(fn.Params))
	for i, p := range fn.Params {
		b, ok := g.bindingFor(p.GoType)
		if !ok {
			g.skip(qualified, "unsupported parameter type "+p.TypeStr)
			return nil
		}
		params[i] = jen.Lit(b.typeName)
		args[i] = b.arg(jen.Id("args").Index(jen.Lit(i)))
	}

	ret := "void"
	var result binding
	if len(results) == 1 {
		var ok bool
		if result, ok = g.bindingFor(results[0].GoType); !ok {
			g.skip(qualified, "unsupported result type "+results[0].TypeStr)
			return nil
		}
		ret = result.typeName
	}

	call := callee.Clone().Call(args...)
	var body []jen.Code
	switch {
	case len(results) == 0 && !fn.ReturnsErr:
		body = []jen.Code{call, jen.Return(jen.Nil(), jen.Nil())}
	case len(results) == 0:
		body = []jen.Code{jen.Return(jen.Nil(), call)}
	case !fn.ReturnsErr:
		body = []jen.Code{jen.Return(result.result(call), jen.Nil())}
	default:
		body = []jen.Code{
			jen.List(jen.Id("v"), jen.Err()).Op(":=").Add(call),
			jen.If(jen.Err().Op("!=").Nil()).Block(jen.Return(jen.Nil(), jen.Err())),
			jen.Return(result.result(jen.Id("v")), jen.Nil()),
		}
	}

	recvParam := jen.Id("recv")
	if static {
		recvParam = jen.Id("_")
	}
	argsParam := jen.Id("args").Index().Any()
	if len(fn.Params) == 0 {
		argsParam = jen.Id("_").Index().Any()
	}

	dict := jen.Dict{
		jen.Id("Call"): jen.Func().Params(recvParam.Any(), argsParam).Params(jen.Any(), jen.Error()).Block(body...),
	}
	if name != "" {
		dict[jen.Id("Name")] = jen.Lit(name)
	}
	if len(params) > 0 {
		dict[jen.Id("Params")] = jen.Index().String().Values(params...)
	}
	dict[jen.Id("Return")] = jen.Lit(ret)
	if name != "" && static {
		dict[jen.Id("Static")] = jen.True()
	}
	return jen.Values(dict)
}
