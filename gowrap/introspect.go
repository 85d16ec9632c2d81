package gowrap

import (
	"fmt"
	"go/constant"
	"go/types"

	"github.com/tliron/commonlog"
	"golang.org/x/tools/go/packages"
)

var log = commonlog.GetLogger("gobridge.gowrap")

// Filter restricts introspection to the named exported identifiers. A nil
// Filter allows everything.
type Filter map[string]bool

// NewFilter builds a Filter from a list of names. An empty list gives nil.
func NewFilter(names []string) Filter {
	if len(names) == 0 {
		return nil
	}
	f := make(Filter, len(names))
	for _, n := range names {
		f[n] = true
	}
	return f
}

// Allows reports whether name passes the filter.
func (f Filter) Allows(name string) bool {
	return f == nil || f[name]
}

// IntrospectPackage loads a Go package by import path and returns its API
// model. Generic functions and types are left out.
func IntrospectPackage(importPath string, filter Filter) (*PackageModel, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedTypes,
	}
	pkgs, err := packages.Load(cfg, importPath)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", importPath, err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages found for %s", importPath)
	}
	pkg := pkgs[0]
	if len(pkg.Errors) > 0 {
		return nil, fmt.Errorf("package errors: %v", pkg.Errors)
	}
	if pkg.Types == nil {
		return nil, fmt.Errorf("type information not available for %s", importPath)
	}
	log.Debugf("introspecting %s", importPath)

	model := &PackageModel{
		ImportPath: importPath,
		Name:       pkg.Name,
	}
	qual := qualifier(pkg.Types)
	scope := pkg.Types.Scope()
	for _, name := range scope.Names() {
		obj := scope.Lookup(name)
		if !obj.Exported() || !filter.Allows(name) {
			continue
		}
		switch o := obj.(type) {
		case *types.Func:
			sig := o.Type().(*types.Signature)
			if sig.TypeParams().Len() > 0 {
				log.Debugf("skipping generic function %s", name)
				continue
			}
			model.Functions = append(model.Functions, functionModel(name, sig, "", qual))
		case *types.TypeName:
			if tm := typeModel(o, qual); tm != nil {
				model.Types = append(model.Types, *tm)
			}
		case *types.Const:
			model.Constants = append(model.Constants, constantModel(o))
		}
	}
	return model, nil
}

func typeModel(tn *types.TypeName, qual types.Qualifier) *TypeModel {
	if tn.IsAlias() {
		return nil
	}
	named, ok := tn.Type().(*types.Named)
	if !ok || named.TypeParams().Len() > 0 {
		return nil
	}

	tm := &TypeModel{Name: tn.Name(), GoType: named}
	if st, ok := named.Underlying().(*types.Struct); ok {
		tm.IsStruct = true
		for i := 0; i < st.NumFields(); i++ {
			f := st.Field(i)
			if !f.Exported() || f.Embedded() {
				continue
			}
			tm.Fields = append(tm.Fields, FieldModel{
				Name:    f.Name(),
				GoType:  f.Type(),
				TypeStr: types.TypeString(f.Type(), qual),
			})
		}
	}

	// The pointer method set covers value and pointer receivers. Promoted
	// methods belong to the embedded type.
	mset := types.NewMethodSet(types.NewPointer(named))
	for i := 0; i < mset.Len(); i++ {
		sel := mset.At(i)
		fn, ok := sel.Obj().(*types.Func)
		if !ok || !fn.Exported() || len(sel.Index()) > 1 {
			continue
		}
		sig := fn.Type().(*types.Signature)
		tm.Methods = append(tm.Methods, functionModel(fn.Name(), sig, "*"+tn.Name(), qual))
	}
	return tm
}

func constantModel(c *types.Const) ConstantModel {
	val := c.Val()
	str := val.ExactString()
	if val.Kind() == constant.String {
		str = constant.StringVal(val)
	}
	return ConstantModel{
		Name:    c.Name(),
		TypeStr: c.Type().String(),
		Kind:    val.Kind(),
		Value:   str,
	}
}

func functionModel(name string, sig *types.Signature, recvType string, qual types.Qualifier) FunctionModel {
	fm := FunctionModel{
		Name:     name,
		IsMethod: recvType != "",
		RecvType: recvType,
		Variadic: sig.Variadic(),
	}
	fm.Params = paramModels(sig.Params(), qual)
	fm.Results = paramModels(sig.Results(), qual)
	if n := sig.Results().Len(); n > 0 && isErrorType(sig.Results().At(n-1).Type()) {
		fm.ReturnsErr = true
	}
	return fm
}

func paramModels(tuple *types.Tuple, qual types.Qualifier) []ParamModel {
	var out []ParamModel
	for i := 0; i < tuple.Len(); i++ {
		v := tuple.At(i)
		out = append(out, ParamModel{
			Name:    v.Name(),
			GoType:  v.Type(),
			TypeStr: types.TypeString(v.Type(), qual),
		})
	}
	return out
}

var errorType = types.Universe.Lookup("error").Type()

func isErrorType(t types.Type) bool {
	return types.Identical(t, errorType)
}

func qualifier(pkg *types.Package) types.Qualifier {
	return func(other *types.Package) string {
		if other == pkg {
			return ""
		}
		return other.Name()
	}
}
