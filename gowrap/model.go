// Package gowrap introspects Go packages and generates gateway class
// registrations for their exported API.
package gowrap

import (
	"go/constant"
	"go/types"
)

// PackageModel is the bindable surface of one Go package: its exported
// non-generic functions, named types and constants.
type PackageModel struct {
	ImportPath string
	Name       string
	Functions  []FunctionModel
	Types      []TypeModel
	Constants  []ConstantModel
}

// Type returns the type model called name, or nil.
func (m *PackageModel) Type(name string) *TypeModel {
	for i := range m.Types {
		if m.Types[i].Name == name {
			return &m.Types[i]
		}
	}
	return nil
}

// TypeModel is a named type. Only structs become gateway classes; Fields
// is empty for other kinds.
type TypeModel struct {
	Name     string
	GoType   types.Type
	IsStruct bool
	Fields   []FieldModel
	// Methods is the pointer method set without promoted methods.
	Methods []FunctionModel
}

// FunctionModel is a package-level function or a method. RecvType is
// "*T" for methods.
type FunctionModel struct {
	Name     string
	IsMethod bool
	RecvType string
	Params   []ParamModel
	Results  []ParamModel
	// ReturnsErr is set when the last result is error; the generator
	// turns it into the call's error return.
	ReturnsErr bool
	// Variadic functions keep their last parameter as a slice type.
	Variadic bool
}

// ParamModel is one parameter or result. TypeStr leaves the wrapped
// package unqualified and qualifies others by package name.
type ParamModel struct {
	Name    string
	GoType  types.Type
	TypeStr string
}

// FieldModel is an exported, non-embedded struct field.
type FieldModel struct {
	Name    string
	GoType  types.Type
	TypeStr string
}

// ConstantModel is an exported constant. Value is the exact literal,
// unquoted for strings.
type ConstantModel struct {
	Name    string
	TypeStr string
	Kind    constant.Kind
	Value   string
}
