package reflection

import (
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"
)

// ClassModel is a read-only snapshot of a class, used for help pages and
// model export.
type ClassModel struct {
	Name         string         `cbor:"1,keyasint"`
	Kind         string         `cbor:"2,keyasint"`
	Super        string         `cbor:"3,keyasint,omitempty"`
	Interfaces   []string       `cbor:"4,keyasint,omitempty"`
	Fields       []*FieldModel  `cbor:"5,keyasint,omitempty"`
	Methods      []*MethodModel `cbor:"6,keyasint,omitempty"`
	Constructors []*MethodModel `cbor:"7,keyasint,omitempty"`
	Nested       []string       `cbor:"8,keyasint,omitempty"`
}

// MethodModel is a snapshot of a method or constructor.
type MethodModel struct {
	Name    string   `cbor:"1,keyasint"`
	Params  []string `cbor:"2,keyasint,omitempty"`
	Return  string   `cbor:"3,keyasint,omitempty"`
	Static  bool     `cbor:"4,keyasint,omitempty"`
	Varargs bool     `cbor:"5,keyasint,omitempty"`
}

// FieldModel is a snapshot of a field.
type FieldModel struct {
	Name   string `cbor:"1,keyasint"`
	Type   string `cbor:"2,keyasint"`
	Static bool   `cbor:"3,keyasint,omitempty"`
	Final  bool   `cbor:"4,keyasint,omitempty"`
}

// Package returns the package part of the model's class name.
func (m *ClassModel) Package() string { return (&Class{Name: m.Name}).Package() }

// SimpleName returns the class name without its package.
func (m *ClassModel) SimpleName() string { return SimpleName(m.Name) }

// Signature renders the method like Method.Signature.
func (m *MethodModel) Signature() string {
	return (&Method{Name: m.Name, Params: m.Params, Varargs: m.Varargs}).Signature()
}

// BuildModel snapshots the public members c declares. Methods are sorted by
// name then signature, fields by name.
func BuildModel(c *Class) *ClassModel {
	m := &ClassModel{
		Name:       c.Name,
		Kind:       c.Kind.String(),
		Super:      c.Super,
		Interfaces: append([]string(nil), c.Interfaces...),
		Nested:     append([]string(nil), c.Nested...),
	}
	for _, f := range c.Fields {
		if !f.IsPublic() {
			continue
		}
		m.Fields = append(m.Fields, &FieldModel{Name: f.Name, Type: f.Type, Static: f.Static, Final: f.Final})
	}
	for _, meth := range c.Methods {
		if meth.IsPublic() {
			m.Methods = append(m.Methods, methodModel(meth))
		}
	}
	for _, ctor := range c.Constructors {
		if ctor.IsPublic() {
			m.Constructors = append(m.Constructors, methodModel(ctor))
		}
	}
	sort.Slice(m.Fields, func(i, j int) bool { return m.Fields[i].Name < m.Fields[j].Name })
	sortMethods(m.Methods)
	sortMethods(m.Constructors)
	return m
}

// BuildModels snapshots every non-primitive class of the registry, sorted
// by name.
func (r *Registry) BuildModels() []*ClassModel {
	var out []*ClassModel
	for _, name := range r.Names() {
		c, ok := r.Lookup(name)
		if !ok || c.Kind == KindArray {
			continue
		}
		out = append(out, BuildModel(c))
	}
	return out
}

func methodModel(m *Method) *MethodModel {
	ret := m.Return
	if m.IsVoid() {
		ret = Void
	}
	return &MethodModel{
		Name:    m.Name,
		Params:  append([]string(nil), m.Params...),
		Return:  ret,
		Static:  m.Static,
		Varargs: m.Varargs,
	}
}

func sortMethods(ms []*MethodModel) {
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].Name != ms[j].Name {
			return ms[i].Name < ms[j].Name
		}
		return ms[i].Signature() < ms[j].Signature()
	})
}

// ---------------------------------------------------------------------------
// CBOR export
// ---------------------------------------------------------------------------

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("reflection: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalModels serializes class models to canonical CBOR.
func MarshalModels(models []*ClassModel) ([]byte, error) {
	return cborEncMode.Marshal(models)
}

// UnmarshalModels deserializes class models from CBOR bytes.
func UnmarshalModels(data []byte) ([]*ClassModel, error) {
	var models []*ClassModel
	if err := cbor.Unmarshal(data, &models); err != nil {
		return nil, fmt.Errorf("reflection: unmarshal models: %w", err)
	}
	return models, nil
}
