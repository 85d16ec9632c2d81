package reflection

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/chazu/gobridge/protocol"
)

// MethodDescriptor identifies one resolution request: the class searched,
// the member name and the ordered runtime types of the arguments.
type MethodDescriptor struct {
	Class  string
	Name   string
	Static bool
	Params []string
}

// Key renders the descriptor as a string usable as a map key. Two
// descriptors have the same key exactly when they are Equal.
func (d MethodDescriptor) Key() string {
	var b strings.Builder
	b.WriteString(d.Class)
	b.WriteByte(0)
	b.WriteString(d.Name)
	b.WriteByte(0)
	b.WriteString(strconv.FormatBool(d.Static))
	for _, p := range d.Params {
		b.WriteByte(0)
		b.WriteString(p)
	}
	return b.String()
}

// Equal compares descriptors field by field.
func (d MethodDescriptor) Equal(o MethodDescriptor) bool {
	if d.Class != o.Class || d.Name != o.Name || d.Static != o.Static || len(d.Params) != len(o.Params) {
		return false
	}
	for i := range d.Params {
		if d.Params[i] != o.Params[i] {
			return false
		}
	}
	return true
}

func (d MethodDescriptor) String() string {
	return d.Class + "." + d.Name + "(" + strings.Join(d.Params, ", ") + ")"
}

// MethodInvoker is a method bound to the conversions its arguments need.
type MethodInvoker struct {
	Method *Method
	// Conversions holds one entry per supplied argument.
	Conversions []Conversion
	Cost        int
	Void        bool

	varargs bool
	fixed   int    // number of arguments before the packed tail
	elem    string // element type of the packed tail
}

// IsVarargs reports whether the invoker packs trailing arguments into an array.
func (inv *MethodInvoker) IsVarargs() bool { return inv.varargs }

// Invoke converts args and calls the method on target. A panic inside the
// method is recovered and returned as an error.
func (inv *MethodInvoker) Invoke(target any, args []any) (result any, err error) {
	if len(args) != len(inv.Conversions) {
		return nil, fmt.Errorf("%s: expected %d arguments, got %d", inv.Method.Signature(), len(inv.Conversions), len(args))
	}
	if !inv.Method.Static && target == nil {
		return nil, fmt.Errorf("%s: instance method called without a target", inv.Method.Signature())
	}
	if inv.Method.Call == nil {
		return nil, fmt.Errorf("%s: method has no implementation", inv.Method.Signature())
	}

	converted := make([]any, len(args))
	for i, a := range args {
		v, err := inv.Conversions[i].Apply(a)
		if err != nil {
			return nil, err
		}
		converted[i] = v
	}
	if inv.varargs {
		tail := append([]any(nil), converted[inv.fixed:]...)
		converted = append(converted[:inv.fixed:inv.fixed], NewArray(inv.elem, tail))
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%s: panic: %v", inv.Method.Signature(), r)
		}
	}()
	result, err = inv.Method.Call(target, converted)
	if err != nil {
		return nil, err
	}
	if inv.Void {
		return protocol.Void{}, nil
	}
	return result, nil
}

// buildInvoker prices a fixed-arity call of m. It returns nil when an
// argument cannot be passed.
func (r *Registry) buildInvoker(m *Method, argTypes []string) *MethodInvoker {
	if len(m.Params) != len(argTypes) {
		return nil
	}
	inv := &MethodInvoker{
		Method:      m,
		Conversions: make([]Conversion, len(argTypes)),
		Void:        m.IsVoid(),
	}
	for i, arg := range argTypes {
		cost, conv := r.ParameterCost(m.Params[i], arg)
		if cost < 0 {
			return nil
		}
		inv.Cost += cost
		inv.Conversions[i] = conv
	}
	return inv
}

// buildVarargsInvoker prices a call of m packing the trailing arguments
// into an array of the last parameter's element type.
func (r *Registry) buildVarargsInvoker(m *Method, argTypes []string) *MethodInvoker {
	if !m.Varargs || len(m.Params) == 0 {
		return nil
	}
	fixed := len(m.Params) - 1
	if len(argTypes) < fixed {
		return nil
	}
	elem := ElementType(m.Params[fixed])
	inv := &MethodInvoker{
		Method:      m,
		Conversions: make([]Conversion, len(argTypes)),
		Void:        m.IsVoid(),
		varargs:     true,
		fixed:       fixed,
		elem:        elem,
	}
	for i, arg := range argTypes {
		param := elem
		if i < fixed {
			param = m.Params[i]
		}
		cost, conv := r.ParameterCost(param, arg)
		if cost < 0 {
			return nil
		}
		inv.Cost += cost
		inv.Conversions[i] = conv
	}
	return inv
}

// selectInvoker picks the cheapest candidate. Fixed arity is tried first;
// variable arity only when no fixed-arity candidate fits. A tie at the
// lowest cost is an AmbiguousOverloadError.
func (r *Registry) selectInvoker(name string, candidates []*Method, argTypes []string) (*MethodInvoker, error) {
	pick := func(build func(*Method, []string) *MethodInvoker) ([]*MethodInvoker, error) {
		var best []*MethodInvoker
		for _, m := range candidates {
			inv := build(m, argTypes)
			if inv == nil {
				continue
			}
			switch {
			case len(best) == 0 || inv.Cost < best[0].Cost:
				best = []*MethodInvoker{inv}
			case inv.Cost == best[0].Cost:
				best = append(best, inv)
			}
		}
		if len(best) > 1 {
			sigs := make([]string, len(best))
			for i, inv := range best {
				sigs[i] = qualifiedSignature(inv.Method)
			}
			sort.Strings(sigs)
			return nil, &protocol.AmbiguousOverloadError{Name: name, Candidates: sigs, Cost: best[0].Cost}
		}
		return best, nil
	}

	best, err := pick(r.buildInvoker)
	if err != nil {
		return nil, err
	}
	if len(best) == 1 {
		return best[0], nil
	}
	best, err = pick(r.buildVarargsInvoker)
	if err != nil {
		return nil, err
	}
	if len(best) == 1 {
		return best[0], nil
	}
	return nil, &protocol.NotFoundError{
		Kind: "method",
		Name: name + "(" + strings.Join(argTypes, ", ") + ")",
	}
}

func qualifiedSignature(m *Method) string {
	if m.Owner == nil {
		return m.Signature()
	}
	return m.Owner.Name + "." + m.Signature()
}
