package reflection

import (
	"fmt"
	"sync"

	"github.com/chazu/gobridge/protocol"
)

// Array is a fixed-length, typed array reachable through the gateway. It is
// also how variable-arity arguments are handed to a method.
type Array struct {
	Elem string

	mu     sync.RWMutex
	values []any
}

// NewArray wraps values as an array of elem.
func NewArray(elem string, values []any) *Array {
	return &Array{Elem: elem, values: values}
}

// MakeArray returns an array of n zero values of elem.
func MakeArray(elem string, n int) (*Array, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative array length %d", n)
	}
	values := make([]any, n)
	zero := ZeroValue(elem)
	for i := range values {
		values[i] = zero
	}
	return &Array{Elem: elem, values: values}, nil
}

// Len returns the number of elements.
func (a *Array) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.values)
}

// Get returns element i.
func (a *Array) Get(i int) (any, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if i < 0 || i >= len(a.values) {
		return nil, a.indexError(i)
	}
	return a.values[i], nil
}

// Set stores an already converted value at i.
func (a *Array) Set(i int, v any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if i < 0 || i >= len(a.values) {
		return a.indexError(i)
	}
	a.values[i] = v
	return nil
}

// Slice copies the elements at the given indices into a new array.
func (a *Array) Slice(indices []int) (*Array, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]any, 0, len(indices))
	for _, i := range indices {
		if i < 0 || i >= len(a.values) {
			return nil, a.indexError(i)
		}
		out = append(out, a.values[i])
	}
	return &Array{Elem: a.Elem, values: out}, nil
}

// Values returns a copy of the elements.
func (a *Array) Values() []any {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]any(nil), a.values...)
}

func (a *Array) indexError(i int) error {
	return &protocol.NotFoundError{Kind: "array index", Name: fmt.Sprintf("%d (length %d)", i, len(a.values))}
}

// ZeroValue returns the zero value of a type: typed zeros for primitives,
// nil for reference types.
func ZeroValue(typeName string) any {
	switch typeName {
	case Boolean:
		return false
	case Byte:
		return int8(0)
	case Short:
		return int16(0)
	case Int:
		return int32(0)
	case Long:
		return int64(0)
	case Float:
		return float32(0)
	case Double:
		return float64(0)
	case Char:
		return protocol.Char(0)
	}
	return nil
}
