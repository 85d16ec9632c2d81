package reflection

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/chazu/gobridge/protocol"
)

// DistanceFactor scales one inheritance hop so that conversion edges, which
// cost a few units, always rank below a single subclass step.
const DistanceFactor = 100

// Conversion costs.
const (
	wideningCost  = 1  // multiplied by the number of widening steps
	narrowingCost = 10 // plus the number of narrowing steps
	charCost      = 2
	nullDepth     = 64
)

// Conversion is a value coercion applied to one argument before a call.
type Conversion uint8

const (
	NoConversion Conversion = iota
	ToByte
	ToShort
	ToInt
	ToLong
	ToFloat
	ToDouble
	ToChar
	ToStringValue
)

func (c Conversion) String() string {
	switch c {
	case NoConversion:
		return "none"
	case ToByte:
		return "byte"
	case ToShort:
		return "short"
	case ToInt:
		return "int"
	case ToLong:
		return "long"
	case ToFloat:
		return "float"
	case ToDouble:
		return "double"
	case ToChar:
		return "char"
	case ToStringValue:
		return "string"
	}
	return fmt.Sprintf("Conversion(%d)", uint8(c))
}

// numeric ranks, narrowest first.
const (
	rankByte = iota
	rankShort
	rankInt
	rankLong
	rankFloat
	rankDouble
)

var numericRanks = map[string]int{
	Byte: rankByte, ByteClass: rankByte,
	Short: rankShort, ShortClass: rankShort,
	Int: rankInt, IntegerClass: rankInt,
	Long: rankLong, LongClass: rankLong,
	Float: rankFloat, FloatClass: rankFloat,
	Double: rankDouble, DoubleClass: rankDouble,
}

var rankConversions = [...]Conversion{ToByte, ToShort, ToInt, ToLong, ToFloat, ToDouble}

func numericRank(name string) (int, bool) {
	r, ok := numericRanks[name]
	return r, ok
}

func isIntegral(rank int) bool { return rank <= rankLong }

func isCharType(name string) bool { return name == Char || name == CharacterClass }

func isBooleanType(name string) bool { return name == Boolean || name == BooleanClass }

// ParameterCost returns the cost of passing an argument whose runtime type
// is arg to a parameter declared as param, and the conversion that must be
// applied. A cost of -1 means the argument cannot be passed.
func (r *Registry) ParameterCost(param, arg string) (int, Conversion) {
	if arg == NullType {
		if IsPrimitive(param) {
			return -1, NoConversion
		}
		cost := nullDepth - r.Depth(param)
		if cost < 0 {
			cost = 0
		}
		return cost * DistanceFactor, NoConversion
	}
	if param == arg {
		return 0, NoConversion
	}

	if pr, ok := numericRank(param); ok {
		ar, ok := numericRank(arg)
		if !ok {
			return -1, NoConversion
		}
		return numericCost(pr, ar)
	}

	if isCharType(param) {
		switch {
		case isCharType(arg):
			return 0, NoConversion
		case arg == StringClass:
			return charCost, ToChar
		}
		return -1, NoConversion
	}

	if isBooleanType(param) {
		if isBooleanType(arg) {
			return 0, NoConversion
		}
		return -1, NoConversion
	}

	if param == StringClass && arg == CharacterClass {
		return charCost, ToStringValue
	}

	if d := r.Distance(param, arg); d >= 0 {
		return d * DistanceFactor, NoConversion
	}
	return -1, NoConversion
}

func numericCost(param, arg int) (int, Conversion) {
	switch {
	case param == arg:
		return 0, NoConversion
	case param > arg:
		return (param - arg) * wideningCost, rankConversions[param]
	case isIntegral(param) && isIntegral(arg):
		return narrowingCost + (arg - param), rankConversions[param]
	case param == rankFloat && arg == rankDouble:
		return narrowingCost, ToFloat
	}
	return -1, NoConversion
}

// Apply converts v. Narrowing conversions fail with a ConversionError when
// the value does not fit.
func (c Conversion) Apply(v any) (any, error) {
	switch c {
	case NoConversion:
		return v, nil
	case ToByte, ToShort, ToInt, ToLong:
		n, ok := integralValue(v)
		if !ok {
			return nil, conversionError(v, c, nil)
		}
		return narrowIntegral(n, c, v)
	case ToFloat:
		f, ok := floatValue(v)
		if !ok {
			return nil, conversionError(v, c, nil)
		}
		if !math.IsInf(f, 0) && !math.IsNaN(f) && math.Abs(f) > math.MaxFloat32 {
			return nil, conversionError(v, c, fmt.Errorf("out of range"))
		}
		return float32(f), nil
	case ToDouble:
		f, ok := floatValue(v)
		if !ok {
			return nil, conversionError(v, c, nil)
		}
		return f, nil
	case ToChar:
		switch x := v.(type) {
		case protocol.Char:
			return x, nil
		case string:
			if utf8.RuneCountInString(x) != 1 {
				return nil, conversionError(v, c, fmt.Errorf("string must hold exactly one character"))
			}
			r, _ := utf8.DecodeRuneInString(x)
			return protocol.Char(r), nil
		}
		return nil, conversionError(v, c, nil)
	case ToStringValue:
		switch x := v.(type) {
		case protocol.Char:
			return string(rune(x)), nil
		case string:
			return x, nil
		}
		return nil, conversionError(v, c, nil)
	}
	return nil, conversionError(v, c, fmt.Errorf("unknown conversion"))
}

func narrowIntegral(n int64, c Conversion, orig any) (any, error) {
	var lo, hi int64
	switch c {
	case ToByte:
		lo, hi = math.MinInt8, math.MaxInt8
	case ToShort:
		lo, hi = math.MinInt16, math.MaxInt16
	case ToInt:
		lo, hi = math.MinInt32, math.MaxInt32
	default:
		return n, nil
	}
	if n < lo || n > hi {
		return nil, conversionError(orig, c, fmt.Errorf("value out of range [%d, %d]", lo, hi))
	}
	switch c {
	case ToByte:
		return int8(n), nil
	case ToShort:
		return int16(n), nil
	}
	return int32(n), nil
}

func integralValue(v any) (int64, bool) {
	switch x := v.(type) {
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case int:
		return int64(x), true
	}
	return 0, false
}

func floatValue(v any) (float64, bool) {
	switch x := v.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	if n, ok := integralValue(v); ok {
		return float64(n), true
	}
	return 0, false
}

func conversionError(v any, c Conversion, err error) error {
	return &protocol.ConversionError{Value: v, From: fmt.Sprintf("%T", v), To: c.String(), Err: err}
}
