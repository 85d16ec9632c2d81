package reflection

import (
	"fmt"
	"hash/fnv"
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cockroachdb/apd/v3"

	"github.com/chazu/gobridge/protocol"
)

// registerBuiltins installs the classes of the default package.
func registerBuiltins(r *Registry) {
	obj, _ := r.Lookup(ObjectClass)
	obj.Methods = []*Method{
		instance("toString", StringClass, nil, func(recv any, _ []any) (any, error) {
			return ToString(recv), nil
		}),
		instance("equals", Boolean, []string{ObjectClass}, func(recv any, args []any) (any, error) {
			return Equal(recv, args[0]), nil
		}),
		instance("hashCode", Int, nil, func(recv any, _ []any) (any, error) {
			return HashCode(recv), nil
		}),
		instance("getClass", ClassClass, nil, func(recv any, _ []any) (any, error) {
			return r.ClassOf(recv)
		}),
	}
	r.MustDefine(obj)

	r.MustDefine(&Class{
		Name: ClassClass,
		Methods: []*Method{
			instance("getName", StringClass, nil, func(recv any, _ []any) (any, error) {
				return recv.(*Class).Name, nil
			}),
			instance("getSimpleName", StringClass, nil, func(recv any, _ []any) (any, error) {
				return recv.(*Class).SimpleName(), nil
			}),
			instance("isInterface", Boolean, nil, func(recv any, _ []any) (any, error) {
				return recv.(*Class).IsInterface(), nil
			}),
		},
	})

	r.MustDefine(&Class{
		Name: CharSequenceClass,
		Kind: KindInterface,
		Methods: []*Method{
			instance("length", Int, nil, func(recv any, _ []any) (any, error) {
				return int32(utf8.RuneCountInString(ToString(recv))), nil
			}),
		},
	})
	r.MustDefine(&Class{Name: ComparableClass, Kind: KindInterface})

	registerString(r)
	registerNumbers(r)
	registerMath(r)
	registerStringBuilder(r)
}

func instance(name, ret string, params []string, call func(any, []any) (any, error)) *Method {
	return &Method{Name: name, Return: ret, Params: params, Call: call}
}

func static(name, ret string, params []string, call func(any, []any) (any, error)) *Method {
	return &Method{Name: name, Return: ret, Params: params, Static: true, Call: call}
}

func constant(name, typ string, v any) *Field {
	return &Field{Name: name, Type: typ, Static: true, Final: true, Get: func(any) any { return v }}
}

// ---------------------------------------------------------------------------
// lang.String
// ---------------------------------------------------------------------------

func registerString(r *Registry) {
	str := func(recv any) []rune { return []rune(recv.(string)) }
	index := func(s []rune, v any, allowEnd bool) (int, error) {
		i := int(v.(int32))
		limit := len(s)
		if !allowEnd {
			limit--
		}
		if i < 0 || i > limit {
			return 0, fmt.Errorf("string index out of range: %d", i)
		}
		return i, nil
	}

	valueOf := func(param string) *Method {
		return static("valueOf", StringClass, []string{param}, func(_ any, args []any) (any, error) {
			return ToString(args[0]), nil
		})
	}

	r.MustDefine(&Class{
		Name:       StringClass,
		Interfaces: []string{CharSequenceClass, ComparableClass},
		GoType:     reflect.TypeOf(""),
		Methods: []*Method{
			instance("length", Int, nil, func(recv any, _ []any) (any, error) {
				return int32(len(str(recv))), nil
			}),
			instance("isEmpty", Boolean, nil, func(recv any, _ []any) (any, error) {
				return recv.(string) == "", nil
			}),
			instance("charAt", Char, []string{Int}, func(recv any, args []any) (any, error) {
				s := str(recv)
				i, err := index(s, args[0], false)
				if err != nil {
					return nil, err
				}
				return protocol.Char(s[i]), nil
			}),
			instance("substring", StringClass, []string{Int}, func(recv any, args []any) (any, error) {
				s := str(recv)
				i, err := index(s, args[0], true)
				if err != nil {
					return nil, err
				}
				return string(s[i:]), nil
			}),
			instance("substring", StringClass, []string{Int, Int}, func(recv any, args []any) (any, error) {
				s := str(recv)
				i, err := index(s, args[0], true)
				if err != nil {
					return nil, err
				}
				j, err := index(s, args[1], true)
				if err != nil {
					return nil, err
				}
				if j < i {
					return nil, fmt.Errorf("substring end %d before begin %d", j, i)
				}
				return string(s[i:j]), nil
			}),
			instance("concat", StringClass, []string{StringClass}, func(recv any, args []any) (any, error) {
				return recv.(string) + ToString(args[0]), nil
			}),
			instance("indexOf", Int, []string{StringClass}, func(recv any, args []any) (any, error) {
				s, sub := recv.(string), ToString(args[0])
				i := strings.Index(s, sub)
				if i < 0 {
					return int32(-1), nil
				}
				return int32(utf8.RuneCountInString(s[:i])), nil
			}),
			instance("contains", Boolean, []string{CharSequenceClass}, func(recv any, args []any) (any, error) {
				return strings.Contains(recv.(string), ToString(args[0])), nil
			}),
			instance("startsWith", Boolean, []string{StringClass}, func(recv any, args []any) (any, error) {
				return strings.HasPrefix(recv.(string), ToString(args[0])), nil
			}),
			instance("toUpperCase", StringClass, nil, func(recv any, _ []any) (any, error) {
				return strings.ToUpper(recv.(string)), nil
			}),
			instance("toLowerCase", StringClass, nil, func(recv any, _ []any) (any, error) {
				return strings.ToLower(recv.(string)), nil
			}),
			instance("trim", StringClass, nil, func(recv any, _ []any) (any, error) {
				return strings.TrimSpace(recv.(string)), nil
			}),
			instance("compareTo", Int, []string{StringClass}, func(recv any, args []any) (any, error) {
				return int32(strings.Compare(recv.(string), ToString(args[0]))), nil
			}),
			valueOf(ObjectClass),
			valueOf(Boolean),
			valueOf(Char),
			valueOf(Int),
			valueOf(Long),
			valueOf(Double),
			{
				Name:    "join",
				Return:  StringClass,
				Params:  []string{CharSequenceClass, CharSequenceClass + "[]"},
				Static:  true,
				Varargs: true,
				Call: func(_ any, args []any) (any, error) {
					parts := args[1].(*Array).Values()
					ss := make([]string, len(parts))
					for i, p := range parts {
						ss[i] = ToString(p)
					}
					return strings.Join(ss, ToString(args[0])), nil
				},
			},
		},
		Constructors: []*Method{
			{Params: nil, Call: func(any, []any) (any, error) { return "", nil }},
			{Params: []string{StringClass}, Call: func(_ any, args []any) (any, error) { return ToString(args[0]), nil }},
		},
	})

	r.MustDefine(&Class{
		Name:       CharacterClass,
		Interfaces: []string{ComparableClass},
		Methods: []*Method{
			static("isDigit", Boolean, []string{Char}, func(_ any, args []any) (any, error) {
				return unicode.IsDigit(rune(args[0].(protocol.Char))), nil
			}),
			static("isLetter", Boolean, []string{Char}, func(_ any, args []any) (any, error) {
				return unicode.IsLetter(rune(args[0].(protocol.Char))), nil
			}),
			static("toUpperCase", Char, []string{Char}, func(_ any, args []any) (any, error) {
				return protocol.Char(unicode.ToUpper(rune(args[0].(protocol.Char)))), nil
			}),
		},
	})
}

// ---------------------------------------------------------------------------
// lang.Number and the boxed types
// ---------------------------------------------------------------------------

func registerNumbers(r *Registry) {
	r.MustDefine(&Class{
		Name: NumberClass,
		Methods: []*Method{
			instance("intValue", Int, nil, func(recv any, _ []any) (any, error) {
				f, _ := numberValue(recv)
				return int32(f), nil
			}),
			instance("longValue", Long, nil, func(recv any, _ []any) (any, error) {
				if n, ok := integralValue(recv); ok {
					return n, nil
				}
				f, _ := numberValue(recv)
				return int64(f), nil
			}),
			instance("doubleValue", Double, nil, func(recv any, _ []any) (any, error) {
				f, _ := numberValue(recv)
				return f, nil
			}),
		},
	})

	compareTo := func(param string) *Method {
		return instance("compareTo", Int, []string{param}, func(recv any, args []any) (any, error) {
			a, _ := numberValue(recv)
			b, _ := numberValue(args[0])
			switch {
			case a < b:
				return int32(-1), nil
			case a > b:
				return int32(1), nil
			}
			return int32(0), nil
		})
	}

	r.MustDefine(&Class{
		Name:       BooleanClass,
		Interfaces: []string{ComparableClass},
		Fields: []*Field{
			constant("TRUE", BooleanClass, true),
			constant("FALSE", BooleanClass, false),
		},
		Methods: []*Method{
			static("parseBoolean", Boolean, []string{StringClass}, func(_ any, args []any) (any, error) {
				return strings.EqualFold(ToString(args[0]), "true"), nil
			}),
		},
	})

	r.MustDefine(&Class{
		Name: ByteClass, Super: NumberClass, Interfaces: []string{ComparableClass},
		Fields: []*Field{
			constant("MAX_VALUE", Byte, int8(math.MaxInt8)),
			constant("MIN_VALUE", Byte, int8(math.MinInt8)),
		},
		Methods: []*Method{compareTo(ByteClass)},
	})
	r.MustDefine(&Class{
		Name: ShortClass, Super: NumberClass, Interfaces: []string{ComparableClass},
		Fields: []*Field{
			constant("MAX_VALUE", Short, int16(math.MaxInt16)),
			constant("MIN_VALUE", Short, int16(math.MinInt16)),
		},
		Methods: []*Method{compareTo(ShortClass)},
	})
	r.MustDefine(&Class{
		Name: IntegerClass, Super: NumberClass, Interfaces: []string{ComparableClass},
		Fields: []*Field{
			constant("MAX_VALUE", Int, int32(math.MaxInt32)),
			constant("MIN_VALUE", Int, int32(math.MinInt32)),
		},
		Methods: []*Method{
			compareTo(IntegerClass),
			static("parseInt", Int, []string{StringClass}, func(_ any, args []any) (any, error) {
				n, err := strconv.ParseInt(ToString(args[0]), 10, 32)
				if err != nil {
					return nil, err
				}
				return int32(n), nil
			}),
			static("valueOf", IntegerClass, []string{Int}, func(_ any, args []any) (any, error) {
				return args[0], nil
			}),
			static("toHexString", StringClass, []string{Int}, func(_ any, args []any) (any, error) {
				return strconv.FormatUint(uint64(uint32(args[0].(int32))), 16), nil
			}),
		},
	})
	r.MustDefine(&Class{
		Name: LongClass, Super: NumberClass, Interfaces: []string{ComparableClass},
		Fields: []*Field{
			constant("MAX_VALUE", Long, int64(math.MaxInt64)),
			constant("MIN_VALUE", Long, int64(math.MinInt64)),
		},
		Methods: []*Method{
			compareTo(LongClass),
			static("parseLong", Long, []string{StringClass}, func(_ any, args []any) (any, error) {
				return strconv.ParseInt(ToString(args[0]), 10, 64)
			}),
			static("valueOf", LongClass, []string{Long}, func(_ any, args []any) (any, error) {
				return args[0], nil
			}),
		},
	})
	r.MustDefine(&Class{
		Name: FloatClass, Super: NumberClass, Interfaces: []string{ComparableClass},
		Fields: []*Field{
			constant("MAX_VALUE", Float, float32(math.MaxFloat32)),
		},
		Methods: []*Method{compareTo(FloatClass)},
	})
	r.MustDefine(&Class{
		Name: DoubleClass, Super: NumberClass, Interfaces: []string{ComparableClass},
		Fields: []*Field{
			constant("MAX_VALUE", Double, math.MaxFloat64),
			constant("NaN", Double, math.NaN()),
			constant("POSITIVE_INFINITY", Double, math.Inf(1)),
			constant("NEGATIVE_INFINITY", Double, math.Inf(-1)),
		},
		Methods: []*Method{
			compareTo(DoubleClass),
			static("parseDouble", Double, []string{StringClass}, func(_ any, args []any) (any, error) {
				return protocol.ParseDouble(ToString(args[0]))
			}),
			static("isNaN", Boolean, []string{Double}, func(_ any, args []any) (any, error) {
				return math.IsNaN(args[0].(float64)), nil
			}),
		},
	})

	decimal := func(v any) *apd.Decimal { return v.(*apd.Decimal) }
	arith := func(name string, op func(*apd.Context, *apd.Decimal, *apd.Decimal, *apd.Decimal) (apd.Condition, error)) *Method {
		return instance(name, DecimalClass, []string{DecimalClass}, func(recv any, args []any) (any, error) {
			if args[0] == nil {
				return nil, fmt.Errorf("%s: decimal operand is null", name)
			}
			out := new(apd.Decimal)
			if _, err := op(apd.BaseContext.WithPrecision(34), out, decimal(recv), decimal(args[0])); err != nil {
				return nil, err
			}
			return out, nil
		})
	}
	r.MustDefine(&Class{
		Name: DecimalClass, Super: NumberClass, Interfaces: []string{ComparableClass},
		Methods: []*Method{
			arith("add", (*apd.Context).Add),
			arith("subtract", (*apd.Context).Sub),
			arith("multiply", (*apd.Context).Mul),
			instance("negate", DecimalClass, nil, func(recv any, _ []any) (any, error) {
				return new(apd.Decimal).Neg(decimal(recv)), nil
			}),
			instance("compareTo", Int, []string{DecimalClass}, func(recv any, args []any) (any, error) {
				if args[0] == nil {
					return nil, fmt.Errorf("compareTo: decimal operand is null")
				}
				return int32(decimal(recv).Cmp(decimal(args[0]))), nil
			}),
			instance("scale", Int, nil, func(recv any, _ []any) (any, error) {
				return -decimal(recv).Exponent, nil
			}),
		},
		Constructors: []*Method{
			{Params: []string{StringClass}, Call: func(_ any, args []any) (any, error) {
				d, _, err := apd.NewFromString(ToString(args[0]))
				return d, err
			}},
			{Params: []string{Long}, Call: func(_ any, args []any) (any, error) {
				return apd.New(args[0].(int64), 0), nil
			}},
		},
	})
}

// ---------------------------------------------------------------------------
// lang.Math
// ---------------------------------------------------------------------------

func registerMath(r *Registry) {
	unary := func(name, typ string, f func(any) any) *Method {
		return static(name, typ, []string{typ}, func(_ any, args []any) (any, error) {
			return f(args[0]), nil
		})
	}
	binary := func(name, typ string, f func(a, b any) any) *Method {
		return static(name, typ, []string{typ, typ}, func(_ any, args []any) (any, error) {
			return f(args[0], args[1]), nil
		})
	}

	r.MustDefine(&Class{
		Name: MathClass,
		Fields: []*Field{
			constant("PI", Double, math.Pi),
			constant("E", Double, math.E),
		},
		Methods: []*Method{
			unary("abs", Int, func(a any) any {
				if x := a.(int32); x < 0 {
					return -x
				}
				return a
			}),
			unary("abs", Long, func(a any) any {
				if x := a.(int64); x < 0 {
					return -x
				}
				return a
			}),
			unary("abs", Double, func(a any) any { return math.Abs(a.(float64)) }),
			binary("max", Int, func(a, b any) any { return max(a.(int32), b.(int32)) }),
			binary("max", Long, func(a, b any) any { return max(a.(int64), b.(int64)) }),
			binary("max", Double, func(a, b any) any { return math.Max(a.(float64), b.(float64)) }),
			binary("min", Int, func(a, b any) any { return min(a.(int32), b.(int32)) }),
			binary("min", Long, func(a, b any) any { return min(a.(int64), b.(int64)) }),
			binary("min", Double, func(a, b any) any { return math.Min(a.(float64), b.(float64)) }),
			unary("sqrt", Double, func(a any) any { return math.Sqrt(a.(float64)) }),
			binary("pow", Double, func(a, b any) any { return math.Pow(a.(float64), b.(float64)) }),
		},
	})
}

// ---------------------------------------------------------------------------
// lang.StringBuilder
// ---------------------------------------------------------------------------

func registerStringBuilder(r *Registry) {
	sb := func(recv any) *strings.Builder { return recv.(*strings.Builder) }
	appendOf := func(param string) *Method {
		return instance("append", StringBuilderName, []string{param}, func(recv any, args []any) (any, error) {
			sb(recv).WriteString(ToString(args[0]))
			return recv, nil
		})
	}

	r.MustDefine(&Class{
		Name:       StringBuilderName,
		Interfaces: []string{CharSequenceClass},
		GoType:     reflect.TypeOf(&strings.Builder{}),
		Methods: []*Method{
			appendOf(StringClass),
			appendOf(Boolean),
			appendOf(Char),
			appendOf(Int),
			appendOf(Long),
			appendOf(Double),
			appendOf(ObjectClass),
			instance("length", Int, nil, func(recv any, _ []any) (any, error) {
				return int32(utf8.RuneCountInString(sb(recv).String())), nil
			}),
			instance("toString", StringClass, nil, func(recv any, _ []any) (any, error) {
				return sb(recv).String(), nil
			}),
			instance("reset", Void, nil, func(recv any, _ []any) (any, error) {
				sb(recv).Reset()
				return nil, nil
			}),
		},
		Constructors: []*Method{
			{Call: func(any, []any) (any, error) { return &strings.Builder{}, nil }},
			{Params: []string{StringClass}, Call: func(_ any, args []any) (any, error) {
				b := &strings.Builder{}
				b.WriteString(ToString(args[0]))
				return b, nil
			}},
			{Params: []string{Int}, Call: func(_ any, args []any) (any, error) {
				n := args[0].(int32)
				if n < 0 {
					return nil, fmt.Errorf("negative capacity %d", n)
				}
				b := &strings.Builder{}
				b.Grow(int(n))
				return b, nil
			}},
		},
	})
}

// ---------------------------------------------------------------------------
// Value helpers
// ---------------------------------------------------------------------------

// ToString renders a value the way the remote side prints it.
func ToString(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case protocol.Char:
		return string(rune(x))
	case int8, int16, int32, int64, int:
		n, _ := integralValue(x)
		return strconv.FormatInt(n, 10)
	case float32:
		return protocol.FormatDouble(float64(x))
	case float64:
		return protocol.FormatDouble(x)
	case *apd.Decimal:
		return x.String()
	case *strings.Builder:
		return x.String()
	case *Class:
		return x.Kind.String() + " " + x.Name
	case *Array:
		values := x.Values()
		parts := make([]string, len(values))
		for i, e := range values {
			parts[i] = ToString(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprintf("%v", v)
}

// Equal compares two gateway values. Numbers compare by value within the
// same class, decimals numerically, everything else by Go equality.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if da, ok := a.(*apd.Decimal); ok {
		db, ok := b.(*apd.Decimal)
		return ok && da.Cmp(db) == 0
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if !ta.Comparable() {
		return reflect.DeepEqual(a, b)
	}
	return a == b
}

// HashCode returns a stable 32-bit hash of the value's string form.
func HashCode(v any) int32 {
	h := fnv.New32a()
	h.Write([]byte(ToString(v)))
	return int32(h.Sum32())
}

func numberValue(v any) (float64, bool) {
	if d, ok := v.(*apd.Decimal); ok {
		f, err := d.Float64()
		return f, err == nil
	}
	return floatValue(v)
}
