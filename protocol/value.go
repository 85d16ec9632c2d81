package protocol

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// Char is a single character value. It travels as a one-character string.
type Char rune

// Reference names a registry entry holding an ordinary object.
type Reference struct{ ID string }

// ArrayReference names a registry entry holding an array.
type ArrayReference struct{ ID string }

// ProxyReference names an object living in the remote process, together
// with the interfaces it claims to implement.
type ProxyReference struct {
	ID         string
	Interfaces []string
}

// Void is the result of a method without a return value.
type Void struct{}

// PackageMarker answers a reflection lookup that resolved to a package.
type PackageMarker string

// ClassMarker answers a reflection lookup that resolved to a class.
type ClassMarker string

// MethodMarker answers a member lookup that resolved to a static method.
type MethodMarker struct{}

// NoMember answers a member lookup that found nothing.
type NoMember struct{}

// Encode renders v as a single tagged token without the trailing newline.
func Encode(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return string(NullType), nil
	case bool:
		return string(BooleanType) + strconv.FormatBool(x), nil
	case int8:
		return string(IntegerType) + strconv.FormatInt(int64(x), 10), nil
	case int16:
		return string(IntegerType) + strconv.FormatInt(int64(x), 10), nil
	case int32:
		return string(IntegerType) + strconv.FormatInt(int64(x), 10), nil
	case uint8:
		return string(IntegerType) + strconv.FormatUint(uint64(x), 10), nil
	case uint16:
		return string(IntegerType) + strconv.FormatUint(uint64(x), 10), nil
	case int:
		if x >= math.MinInt32 && x <= math.MaxInt32 {
			return string(IntegerType) + strconv.Itoa(x), nil
		}
		return string(LongType) + strconv.Itoa(x), nil
	case uint32:
		return string(LongType) + strconv.FormatUint(uint64(x), 10), nil
	case int64:
		return string(LongType) + strconv.FormatInt(x, 10), nil
	case float32:
		return string(DoubleType) + FormatDouble(float64(x)), nil
	case float64:
		return string(DoubleType) + FormatDouble(x), nil
	case *apd.Decimal:
		if x == nil {
			return string(NullType), nil
		}
		return string(DecimalType) + x.String(), nil
	case apd.Decimal:
		return string(DecimalType) + x.String(), nil
	case string:
		return string(StringType) + Escape(x), nil
	case Char:
		return string(StringType) + Escape(string(rune(x))), nil
	case []byte:
		return string(BytesType) + base64.StdEncoding.EncodeToString(x), nil
	case Reference:
		return string(ReferenceType) + x.ID, nil
	case ArrayReference:
		return string(ArrayType) + x.ID, nil
	case ProxyReference:
		parts := append([]string{x.ID}, x.Interfaces...)
		return string(ProxyType) + strings.Join(parts, ProxySeparator), nil
	case Void:
		return string(VoidType), nil
	case PackageMarker:
		return string(PackageType) + string(x), nil
	case ClassMarker:
		return string(ClassType) + string(x), nil
	case MethodMarker:
		return string(MethodType), nil
	case NoMember:
		return string(NoMemberType), nil
	}
	return "", fmt.Errorf("protocol: cannot encode value of type %T", v)
}

// Decode parses a single tagged token. The trailing newline, if any, must
// already be stripped.
func Decode(line string) (any, error) {
	if line == "" {
		return nil, &ProtocolError{Line: line, Reason: "empty value"}
	}
	tag, payload := line[0], line[1:]
	switch tag {
	case NullType:
		return nil, nil
	case BooleanType:
		switch {
		case strings.EqualFold(payload, "true"):
			return true, nil
		case strings.EqualFold(payload, "false"):
			return false, nil
		}
		return nil, &ProtocolError{Line: line, Reason: "invalid boolean"}
	case IntegerType:
		n, err := strconv.ParseInt(payload, 10, 32)
		if err != nil {
			return nil, &ProtocolError{Line: line, Reason: "invalid integer"}
		}
		return int32(n), nil
	case LongType:
		n, err := strconv.ParseInt(payload, 10, 64)
		if err != nil {
			return nil, &ProtocolError{Line: line, Reason: "invalid long"}
		}
		return n, nil
	case DoubleType:
		f, err := ParseDouble(payload)
		if err != nil {
			return nil, &ProtocolError{Line: line, Reason: "invalid double"}
		}
		return f, nil
	case DecimalType:
		d, _, err := apd.NewFromString(payload)
		if err != nil {
			return nil, &ProtocolError{Line: line, Reason: "invalid decimal"}
		}
		return d, nil
	case StringType:
		return Unescape(payload), nil
	case BytesType:
		b, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, &ProtocolError{Line: line, Reason: "invalid base64 payload"}
		}
		return b, nil
	case ReferenceType:
		if payload == "" {
			return nil, &ProtocolError{Line: line, Reason: "empty reference"}
		}
		return Reference{ID: payload}, nil
	case ArrayType:
		if payload == "" {
			return nil, &ProtocolError{Line: line, Reason: "empty array reference"}
		}
		return ArrayReference{ID: payload}, nil
	case ProxyType:
		parts := strings.Split(payload, ProxySeparator)
		if parts[0] == "" {
			return nil, &ProtocolError{Line: line, Reason: "empty proxy id"}
		}
		ref := ProxyReference{ID: parts[0]}
		for _, iface := range parts[1:] {
			if iface != "" {
				ref.Interfaces = append(ref.Interfaces, iface)
			}
		}
		return ref, nil
	case VoidType:
		return Void{}, nil
	case PackageType:
		return PackageMarker(payload), nil
	case ClassType:
		return ClassMarker(payload), nil
	case MethodType:
		return MethodMarker{}, nil
	case NoMemberType:
		return NoMember{}, nil
	}
	return nil, &ProtocolError{Line: line, Reason: fmt.Sprintf("unknown type tag %q", tag)}
}

// FormatDouble renders f the way the remote side prints doubles: integral
// values keep a ".0" suffix and exponents use "E".
func FormatDouble(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if i := strings.IndexByte(s, 'e'); i >= 0 {
		mant, exp := s[:i], s[i+1:]
		if !strings.Contains(mant, ".") {
			mant += ".0"
		}
		neg := strings.HasPrefix(exp, "-")
		exp = strings.TrimLeft(exp, "+-")
		exp = strings.TrimLeft(exp, "0")
		if exp == "" {
			exp = "0"
		}
		if neg {
			exp = "-" + exp
		}
		return mant + "E" + exp
	}
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// ParseDouble accepts everything FormatDouble produces plus the lowercase
// spellings a scripting client may send ("inf", "nan").
func ParseDouble(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

// SuccessReply wraps an encoded token in a success reply line.
func SuccessReply(token string) string {
	return string(ReturnMessage) + string(Success) + token + "\n"
}

// ErrorReply builds an error reply line carrying msg.
func ErrorReply(msg string) string {
	return string(ReturnMessage) + string(Error) + string(StringType) + Escape(msg) + "\n"
}

// EncodeReply encodes v and wraps it in a success reply line.
func EncodeReply(v any) (string, error) {
	token, err := Encode(v)
	if err != nil {
		return "", err
	}
	return SuccessReply(token), nil
}

// ParseReply decodes a reply line. The leading "!" is optional because the
// reverse channel answers with bare "y"/"x" lines.
func ParseReply(line string) (value any, isError bool, err error) {
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimPrefix(line, string(ReturnMessage))
	if line == "" {
		return nil, false, &ProtocolError{Line: line, Reason: "empty reply"}
	}
	switch line[0] {
	case Success:
		if len(line) == 1 {
			return Void{}, false, nil
		}
		v, err := Decode(line[1:])
		return v, false, err
	case Error:
		if len(line) == 1 {
			return "", true, nil
		}
		v, err := Decode(line[1:])
		return v, true, err
	}
	return nil, false, &ProtocolError{Line: line, Reason: "reply must start with y or x"}
}
