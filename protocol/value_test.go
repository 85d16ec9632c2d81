package protocol

import (
	"bufio"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/cockroachdb/apd/v3"
	"github.com/google/go-cmp/cmp"
)

// ---------------------------------------------------------------------------
// Escaping
// ---------------------------------------------------------------------------

func TestEscapeRoundTrip(t *testing.T) {
	cases := []string{
		"",
		"plain",
		"line\nbreak",
		"carriage\rreturn",
		`back\slash`,
		`\n literal`,
		"mixed\\\n\r\\n",
		"trailing\\",
	}
	for _, s := range cases {
		esc := Escape(s)
		if strings.ContainsAny(esc, "\n\r") {
			t.Errorf("Escape(%q) = %q still contains a line delimiter", s, esc)
		}
		if got := Unescape(esc); got != s {
			t.Errorf("Unescape(Escape(%q)) = %q", s, got)
		}
	}
}

// ---------------------------------------------------------------------------
// Value tokens
// ---------------------------------------------------------------------------

func TestDecodeEncodeLines(t *testing.T) {
	lines := []string{
		"n",
		"btrue",
		"bfalse",
		"i0",
		"i-1",
		"i2147483647",
		"i-2147483648",
		"L0",
		"L-1",
		"L9223372036854775807",
		"L-9223372036854775808",
		"d0.0",
		"d-1.0",
		"d2.5",
		"d1.0E21",
		"d1.0E-7",
		"dNaN",
		"dInfinity",
		"d-Infinity",
		"D1.50",
		"D-0.001",
		"s",
		"shello",
		`sline\nbreak`,
		`sback\\slash`,
		"j",
		"jAAEC/w==",
		"ro12",
		"to3",
		"fp1;a.Runnable;b.Closeable",
		"fp2",
		"v",
		"plang",
		"clang.String",
		"m",
		"o",
	}
	for _, line := range lines {
		v, err := Decode(line)
		if err != nil {
			t.Errorf("Decode(%q): %v", line, err)
			continue
		}
		got, err := Encode(v)
		if err != nil {
			t.Errorf("Encode(Decode(%q)): %v", line, err)
			continue
		}
		if got != line {
			t.Errorf("Encode(Decode(%q)) = %q", line, got)
		}
	}
}

func TestEncodeDecodeValues(t *testing.T) {
	values := []any{
		nil,
		true,
		false,
		int32(0),
		int32(-1),
		int32(math.MaxInt32),
		int32(math.MinInt32),
		int64(0),
		int64(-1),
		int64(math.MaxInt64),
		int64(math.MinInt64),
		0.0,
		-1.5,
		math.MaxFloat64,
		math.SmallestNonzeroFloat64,
		"",
		"a\nb\\c\rd",
		[]byte{},
		[]byte{0, 1, 2, 255},
		Reference{ID: "o1"},
		ArrayReference{ID: "o2"},
		ProxyReference{ID: "p0", Interfaces: []string{"x.Listener"}},
		Void{},
		PackageMarker("a.b"),
		ClassMarker("a.b.C"),
		MethodMarker{},
		NoMember{},
	}
	for _, v := range values {
		token, err := Encode(v)
		if err != nil {
			t.Fatalf("Encode(%#v): %v", v, err)
		}
		got, err := Decode(token)
		if err != nil {
			t.Fatalf("Decode(%q): %v", token, err)
		}
		if diff := cmp.Diff(v, got); diff != "" {
			t.Errorf("round trip of %#v via %q (-want +got):\n%s", v, token, diff)
		}
	}
}

func TestEncodeDecodeNaN(t *testing.T) {
	token, err := Encode(math.NaN())
	if err != nil {
		t.Fatal(err)
	}
	v, err := Decode(token)
	if err != nil {
		t.Fatal(err)
	}
	if f, ok := v.(float64); !ok || !math.IsNaN(f) {
		t.Errorf("expected NaN, got %#v", v)
	}
}

func TestEncodeDecimal(t *testing.T) {
	d, _, err := apd.NewFromString("123.4500")
	if err != nil {
		t.Fatal(err)
	}
	token, err := Encode(d)
	if err != nil {
		t.Fatal(err)
	}
	if token != "D123.4500" {
		t.Errorf("expected D123.4500, got %q", token)
	}
	v, err := Decode(token)
	if err != nil {
		t.Fatal(err)
	}
	if v.(*apd.Decimal).Cmp(d) != 0 {
		t.Errorf("decimal round trip mismatch: %v", v)
	}
}

func TestEncodeNarrowTypes(t *testing.T) {
	cases := map[any]string{
		int8(-3):        "i-3",
		int16(300):      "i300",
		Char('x'):       "sx",
		float32(0.5):    "d0.5",
		int(7):          "i7",
		int(1 << 40):    "L1099511627776",
		uint32(1 << 31): "L2147483648",
	}
	for v, want := range cases {
		got, err := Encode(v)
		if err != nil {
			t.Errorf("Encode(%#v): %v", v, err)
			continue
		}
		if got != want {
			t.Errorf("Encode(%#v) = %q, want %q", v, got, want)
		}
	}
}

func TestDecodeBooleanIsCaseInsensitive(t *testing.T) {
	for _, line := range []string{"bTrue", "bTRUE", "btrue"} {
		v, err := Decode(line)
		if err != nil || v != true {
			t.Errorf("Decode(%q) = %v, %v", line, v, err)
		}
	}
}

func TestDecodeMalformed(t *testing.T) {
	lines := []string{"", "?abc", "ixyz", "i99999999999", "Lnope", "dxx", "bmaybe", "j!!!", "r", "t", "f", "D1.2.3"}
	for _, line := range lines {
		_, err := Decode(line)
		var pe *ProtocolError
		if !errors.As(err, &pe) {
			t.Errorf("Decode(%q): expected ProtocolError, got %v", line, err)
		}
	}
}

func TestEncodeUnsupported(t *testing.T) {
	if _, err := Encode(struct{}{}); err == nil {
		t.Error("expected error encoding a struct")
	}
}

// ---------------------------------------------------------------------------
// Replies and commands
// ---------------------------------------------------------------------------

func TestReplies(t *testing.T) {
	if got := SuccessReply("i5"); got != "!yi5\n" {
		t.Errorf("SuccessReply = %q", got)
	}
	if got := ErrorReply("bad\nthing"); got != "!xsbad\\nthing\n" {
		t.Errorf("ErrorReply = %q", got)
	}

	v, isErr, err := ParseReply("!yi5\n")
	if err != nil || isErr || v != int32(5) {
		t.Errorf("ParseReply success = %v, %v, %v", v, isErr, err)
	}
	v, isErr, err = ParseReply("xsboom")
	if err != nil || !isErr || v != "boom" {
		t.Errorf("ParseReply bare error = %v, %v, %v", v, isErr, err)
	}
	v, _, err = ParseReply("y")
	if err != nil || v != (Void{}) {
		t.Errorf("ParseReply bare y = %v, %v", v, err)
	}
	if _, _, err := ParseReply("zzz"); err == nil {
		t.Error("expected error for malformed reply")
	}
}

func TestReadArguments(t *testing.T) {
	cmd := BuildCommand(CallCommand, "o1", "add", "i1", "i2")
	r := bufio.NewReader(strings.NewReader(cmd))

	code, err := ReadLine(r)
	if err != nil || code != "c" {
		t.Fatalf("ReadLine = %q, %v", code, err)
	}
	args, err := ReadArguments(r)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"o1", "add", "i1", "i2"}, args); diff != "" {
		t.Errorf("arguments mismatch (-want +got):\n%s", diff)
	}
}

func TestReadArgumentsTruncated(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("o1\nadd\n"))
	_, err := ReadArguments(r)
	if !IsNetworkError(err) {
		t.Errorf("expected NetworkError for truncated command, got %v", err)
	}
}

func TestReadLineStripsCRLF(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("abc\r\nlast"))
	line, err := ReadLine(r)
	if err != nil || line != "abc" {
		t.Errorf("ReadLine = %q, %v", line, err)
	}
	line, err = ReadLine(r)
	if err != nil || line != "last" {
		t.Errorf("ReadLine = %q, %v", line, err)
	}
}
