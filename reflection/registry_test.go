package reflection

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/gobridge/protocol"
)

// ---------------------------------------------------------------------------
// Distance
// ---------------------------------------------------------------------------

func newChainRegistry() *Registry {
	r := NewEmptyRegistry()
	r.MustDefine(&Class{Name: "dist.I", Kind: KindInterface})
	r.MustDefine(&Class{Name: "dist.J", Kind: KindInterface, Interfaces: []string{"dist.I"}})
	r.MustDefine(&Class{Name: "dist.A", Interfaces: []string{"dist.I"}})
	r.MustDefine(&Class{Name: "dist.B", Super: "dist.A"})
	r.MustDefine(&Class{Name: "dist.C", Super: "dist.B"})
	r.MustDefine(&Class{Name: "dist.D", Super: "dist.C"})
	r.MustDefine(&Class{Name: "dist.E", Interfaces: []string{"dist.J"}})
	r.MustDefine(&Class{Name: "dist.Other"})
	return r
}

func TestDistanceClassChain(t *testing.T) {
	r := newChainRegistry()
	tests := []struct {
		parent, child string
		want          int
	}{
		{"dist.A", "dist.A", 0},
		{"dist.A", "dist.B", 1},
		{"dist.A", "dist.C", 2},
		{"dist.A", "dist.D", 3},
		{ObjectClass, "dist.D", 4},
		{ObjectClass, "dist.A", 1},
		{"dist.B", "dist.A", -1},
		{"dist.A", "dist.Other", -1},
	}
	for _, tt := range tests {
		if got := r.Distance(tt.parent, tt.child); got != tt.want {
			t.Errorf("Distance(%s, %s) = %d, want %d", tt.parent, tt.child, got, tt.want)
		}
	}
}

func TestDistanceInterfaces(t *testing.T) {
	r := newChainRegistry()
	tests := []struct {
		parent, child string
		want          int
	}{
		{"dist.I", "dist.A", 1},
		{"dist.I", "dist.B", 2},
		{"dist.I", "dist.D", 4},
		{"dist.J", "dist.E", 1},
		{"dist.I", "dist.E", 2},
		{"dist.I", "dist.J", 1},
		{ObjectClass, "dist.I", 1},
		{"dist.J", "dist.A", -1},
	}
	for _, tt := range tests {
		if got := r.Distance(tt.parent, tt.child); got != tt.want {
			t.Errorf("Distance(%s, %s) = %d, want %d", tt.parent, tt.child, got, tt.want)
		}
	}
}

func TestDistancePrimitiveAndReference(t *testing.T) {
	r := NewRegistry()
	if d := r.Distance(Int, IntegerClass); d != -1 {
		t.Errorf("Distance(int, Integer) = %d, want -1", d)
	}
	if d := r.Distance(ObjectClass, Int); d != -1 {
		t.Errorf("Distance(Object, int) = %d, want -1", d)
	}
	if d := r.Distance(Int, Int); d != 0 {
		t.Errorf("Distance(int, int) = %d, want 0", d)
	}
	if d := r.Distance(NumberClass, IntegerClass); d != 1 {
		t.Errorf("Distance(Number, Integer) = %d, want 1", d)
	}
}

func TestDistanceArrays(t *testing.T) {
	r := newChainRegistry()
	if d := r.Distance("dist.A[]", "dist.C[]"); d != 2 {
		t.Errorf("Distance(A[], C[]) = %d, want 2", d)
	}
	if d := r.Distance(ObjectClass, "dist.C[]"); d != 1 {
		t.Errorf("Distance(Object, C[]) = %d, want 1", d)
	}
	if d := r.Distance("long[]", "int[]"); d != -1 {
		t.Errorf("Distance(long[], int[]) = %d, want -1", d)
	}
}

func TestDistanceTablesInvalidatedOnDefine(t *testing.T) {
	r := newChainRegistry()
	if d := r.Distance("dist.Other", "dist.D"); d != -1 {
		t.Fatalf("Distance before redefinition = %d, want -1", d)
	}
	r.MustDefine(&Class{Name: "dist.A", Super: "dist.Other"})
	if d := r.Distance("dist.Other", "dist.D"); d != 4 {
		t.Errorf("Distance after redefinition = %d, want 4", d)
	}
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

func TestStaleDistanceTableIsDropped(t *testing.T) {
	r := NewEmptyRegistry()
	r.MustDefine(&Class{Name: "x.A"})
	r.MustDefine(&Class{Name: "x.B", Super: "x.A"})

	gen := r.Generation()
	table := r.buildAncestorTable("x.B")
	r.MustDefine(&Class{Name: "x.B"})
	if r.Generation() == gen {
		t.Fatal("Define did not advance the generation")
	}
	if r.storeAncestorTable("x.B", table, gen) {
		t.Error("a table built before Define was stored")
	}
	if d := r.Distance("x.A", "x.B"); d != -1 {
		t.Errorf("Distance(x.A, x.B) after reparenting = %d, want -1", d)
	}
	if !r.storeAncestorTable("x.B", r.buildAncestorTable("x.B"), r.Generation()) {
		t.Error("a current table was not stored")
	}
}

func TestDefineRejectsInvalidClasses(t *testing.T) {
	r := NewEmptyRegistry()
	if err := r.Define(&Class{}); err == nil {
		t.Error("Define accepted a class without a name")
	}
	if err := r.Define(&Class{Name: "x.I", Kind: KindInterface, Super: "x.C"}); err == nil {
		t.Error("Define accepted an interface with a superclass")
	}
	if err := r.Define(&Class{Name: "x.C", Super: "x.C"}); err == nil {
		t.Error("Define accepted a class extending itself")
	}
}

func TestDefineConstructorsReturnTheirClass(t *testing.T) {
	r := NewEmptyRegistry()
	c := r.MustDefine(&Class{
		Name: "x.Box",
		Constructors: []*Method{{
			Call: func(any, []any) (any, error) { return &animal{name: "box"}, nil },
		}},
	})
	ctor := c.Constructors[0]
	if ctor.Name != ConstructorName || !ctor.Static {
		t.Errorf("constructor = %+v, want static %s", ctor, ConstructorName)
	}
	if ctor.IsVoid() || ctor.Return != "x.Box" {
		t.Errorf("constructor return = %q, want %q", ctor.Return, "x.Box")
	}

	inv := r.buildInvoker(ctor, nil)
	if inv == nil {
		t.Fatal("no invoker for the no-arg constructor")
	}
	obj, err := inv.Invoke(nil, nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if a, ok := obj.(*animal); !ok || a.name != "box" {
		t.Errorf("constructed %#v, want the new object", obj)
	}
}

func TestClassOf(t *testing.T) {
	r := newZooRegistry()
	tests := []struct {
		value any
		want  string
	}{
		{"s", StringClass},
		{int32(1), IntegerClass},
		{int64(1), LongClass},
		{int8(1), ByteClass},
		{1.5, DoubleClass},
		{true, BooleanClass},
		{protocol.Char('x'), CharacterClass},
		{[]byte{1}, "byte[]"},
		{NewArray(StringClass, nil), "lang.String[]"},
		{&dog{}, "zoo.Dog"},
		{&puppy{}, "zoo.Puppy"},
	}
	for _, tt := range tests {
		c, err := r.ClassOf(tt.value)
		if err != nil {
			t.Fatalf("ClassOf(%#v): %v", tt.value, err)
		}
		if c.Name != tt.want {
			t.Errorf("ClassOf(%#v) = %s, want %s", tt.value, c.Name, tt.want)
		}
	}

	type unknown struct{}
	if _, err := r.ClassOf(unknown{}); err == nil {
		t.Error("ClassOf(unregistered) should fail")
	}
}

type fakeProxy []string

func (p fakeProxy) ProxyInterfaces() []string { return p }

func TestProxyClassImplementsInterfaces(t *testing.T) {
	r := newZooRegistry()
	c, err := r.ClassOf(fakeProxy{"zoo.Pet", "zoo.Loud"})
	if err != nil {
		t.Fatalf("ClassOf(proxy): %v", err)
	}
	if c2 := r.ProxyClass([]string{"zoo.Loud", "zoo.Pet"}); c2 != c {
		t.Error("ProxyClass should not depend on interface order")
	}
	if d := r.Distance("zoo.Pet", c.Name); d != 1 {
		t.Errorf("Distance(Pet, proxy) = %d, want 1", d)
	}
}

func TestNamesAndPackages(t *testing.T) {
	r := newZooRegistry()
	if !r.HasPackage("zoo") {
		t.Error("HasPackage(zoo) = false")
	}
	if r.HasPackage("zo") {
		t.Error("HasPackage(zo) = true")
	}
	var zoo []string
	for _, n := range r.Names() {
		if len(n) > 4 && n[:4] == "zoo." {
			zoo = append(zoo, n)
		}
	}
	want := []string{"zoo.Animal", "zoo.Dog", "zoo.Dog$Collar", "zoo.Empty", "zoo.Keeper", "zoo.Loud", "zoo.Pet", "zoo.Puppy"}
	if diff := cmp.Diff(want, zoo); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
}

// ---------------------------------------------------------------------------
// Conversions
// ---------------------------------------------------------------------------

func TestParameterCost(t *testing.T) {
	r := NewRegistry()
	tests := []struct {
		param, arg string
		cost       int
		conv       Conversion
	}{
		{Int, IntegerClass, 0, NoConversion},
		{Long, IntegerClass, 1, ToLong},
		{Double, IntegerClass, 3, ToDouble},
		{Short, IntegerClass, 11, ToShort},
		{Byte, IntegerClass, 12, ToByte},
		{Float, DoubleClass, 10, ToFloat},
		{Int, DoubleClass, -1, NoConversion},
		{Char, StringClass, 2, ToChar},
		{StringClass, CharacterClass, 2, ToStringValue},
		{Boolean, IntegerClass, -1, NoConversion},
		{ObjectClass, StringClass, 100, NoConversion},
		{Int, NullType, -1, NoConversion},
		{StringClass, NullType, 6300, NoConversion},
		{ObjectClass, NullType, 6400, NoConversion},
	}
	for _, tt := range tests {
		cost, conv := r.ParameterCost(tt.param, tt.arg)
		if cost != tt.cost || conv != tt.conv {
			t.Errorf("ParameterCost(%s, %s) = %d, %v; want %d, %v", tt.param, tt.arg, cost, conv, tt.cost, tt.conv)
		}
	}
}

func TestConversionApply(t *testing.T) {
	if v, err := ToByte.Apply(int32(-128)); err != nil || v != int8(-128) {
		t.Errorf("ToByte(-128) = %v, %v", v, err)
	}
	if _, err := ToByte.Apply(int32(128)); err == nil {
		t.Error("ToByte(128) should overflow")
	}
	if v, err := ToFloat.Apply(2.5); err != nil || v != float32(2.5) {
		t.Errorf("ToFloat(2.5) = %v, %v", v, err)
	}
	if v, err := ToChar.Apply("é"); err != nil || v != protocol.Char('é') {
		t.Errorf("ToChar(é) = %v, %v", v, err)
	}
	if _, err := ToChar.Apply("ab"); err == nil {
		t.Error("ToChar(ab) should fail")
	}
	if v, err := ToStringValue.Apply(protocol.Char('z')); err != nil || v != "z" {
		t.Errorf("ToStringValue('z') = %v, %v", v, err)
	}
}

func TestAs(t *testing.T) {
	if got := As[string]("x"); got != "x" {
		t.Errorf("As[string](x) = %q", got)
	}
	if got := As[*animal](nil); got != nil {
		t.Errorf("As[*animal](nil) = %v, want nil", got)
	}
	if got := As[int64](int32(3)); got != 0 {
		t.Errorf("As[int64](int32) = %d, want zero", got)
	}
}

func TestRef(t *testing.T) {
	var p *animal
	if got := Ref(p); got != nil {
		t.Errorf("Ref(nil) = %#v, want untyped nil", got)
	}
	a := &animal{}
	if got := Ref(a); got != any(a) {
		t.Errorf("Ref(a) = %v", got)
	}
}
