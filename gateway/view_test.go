package gateway

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/gobridge/reflection"
)

func TestSingleImportFirstWriterWins(t *testing.T) {
	v := NewView("test")
	if !v.Import("a.Widget") {
		t.Fatal("first import rejected")
	}
	if v.Import("b.Widget") {
		t.Error("second import under the same simple name accepted")
	}
	if fqn, _ := v.Lookup("Widget"); fqn != "a.Widget" {
		t.Errorf("Lookup(Widget) = %q, want a.Widget", fqn)
	}
	if v.RemoveImport("b.Widget") {
		t.Error("removed an import that never took effect")
	}
	if !v.RemoveImport("a.Widget") {
		t.Error("RemoveImport(a.Widget) = false")
	}
	if !v.Import("b.Widget") {
		t.Error("import after removal rejected")
	}
}

func TestDefaultPackageNeverRemovable(t *testing.T) {
	v := NewView("test")
	if v.RemoveImport(reflection.DefaultPackage + WildcardSuffix) {
		t.Error("default package removed")
	}
	v.Import("shapes.*")
	if diff := cmp.Diff([]string{"lang", "shapes"}, v.WildcardImports()); diff != "" {
		t.Errorf("wildcards mismatch (-want +got):\n%s", diff)
	}
	if !v.RemoveImport("shapes.*") {
		t.Error("RemoveImport(shapes.*) = false")
	}
	if diff := cmp.Diff([]string{"lang"}, v.WildcardImports()); diff != "" {
		t.Errorf("wildcards mismatch (-want +got):\n%s", diff)
	}
}

func TestSequenceTracksChanges(t *testing.T) {
	v := NewView("test")
	s0 := v.Sequence()
	v.Import("a.X")
	v.Import("a.X")
	v.Import("a.*")
	if got := v.Sequence() - s0; got != 2 {
		t.Errorf("sequence advanced by %d, want 2", got)
	}
	v.AddSearch("X")
	if got := v.Sequence() - s0; got != 2 {
		t.Error("search changed the sequence")
	}
}

func TestViewsAreIndependent(t *testing.T) {
	g := newTestGateway()
	g.DefaultView().Import("a.Thing")
	id, v := g.NewView("other")
	if _, ok := v.Lookup("Thing"); ok {
		t.Error("new view inherited an import")
	}
	got, err := g.View(id)
	if err != nil || got != v {
		t.Errorf("View(%s) = %v, %v", id, got, err)
	}
	if _, err := g.View("o999"); err == nil {
		t.Error("View(unknown) should fail")
	}
}

func TestResolveClassAndSearch(t *testing.T) {
	reg := reflection.NewRegistry()
	reg.MustDefine(&reflection.Class{Name: "shapes.Circle"})
	reg.MustDefine(&reflection.Class{Name: "shapes.Square"})
	reg.MustDefine(&reflection.Class{Name: "other.Circle"})

	v := NewView("test")
	if c, ok := v.ResolveClass("String", reg); !ok || c.Name != reflection.StringClass {
		t.Errorf("ResolveClass(String) = %v, %v", c, ok)
	}
	if _, ok := v.ResolveClass("Circle", reg); ok {
		t.Error("Circle resolved without an import")
	}
	v.Import("shapes.*")
	if c, _ := v.ResolveClass("Circle", reg); c == nil || c.Name != "shapes.Circle" {
		t.Errorf("ResolveClass(Circle) via wildcard = %v", c)
	}
	v.Import("other.Circle")
	if c, _ := v.ResolveClass("Circle", reg); c == nil || c.Name != "other.Circle" {
		t.Errorf("single import should beat wildcard, got %v", c)
	}
	if c, ok := v.ResolveClass("shapes.Square", reg); !ok || c.Name != "shapes.Square" {
		t.Errorf("ResolveClass(fqn) = %v, %v", c, ok)
	}
	if _, ok := v.ResolveClass("int", reg); ok {
		t.Error("primitive resolved as a class")
	}

	if diff := cmp.Diff([]string{"other.Circle", "shapes.Circle"}, v.Search("circ", reg)); diff != "" {
		t.Errorf("Search(circ) mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"shapes.Circle", "shapes.Square"}, v.Search("shapes.*", reg)); diff != "" {
		t.Errorf("Search(shapes.*) mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"circ", "shapes.*"}, v.Searches()); diff != "" {
		t.Errorf("Searches() mismatch (-want +got):\n%s", diff)
	}
}
