package gateway

import (
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/chazu/gobridge/reflection"
)

// WildcardSuffix marks a package import.
const WildcardSuffix = ".*"

// View is an import namespace used to resolve simple class names. Views are
// independent: creating one never copies another's imports.
type View struct {
	Name string

	mu        sync.Mutex
	singles   map[string]string // simple name -> fully qualified name
	wildcards map[string]bool
	searches  map[string]bool
	sequence  int64
}

// NewView returns a view importing only the default package.
func NewView(name string) *View {
	return &View{
		Name:      name,
		singles:   make(map[string]string),
		wildcards: map[string]bool{reflection.DefaultPackage: true},
		searches:  make(map[string]bool),
	}
}

// Import adds a single import ("pkg.Class") or a wildcard import ("pkg.*").
// It reports whether the view changed.
func (v *View) Import(name string) bool {
	if pkg, ok := strings.CutSuffix(name, WildcardSuffix); ok {
		return v.ImportPackage(pkg)
	}
	return v.ImportClass(name)
}

// ImportClass adds a single import. The first class imported under a simple
// name wins; later imports of a different class with the same simple name
// are ignored.
func (v *View) ImportClass(fqn string) bool {
	simple := reflection.SimpleName(fqn)
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.singles[simple]; ok {
		return false
	}
	v.singles[simple] = fqn
	v.sequence++
	return true
}

// ImportPackage adds a wildcard import.
func (v *View) ImportPackage(pkg string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.wildcards[pkg] {
		return false
	}
	v.wildcards[pkg] = true
	v.sequence++
	return true
}

// RemoveImport removes a single or wildcard import and reports whether it
// was present. The default package can never be removed.
func (v *View) RemoveImport(name string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if pkg, ok := strings.CutSuffix(name, WildcardSuffix); ok {
		if pkg == reflection.DefaultPackage || !v.wildcards[pkg] {
			return false
		}
		delete(v.wildcards, pkg)
		v.sequence++
		return true
	}
	simple := reflection.SimpleName(name)
	if fqn, ok := v.singles[simple]; !ok || fqn != name {
		return false
	}
	delete(v.singles, simple)
	v.sequence++
	return true
}

// Lookup returns the fully qualified name a simple name is imported as.
func (v *View) Lookup(simple string) (string, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fqn, ok := v.singles[simple]
	return fqn, ok
}

// SingleImports returns the single imports as fully qualified names, sorted.
func (v *View) SingleImports() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]string, 0, len(v.singles))
	for _, fqn := range v.singles {
		out = append(out, fqn)
	}
	sort.Strings(out)
	return out
}

// SimpleNames returns the simple names of the single imports, sorted.
func (v *View) SimpleNames() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]string, 0, len(v.singles))
	for simple := range v.singles {
		out = append(out, simple)
	}
	sort.Strings(out)
	return out
}

// WildcardImports returns the imported packages, sorted.
func (v *View) WildcardImports() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]string, 0, len(v.wildcards))
	for pkg := range v.wildcards {
		out = append(out, pkg)
	}
	sort.Strings(out)
	return out
}

// AddSearch records a search term.
func (v *View) AddSearch(term string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.searches[term] = true
}

// Searches returns the recorded search terms, sorted.
func (v *View) Searches() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]string, 0, len(v.searches))
	for term := range v.searches {
		out = append(out, term)
	}
	sort.Strings(out)
	return out
}

// Sequence returns a counter bumped on every import change.
func (v *View) Sequence() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sequence
}

// ResolveClass resolves name to a registered class: a single import first,
// then a fully qualified name, then each wildcard package in order.
func (v *View) ResolveClass(name string, reg *reflection.Registry) (*reflection.Class, bool) {
	if fqn, ok := v.Lookup(name); ok {
		if c, ok := reg.Lookup(fqn); ok {
			return c, true
		}
	}
	if c, ok := reg.Lookup(name); ok && c.Kind != reflection.KindPrimitive {
		return c, true
	}
	if strings.Contains(name, ".") {
		return nil, false
	}
	for _, pkg := range v.WildcardImports() {
		if c, ok := reg.Lookup(pkg + "." + name); ok {
			return c, true
		}
	}
	return nil, false
}

// Search returns the registered classes whose fully qualified name matches
// term, sorted. A term without glob characters matches as a substring of
// the simple name.
func (v *View) Search(term string, reg *reflection.Registry) []string {
	v.AddSearch(term)
	var out []string
	for _, name := range reg.Names() {
		if matchTerm(term, name) {
			out = append(out, name)
		}
	}
	return out
}

func matchTerm(term, fqn string) bool {
	if strings.ContainsAny(term, "*?[") {
		ok, err := path.Match(term, fqn)
		if err == nil && ok {
			return true
		}
		ok, err = path.Match(term, reflection.SimpleName(fqn))
		return err == nil && ok
	}
	return strings.Contains(strings.ToLower(reflection.SimpleName(fqn)), strings.ToLower(term))
}
