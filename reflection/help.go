package reflection

import (
	"path"
	"strings"
)

const helpIndent = "    "

// HelpPage renders a help page for a class model. Members are filtered by a
// glob pattern (empty or "*" matches everything). In short mode only
// signatures are listed.
func HelpPage(m *ClassModel, pattern string, short bool) string {
	if pattern == "" {
		pattern = "*"
	}
	match := func(name string) bool {
		ok, err := path.Match(pattern, name)
		return err == nil && ok
	}

	var b strings.Builder
	pkg := m.Package()
	if pkg == "" {
		pkg = "<default>"
	}
	b.WriteString("Help on " + m.Kind + " " + m.SimpleName() + " in package " + pkg + ":\n\n")
	b.WriteString(m.SimpleName())
	var parents []string
	if m.Super != "" {
		parents = append(parents, m.Super)
	}
	parents = append(parents, m.Interfaces...)
	if len(parents) > 0 {
		b.WriteString(" extends " + strings.Join(parents, ", "))
	}
	b.WriteString(" {\n")

	section := func(title string, lines []string) {
		if len(lines) == 0 {
			return
		}
		b.WriteString("|  \n|  " + title + "\n|  " + strings.Repeat("-", 60) + "\n")
		for _, l := range lines {
			b.WriteString("|  " + l + "\n")
		}
	}

	var ctors, methods, fields []string
	for _, c := range m.Constructors {
		if match(m.SimpleName()) {
			ctors = append(ctors, memberLine(m.SimpleName(), c, short))
		}
	}
	for _, meth := range m.Methods {
		if match(meth.Name) {
			methods = append(methods, memberLine(meth.Name, meth, short))
		}
	}
	for _, f := range m.Fields {
		if match(f.Name) {
			fields = append(fields, fieldLine(f, short))
		}
	}
	section("Constructors defined here:", ctors)
	section("Methods defined here:", methods)
	section("Fields defined here:", fields)
	if len(m.Nested) > 0 && match("*") {
		var nested []string
		for _, n := range m.Nested {
			nested = append(nested, NestedSimpleName(n))
		}
		section("Internal classes defined here:", nested)
	}
	b.WriteString("}")
	return b.String()
}

func memberLine(name string, m *MethodModel, short bool) string {
	sig := (&MethodModel{Name: name, Params: m.Params, Varargs: m.Varargs}).Signature()
	if short {
		return sig
	}
	mods := ""
	if m.Static {
		mods = "static "
	}
	ret := ""
	if m.Name != ConstructorName {
		ret = m.Return + " "
	}
	return helpIndent + mods + ret + sig
}

func fieldLine(f *FieldModel, short bool) string {
	if short {
		return f.Name
	}
	mods := ""
	if f.Static {
		mods += "static "
	}
	if f.Final {
		mods += "final "
	}
	return helpIndent + mods + f.Type + " " + f.Name
}
