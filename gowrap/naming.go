package gowrap

import (
	"regexp"
	"strings"
	"unicode"
)

var majorVersion = regexp.MustCompile(`^v[0-9]+$`)

// DefaultNamespace derives the class package for an import path: its last
// segment, skipping a trailing major version.
// e.g., "encoding/json" → "json", "github.com/cockroachdb/apd/v3" → "apd"
func DefaultNamespace(importPath string) string {
	parts := strings.Split(importPath, "/")
	last := parts[len(parts)-1]
	if majorVersion.MatchString(last) && len(parts) > 1 {
		last = parts[len(parts)-2]
	}
	return strings.ToLower(strings.NewReplacer("-", "", ".", "").Replace(last))
}

// ClassName qualifies a Go type name with the namespace.
// e.g., namespace "http", type "Server" → "http.Server"
func ClassName(namespace, typeName string) string {
	return namespace + "." + typeName
}

// FunctionsClassName names the class holding a package's functions and
// constants: the PascalCase namespace.
// e.g., "strings" → "strings.Strings"
func FunctionsClassName(namespace string) string {
	return ClassName(namespace, toPascal(namespace))
}

// MemberName converts a Go identifier to a gateway member name: a leading
// run of capitals is lowered as a whole, so acronyms stay readable.
// e.g., "ReadAll" → "readAll", "URLPath" → "urlPath", "ID" → "id"
func MemberName(name string) string {
	runes := []rune(name)
	n := 0
	for n < len(runes) && unicode.IsUpper(runes[n]) {
		n++
	}
	switch {
	case n == 0:
		return name
	case n == 1 || n == len(runes):
		// Single capital, or all capitals.
	default:
		// Keep the capital that starts the next word.
		n--
	}
	for i := 0; i < n; i++ {
		runes[i] = unicode.ToLower(runes[i])
	}
	return string(runes)
}

// ConstructorTarget reports the type a New<T> function constructs.
// e.g., "NewReader" → "Reader"
func ConstructorTarget(funcName string) (string, bool) {
	rest, ok := strings.CutPrefix(funcName, "New")
	if !ok || rest == "" || !unicode.IsUpper([]rune(rest)[0]) {
		return "", false
	}
	return rest, true
}

// toPascal converts a string to PascalCase.
// Handles hyphenated and underscore-separated names.
func toPascal(s string) string {
	if len(s) == 0 {
		return s
	}

	var b strings.Builder
	nextUpper := true
	for _, r := range s {
		if r == '-' || r == '_' {
			nextUpper = true
			continue
		}
		if nextUpper {
			b.WriteRune(unicode.ToUpper(r))
			nextUpper = false
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
