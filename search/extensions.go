package search

import (
	"path/filepath"
	"strings"
	"unicode"
)

// ParseExtensions splits a user-supplied extension list. Commas, semicolons,
// pipes and whitespace all separate entries, so "log, .TXT;md" yields
// [log txt md].
func ParseExtensions(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == '|' || unicode.IsSpace(r)
	})
	return NormalizeExtensions(fields)
}

// NormalizeExtensions trims, drops a leading dot, lower-cases and removes
// duplicates and empty entries, keeping first-seen order.
func NormalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	seen := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}

// Extension returns the lower-cased extension of name without its dot.
func Extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}
