package engine

import "strings"

// Export name conversion between WIT kebab-case names and the symbols a
// Roc build exports.

// Roc exposes a platform entry point f as roc__f_1_exposed, plus a
// _generic variant that takes its result pointer first.
const (
	rocExportPrefix  = "roc__"
	rocExposedSuffix = "_1_exposed"
	rocGenericSuffix = "_1_exposed_generic"
)

// kebabToSnake converts kebab-case to snake_case
// e.g., "sum-list" -> "sum_list"
func kebabToSnake(kebab string) string {
	return strings.ReplaceAll(kebab, "-", "_")
}

// kebabToCamel converts kebab-case to lowerCamelCase
// e.g., "main-for-host" -> "mainForHost"
func kebabToCamel(kebab string) string {
	parts := strings.Split(kebab, "-")
	var b strings.Builder
	b.Grow(len(kebab))
	for i, p := range parts {
		if p == "" {
			continue
		}
		if i > 0 {
			b.WriteString(strings.ToUpper(p[:1]))
			b.WriteString(p[1:])
			continue
		}
		b.WriteString(p)
	}
	return b.String()
}

// exportCandidates lists the symbols a WIT function name may be exported
// under, most specific first.
func exportCandidates(name string) []string {
	snake := kebabToSnake(name)
	camel := kebabToCamel(name)
	out := []string{name}
	if snake != name {
		out = append(out, snake)
	}
	return append(out,
		rocExportPrefix+camel+rocGenericSuffix,
		rocExportPrefix+camel+rocExposedSuffix,
	)
}

// exportToKebab converts an exported symbol back to its WIT name
// e.g., "roc__mainForHost_1_exposed_generic" -> "main-for-host"
func exportToKebab(symbol string) string {
	if rest, ok := strings.CutPrefix(symbol, rocExportPrefix); ok {
		rest = strings.TrimSuffix(rest, rocGenericSuffix)
		rest = strings.TrimSuffix(rest, rocExposedSuffix)
		var b strings.Builder
		for i := 0; i < len(rest); i++ {
			c := rest[i]
			if c >= 'A' && c <= 'Z' {
				b.WriteByte('-')
				b.WriteByte(c + ('a' - 'A'))
				continue
			}
			b.WriteByte(c)
		}
		return b.String()
	}
	return strings.ReplaceAll(symbol, "_", "-")
}
