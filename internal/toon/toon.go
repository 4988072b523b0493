// Package toon implements TOON (Token-Oriented Object Notation) encoding.
package toon

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/phobologic/railsrel/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Encode converts a SchemaMap into TOON format.
func Encode(sm *model.SchemaMap) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("app: %s", encodeValue(sm.App)))

	var modelRows [][]string
	for i := range sm.Models {
		m := &sm.Models[i]
		modelRows = append(modelRows, []string{
			m.Name,
			m.File,
			fmt.Sprintf("%d", m.Line),
			m.Superclass,
			fmt.Sprintf("%.4f", m.Rank),
		})
	}
	parts = append(parts, formatTabular("models", []string{"name", "file", "line", "superclass", "rank"}, modelRows))

	var assocRows [][]string
	for i := range sm.Edges {
		e := &sm.Edges[i]
		assocRows = append(assocRows, []string{
			e.Source,
			string(e.Association.Kind),
			e.Association.Name,
			e.Target,
		})
	}
	parts = append(parts, formatTabular("associations", []string{"model", "kind", "name", "target"}, assocRows))

	return strings.Join(parts, "\n")
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
