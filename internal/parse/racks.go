package parse

import (
	"sort"
	"strings"
)

// RackLabels splits a comma, semicolon or whitespace separated list of rack
// labels into a sorted set of upper-cased labels.
func RackLabels(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n'
	})
	return NormalizeRacks(fields)
}

// NormalizeRacks trims, upper-cases and de-duplicates labels. The result is
// sorted and never nil.
func NormalizeRacks(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		l = strings.ToUpper(strings.TrimSpace(l))
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
