/*
normalize.go - Entity value canonicalization

PURPOSE:
  Extracted document fields arrive as raw OCR/parser output: stray
  whitespace, inconsistent casing, duplicated dates. Cross-document
  comparison needs a canonical key, while the UI wants something close to
  what the document actually said. Every normalized value therefore carries
  both: a folded comparison Key and a trimmed-but-cased Display.

RULES:
  Scalars:   trim, collapse internal whitespace, casefold the key.
  Date sets: drop blanks, de-duplicate, SORT the unique values for the key
             (stable across input orderings), keep encounter order for
             display.

  Empty input normalizes to absent, never to an empty value.
*/
package graph

import (
	"sort"
	"strings"
)

// Value is a normalized field value: Key for comparison, Display for humans.
type Value struct {
	Key     string
	Display string
}

// NormalizeScalar canonicalizes a single extracted field value.
// Returns false for empty or whitespace-only input.
func NormalizeScalar(raw string) (Value, bool) {
	collapsed := strings.Join(strings.Fields(raw), " ")
	if collapsed == "" {
		return Value{}, false
	}
	return Value{
		Key:     strings.ToLower(collapsed),
		Display: collapsed,
	}, true
}

// NormalizeDateSet canonicalizes a set of extracted date strings.
// Returns false if no non-blank dates remain.
func NormalizeDateSet(raw []string) (Value, bool) {
	seen := make(map[string]bool, len(raw))
	var keys []string
	var display []string

	for _, d := range raw {
		v, ok := NormalizeScalar(d)
		if !ok {
			continue
		}
		if seen[v.Key] {
			continue
		}
		seen[v.Key] = true
		keys = append(keys, v.Key)
		display = append(display, v.Display)
	}
	if len(keys) == 0 {
		return Value{}, false
	}

	// The key must not depend on the order dates appeared in the document.
	sort.Strings(keys)
	return Value{
		Key:     strings.Join(keys, "|"),
		Display: strings.Join(display, ", "),
	}, true
}
