package gateway

import (
	"encoding/json"
	"slices"
)

// Check reports whether actual matches expected as a set of column names.
// The rule is equal length plus every expected name present in actual;
// order does not matter and names compare case-sensitively. Duplicates are
// not collapsed, so actual [a b] against expected [a a] still passes.
// A nil or empty expected set never matches.
func Check(actual, expected []string) bool {
	if len(expected) == 0 {
		return false
	}
	if len(expected) != len(actual) {
		return false
	}
	for _, name := range expected {
		if !slices.Contains(actual, name) {
			return false
		}
	}
	return true
}

// ParseExpected decodes a caller-supplied expectedColumns value. It reports
// false when the value is absent, null, or anything other than a JSON array
// of strings.
func ParseExpected(raw json.RawMessage) ([]string, bool) {
	if len(raw) == 0 {
		return nil, false
	}

	var items []any
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return nil, false
	}

	names := make([]string, 0, len(items))
	for _, item := range items {
		name, ok := item.(string)
		if !ok {
			return nil, false
		}
		names = append(names, name)
	}
	return names, true
}
