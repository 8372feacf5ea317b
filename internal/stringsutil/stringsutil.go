// Package stringsutil holds small helpers for ordered string sets.
package stringsutil

import "strings"

// DedupeStrings trims values, drops empty ones and keeps the first occurrence of each value.
func DedupeStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Diff computes the symmetric difference between the current and desired sets.
// toRemove keeps the order of current, toAdd keeps the order of desired.
// Duplicates in desired are collapsed.
func Diff(current, desired []string) (toRemove, toAdd []string) {
	want := make(map[string]struct{}, len(desired))
	for _, d := range desired {
		want[d] = struct{}{}
	}
	have := make(map[string]struct{}, len(current))
	for _, c := range current {
		have[c] = struct{}{}
		if _, ok := want[c]; !ok {
			toRemove = append(toRemove, c)
		}
	}
	for _, d := range DedupeStrings(desired) {
		if _, ok := have[d]; !ok {
			toAdd = append(toAdd, d)
		}
	}
	return toRemove, toAdd
}

// Contains reports whether values holds v.
func Contains(values []string, v string) bool {
	for _, item := range values {
		if item == v {
			return true
		}
	}
	return false
}

// SplitList splits a comma-separated list into trimmed, non-empty, unique values.
func SplitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return DedupeStrings(strings.Split(raw, ","))
}
