// Package resolve provides the ergonomics layer: fuzzy "not found"
// suggestions, status/type/priority synonym normalization, and
// terminal-to-session correlation.
package resolve

import "strings"

// Distance computes the case-insensitive Levenshtein distance between
// two strings (generalized from the teacher's string_distance.go
// ComputeDistance, which this engine used only for issue titles; here
// it backs "not found" suggestions across every entity kind).
func Distance(a, b string) int {
	a = strings.ToLower(a)
	b = strings.ToLower(b)

	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			min := prev[j] + 1
			if ins := curr[j-1] + 1; ins < min {
				min = ins
			}
			if sub := prev[j-1] + cost; sub < min {
				min = sub
			}
			curr[j] = min
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// Suggestions returns every candidate within maxDistance of query,
// nearest first, used to compose "did you mean ...?" hints on not-found
// errors (spec.md §4.6).
func Suggestions(query string, candidates []string, maxDistance int) []string {
	type scored struct {
		value string
		dist  int
	}
	var matches []scored
	for _, c := range candidates {
		d := Distance(query, c)
		if d <= maxDistance {
			matches = append(matches, scored{c, d})
		}
	}
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j-1].dist > matches[j].dist; j-- {
			matches[j-1], matches[j] = matches[j], matches[j-1]
		}
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.value
	}
	return out
}

// FuzzyMatch reports whether every rune of source appears in target, in
// order (subsequence match), case-insensitive — grounded on the
// teacher's string_fuzzy.go FuzzyMatch.
func FuzzyMatch(source, target string) bool {
	source = strings.ToLower(source)
	target = strings.ToLower(target)

	si := 0
	sourceRunes := []rune(source)
	for _, r := range target {
		if si < len(sourceRunes) && sourceRunes[si] == r {
			si++
		}
	}
	return si == len(sourceRunes)
}
