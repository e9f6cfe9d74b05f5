// Package label normalizes free text into label tokens and merges label
// sources into the canonical set stored on a photo.
package label

import (
	"sort"
	"strings"
	"unicode"
)

// Tokenize splits text on any run of whitespace and/or commas, trims and
// lowercases each piece, and drops empty pieces. Order and duplicates are
// preserved.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if tok := Normalize(f); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// Normalize returns the canonical form of a single label.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Merge unions detected and declared labels into a sorted set. Neither source
// is weighted; presence in either is enough.
func Merge(detected, declared []string) []string {
	seen := make(map[string]struct{}, len(detected)+len(declared))
	for _, src := range [][]string{detected, declared} {
		for _, l := range src {
			if n := Normalize(l); n != "" {
				seen[n] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Dedup drops repeated tokens, keeping the first occurrence.
func Dedup(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
