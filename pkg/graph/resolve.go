package graph

import (
	"sort"
	"strings"
	"unicode"
)

// normalizeName produces the resolution key for a surface form:
// case-folded, trimmed, punctuation stripped, whitespace collapsed.
func normalizeName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '_':
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// canonicalForm is the surface form stored on the node: trimmed of
// outer whitespace and punctuation but otherwise preserved.
func canonicalForm(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
}

// distanceBudget scales the configured per-8-runes rate by name length.
func distanceBudget(norm string, rate int) int {
	budget := rate * (len([]rune(norm)) / 8)
	if budget < rate {
		budget = rate
	}
	return budget
}

// addToSet inserts v into the sorted unique set behind set, reporting
// whether it was added.
func addToSet(set *[]string, v string) bool {
	if v == "" {
		return false
	}
	s := *set
	i := sort.SearchStrings(s, v)
	if i < len(s) && s[i] == v {
		return false
	}
	s = append(s, "")
	copy(s[i+1:], s[i:])
	s[i] = v
	*set = s
	return true
}

// levenshtein computes the edit distance between two strings in runes.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
