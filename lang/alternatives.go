package lang

import (
	"cmp"
	"slices"
	"strings"

	"github.com/sahilm/fuzzy"
)

// alternatives returns the candidates close to name: within a Levenshtein
// distance of a third of its length, or containing it. Results are ordered
// by distance, then by fuzzy match score, then by name.
func alternatives(name string, candidates []string) []string {
	type alt struct {
		name  string
		dist  int
		score int
	}

	scores := make(map[string]int, len(candidates))
	for _, m := range fuzzy.Find(name, candidates) {
		scores[m.Str] = m.Score
	}

	var alts []alt

	for _, c := range candidates {
		if c == name {
			continue
		}

		d := levenshtein(name, c)
		if d <= len(name)/3 || strings.Contains(c, name) {
			alts = append(alts, alt{name: c, dist: d, score: scores[c]})
		}
	}

	slices.SortFunc(alts, func(a, b alt) int {
		if c := cmp.Compare(a.dist, b.dist); c != 0 {
			return c
		}

		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}

		return strings.Compare(a.name, b.name)
	})

	names := make([]string, len(alts))
	for i, a := range alts {
		names[i] = a.name
	}

	return names
}

// didYouMean appends a suggestion list to msg when there are alternatives.
func didYouMean(msg string, alts []string) string {
	if len(alts) == 0 {
		return msg
	}

	return msg + `. Did you mean "` + strings.Join(alts, `", "`) + `"`
}

// levenshtein returns the edit distance between a and b in bytes.
func levenshtein(a, b string) int {
	if a == b {
		return 0
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

			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}
