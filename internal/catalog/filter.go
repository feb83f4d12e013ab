package catalog

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
)

// minFuzzyScore drops fuzzy matches that only share a few scattered letters.
const minFuzzyScore = 25

// Filter returns the valid plugins matching query. Without fuzzy matching a
// plugin matches when its name followed by its class contains query,
// ignoring case, and the input order is kept. With fuzzy matching the
// result is ranked: names starting with query first, then by score.
func Filter(plugins []Plugin, query string, useFuzzy bool) []Plugin {
	valid := make([]Plugin, 0, len(plugins))
	for _, p := range plugins {
		if p.Valid() {
			valid = append(valid, p)
		}
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return valid
	}
	if useFuzzy {
		return fuzzyFilter(valid, query)
	}

	lowered := strings.ToLower(query)
	var matched []Plugin
	for _, p := range valid {
		if strings.Contains(strings.ToLower(p.Name+p.Class), lowered) {
			matched = append(matched, p)
		}
	}
	return matched
}

type searchTexts []Plugin

func (s searchTexts) String(i int) string { return s[i].Name + " " + s[i].Class }
func (s searchTexts) Len() int            { return len(s) }

func fuzzyFilter(plugins []Plugin, query string) []Plugin {
	matches := fuzzy.FindFrom(query, searchTexts(plugins))

	kept := matches[:0]
	for _, m := range matches {
		if m.Score >= minFuzzyScore || hasPrefixFold(plugins[m.Index].Name, query) {
			kept = append(kept, m)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		pi := hasPrefixFold(plugins[kept[i].Index].Name, query)
		pj := hasPrefixFold(plugins[kept[j].Index].Name, query)
		if pi != pj {
			return pi
		}
		return kept[i].Score > kept[j].Score
	})

	result := make([]Plugin, len(kept))
	for i, m := range kept {
		result[i] = plugins[m.Index]
	}
	return result
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// OrderByUsage sorts plugins by descending score, keeping the input order
// for equal scores.
func OrderByUsage(plugins []Plugin, score func(uri string) float64) []Plugin {
	ordered := append([]Plugin(nil), plugins...)
	scores := make(map[string]float64, len(ordered))
	for _, p := range ordered {
		scores[p.URI] = score(p.URI)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return scores[ordered[i].URI] > scores[ordered[j].URI]
	})
	return ordered
}
