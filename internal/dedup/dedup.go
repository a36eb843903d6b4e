// Package dedup drops near-duplicate news items by title similarity.
package dedup

import (
	"strings"

	"github.com/TobiSchelling/NewsGrade/internal/news"
)

// DefaultThreshold is the similarity at or above which two titles are
// considered the same story.
const DefaultThreshold = 0.4

// Similarity returns the Jaccard similarity of the lower-cased,
// whitespace-separated token sets of a and b. Two blank titles are
// identical (similarity 1).
func Similarity(a, b string) float64 {
	return jaccard(tokenSet(a), tokenSet(b))
}

// Dedupe keeps items in input order, dropping any item whose title is at
// least threshold-similar to a title already kept. The first occurrence
// of a story wins.
func Dedupe(items []news.RawItem, threshold float64) []news.RawItem {
	if len(items) == 0 {
		return []news.RawItem{}
	}

	kept := []news.RawItem{items[0]}
	keptTokens := []map[string]struct{}{tokenSet(items[0].Title)}

	for _, item := range items[1:] {
		tokens := tokenSet(item.Title)
		duplicate := false
		for _, k := range keptTokens {
			if jaccard(tokens, k) >= threshold {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, item)
			keptTokens = append(keptTokens, tokens)
		}
	}
	return kept
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for tok := range small {
		if _, ok := large[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
