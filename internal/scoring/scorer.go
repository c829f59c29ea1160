// Package scoring ranks candidate articles by keyword fit for a brand.
package scoring

import (
	"sort"
	"strings"
	"unicode"

	"PostForge/internal/domain"
)

// Score sums the weight of every keyword present in title and summary, once
// per keyword, then adds each combo bonus whose keywords are all present.
// It is a pure function of its inputs.
func Score(article domain.Article, weights domain.ScoringWeights) float64 {
	tokens := tokenize(article.Title + " " + article.Summary)
	present := make(map[string]bool, len(weights.Keywords))

	// Sum in sorted key order so float addition is reproducible.
	keys := make([]string, 0, len(weights.Keywords))
	for kw := range weights.Keywords {
		keys = append(keys, kw)
	}
	sort.Strings(keys)

	var score float64
	for _, kw := range keys {
		if containsPhrase(tokens, tokenize(kw)) {
			present[normalizeKeyword(kw)] = true
			score += weights.Keywords[kw]
		}
	}

	for _, combo := range weights.Combos {
		if comboTriggered(combo, tokens, present) {
			score += combo.Bonus
		}
	}
	return score
}

func comboTriggered(combo domain.ComboRule, tokens []string, present map[string]bool) bool {
	if len(combo.Keywords) == 0 {
		return false
	}
	for _, kw := range combo.Keywords {
		if present[normalizeKeyword(kw)] {
			continue
		}
		// Combo keywords need not carry an individual weight.
		if !containsPhrase(tokens, tokenize(kw)) {
			return false
		}
	}
	return true
}

// AboveThreshold reports whether an article may proceed to extraction.
func AboveThreshold(article domain.Article) bool {
	return article.Score() > 0
}

// Rank scores every article and orders them by score, then most recent
// publication, then feed priority, then normalized URL. The result is a new
// slice; the input is not modified.
func Rank(articles []domain.Article, weights domain.ScoringWeights) []domain.Article {
	ranked := make([]domain.Article, len(articles))
	for i, a := range articles {
		ranked[i] = a.WithScore(Score(a, weights))
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return less(ranked[i], ranked[j])
	})
	return ranked
}

func less(a, b domain.Article) bool {
	if sa, sb := a.Score(), b.Score(); sa != sb {
		return sa > sb
	}
	if !a.PublishedAt.Equal(b.PublishedAt) {
		return a.PublishedAt.After(b.PublishedAt)
	}
	if a.FeedPriority != b.FeedPriority {
		return a.FeedPriority < b.FeedPriority
	}
	if a.NormalizedURL != b.NormalizedURL {
		return a.NormalizedURL < b.NormalizedURL
	}
	return a.SourceURL < b.SourceURL
}

func normalizeKeyword(kw string) string {
	return strings.Join(tokenize(kw), " ")
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func containsPhrase(tokens, phrase []string) bool {
	if len(phrase) == 0 || len(phrase) > len(tokens) {
		return false
	}
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		match := true
		for j := range phrase {
			if tokens[i+j] != phrase[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
