package dedup

import (
	"unicode"
	"unicode/utf8"

	"PostForge/internal/domain"
)

var nonLatinScripts = []*unicode.RangeTable{
	unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul,
	unicode.Arabic, unicode.Devanagari, unicode.Thai, unicode.Cyrillic,
}

// LooksEnglish reports whether text has at most two non-Latin script
// characters and they make up no more than a fifth of it.
func LooksEnglish(text string) bool {
	if text == "" {
		return true
	}
	foreign := 0
	for _, r := range text {
		if unicode.IsOneOf(nonLatinScripts, r) {
			foreign++
		}
	}
	if foreign > 2 {
		return false
	}
	return float64(foreign)/float64(utf8.RuneCountInString(text)) <= 0.2
}

// EnglishOnly splits articles by title and leading summary script.
func EnglishOnly(articles []domain.Article) (kept []domain.Article, dropped int) {
	kept = make([]domain.Article, 0, len(articles))
	for _, a := range articles {
		summary := a.Summary
		if utf8.RuneCountInString(summary) > 200 {
			summary = string([]rune(summary)[:200])
		}
		if !LooksEnglish(a.Title) || !LooksEnglish(summary) {
			dropped++
			continue
		}
		kept = append(kept, a)
	}
	return kept, dropped
}
