package scoring

import (
	"strings"
	"testing"
	"time"

	"PostForge/internal/domain"
)

func opsWeights() domain.ScoringWeights {
	return domain.ScoringWeights{
		Keywords: map[string]float64{"kubernetes": 5, "sre": 4},
		Combos:   []domain.ComboRule{{Keywords: []string{"kubernetes", "sre"}, Bonus: 3}},
	}
}

func TestScoreWithCombo(t *testing.T) {
	t.Parallel()

	article := domain.Article{Title: "Kubernetes and SRE best practices"}
	if got := Score(article, opsWeights()); got != 12 {
		t.Fatalf("expected 12, got %v", got)
	}
}

func TestScoreCountsKeywordOnce(t *testing.T) {
	t.Parallel()

	weights := domain.ScoringWeights{
		Keywords: map[string]float64{"ai": 2, "sales": 3},
		Combos:   []domain.ComboRule{{Keywords: []string{"ai", "sales"}, Bonus: 4}},
	}
	article := domain.Article{
		Title:   "AI for sales teams",
		Summary: strings.Repeat("AI ", 5) + "and more AI",
	}

	if got := Score(article, weights); got != 9 {
		t.Fatalf("expected 2+3+4=9, got %v", got)
	}
}

func TestScoreMatchesWholeWords(t *testing.T) {
	t.Parallel()

	weights := domain.ScoringWeights{Keywords: map[string]float64{"ai": 2, "machine learning": 3}}
	article := domain.Article{Title: "Maintainers said the release is ready", Summary: "A machine-learning recap"}

	if got := Score(article, weights); got != 3 {
		t.Fatalf("expected only the phrase to match, got %v", got)
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	t.Parallel()

	weights := domain.ScoringWeights{
		Keywords: map[string]float64{"a": 0.1, "b": 0.2, "c": 0.3, "d": 1e-9, "politics": -10},
	}
	article := domain.Article{Title: "a b c d politics"}

	first := Score(article, weights)
	for i := 0; i < 50; i++ {
		if got := Score(article, weights); got != first {
			t.Fatalf("score changed between calls: %v vs %v", first, got)
		}
	}
	if article.RelevanceScore != nil {
		t.Fatalf("Score must not mutate its input")
	}
}

func TestRankTieBreaks(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.June, 2, 12, 0, 0, 0, time.UTC)
	articles := []domain.Article{
		{NormalizedURL: "https://a.example/old", Title: "sre", PublishedAt: now.Add(-2 * time.Hour), FeedPriority: 0},
		{NormalizedURL: "https://b.example/new-low-priority", Title: "sre", PublishedAt: now, FeedPriority: 2},
		{NormalizedURL: "https://c.example/new-high-priority", Title: "sre", PublishedAt: now, FeedPriority: 1},
		{NormalizedURL: "https://d.example/best", Title: "kubernetes sre", PublishedAt: now.Add(-48 * time.Hour)},
		{NormalizedURL: "https://e.example/none", Title: "gardening", PublishedAt: now},
	}

	ranked := Rank(articles, opsWeights())
	want := []string{
		"https://d.example/best",
		"https://c.example/new-high-priority",
		"https://b.example/new-low-priority",
		"https://a.example/old",
		"https://e.example/none",
	}
	for i, url := range want {
		if ranked[i].NormalizedURL != url {
			t.Fatalf("position %d: want %s, got %s", i, url, ranked[i].NormalizedURL)
		}
	}
	if AboveThreshold(ranked[4]) {
		t.Fatalf("zero-score article must be below threshold")
	}
	if articles[0].RelevanceScore != nil {
		t.Fatalf("Rank must not mutate its input")
	}
}
