package domain

import "time"

// Article is a feed entry considered by a pipeline run.
type Article struct {
	SourceURL     string
	NormalizedURL string
	Title         string
	Summary       string
	PublishedAt   time.Time
	SourceName    string
	// FeedPriority is the index of the originating feed in the project config.
	FeedPriority int

	// FullContent stays nil until extraction succeeds.
	FullContent *string
	// RelevanceScore stays nil until the article is scored.
	RelevanceScore *float64
}

// Score returns the assigned relevance score or zero when unscored.
func (a Article) Score() float64 {
	if a.RelevanceScore == nil {
		return 0
	}
	return *a.RelevanceScore
}

// WithScore returns a copy carrying the given score.
func (a Article) WithScore(score float64) Article {
	a.RelevanceScore = &score
	return a
}

// WithContent returns a copy carrying extracted full text.
func (a Article) WithContent(text string) Article {
	a.FullContent = &text
	return a
}

// BodyText is the best text available for generation: extracted content
// when present, otherwise the feed summary.
func (a Article) BodyText() string {
	if a.FullContent != nil && *a.FullContent != "" {
		return *a.FullContent
	}
	return a.Summary
}

// ComboRule awards Bonus once when every keyword is present.
type ComboRule struct {
	Keywords []string
	Bonus    float64
}

// ScoringWeights is the per-project keyword table used by the scorer.
type ScoringWeights struct {
	Keywords map[string]float64
	Combos   []ComboRule
}

// StoredArticle is the persisted snapshot used for deduplication and audit.
type StoredArticle struct {
	ProjectID string
	RunID     string
	Article   Article
	CreatedAt time.Time
}
