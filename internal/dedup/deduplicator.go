package dedup

import (
	"context"
	"fmt"
	"time"

	"PostForge/internal/domain"
	"PostForge/internal/ports"
)

// Deduplicator answers whether an article was already processed for a project.
type Deduplicator struct {
	store ports.ArticleStore
	now   func() time.Time
}

// New wires the persisted article store as the source of truth.
func New(store ports.ArticleStore) *Deduplicator {
	return &Deduplicator{store: store, now: time.Now}
}

// IsDuplicate compares the normalized URL against stored articles within
// lookback; zero lookback searches the whole history. It never writes.
func (d *Deduplicator) IsDuplicate(ctx context.Context, projectID string, candidate domain.Article, lookback time.Duration) (bool, error) {
	key := candidate.NormalizedURL
	if key == "" {
		key = NormalizeURL(candidate.SourceURL)
	}
	if key == "" {
		return false, nil
	}

	var since time.Time
	if lookback > 0 {
		since = d.now().Add(-lookback)
	}

	exists, err := d.store.ArticleExists(ctx, projectID, key, since)
	if err != nil {
		return false, fmt.Errorf("lookup %s: %w", key, err)
	}
	return exists, nil
}

// Filter normalizes candidates, drops in-batch repeats and previously
// stored articles, and returns survivors in input order.
func (d *Deduplicator) Filter(ctx context.Context, projectID string, candidates []domain.Article, lookback time.Duration) ([]domain.Article, error) {
	seen := make(map[string]struct{}, len(candidates))
	survivors := make([]domain.Article, 0, len(candidates))

	for _, article := range candidates {
		article.NormalizedURL = NormalizeURL(article.SourceURL)
		if article.NormalizedURL == "" {
			continue
		}
		if _, ok := seen[article.NormalizedURL]; ok {
			continue
		}
		seen[article.NormalizedURL] = struct{}{}

		dup, err := d.IsDuplicate(ctx, projectID, article, lookback)
		if err != nil {
			return nil, err
		}
		if !dup {
			survivors = append(survivors, article)
		}
	}
	return survivors, nil
}
