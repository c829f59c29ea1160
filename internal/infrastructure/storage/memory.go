package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"PostForge/internal/domain"
	"PostForge/internal/ports"
)

// MemoryStore keeps articles and runs in process memory. It backs tests and
// single-instance deployments without a database.
type MemoryStore struct {
	mu       sync.RWMutex
	articles map[string]domain.StoredArticle
	runs     map[string]*domain.PipelineRun
}

var (
	_ ports.ArticleStore = (*MemoryStore)(nil)
	_ ports.RunStore     = (*MemoryStore)(nil)
)

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		articles: map[string]domain.StoredArticle{},
		runs:     map[string]*domain.PipelineRun{},
	}
}

func articleKey(projectID, normalizedURL string) string {
	return projectID + "\x00" + normalizedURL
}

// ArticleExists implements ports.ArticleStore.
func (m *MemoryStore) ArticleExists(_ context.Context, projectID, normalizedURL string, since time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.articles[articleKey(projectID, normalizedURL)]
	if !ok {
		return false, nil
	}
	if !since.IsZero() && stored.CreatedAt.Before(since) {
		return false, nil
	}
	return true, nil
}

// SaveArticle inserts when absent; the check and insert share one lock.
func (m *MemoryStore) SaveArticle(_ context.Context, article domain.StoredArticle) (bool, error) {
	if article.Article.NormalizedURL == "" {
		return false, fmt.Errorf("article has no normalized url")
	}
	if article.CreatedAt.IsZero() {
		article.CreatedAt = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := articleKey(article.ProjectID, article.Article.NormalizedURL)
	if _, exists := m.articles[key]; exists {
		return false, nil
	}
	m.articles[key] = article
	return true, nil
}

// SetArticleContent records extracted text for a stored article.
func (m *MemoryStore) SetArticleContent(_ context.Context, projectID, normalizedURL, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := articleKey(projectID, normalizedURL)
	stored, ok := m.articles[key]
	if !ok {
		return fmt.Errorf("article %s not stored", normalizedURL)
	}
	stored.Article = stored.Article.WithContent(content)
	m.articles[key] = stored
	return nil
}

// CreateRun implements ports.RunStore.
func (m *MemoryStore) CreateRun(_ context.Context, run domain.PipelineRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.runs[run.ID]; exists {
		return fmt.Errorf("run %s already exists", run.ID)
	}
	clone := cloneRun(run)
	m.runs[run.ID] = &clone
	return nil
}

// AppendStepLog implements ports.RunStore.
func (m *MemoryStore) AppendStepLog(_ context.Context, runID string, step domain.StepLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[runID]
	if !ok {
		return ports.ErrRunNotFound
	}
	run.Steps = append(run.Steps, step)
	return nil
}

// SavePost implements ports.RunStore.
func (m *MemoryStore) SavePost(_ context.Context, runID string, post domain.GeneratedPost) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[runID]
	if !ok {
		return ports.ErrRunNotFound
	}
	run.Posts = append(run.Posts, post)
	return nil
}

// FinalizeRun stores the sealed status and counters.
func (m *MemoryStore) FinalizeRun(_ context.Context, run domain.PipelineRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.runs[run.ID]
	if !ok {
		return ports.ErrRunNotFound
	}
	stored.Status = run.Status
	stored.EndedAt = run.EndedAt
	stored.ArticlesFetched = run.ArticlesFetched
	stored.ArticlesNew = run.ArticlesNew
	stored.ChosenURL = run.ChosenURL
	stored.ModelUsed = run.ModelUsed
	stored.UsedFallback = run.UsedFallback
	return nil
}

// GetRun implements ports.RunStore.
func (m *MemoryStore) GetRun(_ context.Context, runID string) (domain.PipelineRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[runID]
	if !ok {
		return domain.PipelineRun{}, ports.ErrRunNotFound
	}
	return cloneRun(*run), nil
}

// ListRuns returns the most recent runs first.
func (m *MemoryStore) ListRuns(_ context.Context, projectID string, limit int) ([]domain.PipelineRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var runs []domain.PipelineRun
	for _, run := range m.runs {
		if run.ProjectID == projectID {
			runs = append(runs, cloneRun(*run))
		}
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func cloneRun(run domain.PipelineRun) domain.PipelineRun {
	run.Steps = append([]domain.StepLog(nil), run.Steps...)
	run.Posts = append([]domain.GeneratedPost(nil), run.Posts...)
	return run
}
