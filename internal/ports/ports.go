package ports

import (
	"context"
	"errors"
	"time"

	"PostForge/internal/domain"
)

var (
	// ErrProjectNotFound is returned when a project id is unknown.
	ErrProjectNotFound = errors.New("project not found")
	// ErrRunNotFound is returned when a run id is unknown.
	ErrRunNotFound = errors.New("run not found")
)

// ProjectSource resolves read-only project snapshots.
type ProjectSource interface {
	Project(ctx context.Context, id string) (domain.Project, error)
	Projects(ctx context.Context) ([]domain.Project, error)
}

// FeedSource fetches a single RSS/Atom feed. Unparsable entries are skipped.
type FeedSource interface {
	FetchFeed(ctx context.Context, url string, timeout time.Duration) ([]domain.Article, error)
}

// ContentExtractor retrieves the readable body of an article page.
type ContentExtractor interface {
	Extract(ctx context.Context, url string, timeout time.Duration) (string, error)
}

// Prompt is the rendered request sent to an AI backend.
type Prompt struct {
	System string
	User   string
}

// Completer is an AI text backend addressed by model id.
type Completer interface {
	Complete(ctx context.Context, prompt Prompt, modelID string, timeout time.Duration) (string, error)
}

// Publisher posts text to a platform and returns the external post id.
type Publisher interface {
	Publish(ctx context.Context, platform domain.Platform, creds domain.Credentials, text string) (string, error)
}

// ArticleStore persists articles for deduplication lookups.
type ArticleStore interface {
	// ArticleExists reports whether the normalized url was stored for the
	// project at or after since; a zero since means no lower bound.
	ArticleExists(ctx context.Context, projectID, normalizedURL string, since time.Time) (bool, error)
	// SaveArticle inserts the article if absent and reports whether this call inserted it.
	SaveArticle(ctx context.Context, article domain.StoredArticle) (bool, error)
	SetArticleContent(ctx context.Context, projectID, normalizedURL, content string) error
}

// RunStore persists pipeline runs and their step logs.
type RunStore interface {
	CreateRun(ctx context.Context, run domain.PipelineRun) error
	AppendStepLog(ctx context.Context, runID string, step domain.StepLog) error
	SavePost(ctx context.Context, runID string, post domain.GeneratedPost) error
	FinalizeRun(ctx context.Context, run domain.PipelineRun) error
	GetRun(ctx context.Context, runID string) (domain.PipelineRun, error)
	ListRuns(ctx context.Context, projectID string, limit int) ([]domain.PipelineRun, error)
}

// RunArchiver exports sealed runs to long-term storage.
type RunArchiver interface {
	Archive(ctx context.Context, run domain.PipelineRun) error
}

// Notifier alerts operators about finished runs.
type Notifier interface {
	NotifyRun(ctx context.Context, run domain.PipelineRun) error
}

// RunRecorder observes sealed runs, typically for metrics.
type RunRecorder interface {
	ObserveRun(run domain.PipelineRun)
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Schedule(spec string, job func()) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
