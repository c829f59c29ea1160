package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"PostForge/internal/domain"
	"PostForge/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS articles (
    project_id      TEXT NOT NULL,
    normalized_url  TEXT NOT NULL,
    source_url      TEXT NOT NULL,
    run_id          TEXT NOT NULL DEFAULT '',
    title           TEXT NOT NULL DEFAULT '',
    summary         TEXT NOT NULL DEFAULT '',
    source_name     TEXT NOT NULL DEFAULT '',
    published_at    TIMESTAMPTZ,
    relevance_score DOUBLE PRECISION,
    full_content    TEXT,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (project_id, normalized_url)
);
CREATE TABLE IF NOT EXISTS pipeline_runs (
    id               TEXT PRIMARY KEY,
    project_id       TEXT NOT NULL,
    trigger_type     TEXT NOT NULL,
    status           TEXT NOT NULL,
    started_at       TIMESTAMPTZ NOT NULL,
    ended_at         TIMESTAMPTZ,
    articles_fetched INTEGER NOT NULL DEFAULT 0,
    articles_new     INTEGER NOT NULL DEFAULT 0,
    chosen_url       TEXT NOT NULL DEFAULT '',
    model_used       TEXT NOT NULL DEFAULT '',
    used_fallback    BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS pipeline_runs_project_started ON pipeline_runs (project_id, started_at DESC);
CREATE TABLE IF NOT EXISTS step_logs (
    run_id      TEXT NOT NULL REFERENCES pipeline_runs(id),
    seq         INTEGER NOT NULL,
    step_name   TEXT NOT NULL,
    platform    TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL,
    kind        TEXT NOT NULL DEFAULT '',
    detail      TEXT NOT NULL DEFAULT '',
    started_at  TIMESTAMPTZ NOT NULL,
    duration_ms BIGINT NOT NULL,
    PRIMARY KEY (run_id, seq)
);
CREATE TABLE IF NOT EXISTS generated_posts (
    run_id         TEXT NOT NULL REFERENCES pipeline_runs(id),
    platform       TEXT NOT NULL,
    body_text      TEXT NOT NULL,
    strategy_used  TEXT NOT NULL,
    verdict        TEXT NOT NULL DEFAULT '',
    reject_reason  TEXT NOT NULL DEFAULT '',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

// PostgresStore persists articles and runs into Postgres.
type PostgresStore struct {
	db  *sql.DB
	psq sq.StatementBuilderType
}

var (
	_ ports.ArticleStore = (*PostgresStore)(nil)
	_ ports.RunStore     = (*PostgresStore)(nil)
)

// OpenPostgres connects with the lib/pq driver and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// NewPostgresStore wires a sql.DB implementation.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:  db,
		psq: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Migrate creates tables when missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// ArticleExists implements ports.ArticleStore.
func (s *PostgresStore) ArticleExists(ctx context.Context, projectID, normalizedURL string, since time.Time) (bool, error) {
	builder := s.psq.Select("1").
		From("articles").
		Where(sq.Eq{"project_id": projectID, "normalized_url": normalizedURL})
	if !since.IsZero() {
		builder = builder.Where(sq.GtOrEq{"created_at": since})
	}

	query, args, err := builder.Limit(1).ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists query: %w", err)
	}

	var one int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query article: %w", err)
	}
	return true, nil
}

// SaveArticle inserts the article unless the project already has the URL.
// ON CONFLICT makes the check-and-insert a single atomic statement.
func (s *PostgresStore) SaveArticle(ctx context.Context, stored domain.StoredArticle) (bool, error) {
	a := stored.Article
	if a.NormalizedURL == "" {
		return false, fmt.Errorf("article has no normalized url")
	}
	createdAt := stored.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query, args, err := s.psq.Insert("articles").
		Columns("project_id", "normalized_url", "source_url", "run_id", "title", "summary",
			"source_name", "published_at", "relevance_score", "full_content", "created_at").
		Values(stored.ProjectID, a.NormalizedURL, a.SourceURL, stored.RunID, a.Title, a.Summary,
			a.SourceName, nullTime(a.PublishedAt), a.RelevanceScore, a.FullContent, createdAt).
		Suffix("ON CONFLICT (project_id, normalized_url) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build insert: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("insert article: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected == 1, nil
}

// SetArticleContent implements ports.ArticleStore.
func (s *PostgresStore) SetArticleContent(ctx context.Context, projectID, normalizedURL, content string) error {
	query, args, err := s.psq.Update("articles").
		Set("full_content", content).
		Where(sq.Eq{"project_id": projectID, "normalized_url": normalizedURL}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update content: %w", err)
	}
	return nil
}

// CreateRun implements ports.RunStore.
func (s *PostgresStore) CreateRun(ctx context.Context, run domain.PipelineRun) error {
	query, args, err := s.psq.Insert("pipeline_runs").
		Columns("id", "project_id", "trigger_type", "status", "started_at").
		Values(run.ID, run.ProjectID, string(run.Trigger), string(run.Status), run.StartedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert run: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// AppendStepLog implements ports.RunStore.
func (s *PostgresStore) AppendStepLog(ctx context.Context, runID string, step domain.StepLog) error {
	query, args, err := s.psq.Insert("step_logs").
		Columns("run_id", "seq", "step_name", "platform", "status", "kind", "detail", "started_at", "duration_ms").
		Values(runID, step.Seq, step.StepName, string(step.Platform), string(step.Status),
			string(step.Kind), step.Detail, step.StartedAt, step.Duration.Milliseconds()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert step: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert step: %w", err)
	}
	return nil
}

// SavePost implements ports.RunStore.
func (s *PostgresStore) SavePost(ctx context.Context, runID string, post domain.GeneratedPost) error {
	verdict, reason := "", ""
	if post.ValidationVerdict != nil {
		verdict = "reject"
		if post.ValidationVerdict.Accepted {
			verdict = "accept"
		}
		reason = string(post.ValidationVerdict.Reason)
	}

	query, args, err := s.psq.Insert("generated_posts").
		Columns("run_id", "platform", "body_text", "strategy_used", "verdict", "reject_reason").
		Values(runID, string(post.Platform), post.BodyText, post.StrategyUsed, verdict, reason).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert post: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

// FinalizeRun implements ports.RunStore.
func (s *PostgresStore) FinalizeRun(ctx context.Context, run domain.PipelineRun) error {
	query, args, err := s.psq.Update("pipeline_runs").
		SetMap(map[string]any{
			"status":           string(run.Status),
			"ended_at":         run.EndedAt,
			"articles_fetched": run.ArticlesFetched,
			"articles_new":     run.ArticlesNew,
			"chosen_url":       run.ChosenURL,
			"model_used":       run.ModelUsed,
			"used_fallback":    run.UsedFallback,
		}).
		Where(sq.Eq{"id": run.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build finalize: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("finalize run: %w", err)
	}
	return nil
}

var runColumns = []string{
	"id", "project_id", "trigger_type", "status", "started_at", "ended_at",
	"articles_fetched", "articles_new", "chosen_url", "model_used", "used_fallback",
}

// GetRun loads a run with its ordered step log and posts.
func (s *PostgresStore) GetRun(ctx context.Context, runID string) (domain.PipelineRun, error) {
	query, args, err := s.psq.Select(runColumns...).From("pipeline_runs").Where(sq.Eq{"id": runID}).ToSql()
	if err != nil {
		return domain.PipelineRun{}, fmt.Errorf("build get run: %w", err)
	}

	run, err := scanRun(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PipelineRun{}, ports.ErrRunNotFound
	}
	if err != nil {
		return domain.PipelineRun{}, fmt.Errorf("scan run: %w", err)
	}

	if run.Steps, err = s.loadSteps(ctx, run.ID); err != nil {
		return domain.PipelineRun{}, err
	}
	if run.Posts, err = s.loadPosts(ctx, run.ID); err != nil {
		return domain.PipelineRun{}, err
	}
	return run, nil
}

// ListRuns returns recent runs for a project, newest first.
func (s *PostgresStore) ListRuns(ctx context.Context, projectID string, limit int) ([]domain.PipelineRun, error) {
	builder := s.psq.Select(runColumns...).
		From("pipeline_runs").
		Where(sq.Eq{"project_id": projectID}).
		OrderBy("started_at DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list runs: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	var runs []domain.PipelineRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}
	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	for i := range runs {
		if runs[i].Steps, err = s.loadSteps(ctx, runs[i].ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (domain.PipelineRun, error) {
	var (
		run     domain.PipelineRun
		trigger string
		status  string
		endedAt sql.NullTime
	)
	err := row.Scan(&run.ID, &run.ProjectID, &trigger, &status, &run.StartedAt, &endedAt,
		&run.ArticlesFetched, &run.ArticlesNew, &run.ChosenURL, &run.ModelUsed, &run.UsedFallback)
	if err != nil {
		return domain.PipelineRun{}, err
	}
	run.Trigger = domain.Trigger(trigger)
	run.Status = domain.RunStatus(status)
	if endedAt.Valid {
		t := endedAt.Time
		run.EndedAt = &t
	}
	return run, nil
}

func (s *PostgresStore) loadSteps(ctx context.Context, runID string) ([]domain.StepLog, error) {
	query, args, err := s.psq.Select("seq", "step_name", "platform", "status", "kind", "detail", "started_at", "duration_ms").
		From("step_logs").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("seq").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build steps query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	var steps []domain.StepLog
	for rows.Next() {
		var (
			step                   domain.StepLog
			platform, status, kind string
			durationMS             int64
		)
		if err := rows.Scan(&step.Seq, &step.StepName, &platform, &status, &kind, &step.Detail, &step.StartedAt, &durationMS); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		step.Platform = domain.Platform(platform)
		step.Status = domain.StepStatus(status)
		step.Kind = domain.ErrorKind(kind)
		step.Duration = time.Duration(durationMS) * time.Millisecond
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return steps, nil
}

func (s *PostgresStore) loadPosts(ctx context.Context, runID string) ([]domain.GeneratedPost, error) {
	query, args, err := s.psq.Select("platform", "body_text", "strategy_used", "verdict", "reject_reason").
		From("generated_posts").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build posts query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	var posts []domain.GeneratedPost
	for rows.Next() {
		var (
			post                      domain.GeneratedPost
			platform, verdict, reason string
		)
		if err := rows.Scan(&platform, &post.BodyText, &post.StrategyUsed, &verdict, &reason); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		post.Platform = domain.Platform(platform)
		switch verdict {
		case "accept":
			post = post.WithVerdict(domain.Accept())
		case "reject":
			post = post.WithVerdict(domain.Reject(domain.RejectReason(reason), ""))
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return posts, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
