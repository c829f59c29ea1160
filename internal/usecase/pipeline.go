package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"PostForge/internal/dedup"
	"PostForge/internal/domain"
	"PostForge/internal/generation"
	"PostForge/internal/ports"
	"PostForge/internal/scoring"
	"PostForge/internal/validation"
)

// Step names recorded in run logs.
const (
	StepConfig           = "validate_config"
	StepFetch            = "fetch"
	StepFetchFeed        = "fetch_feed"
	StepDeduplicate      = "deduplicate"
	StepScore            = "score"
	StepNothingToPublish = "nothing_to_publish"
	StepClaim            = "claim_article"
	StepExtract          = "extract"
	StepGenerate         = "generate"
	StepValidate         = "validate"
	StepRegenerate       = "regenerate"
	StepPublish          = "publish"
)

// Generator produces posts and never fails; Fallback is the template path.
type Generator interface {
	Generate(ctx context.Context, req generation.Request) domain.GeneratedPost
	Fallback(ctx context.Context, req generation.Request) domain.GeneratedPost
}

// Timeouts bound every external call made by a run.
type Timeouts struct {
	Feed    time.Duration
	Extract time.Duration
	Publish time.Duration
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Projects  ports.ProjectSource
	Feeds     ports.FeedSource
	Extractor ports.ContentExtractor
	Articles  ports.ArticleStore
	Runs      ports.RunStore
	Generator Generator
	Publisher ports.Publisher
	Notifier  ports.Notifier
	Archiver  ports.RunArchiver
	Recorder  ports.RunRecorder
	Logger    *zap.Logger
	Timeouts  Timeouts
	// FetchConcurrency caps parallel feed requests; zero fetches all at once.
	FetchConcurrency int
	Clock            func() time.Time
}

// Pipeline implements the scheduled content workflow for one project run.
type Pipeline struct {
	projects   ports.ProjectSource
	feeds      ports.FeedSource
	extractor  ports.ContentExtractor
	articles   ports.ArticleStore
	runs       ports.RunStore
	generator  Generator
	publisher  ports.Publisher
	notifier   ports.Notifier
	archiver   ports.RunArchiver
	recorder   ports.RunRecorder
	logger     *zap.Logger
	timeouts   Timeouts
	fetchLimit int
	dedup      *dedup.Deduplicator
	locks      *KeyedLock
	now        func() time.Time
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	p := &Pipeline{
		projects:   deps.Projects,
		feeds:      deps.Feeds,
		extractor:  deps.Extractor,
		articles:   deps.Articles,
		runs:       deps.Runs,
		generator:  deps.Generator,
		publisher:  deps.Publisher,
		notifier:   deps.Notifier,
		archiver:   deps.Archiver,
		recorder:   deps.Recorder,
		logger:     deps.Logger,
		timeouts:   deps.Timeouts,
		fetchLimit: deps.FetchConcurrency,
		dedup:      dedup.New(deps.Articles),
		locks:      NewKeyedLock(),
		now:        deps.Clock,
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.timeouts.Feed <= 0 {
		p.timeouts.Feed = 15 * time.Second
	}
	if p.timeouts.Extract <= 0 {
		p.timeouts.Extract = 20 * time.Second
	}
	if p.timeouts.Publish <= 0 {
		p.timeouts.Publish = 30 * time.Second
	}
	return p
}

// Running reports whether the project has a run in flight.
func (p *Pipeline) Running(projectID string) bool {
	return p.locks.Held(projectID)
}

// runState is the per-run bookkeeping owned by a single RunPipeline call.
type runState struct {
	run     domain.PipelineRun
	project domain.Project
	logger  *zap.Logger
	aborted bool
}

// RunPipeline executes one run for the project and returns the sealed run.
// A returned error means no run was started: the project is unknown, a run
// is already in flight, or the run could not be recorded.
func (p *Pipeline) RunPipeline(ctx context.Context, projectID string, trigger domain.Trigger) (domain.PipelineRun, error) {
	project, err := p.projects.Project(ctx, projectID)
	if err != nil {
		return domain.PipelineRun{}, fmt.Errorf("load project %s: %w", projectID, err)
	}

	unlock, ok := p.locks.TryLock(projectID)
	if !ok {
		return domain.PipelineRun{}, ErrRunInProgress
	}
	defer unlock()

	st := &runState{
		run:     domain.NewRun(projectID, trigger, p.now()),
		project: project,
	}
	st.logger = p.logger.With(zap.String("project_id", projectID), zap.String("run_id", st.run.ID))

	if err := p.runs.CreateRun(context.WithoutCancel(ctx), st.run); err != nil {
		return domain.PipelineRun{}, fmt.Errorf("create run: %w", err)
	}
	st.logger.Info("run started", zap.String("trigger", string(trigger)))

	status := p.execute(ctx, st)
	return p.seal(ctx, st, status), nil
}

func (p *Pipeline) execute(ctx context.Context, st *runState) domain.RunStatus {
	started := p.now()
	if err := st.project.Validate(); err != nil {
		p.record(ctx, st, domain.StepLog{
			StepName: StepConfig, Status: domain.StepFailed, Kind: domain.KindOf(err),
			Detail: err.Error(), StartedAt: started,
		})
		return domain.RunFailed
	}

	articles, ok := p.fetch(ctx, st)
	if !ok {
		return domain.RunFailed
	}

	survivors, ok := p.deduplicate(ctx, st, articles)
	if !ok {
		return domain.RunFailed
	}

	chosen, ok := p.choose(ctx, st, survivors)
	if !ok {
		return domain.RunFailed
	}
	if chosen == nil {
		return domain.RunSuccess
	}

	article := p.extract(ctx, st, *chosen)
	if st.aborted {
		return domain.RunFailed
	}

	published := p.generateAndPublish(ctx, st, article)
	if st.aborted {
		return domain.RunFailed
	}

	if len(st.run.FailedSteps()) == 0 {
		return domain.RunSuccess
	}
	if published > 0 {
		return domain.RunPartialFailure
	}
	return domain.RunFailed
}

// fetch pulls every feed concurrently. Individual failures are logged as
// skipped steps; only zero reachable feeds fails the run.
func (p *Pipeline) fetch(ctx context.Context, st *runState) ([]domain.Article, bool) {
	started := p.now()
	feeds := st.project.Feeds
	results := make([][]domain.Article, len(feeds))
	errs := make([]error, len(feeds))

	g, gctx := errgroup.WithContext(ctx)
	if p.fetchLimit > 0 {
		g.SetLimit(p.fetchLimit)
	}
	for i, feedURL := range feeds {
		g.Go(func() error {
			items, err := p.feeds.FetchFeed(gctx, feedURL, p.timeouts.Feed)
			if err != nil {
				errs[i] = err
				return nil
			}
			for j := range items {
				items[j].FeedPriority = i
				if items[j].SourceName == "" {
					items[j].SourceName = feedHost(feedURL)
				}
			}
			results[i] = items
			return nil
		})
	}
	_ = g.Wait()

	if p.abortIfDone(ctx, st, StepFetch, started) {
		return nil, false
	}

	var articles []domain.Article
	reachable := 0
	var failures []string
	for i, feedURL := range feeds {
		if errs[i] != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", feedURL, errs[i]))
			st.logger.Warn("feed fetch failed", zap.String("feed", feedURL), zap.Error(errs[i]))
			p.record(ctx, st, domain.StepLog{
				StepName: StepFetchFeed, Status: domain.StepSkipped, Kind: domain.KindFetch,
				Detail: fmt.Sprintf("%s: %v", feedURL, errs[i]), StartedAt: started,
			})
			continue
		}
		reachable++
		articles = append(articles, results[i]...)
	}
	st.run.ArticlesFetched = len(articles)

	if reachable == 0 {
		p.record(ctx, st, domain.StepLog{
			StepName: StepFetch, Status: domain.StepFailed, Kind: domain.KindFetch,
			Detail: "no feed reachable: " + strings.Join(failures, "; "), StartedAt: started,
		})
		return nil, false
	}

	p.record(ctx, st, domain.StepLog{
		StepName: StepFetch, Status: domain.StepSuccess, StartedAt: started,
		Detail: fmt.Sprintf("%d articles from %d/%d feeds", len(articles), reachable, len(feeds)),
	})
	return articles, true
}

func (p *Pipeline) deduplicate(ctx context.Context, st *runState, articles []domain.Article) ([]domain.Article, bool) {
	started := p.now()
	survivors, err := p.dedup.Filter(ctx, st.project.ID, articles, st.project.Lookback)
	if err != nil {
		if p.abortIfDone(ctx, st, StepDeduplicate, started) {
			return nil, false
		}
		p.record(ctx, st, domain.StepLog{
			StepName: StepDeduplicate, Status: domain.StepFailed, Kind: domain.KindStorage,
			Detail: err.Error(), StartedAt: started,
		})
		return nil, false
	}

	detail := fmt.Sprintf("%d new of %d", len(survivors), len(articles))
	if st.project.EnglishOnly {
		var dropped int
		survivors, dropped = dedup.EnglishOnly(survivors)
		detail += fmt.Sprintf(", %d non-English dropped", dropped)
	}
	st.run.ArticlesNew = len(survivors)

	p.record(ctx, st, domain.StepLog{
		StepName: StepDeduplicate, Status: domain.StepSuccess, Detail: detail, StartedAt: started,
	})
	return survivors, true
}

// choose ranks survivors and claims the best one in the article store. A
// nil article with ok means there is nothing to publish.
func (p *Pipeline) choose(ctx context.Context, st *runState, survivors []domain.Article) (*domain.Article, bool) {
	started := p.now()
	if len(survivors) == 0 {
		p.nothingToPublish(ctx, st, "no new articles after deduplication", started)
		return nil, true
	}

	ranked := scoring.Rank(survivors, st.project.Weights)
	candidates := make([]domain.Article, 0, len(ranked))
	for _, a := range ranked {
		if scoring.AboveThreshold(a) {
			candidates = append(candidates, a)
		}
	}
	p.record(ctx, st, domain.StepLog{
		StepName: StepScore, Status: domain.StepSuccess, StartedAt: started,
		Detail: fmt.Sprintf("%d of %d above threshold", len(candidates), len(ranked)),
	})

	// Every new article is stored so later runs treat it as seen, relevant
	// or not. Only articles this run inserted may be chosen.
	started = p.now()
	claimed := make(map[string]bool, len(ranked))
	for _, a := range ranked {
		inserted, err := p.articles.SaveArticle(context.WithoutCancel(ctx), domain.StoredArticle{
			ProjectID: st.project.ID,
			RunID:     st.run.ID,
			Article:   a,
			CreatedAt: p.now(),
		})
		if err != nil {
			p.record(ctx, st, domain.StepLog{
				StepName: StepClaim, Status: domain.StepFailed, Kind: domain.KindStorage,
				Detail: err.Error(), StartedAt: started,
			})
			return nil, false
		}
		if !inserted {
			st.logger.Info("article claimed by another run", zap.String("url", a.NormalizedURL))
			continue
		}
		claimed[a.NormalizedURL] = true
	}

	if len(candidates) == 0 {
		p.nothingToPublish(ctx, st, "no article scored above threshold", started)
		return nil, true
	}

	for _, candidate := range candidates {
		if !claimed[candidate.NormalizedURL] {
			continue
		}
		st.run.ChosenURL = candidate.SourceURL
		p.record(ctx, st, domain.StepLog{
			StepName: StepClaim, Status: domain.StepSuccess, StartedAt: started,
			Detail: fmt.Sprintf("stored %d of %d; chose %s (score %.2f)",
				len(claimed), len(ranked), candidate.SourceURL, candidate.Score()),
		})
		return &candidate, true
	}

	p.nothingToPublish(ctx, st, "every candidate was already claimed", started)
	return nil, true
}

func (p *Pipeline) nothingToPublish(ctx context.Context, st *runState, reason string, started time.Time) {
	p.record(ctx, st, domain.StepLog{
		StepName: StepNothingToPublish, Status: domain.StepSuccess, Detail: reason, StartedAt: started,
	})
}

// extract loads the article body. On failure the run continues with the
// feed summary.
func (p *Pipeline) extract(ctx context.Context, st *runState, article domain.Article) domain.Article {
	started := p.now()
	if p.extractor == nil {
		p.record(ctx, st, domain.StepLog{
			StepName: StepExtract, Status: domain.StepSkipped, Detail: "no extractor configured", StartedAt: started,
		})
		return article
	}

	text, err := p.extractor.Extract(ctx, article.SourceURL, p.timeouts.Extract)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("empty content")
	}
	if err != nil {
		if p.abortIfDone(ctx, st, StepExtract, started) {
			return article
		}
		st.logger.Warn("extraction failed, using summary", zap.String("url", article.SourceURL), zap.Error(err))
		p.record(ctx, st, domain.StepLog{
			StepName: StepExtract, Status: domain.StepFailed, Kind: domain.KindExtraction,
			Detail: err.Error() + "; continuing with summary", StartedAt: started,
		})
		return article
	}

	article = article.WithContent(text)
	if err := p.articles.SetArticleContent(context.WithoutCancel(ctx), st.project.ID, article.NormalizedURL, text); err != nil {
		st.logger.Warn("store article content", zap.Error(err))
	}
	p.record(ctx, st, domain.StepLog{
		StepName: StepExtract, Status: domain.StepSuccess, StartedAt: started,
		Detail: fmt.Sprintf("%d characters", len([]rune(text))),
	})
	return article
}

// laneResult is what one platform lane hands back to the orchestrator.
type laneResult struct {
	steps     []domain.StepLog
	post      *domain.GeneratedPost
	published bool
	aborted   bool
}

// generateAndPublish runs one lane per platform concurrently and appends
// their logs in platform order. It returns the number of published platforms.
func (p *Pipeline) generateAndPublish(ctx context.Context, st *runState, article domain.Article) int {
	platforms := st.project.Platforms()
	if len(platforms) == 0 {
		p.record(ctx, st, domain.StepLog{
			StepName: StepPublish, Status: domain.StepSkipped, Detail: "no publish targets", StartedAt: p.now(),
		})
		return 0
	}

	results := make([]laneResult, len(platforms))
	var wg sync.WaitGroup
	for i, platform := range platforms {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer p.recoverLane(st, platform, &results[i])
			p.lane(ctx, st, article, platform, &results[i])
		}()
	}
	wg.Wait()

	published := 0
	for _, res := range results {
		for _, step := range res.steps {
			p.record(ctx, st, step)
		}
		if res.post != nil {
			st.run.Posts = append(st.run.Posts, *res.post)
			if err := p.runs.SavePost(context.WithoutCancel(ctx), st.run.ID, *res.post); err != nil {
				st.logger.Warn("store generated post", zap.Error(err))
			}
			if res.post.IsFallback() {
				st.run.UsedFallback = true
			} else if st.run.ModelUsed == "" {
				st.run.ModelUsed = res.post.StrategyUsed
			}
		}
		if res.published {
			published++
		}
		if res.aborted {
			st.aborted = true
		}
	}
	return published
}

func (p *Pipeline) lane(ctx context.Context, st *runState, article domain.Article, platform domain.Platform, res *laneResult) {
	add := func(step domain.StepLog) {
		step.Platform = platform
		step.Duration = p.now().Sub(step.StartedAt)
		res.steps = append(res.steps, step)
	}

	req := generation.Request{
		Article:  article,
		Voice:    st.project.Voice,
		Platform: platform,
		Brand:    st.project.DisplayName,
		Hashtags: st.project.Hashtags,
	}
	rules := st.project.Rules()

	started := p.now()
	post := p.generator.Generate(ctx, req)
	add(domain.StepLog{
		StepName: StepGenerate, Status: domain.StepSuccess, StartedAt: started,
		Detail: "strategy " + post.StrategyUsed,
	})

	started = p.now()
	verdict := validation.Validate(post, rules)
	if !verdict.Accepted {
		add(domain.StepLog{
			StepName: StepValidate, Status: domain.StepSkipped, Kind: domain.KindValidation,
			Detail: verdict.String(), StartedAt: started,
		})

		if !post.IsFallback() {
			started = p.now()
			post = p.generator.Fallback(ctx, req)
			add(domain.StepLog{
				StepName: StepRegenerate, Status: domain.StepSuccess, StartedAt: started,
				Detail: "strategy " + post.StrategyUsed,
			})
			started = p.now()
			verdict = validation.Validate(post, rules)
			if !verdict.Accepted {
				add(domain.StepLog{
					StepName: StepValidate, Status: domain.StepSkipped, Kind: domain.KindValidation,
					Detail: verdict.String(), StartedAt: started,
				})
			}
		}
	}
	if verdict.Accepted {
		add(domain.StepLog{StepName: StepValidate, Status: domain.StepSuccess, Detail: verdict.String(), StartedAt: started})
	}

	post = post.WithVerdict(verdict)
	res.post = &post

	if !verdict.Accepted {
		st.logger.Info("post rejected, platform skipped",
			zap.String("platform", string(platform)), zap.String("verdict", verdict.String()))
		add(domain.StepLog{
			StepName: StepPublish, Status: domain.StepSkipped, Kind: domain.KindValidation,
			Detail: verdict.String(), StartedAt: p.now(),
		})
		return
	}

	for _, target := range st.project.TargetsFor(platform) {
		started := p.now()
		pctx, cancel := context.WithTimeout(ctx, p.timeouts.Publish)
		postID, err := p.publisher.Publish(pctx, platform, target.Credentials, post.BodyText)
		cancel()

		switch {
		case err == nil:
			res.published = true
			add(domain.StepLog{
				StepName: StepPublish, Status: domain.StepSuccess, StartedAt: started,
				Detail: fmt.Sprintf("%s: %s", target.Account, postID),
			})
		case ctx.Err() != nil:
			res.aborted = true
			add(domain.StepLog{
				StepName: StepPublish, Status: domain.StepAborted, Kind: domain.KindAborted,
				Detail: fmt.Sprintf("%s: %v", target.Account, ctx.Err()), StartedAt: started,
			})
			return
		default:
			st.logger.Warn("publish failed",
				zap.String("platform", string(platform)), zap.String("account", target.Account), zap.Error(err))
			add(domain.StepLog{
				StepName: StepPublish, Status: domain.StepFailed, Kind: domain.KindPublish,
				Detail: fmt.Sprintf("%s: %v", target.Account, err), StartedAt: started,
			})
		}
	}
}

// recoverLane turns a panic inside a platform lane into a failed step so the
// run is still sealed.
func (p *Pipeline) recoverLane(st *runState, platform domain.Platform, res *laneResult) {
	r := recover()
	if r == nil {
		return
	}
	st.logger.Error("platform lane panicked", zap.String("platform", string(platform)), zap.Any("panic", r))

	step, kind := StepGenerate, domain.KindGeneration
	if res.post != nil {
		step, kind = StepPublish, domain.KindPublish
	}
	res.steps = append(res.steps, domain.StepLog{
		StepName: step, Platform: platform, Status: domain.StepFailed, Kind: kind,
		Detail: fmt.Sprintf("panic: %v", r), StartedAt: p.now(),
	})
}

// abortIfDone writes an aborted step when ctx has ended.
func (p *Pipeline) abortIfDone(ctx context.Context, st *runState, step string, started time.Time) bool {
	if ctx.Err() == nil {
		return false
	}
	st.aborted = true
	p.record(ctx, st, domain.StepLog{
		StepName: step, Status: domain.StepAborted, Kind: domain.KindAborted,
		Detail: ctx.Err().Error(), StartedAt: started,
	})
	return true
}

// record appends a step to the run log and persists it. Store writes
// outlive cancellation so aborted runs still leave a complete log.
func (p *Pipeline) record(ctx context.Context, st *runState, step domain.StepLog) {
	if step.Duration == 0 && !step.StartedAt.IsZero() {
		step.Duration = p.now().Sub(step.StartedAt)
	}
	step = st.run.Append(step)
	if err := p.runs.AppendStepLog(context.WithoutCancel(ctx), st.run.ID, step); err != nil {
		st.logger.Warn("store step log", zap.String("step", step.StepName), zap.Error(err))
	}
}

func (p *Pipeline) seal(ctx context.Context, st *runState, status domain.RunStatus) domain.PipelineRun {
	persist := context.WithoutCancel(ctx)
	st.run.Seal(status, p.now())

	if err := p.runs.FinalizeRun(persist, st.run); err != nil {
		st.logger.Error("finalize run", zap.Error(err))
	}

	fields := []zap.Field{
		zap.String("status", string(st.run.Status)),
		zap.Int("steps", len(st.run.Steps)),
		zap.Int("failed_steps", len(st.run.FailedSteps())),
	}
	if st.run.Status == domain.RunFailed {
		st.logger.Error("run finished", fields...)
	} else {
		st.logger.Info("run finished", fields...)
	}

	if p.recorder != nil {
		p.recorder.ObserveRun(st.run)
	}
	if p.notifier != nil && (st.run.Status == domain.RunFailed || st.run.Status == domain.RunPartialFailure) {
		if err := p.notifier.NotifyRun(persist, st.run); err != nil {
			st.logger.Warn("notify run", zap.Error(err))
		}
	}
	if p.archiver != nil {
		if err := p.archiver.Archive(persist, st.run); err != nil {
			st.logger.Warn("archive run", zap.Error(err))
		}
	}
	return st.run
}

func feedHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
