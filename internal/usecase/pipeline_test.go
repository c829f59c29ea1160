package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"PostForge/internal/dedup"
	"PostForge/internal/domain"
	"PostForge/internal/generation"
	"PostForge/internal/ports"
)

func TestRunPipelinePublishesBestArticle(t *testing.T) {
	t.Parallel()

	feeds := &fakeFeeds{items: map[string][]domain.Article{testFeed: opsArticles()}}
	h := newHarness(opsProject(), feeds, fakeExtractor{text: "Full article body about clusters."})

	run, err := h.pipeline.RunPipeline(context.Background(), "acme", domain.TriggerManual)
	if err != nil {
		t.Fatalf("RunPipeline returned error: %v", err)
	}
	if run.Status != domain.RunSuccess {
		t.Fatalf("expected success, got %s: %+v", run.Status, run.Steps)
	}
	if run.ChosenURL != "https://blog.example.com/k8s-sre?utm_source=rss" {
		t.Fatalf("unexpected chosen url %q", run.ChosenURL)
	}
	if run.ArticlesFetched != 2 || run.ArticlesNew != 2 {
		t.Fatalf("unexpected counters: fetched=%d new=%d", run.ArticlesFetched, run.ArticlesNew)
	}
	if len(run.Posts) != 2 || !run.UsedFallback {
		t.Fatalf("expected two template posts, got %+v", run.Posts)
	}
	for _, post := range run.Posts {
		if post.ValidationVerdict == nil || !post.ValidationVerdict.Accepted {
			t.Fatalf("post for %s not accepted: %+v", post.Platform, post.ValidationVerdict)
		}
	}

	publishes := stepsNamed(run, StepPublish)
	if len(publishes) != 2 || publishes[0].Platform != domain.PlatformLinkedIn || publishes[1].Platform != domain.PlatformTwitter {
		t.Fatalf("publish steps not in platform order: %+v", publishes)
	}
	for i, step := range run.Steps {
		if step.Seq != i+1 {
			t.Fatalf("step %d has seq %d", i, step.Seq)
		}
	}

	stored, err := h.store.GetRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if stored.Status != domain.RunSuccess || len(stored.Steps) != len(run.Steps) {
		t.Fatalf("stored run mismatch: %s with %d steps", stored.Status, len(stored.Steps))
	}
	if len(h.notifier.runs) != 0 {
		t.Fatal("successful run should not notify")
	}
}

func TestRunPipelineNothingToPublish(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		items []domain.Article
	}{
		{name: "empty feed"},
		{name: "nothing relevant", items: opsArticles()[1:]},
	}

	for _, tc := range cases {
		feeds := &fakeFeeds{items: map[string][]domain.Article{testFeed: tc.items}}
		h := newHarness(opsProject(), feeds, nil)

		run, err := h.pipeline.RunPipeline(context.Background(), "acme", domain.TriggerScheduled)
		if err != nil {
			t.Fatalf("%s: RunPipeline returned error: %v", tc.name, err)
		}
		if run.Status != domain.RunSuccess {
			t.Fatalf("%s: expected success, got %s", tc.name, run.Status)
		}
		if len(stepsNamed(run, StepNothingToPublish)) != 1 {
			t.Fatalf("%s: missing nothing-to-publish step: %+v", tc.name, run.Steps)
		}
		if h.publisher.count != 0 {
			t.Fatalf("%s: published %d posts", tc.name, h.publisher.count)
		}
	}
}

func TestRunPipelineSecondRunSeesDuplicate(t *testing.T) {
	t.Parallel()

	items := opsArticles()[:1]
	feeds := &fakeFeeds{items: map[string][]domain.Article{testFeed: items}}
	h := newHarness(opsProject(), feeds, nil)

	if _, err := h.pipeline.RunPipeline(context.Background(), "acme", domain.TriggerManual); err != nil {
		t.Fatalf("first run: %v", err)
	}

	feeds.items[testFeed] = []domain.Article{{
		SourceURL: "https://www.blog.example.com/k8s-sre/?utm_campaign=x",
		Title:     items[0].Title,
	}}
	run, err := h.pipeline.RunPipeline(context.Background(), "acme", domain.TriggerManual)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if run.ArticlesNew != 0 || len(stepsNamed(run, StepNothingToPublish)) != 1 {
		t.Fatalf("duplicate not filtered: new=%d steps=%+v", run.ArticlesNew, run.Steps)
	}
}

func TestRunPipelinePartialFailure(t *testing.T) {
	t.Parallel()

	feeds := &fakeFeeds{items: map[string][]domain.Article{testFeed: opsArticles()}}
	h := newHarness(opsProject(), feeds, fakeExtractor{text: "body"})
	h.publisher.fail[domain.PlatformLinkedIn] = errUpstream

	run, err := h.pipeline.RunPipeline(context.Background(), "acme", domain.TriggerManual)
	if err != nil {
		t.Fatalf("RunPipeline returned error: %v", err)
	}
	if run.Status != domain.RunPartialFailure {
		t.Fatalf("expected partial_failure, got %s", run.Status)
	}

	var failed, succeeded []domain.StepLog
	for _, step := range stepsNamed(run, StepPublish) {
		switch step.Status {
		case domain.StepFailed:
			failed = append(failed, step)
		case domain.StepSuccess:
			succeeded = append(succeeded, step)
		}
	}
	if len(failed) != 1 || failed[0].Platform != domain.PlatformLinkedIn || failed[0].Kind != domain.KindPublish {
		t.Fatalf("expected one failed linkedin publish step, got %+v", failed)
	}
	if len(succeeded) != 1 || succeeded[0].Platform != domain.PlatformTwitter {
		t.Fatalf("expected one successful twitter publish step, got %+v", succeeded)
	}
	if len(h.notifier.runs) != 1 {
		t.Fatalf("expected one notification, got %d", len(h.notifier.runs))
	}
}

func TestRunPipelineAllPublishesFail(t *testing.T) {
	t.Parallel()

	feeds := &fakeFeeds{items: map[string][]domain.Article{testFeed: opsArticles()}}
	h := newHarness(opsProject(), feeds, fakeExtractor{text: "body"})
	h.publisher.fail[domain.PlatformLinkedIn] = errUpstream
	h.publisher.fail[domain.PlatformTwitter] = errUpstream

	run, err := h.pipeline.RunPipeline(context.Background(), "acme", domain.TriggerManual)
	if err != nil {
		t.Fatalf("RunPipeline returned error: %v", err)
	}
	if run.Status != domain.RunFailed {
		t.Fatalf("expected failed, got %s", run.Status)
	}
}

func TestRunPipelineExtractionFailureContinues(t *testing.T) {
	t.Parallel()

	feeds := &fakeFeeds{items: map[string][]domain.Article{testFeed: opsArticles()}}
	h := newHarness(opsProject(), feeds, fakeExtractor{err: errors.New("paywall")})

	run, err := h.pipeline.RunPipeline(context.Background(), "acme", domain.TriggerManual)
	if err != nil {
		t.Fatalf("RunPipeline returned error: %v", err)
	}
	extract := stepsNamed(run, StepExtract)
	if len(extract) != 1 || extract[0].Kind != domain.KindExtraction {
		t.Fatalf("unexpected extract steps: %+v", extract)
	}
	if run.Status != domain.RunPartialFailure || h.publisher.count != 2 {
		t.Fatalf("expected both platforms published under partial_failure, got %s/%d", run.Status, h.publisher.count)
	}
}

func TestRunPipelineConfigErrorFailsBeforeNetwork(t *testing.T) {
	t.Parallel()

	project := opsProject()
	project.Feeds = []string{"not a url"}
	feeds := &fakeFeeds{}
	h := newHarness(project, feeds, nil)

	run, err := h.pipeline.RunPipeline(context.Background(), "acme", domain.TriggerManual)
	if err != nil {
		t.Fatalf("RunPipeline returned error: %v", err)
	}
	if run.Status != domain.RunFailed {
		t.Fatalf("expected failed, got %s", run.Status)
	}
	if len(run.Steps) != 1 || run.Steps[0].Kind != domain.KindConfig {
		t.Fatalf("expected a single config step, got %+v", run.Steps)
	}
	if feeds.callCount() != 0 {
		t.Fatal("feeds fetched despite invalid config")
	}
}

func TestRunPipelineNoReachableFeed(t *testing.T) {
	t.Parallel()

	project := opsProject()
	second := "https://feeds.example.com/second.xml"
	project.Feeds = append(project.Feeds, second)
	feeds := &fakeFeeds{errs: map[string]error{testFeed: errUpstream, second: context.DeadlineExceeded}}
	h := newHarness(project, feeds, nil)

	run, err := h.pipeline.RunPipeline(context.Background(), "acme", domain.TriggerManual)
	if err != nil {
		t.Fatalf("RunPipeline returned error: %v", err)
	}
	if run.Status != domain.RunFailed {
		t.Fatalf("expected failed, got %s", run.Status)
	}
	if got := len(stepsNamed(run, StepFetchFeed)); got != 2 {
		t.Fatalf("expected two per-feed steps, got %d", got)
	}
	fetch := stepsNamed(run, StepFetch)
	if len(fetch) != 1 || fetch[0].Status != domain.StepFailed || fetch[0].Kind != domain.KindFetch {
		t.Fatalf("unexpected fetch step: %+v", fetch)
	}
}

func TestRunPipelinePartialFeedFailureStillPublishes(t *testing.T) {
	t.Parallel()

	project := opsProject()
	broken := "https://feeds.example.com/broken.xml"
	project.Feeds = append(project.Feeds, broken)
	feeds := &fakeFeeds{
		items: map[string][]domain.Article{testFeed: opsArticles()},
		errs:  map[string]error{broken: errUpstream},
	}
	h := newHarness(project, feeds, fakeExtractor{text: "body"})

	run, err := h.pipeline.RunPipeline(context.Background(), "acme", domain.TriggerManual)
	if err != nil {
		t.Fatalf("RunPipeline returned error: %v", err)
	}
	if run.Status != domain.RunSuccess || h.publisher.count != 2 {
		t.Fatalf("expected success with two publishes, got %s/%d", run.Status, h.publisher.count)
	}
}

func TestRunPipelineRejectsOverlappingRun(t *testing.T) {
	t.Parallel()

	feeds := &fakeFeeds{
		items:  map[string][]domain.Article{testFeed: opsArticles()},
		block:  make(chan struct{}),
		inside: make(chan struct{}, 1),
	}
	h := newHarness(opsProject(), feeds, fakeExtractor{text: "body"})

	done := make(chan domain.PipelineRun, 1)
	go func() {
		run, _ := h.pipeline.RunPipeline(context.Background(), "acme", domain.TriggerScheduled)
		done <- run
	}()

	select {
	case <-feeds.inside:
	case <-time.After(2 * time.Second):
		t.Fatal("first run never reached fetch")
	}

	if _, err := h.pipeline.RunPipeline(context.Background(), "acme", domain.TriggerManual); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
	if !h.pipeline.Running("acme") {
		t.Fatal("expected project to be running")
	}

	close(feeds.block)
	first := <-done
	if first.Status != domain.RunSuccess {
		t.Fatalf("first run ended %s", first.Status)
	}
	if h.pipeline.Running("acme") {
		t.Fatal("lock not released")
	}
}

func TestRunPipelineAbortedOnCancel(t *testing.T) {
	t.Parallel()

	feeds := &fakeFeeds{
		items:  map[string][]domain.Article{testFeed: opsArticles()},
		block:  make(chan struct{}),
		inside: make(chan struct{}, 1),
	}
	h := newHarness(opsProject(), feeds, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan domain.PipelineRun, 1)
	go func() {
		run, _ := h.pipeline.RunPipeline(ctx, "acme", domain.TriggerScheduled)
		done <- run
	}()

	<-feeds.inside
	cancel()
	run := <-done

	if run.Status != domain.RunFailed {
		t.Fatalf("expected failed, got %s", run.Status)
	}
	last := run.Steps[len(run.Steps)-1]
	if last.Status != domain.StepAborted || last.Kind != domain.KindAborted {
		t.Fatalf("expected trailing aborted step, got %+v", last)
	}

	stored, err := h.store.GetRun(context.Background(), run.ID)
	if err != nil || stored.Status != domain.RunFailed {
		t.Fatalf("aborted run not persisted as failed: %v %s", err, stored.Status)
	}
}

func TestRunPipelineUnknownProject(t *testing.T) {
	t.Parallel()

	h := newHarness(opsProject(), &fakeFeeds{}, nil)
	if _, err := h.pipeline.RunPipeline(context.Background(), "missing", domain.TriggerManual); !errors.Is(err, ports.ErrProjectNotFound) {
		t.Fatalf("expected ErrProjectNotFound, got %v", err)
	}
}

func TestRunPipelineRegeneratesRejectedPost(t *testing.T) {
	t.Parallel()

	feeds := &fakeFeeds{items: map[string][]domain.Article{testFeed: opsArticles()}}
	gen := stubGenerator{body: "As an AI I cannot write about this topic. #Kubernetes"}
	h := newHarnessWith(opsProject(), feeds, fakeExtractor{text: "Full article body about clusters."}, gen)

	run, err := h.pipeline.RunPipeline(context.Background(), "acme", domain.TriggerManual)
	if err != nil {
		t.Fatalf("RunPipeline returned error: %v", err)
	}
	if run.Status != domain.RunSuccess {
		t.Fatalf("expected success, got %s: %+v", run.Status, run.Steps)
	}
	if !run.UsedFallback || run.ModelUsed != "" {
		t.Fatalf("expected template posts only, model=%q fallback=%v", run.ModelUsed, run.UsedFallback)
	}

	for _, platform := range []domain.Platform{domain.PlatformLinkedIn, domain.PlatformTwitter} {
		var names []string
		for _, step := range run.Steps {
			if step.Platform == platform {
				names = append(names, step.StepName+"/"+string(step.Status))
			}
		}
		want := []string{"generate/success", "validate/skipped", "regenerate/success", "validate/success", "publish/success"}
		if strings.Join(names, ",") != strings.Join(want, ",") {
			t.Fatalf("%s steps: got %v, want %v", platform, names, want)
		}
	}

	rejected := stepsNamed(run, StepValidate)[0]
	if rejected.Kind != domain.KindValidation || !strings.Contains(rejected.Detail, "ai_refusal") {
		t.Fatalf("first validation should be an ai_refusal rejection: %+v", rejected)
	}
	if h.publisher.count != 2 {
		t.Fatalf("expected two publishes, got %d", h.publisher.count)
	}
}

func TestRunPipelineSkipsPlatformWhenTemplateRejected(t *testing.T) {
	t.Parallel()

	feeds := &fakeFeeds{items: map[string][]domain.Article{testFeed: opsArticles()}}
	gen := stubGenerator{
		body: "[insert hook here] #Kubernetes",
		fallback: func(req generation.Request) domain.GeneratedPost {
			return domain.GeneratedPost{
				Platform:     req.Platform,
				BodyText:     "Too short",
				StrategyUsed: domain.StrategyTemplateFallback,
			}
		},
	}
	h := newHarnessWith(opsProject(), feeds, nil, gen)

	run, err := h.pipeline.RunPipeline(context.Background(), "acme", domain.TriggerManual)
	if err != nil {
		t.Fatalf("RunPipeline returned error: %v", err)
	}
	if h.publisher.count != 0 {
		t.Fatalf("rejected posts were published %d times", h.publisher.count)
	}

	validates := stepsNamed(run, StepValidate)
	if len(validates) != 4 {
		t.Fatalf("expected two rejected validations per platform, got %+v", validates)
	}
	for _, step := range validates {
		if step.Status != domain.StepSkipped || step.Kind != domain.KindValidation {
			t.Fatalf("validation step not a rejection: %+v", step)
		}
	}
	publishes := stepsNamed(run, StepPublish)
	if len(publishes) != 2 {
		t.Fatalf("expected one publish step per platform, got %+v", publishes)
	}
	for _, step := range publishes {
		if step.Status != domain.StepSkipped || step.Kind != domain.KindValidation {
			t.Fatalf("publish step should be skipped by validation: %+v", step)
		}
	}
	for _, post := range run.Posts {
		if post.ValidationVerdict == nil || post.ValidationVerdict.Accepted {
			t.Fatalf("stored post should carry the rejection: %+v", post)
		}
	}
}

func TestRunPipelineRecoversPanickingLane(t *testing.T) {
	t.Parallel()

	feeds := &fakeFeeds{items: map[string][]domain.Article{testFeed: opsArticles()}}
	gen := stubGenerator{
		body:    "Would your team trust a Friday upgrade? We would, with the right rings. #Kubernetes",
		panicOn: domain.PlatformLinkedIn,
	}
	h := newHarnessWith(opsProject(), feeds, nil, gen)

	run, err := h.pipeline.RunPipeline(context.Background(), "acme", domain.TriggerManual)
	if err != nil {
		t.Fatalf("RunPipeline returned error: %v", err)
	}
	if run.Status != domain.RunPartialFailure {
		t.Fatalf("expected partial_failure, got %s: %+v", run.Status, run.Steps)
	}
	failed := run.FailedSteps()
	if len(failed) != 1 || failed[0].Platform != domain.PlatformLinkedIn || failed[0].Kind != domain.KindGeneration {
		t.Fatalf("expected one failed linkedin generation step, got %+v", failed)
	}
	if len(h.publisher.sent[domain.PlatformTwitter]) != 1 {
		t.Fatalf("twitter lane should still publish")
	}

	stored, err := h.store.GetRun(context.Background(), run.ID)
	if err != nil || stored.Status != domain.RunPartialFailure {
		t.Fatalf("run not sealed in store: %v %+v", err, stored.Status)
	}
}

func TestRunPipelineStoresEveryNewArticle(t *testing.T) {
	t.Parallel()

	feeds := &fakeFeeds{items: map[string][]domain.Article{testFeed: opsArticles()}}
	h := newHarness(opsProject(), feeds, nil)

	first, err := h.pipeline.RunPipeline(context.Background(), "acme", domain.TriggerManual)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.ChosenURL != opsArticles()[0].SourceURL {
		t.Fatalf("unexpected winner %q", first.ChosenURL)
	}

	runnerUp := opsArticles()[1]
	exists, err := h.store.ArticleExists(context.Background(), "acme", dedup.NormalizeURL(runnerUp.SourceURL), time.Time{})
	if err != nil || !exists {
		t.Fatalf("passed-over article was not stored: exists=%v err=%v", exists, err)
	}

	second, err := h.pipeline.RunPipeline(context.Background(), "acme", domain.TriggerManual)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.ArticlesNew != 0 || h.publisher.count != 2 {
		t.Fatalf("second run saw %d new articles and published %d posts in total", second.ArticlesNew, h.publisher.count)
	}
}
