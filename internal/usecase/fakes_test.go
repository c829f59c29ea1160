package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"PostForge/internal/domain"
	"PostForge/internal/generation"
	"PostForge/internal/infrastructure/storage"
	"PostForge/internal/ports"
)

type fakeProjects map[string]domain.Project

func (f fakeProjects) Project(_ context.Context, id string) (domain.Project, error) {
	p, ok := f[id]
	if !ok {
		return domain.Project{}, ports.ErrProjectNotFound
	}
	return p, nil
}

func (f fakeProjects) Projects(_ context.Context) ([]domain.Project, error) {
	out := make([]domain.Project, 0, len(f))
	for _, p := range f {
		out = append(out, p)
	}
	return out, nil
}

type fakeFeeds struct {
	mu     sync.Mutex
	items  map[string][]domain.Article
	errs   map[string]error
	calls  int
	block  chan struct{}
	inside chan struct{}
}

func (f *fakeFeeds) FetchFeed(ctx context.Context, url string, _ time.Duration) ([]domain.Article, error) {
	f.mu.Lock()
	f.calls++
	block, inside := f.block, f.inside
	f.mu.Unlock()

	if block != nil {
		if inside != nil {
			select {
			case inside <- struct{}{}:
			default:
			}
		}
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.errs[url]; err != nil {
		return nil, err
	}
	return append([]domain.Article(nil), f.items[url]...), nil
}

func (f *fakeFeeds) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeExtractor struct {
	text string
	err  error
}

func (f fakeExtractor) Extract(context.Context, string, time.Duration) (string, error) {
	return f.text, f.err
}

type fakePublisher struct {
	mu    sync.Mutex
	fail  map[domain.Platform]error
	sent  map[domain.Platform][]string
	count int
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{fail: map[domain.Platform]error{}, sent: map[domain.Platform][]string{}}
}

func (f *fakePublisher) Publish(_ context.Context, platform domain.Platform, _ domain.Credentials, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[platform]; err != nil {
		return "", err
	}
	f.count++
	f.sent[platform] = append(f.sent[platform], text)
	return fmt.Sprintf("%s-%d", platform, f.count), nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	runs []domain.PipelineRun
}

func (f *fakeNotifier) NotifyRun(_ context.Context, run domain.PipelineRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
	return nil
}

const testFeed = "https://feeds.example.com/ops.xml"

func opsProject() domain.Project {
	return domain.Project{
		ID:          "acme",
		DisplayName: "Acme Cloud",
		Feeds:       []string{testFeed},
		Weights: domain.ScoringWeights{
			Keywords: map[string]float64{"kubernetes": 5, "sre": 4},
			Combos:   []domain.ComboRule{{Keywords: []string{"kubernetes", "sre"}, Bonus: 3}},
		},
		Hashtags: []string{"#Kubernetes", "#SRE"},
		Targets: []domain.PublishTarget{
			{Platform: domain.PlatformTwitter, Account: "acme-x"},
			{Platform: domain.PlatformLinkedIn, Account: "acme-company"},
		},
	}
}

func opsArticles() []domain.Article {
	return []domain.Article{
		{
			SourceURL:   "https://blog.example.com/k8s-sre?utm_source=rss",
			Title:       "Kubernetes and SRE best practices",
			Summary:     "How platform teams keep clusters reliable.",
			PublishedAt: time.Date(2025, time.March, 3, 8, 0, 0, 0, time.UTC),
		},
		{
			SourceURL:   "https://blog.example.com/gardening",
			Title:       "Spring gardening tips",
			Summary:     "Tomatoes and herbs.",
			PublishedAt: time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC),
		},
	}
}

type harness struct {
	pipeline  *Pipeline
	store     *storage.MemoryStore
	feeds     *fakeFeeds
	publisher *fakePublisher
	notifier  *fakeNotifier
}

func newHarness(project domain.Project, feeds *fakeFeeds, extractor ports.ContentExtractor) *harness {
	return newHarnessWith(project, feeds, extractor, generation.NewEngine(nil))
}

func newHarnessWith(project domain.Project, feeds *fakeFeeds, extractor ports.ContentExtractor, generator Generator) *harness {
	h := &harness{
		store:     storage.NewMemoryStore(),
		feeds:     feeds,
		publisher: newFakePublisher(),
		notifier:  &fakeNotifier{},
	}
	h.pipeline = NewPipeline(PipelineDeps{
		Projects:  fakeProjects{project.ID: project},
		Feeds:     feeds,
		Extractor: extractor,
		Articles:  h.store,
		Runs:      h.store,
		Generator: generator,
		Publisher: h.publisher,
		Notifier:  h.notifier,
	})
	return h
}

func stepsNamed(run domain.PipelineRun, name string) []domain.StepLog {
	var out []domain.StepLog
	for _, s := range run.Steps {
		if s.StepName == name {
			out = append(out, s)
		}
	}
	return out
}

var errUpstream = errors.New("upstream returned 503")

// stubGenerator returns a fixed model post. A nil fallback uses the real
// template; panicOn makes Generate panic for that platform.
type stubGenerator struct {
	body     string
	fallback func(generation.Request) domain.GeneratedPost
	panicOn  domain.Platform
}

func (g stubGenerator) Generate(_ context.Context, req generation.Request) domain.GeneratedPost {
	if req.Platform == g.panicOn {
		panic("generator blew up")
	}
	return domain.GeneratedPost{
		Platform:     req.Platform,
		BodyText:     g.body,
		Hashtags:     req.Hashtags,
		StrategyUsed: "model-a",
	}
}

func (g stubGenerator) Fallback(ctx context.Context, req generation.Request) domain.GeneratedPost {
	if g.fallback != nil {
		return g.fallback(req)
	}
	return generation.NewEngine(nil).Fallback(ctx, req)
}
