package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"PostForge/internal/config"
	"PostForge/internal/domain"
	"PostForge/internal/generation"
	"PostForge/internal/infrastructure/archive"
	"PostForge/internal/infrastructure/extract"
	"PostForge/internal/infrastructure/feed"
	"PostForge/internal/infrastructure/llm"
	"PostForge/internal/infrastructure/publish"
	"PostForge/internal/infrastructure/scheduler"
	"PostForge/internal/infrastructure/storage"
	"PostForge/internal/infrastructure/telegram"
	"PostForge/internal/logging"
	"PostForge/internal/metrics"
	"PostForge/internal/ports"
	"PostForge/internal/transport/httpapi"
	"PostForge/internal/usecase"
)

const shutdownTimeout = 15 * time.Second

var _ usecase.Generator = (*generation.Engine)(nil)

type store interface {
	ports.ArticleStore
	ports.RunStore
}

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *zap.Logger
	projects ports.ProjectSource
	store    store
	pipeline *usecase.Pipeline
	registry *prometheus.Registry
	db       *sql.DB
}

// New builds every adapter from cfg. The returned application owns the
// database handle; call Close when done.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Application, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	projectList, err := cfg.Projects()
	if err != nil {
		return nil, err
	}
	projects := storage.NewStaticProjects(projectList)

	a := &Application{cfg: cfg, logger: logger, projects: projects}

	if cfg.Database.DSN != "" {
		db, err := storage.OpenPostgres(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		pg := storage.NewPostgresStore(db)
		if err := pg.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		a.db = db
		a.store = pg
	} else {
		logger.Warn("no database configured, run history is kept in memory")
		a.store = storage.NewMemoryStore()
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewRecorder(a.registry)

	deps := usecase.PipelineDeps{
		Projects:  projects,
		Feeds:     feed.NewHTTPSource(&http.Client{}, cfg.Fetch.UserAgent),
		Extractor: extract.NewExtractor(&http.Client{}, cfg.Fetch.UserAgent, cfg.Extract.MaxChars),
		Articles:  a.store,
		Runs:      a.store,
		Generator: newEngine(cfg.AI, logging.Component(logger, "generation")),
		Publisher: publish.NewRouter(
			publish.NewLinkedIn(cfg.Publish.LinkedInEndpoint, &http.Client{}),
			publish.NewTwitter(cfg.Publish.TwitterEndpoint, &http.Client{}),
		),
		Recorder: recorder,
		Logger:   logging.Component(logger, "pipeline"),
		Timeouts: usecase.Timeouts{
			Feed:    cfg.Fetch.Timeout,
			Extract: cfg.Extract.Timeout,
			Publish: cfg.Publish.Timeout,
		},
		FetchConcurrency: cfg.Fetch.MaxConcurrency,
	}

	if tg := cfg.Notifications.Telegram; tg.Enabled() {
		deps.Notifier = telegram.NewNotifier(tg.Endpoint, tg.BotToken, tg.ChatID)
	}
	if cfg.Archive.Enabled() {
		client, err := archive.NewS3Client(ctx, cfg.Archive)
		if err != nil {
			a.Close()
			return nil, err
		}
		deps.Archiver = archive.NewS3Archiver(client, cfg.Archive.Bucket, cfg.Archive.Prefix)
	}

	a.pipeline = usecase.NewPipeline(deps)
	return a, nil
}

func newEngine(cfg config.AIConfig, logger *zap.Logger) *generation.Engine {
	var strategies []generation.Strategy
	if cfg.APIKey != "" {
		client := llm.NewClient(cfg, &http.Client{})
		for _, model := range cfg.Models {
			strategies = append(strategies, generation.NewModelStrategy(client, model, cfg.Timeout))
		}
	} else {
		logger.Warn("no AI api key configured, posts use templates only")
	}
	return generation.NewEngine(strategies,
		generation.WithMaxAttempts(cfg.MaxAttempts),
		generation.WithBackoff(cfg.Backoff),
		generation.WithLogger(logger),
	)
}

// RunOnce executes a single manual run for one project.
func (a *Application) RunOnce(ctx context.Context, projectID string) (domain.PipelineRun, error) {
	return a.pipeline.RunPipeline(ctx, projectID, domain.TriggerManual)
}

// Serve starts the cron scheduler and the HTTP API and blocks until ctx is
// cancelled or either of them fails.
func (a *Application) Serve(ctx context.Context) error {
	driver := scheduler.NewCronScheduler(a.cfg.Scheduler.Location(), logging.Component(a.logger, "cron"))
	sched := usecase.NewScheduler(driver, a.pipeline, a.projects, logging.Component(a.logger, "scheduler"))

	api := httpapi.NewServer(httpapi.Options{
		Runner:      a.pipeline,
		Runs:        a.store,
		Projects:    a.projects,
		APIKey:      a.cfg.HTTP.APIKey,
		Gatherer:    a.registry,
		Logger:      logging.Component(a.logger, "http"),
		BaseContext: ctx,
	})
	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("http api listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("http shutdown", zap.Error(err))
		}
		return sched.Stop(shutdownCtx)
	})
	return g.Wait()
}

// Close releases the database handle.
func (a *Application) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("close database", zap.Error(err))
		}
	}
}
