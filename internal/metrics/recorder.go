package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"PostForge/internal/domain"
	"PostForge/internal/ports"
)

// Recorder exports run outcomes as Prometheus series. A nil Recorder is a no-op.
type Recorder struct {
	runs          *prometheus.CounterVec
	steps         *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	posts         *prometheus.CounterVec
	articlesFound *prometheus.CounterVec
}

var _ ports.RunRecorder = (*Recorder)(nil)

// NewRecorder registers collectors on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "postforge_runs_total",
			Help: "Pipeline runs by project, trigger and final status.",
		}, []string{"project", "trigger", "status"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "postforge_steps_total",
			Help: "Run steps by name, platform and status.",
		}, []string{"step", "platform", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "postforge_run_duration_seconds",
			Help:    "Wall time of sealed runs.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"project"}),
		posts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "postforge_posts_generated_total",
			Help: "Generated posts by platform and strategy.",
		}, []string{"platform", "strategy"}),
		articlesFound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "postforge_articles_total",
			Help: "Articles seen by project, split into fetched and new.",
		}, []string{"project", "kind"}),
	}
	reg.MustRegister(r.runs, r.steps, r.duration, r.posts, r.articlesFound)
	return r
}

// ObserveRun records a sealed run.
func (r *Recorder) ObserveRun(run domain.PipelineRun) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(run.ProjectID, string(run.Trigger), string(run.Status)).Inc()
	for _, s := range run.Steps {
		r.steps.WithLabelValues(s.StepName, string(s.Platform), string(s.Status)).Inc()
	}
	for _, p := range run.Posts {
		r.posts.WithLabelValues(string(p.Platform), p.StrategyUsed).Inc()
	}
	r.articlesFound.WithLabelValues(run.ProjectID, "fetched").Add(float64(run.ArticlesFetched))
	r.articlesFound.WithLabelValues(run.ProjectID, "new").Add(float64(run.ArticlesNew))
	if run.EndedAt != nil {
		r.duration.WithLabelValues(run.ProjectID).Observe(run.EndedAt.Sub(run.StartedAt).Seconds())
	}
}
