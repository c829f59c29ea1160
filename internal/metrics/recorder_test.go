package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"PostForge/internal/domain"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
	metrics:
		for _, m := range fam.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metrics
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestObserveRun(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	rec := NewRecorder(reg)

	start := time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)
	run := domain.NewRun("acme", domain.TriggerManual, start)
	run.Append(domain.StepLog{StepName: "publish", Platform: domain.PlatformLinkedIn, Status: domain.StepFailed})
	run.Append(domain.StepLog{StepName: "publish", Platform: domain.PlatformTwitter, Status: domain.StepSuccess})
	run.ArticlesFetched = 7
	run.Seal(domain.RunPartialFailure, start.Add(30*time.Second))

	rec.ObserveRun(run)

	if v := counterValue(t, reg, "postforge_runs_total", map[string]string{"status": "partial_failure"}); v != 1 {
		t.Fatalf("expected one partial run, got %v", v)
	}
	if v := counterValue(t, reg, "postforge_steps_total", map[string]string{"platform": "linkedin", "status": "failed"}); v != 1 {
		t.Fatalf("expected one failed linkedin step, got %v", v)
	}
	if v := counterValue(t, reg, "postforge_articles_total", map[string]string{"kind": "fetched"}); v != 7 {
		t.Fatalf("expected 7 fetched, got %v", v)
	}
}

func TestNilRecorderIsNoop(t *testing.T) {
	t.Parallel()

	var rec *Recorder
	rec.ObserveRun(domain.PipelineRun{})
}
