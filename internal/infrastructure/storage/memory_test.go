package storage

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"PostForge/internal/domain"
	"PostForge/internal/ports"
)

func TestMemoryStoreInsertIfAbsentIsAtomic(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	article := domain.StoredArticle{
		ProjectID: "ops",
		Article:   domain.Article{SourceURL: "https://example.org/a", NormalizedURL: "https://example.org/a"},
	}

	var inserted int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.SaveArticle(context.Background(), article)
			if err != nil {
				t.Errorf("SaveArticle: %v", err)
				return
			}
			if ok {
				atomic.AddInt32(&inserted, 1)
			}
		}()
	}
	wg.Wait()

	if inserted != 1 {
		t.Fatalf("expected exactly one insert, got %d", inserted)
	}
}

func TestMemoryStoreRunLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	start := time.Date(2025, time.May, 1, 8, 0, 0, 0, time.UTC)

	first := domain.NewRun("ops", domain.TriggerScheduled, start)
	second := domain.NewRun("ops", domain.TriggerManual, start.Add(time.Hour))
	for _, run := range []domain.PipelineRun{first, second} {
		if err := store.CreateRun(ctx, run); err != nil {
			t.Fatalf("CreateRun: %v", err)
		}
	}

	if err := store.AppendStepLog(ctx, first.ID, domain.StepLog{Seq: 1, StepName: "fetch", Status: domain.StepSuccess}); err != nil {
		t.Fatalf("AppendStepLog: %v", err)
	}
	first.Seal(domain.RunSuccess, start.Add(time.Minute))
	if err := store.FinalizeRun(ctx, first); err != nil {
		t.Fatalf("FinalizeRun: %v", err)
	}

	got, err := store.GetRun(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != domain.RunSuccess || len(got.Steps) != 1 {
		t.Fatalf("unexpected run: %+v", got)
	}

	runs, err := store.ListRuns(ctx, "ops", 1)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != second.ID {
		t.Fatalf("expected most recent run first, got %+v", runs)
	}
}

func TestStaticProjects(t *testing.T) {
	t.Parallel()

	src := NewStaticProjects([]domain.Project{{ID: "zeta"}, {ID: "acme", DisplayName: "Acme"}})

	p, err := src.Project(context.Background(), "acme")
	if err != nil || p.DisplayName != "Acme" {
		t.Fatalf("unexpected project %+v %v", p, err)
	}
	if _, err := src.Project(context.Background(), "nope"); !errors.Is(err, ports.ErrProjectNotFound) {
		t.Fatalf("expected ErrProjectNotFound, got %v", err)
	}
	all, _ := src.Projects(context.Background())
	if len(all) != 2 || all[0].ID != "acme" {
		t.Fatalf("unexpected order %+v", all)
	}
}
