package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"PostForge/internal/domain"
)

func partialRun() domain.PipelineRun {
	return domain.PipelineRun{
		ID:        "run-1",
		ProjectID: "acme",
		Trigger:   domain.TriggerScheduled,
		Status:    domain.RunPartialFailure,
		ChosenURL: "https://blog.example.com/k8s-sre",
		Steps: []domain.StepLog{
			{StepName: "publish", Platform: domain.PlatformLinkedIn, Status: domain.StepFailed, Kind: domain.KindPublish, Detail: "acme-company: 503"},
			{StepName: "publish", Platform: domain.PlatformTwitter, Status: domain.StepSuccess},
		},
	}
}

func TestNotifyRunPostsSummary(t *testing.T) {
	t.Parallel()

	var path, text string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = r.ParseForm()
		text = r.PostForm.Get("text")
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, "bot-token", "42")
	if err := n.NotifyRun(context.Background(), partialRun()); err != nil {
		t.Fatalf("NotifyRun returned error: %v", err)
	}
	if path != "/botbot-token/sendMessage" {
		t.Fatalf("unexpected path %q", path)
	}
	if !strings.Contains(text, "PARTIAL_FAILURE") || !strings.Contains(text, "publish/linkedin [publish]") {
		t.Fatalf("unexpected message %q", text)
	}
	if strings.Contains(text, "twitter") {
		t.Fatalf("successful step listed: %q", text)
	}
}

func TestNotifyRunMisconfigured(t *testing.T) {
	t.Parallel()

	if err := NewNotifier("", "", "").NotifyRun(context.Background(), partialRun()); err == nil {
		t.Fatal("expected misconfiguration error")
	}
}
