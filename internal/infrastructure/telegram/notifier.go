package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"PostForge/internal/domain"
	"PostForge/internal/ports"
)

const defaultEndpoint = "https://api.telegram.org"

// Notifier sends run alerts to a Telegram chat via bot API.
type Notifier struct {
	endpoint string
	botToken string
	chatID   string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier. An empty endpoint
// uses the public bot API.
func NewNotifier(endpoint, botToken, chatID string) *Notifier {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Notifier{
		endpoint: strings.TrimRight(endpoint, "/"),
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// NotifyRun posts a plain-text run summary.
func (n *Notifier) NotifyRun(ctx context.Context, run domain.PipelineRun) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.endpoint, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", FormatRun(run))
	form.Set("disable_web_page_preview", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}

	return nil
}

// FormatRun renders the alert text: status headline, chosen article and
// every failed or aborted step.
func FormatRun(run domain.PipelineRun) string {
	var b strings.Builder
	fmt.Fprintf(&b, "PostForge run %s: %s\n", run.ProjectID, strings.ToUpper(string(run.Status)))
	fmt.Fprintf(&b, "Run: %s (%s)\n", run.ID, run.Trigger)
	if run.ChosenURL != "" {
		fmt.Fprintf(&b, "Article: %s\n", run.ChosenURL)
	}
	for _, step := range run.FailedSteps() {
		where := step.StepName
		if step.Platform != "" {
			where += "/" + string(step.Platform)
		}
		fmt.Fprintf(&b, "- %s [%s]: %s\n", where, step.Kind, step.Detail)
	}
	return strings.TrimSpace(b.String())
}
