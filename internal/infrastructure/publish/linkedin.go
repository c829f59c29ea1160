package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"PostForge/internal/domain"
)

// LinkedIn publishes UGC posts. Credentials: access_token and author
// (a person or organization URN).
type LinkedIn struct {
	baseURL string
	client  *http.Client
}

var _ PlatformPublisher = (*LinkedIn)(nil)

// NewLinkedIn targets the API root, e.g. https://api.linkedin.com.
func NewLinkedIn(baseURL string, client *http.Client) *LinkedIn {
	if client == nil {
		client = &http.Client{}
	}
	return &LinkedIn{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Platform implements PlatformPublisher.
func (l *LinkedIn) Platform() domain.Platform {
	return domain.PlatformLinkedIn
}

type ugcPost struct {
	Author          string         `json:"author"`
	LifecycleState  string         `json:"lifecycleState"`
	SpecificContent map[string]any `json:"specificContent"`
	Visibility      map[string]any `json:"visibility"`
}

// Publish creates a public text post and returns its URN.
func (l *LinkedIn) Publish(ctx context.Context, creds domain.Credentials, text string) (string, error) {
	token, err := requireCredential(domain.PlatformLinkedIn, creds, "access_token")
	if err != nil {
		return "", err
	}
	author, err := requireCredential(domain.PlatformLinkedIn, creds, "author")
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(ugcPost{
		Author:         author,
		LifecycleState: "PUBLISHED",
		SpecificContent: map[string]any{
			"com.linkedin.ugc.ShareContent": map[string]any{
				"shareCommentary":    map[string]string{"text": text},
				"shareMediaCategory": "NONE",
			},
		},
		Visibility: map[string]any{"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC"},
	})
	if err != nil {
		return "", fmt.Errorf("marshal linkedin post: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/v2/ugcPosts", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("post to linkedin: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", apiError(domain.PlatformLinkedIn, resp)
	}

	if id := resp.Header.Get("X-Restli-Id"); id != "" {
		return id, nil
	}
	var decoded struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil || decoded.ID == "" {
		return "", fmt.Errorf("linkedin response carried no post id")
	}
	return decoded.ID, nil
}
