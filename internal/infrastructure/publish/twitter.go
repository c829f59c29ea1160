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

// Twitter publishes through the X API v2. Credentials: access_token (an
// OAuth 2.0 user context token).
type Twitter struct {
	baseURL string
	client  *http.Client
}

var _ PlatformPublisher = (*Twitter)(nil)

// NewTwitter targets the API root, e.g. https://api.twitter.com.
func NewTwitter(baseURL string, client *http.Client) *Twitter {
	if client == nil {
		client = &http.Client{}
	}
	return &Twitter{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Platform implements PlatformPublisher.
func (t *Twitter) Platform() domain.Platform {
	return domain.PlatformTwitter
}

// Publish creates a tweet and returns its id.
func (t *Twitter) Publish(ctx context.Context, creds domain.Credentials, text string) (string, error) {
	token, err := requireCredential(domain.PlatformTwitter, creds, "access_token")
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", fmt.Errorf("marshal tweet: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/2/tweets", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("post to x: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", apiError(domain.PlatformTwitter, resp)
	}

	var decoded struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode x response: %w", err)
	}
	if decoded.Data.ID == "" {
		return "", fmt.Errorf("x response carried no tweet id")
	}
	return decoded.Data.ID, nil
}
