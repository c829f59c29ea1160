package publish

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"PostForge/internal/domain"
	"PostForge/internal/ports"
)

// PlatformPublisher posts to a single platform.
type PlatformPublisher interface {
	Platform() domain.Platform
	Publish(ctx context.Context, creds domain.Credentials, text string) (string, error)
}

// Router keeps a mapping from platforms to their publishers.
type Router struct {
	publishers map[domain.Platform]PlatformPublisher
}

var _ ports.Publisher = (*Router)(nil)

// NewRouter builds a router over the given publishers.
func NewRouter(publishers ...PlatformPublisher) *Router {
	r := &Router{publishers: map[domain.Platform]PlatformPublisher{}}
	for _, p := range publishers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces a publisher implementation.
func (r *Router) Register(p PlatformPublisher) {
	if r.publishers == nil {
		r.publishers = map[domain.Platform]PlatformPublisher{}
	}
	r.publishers[p.Platform()] = p
}

// Resolve returns a publisher by platform or an error if it is absent.
func (r *Router) Resolve(platform domain.Platform) (PlatformPublisher, error) {
	if p, ok := r.publishers[platform]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("publisher %s is not registered", platform)
}

// Publish dispatches to the platform publisher.
func (r *Router) Publish(ctx context.Context, platform domain.Platform, creds domain.Credentials, text string) (string, error) {
	p, err := r.Resolve(platform)
	if err != nil {
		return "", err
	}
	return p.Publish(ctx, creds, text)
}

// APIError is a non-2xx reply from a platform API.
type APIError struct {
	Platform   domain.Platform
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error %d: %s", e.Platform, e.StatusCode, e.Body)
}

func apiError(platform domain.Platform, resp *http.Response) error {
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return &APIError{Platform: platform, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(payload))}
}

func requireCredential(platform domain.Platform, creds domain.Credentials, key string) (string, error) {
	v := strings.TrimSpace(creds[key])
	if v == "" {
		return "", fmt.Errorf("%s credentials missing %q", platform, key)
	}
	return v, nil
}
