package generation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
	"unicode/utf8"

	"PostForge/internal/domain"
	"PostForge/internal/ports"
)

const twitterLimit = 280

// Strategy produces a post for one request or reports why it could not.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, req Request) (domain.GeneratedPost, error)
}

// ModelStrategy asks one model on an AI backend for a post.
type ModelStrategy struct {
	backend ports.Completer
	model   string
	timeout time.Duration
}

var _ Strategy = (*ModelStrategy)(nil)

// NewModelStrategy binds a backend and model id with a per-call timeout.
func NewModelStrategy(backend ports.Completer, model string, timeout time.Duration) *ModelStrategy {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &ModelStrategy{backend: backend, model: model, timeout: timeout}
}

// Name returns the model id.
func (m *ModelStrategy) Name() string {
	return m.model
}

// Attempt performs a single backend call; it does not retry.
func (m *ModelStrategy) Attempt(ctx context.Context, req Request) (domain.GeneratedPost, error) {
	raw, err := m.backend.Complete(ctx, BuildPrompt(req), m.model, m.timeout)
	if err != nil {
		return domain.GeneratedPost{}, fmt.Errorf("complete with %s: %w", m.model, err)
	}

	draft, err := ParseResponse(raw, req.Platform)
	if err != nil {
		return domain.GeneratedPost{}, fmt.Errorf("parse %s reply: %w", m.model, err)
	}

	return assemble(draft, req, m.model), nil
}

// IsTransient reports whether err is a network or timeout failure worth
// retrying on the same strategy.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrUnusableResponse) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var temp interface{ Temporary() bool }
	if errors.As(err, &temp) {
		return temp.Temporary()
	}
	return false
}

// assemble joins the draft body with hashtags and fits platform length.
func assemble(draft Draft, req Request, strategy string) domain.GeneratedPost {
	tags := draft.Hashtags
	if len(tags) == 0 {
		tags = ExtractHashtags(draft.Body)
	}
	if len(tags) == 0 {
		tags = req.Hashtags
	}
	tags = normalizeHashtags(tags)
	if req.Platform == domain.PlatformTwitter && len(tags) > 3 {
		tags = tags[:3]
	}

	body := draft.Body
	var missing []string
	lowerBody := strings.ToLower(body)
	for _, tag := range tags {
		if !strings.Contains(lowerBody, strings.ToLower(tag)) {
			missing = append(missing, tag)
		}
	}
	suffix := ""
	if len(missing) > 0 {
		suffix = "\n\n" + strings.Join(missing, " ")
	}

	if req.Platform == domain.PlatformTwitter {
		body = fitTweet(body, twitterLimit-utf8.RuneCountInString(suffix))
	}

	return domain.GeneratedPost{
		Platform:     req.Platform,
		BodyText:     body + suffix,
		Hashtags:     tags,
		StrategyUsed: strategy,
	}
}

const ellipsis = "..."

// fitTweet cuts text to limit runes, preferring a sentence boundary. A limit
// too small to hold any text plus the ellipsis yields an empty string.
func fitTweet(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	if limit <= len(ellipsis) {
		return ""
	}
	cut := string(runes[:limit-len(ellipsis)])
	if idx := strings.LastIndex(cut, ". "); idx > (limit*2)/3 {
		return cut[:idx+1]
	}
	return strings.TrimSpace(cut) + ellipsis
}
