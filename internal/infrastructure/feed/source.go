package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"PostForge/internal/domain"
	"PostForge/internal/ports"
)

const maxFeedBytes = 10 << 20

// HTTPSource fetches RSS and Atom feeds over HTTP.
type HTTPSource struct {
	client    *http.Client
	userAgent string
}

var _ ports.FeedSource = (*HTTPSource)(nil)

// NewHTTPSource wires an HTTP client; per-call timeouts come from FetchFeed.
func NewHTTPSource(client *http.Client, userAgent string) *HTTPSource {
	if client == nil {
		client = &http.Client{}
	}
	if userAgent == "" {
		userAgent = "PostForge/1.0"
	}
	return &HTTPSource{client: client, userAgent: userAgent}
}

// FetchFeed downloads and parses one feed. Entries without a link or title
// are skipped rather than failing the feed.
func (s *HTTPSource) FetchFeed(ctx context.Context, feedURL string, timeout time.Duration) ([]domain.Article, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned %s", resp.Status)
	}

	parsed, err := gofeed.NewParser().Parse(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	source := strings.TrimSpace(parsed.Title)
	articles := make([]domain.Article, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if article, ok := toArticle(item, source); ok {
			articles = append(articles, article)
		}
	}
	return articles, nil
}

func toArticle(item *gofeed.Item, source string) (domain.Article, bool) {
	if item == nil {
		return domain.Article{}, false
	}
	link := strings.TrimSpace(item.Link)
	if link == "" && len(item.Links) > 0 {
		link = strings.TrimSpace(item.Links[0])
	}
	title := HTMLToText(item.Title)
	if link == "" || title == "" {
		return domain.Article{}, false
	}

	summary := item.Description
	if strings.TrimSpace(summary) == "" {
		summary = item.Content
	}

	var published time.Time
	switch {
	case item.PublishedParsed != nil:
		published = item.PublishedParsed.UTC()
	case item.UpdatedParsed != nil:
		published = item.UpdatedParsed.UTC()
	}

	return domain.Article{
		SourceURL:   link,
		Title:       title,
		Summary:     HTMLToText(summary),
		PublishedAt: published,
		SourceName:  source,
	}, true
}

// HTMLToText flattens an HTML fragment into single-spaced text.
func HTMLToText(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return ""
	}
	if !strings.ContainsAny(fragment, "<&") {
		return strings.Join(strings.Fields(fragment), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}
