package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html/charset"

	"PostForge/internal/ports"
)

const (
	maxPageBytes   = 5 << 20
	minUsefulChars = 200
)

// ErrNoContent is returned when neither readability nor selectors find text.
var ErrNoContent = errors.New("no readable content")

var (
	contentSelectors = []string{"article", "main", "[role=main]", ".post-content", ".entry-content", ".article-body", "#content"}
	blockTag         = regexp.MustCompile(`(?i)<(/?)(p|div|br|li|td|tr|h[1-6])([^>]*)>`)
	whitespace       = regexp.MustCompile(`\s+`)
)

// Extractor downloads article pages and pulls out the readable body.
type Extractor struct {
	client    *http.Client
	userAgent string
	maxChars  int
}

var _ ports.ContentExtractor = (*Extractor)(nil)

// NewExtractor wires an HTTP client; maxChars caps returned text, zero means no cap.
func NewExtractor(client *http.Client, userAgent string, maxChars int) *Extractor {
	if client == nil {
		client = &http.Client{}
	}
	if userAgent == "" {
		userAgent = "PostForge/1.0"
	}
	return &Extractor{client: client, userAgent: userAgent, maxChars: maxChars}
}

// Extract returns plain text of the article at pageURL.
func (e *Extractor) Extract(ctx context.Context, pageURL string, timeout time.Duration) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	raw, err := e.fetch(ctx, pageURL)
	if err != nil {
		return "", err
	}

	text := ""
	if article, err := readability.FromReader(bytes.NewReader(raw), parsedURL); err == nil {
		text = htmlText(article.Content)
		if len([]rune(text)) < minUsefulChars && len([]rune(article.Excerpt)) > len([]rune(text)) {
			text = normalize(article.Excerpt)
		}
	}
	if len([]rune(text)) < minUsefulChars {
		if alt := selectorText(raw); len([]rune(alt)) > len([]rune(text)) {
			text = alt
		}
	}
	if text == "" {
		return "", ErrNoContent
	}
	return e.truncate(text), nil
}

func (e *Extractor) fetch(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page returned %s", resp.Status)
	}

	var body io.Reader = resp.Body
	if utf8Reader, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type")); err == nil {
		body = utf8Reader
	}

	raw, err := io.ReadAll(io.LimitReader(body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}
	return raw, nil
}

func (e *Extractor) truncate(text string) string {
	runes := []rune(text)
	if e.maxChars <= 0 || len(runes) <= e.maxChars {
		return text
	}
	return strings.TrimSpace(string(runes[:e.maxChars]))
}

// htmlText renders an HTML fragment as text, keeping block boundaries as spaces.
func htmlText(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	spaced := blockTag.ReplaceAllString(fragment, " <$1$2$3> ")
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(spaced))
	if err != nil {
		return ""
	}
	return normalize(doc.Text())
}

func selectorText(raw []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return ""
	}
	doc.Find("script, style, nav, header, footer, aside, form").Remove()

	for _, sel := range contentSelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		var parts []string
		node.Find("p").Each(func(_ int, p *goquery.Selection) {
			if t := normalize(p.Text()); t != "" {
				parts = append(parts, t)
			}
		})
		text := strings.Join(parts, " ")
		if text == "" {
			text = normalize(node.Text())
		}
		if text != "" {
			return text
		}
	}

	var parts []string
	doc.Find("body p").Each(func(_ int, p *goquery.Selection) {
		if t := normalize(p.Text()); len(t) > 40 {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, " ")
}

func normalize(text string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}
