package generation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"PostForge/internal/domain"
	"PostForge/internal/ports"
)

const (
	maxSummaryChars = 500
	maxContentChars = 2500
)

// Request is everything a strategy needs to write one post.
type Request struct {
	Article  domain.Article
	Voice    domain.Voice
	Platform domain.Platform
	Brand    string
	Hashtags []string
}

func platformBrief(p domain.Platform) string {
	switch p {
	case domain.PlatformTwitter:
		return "an X/Twitter post under 240 characters including hashtags, one sharp insight, ending with a question to the reader"
	default:
		return "a LinkedIn post of 150-300 words with a strong opening line, short paragraphs, a takeaway for the reader and a closing question"
	}
}

// BuildPrompt renders the system and user messages for one platform.
func BuildPrompt(req Request) ports.Prompt {
	var system strings.Builder
	if req.Brand != "" {
		fmt.Fprintf(&system, "You write social posts for %s.\n", req.Brand)
	}
	if req.Voice.Tone != "" {
		fmt.Fprintf(&system, "Tone: %s\n", req.Voice.Tone)
	}
	if req.Voice.Audience != "" {
		fmt.Fprintf(&system, "Audience: %s\n", req.Voice.Audience)
	}
	if req.Voice.Guidelines != "" {
		fmt.Fprintf(&system, "Guidelines: %s\n", req.Voice.Guidelines)
	}
	fmt.Fprintf(&system, "\nWrite %s. Address the reader directly.\n", platformBrief(req.Platform))
	system.WriteString(`
Output exactly this format and nothing else:
---POST---
<post text>
---HASHTAGS---
<space separated hashtags>
---END---`)

	var user strings.Builder
	user.WriteString("Create a post about this article.\n\n")
	fmt.Fprintf(&user, "Title: %s\n", req.Article.Title)
	fmt.Fprintf(&user, "Link: %s\n", req.Article.SourceURL)
	if req.Article.SourceName != "" {
		fmt.Fprintf(&user, "Source: %s\n", req.Article.SourceName)
	}
	fmt.Fprintf(&user, "Summary: %s\n", orNA(truncateRunes(req.Article.Summary, maxSummaryChars)))
	if req.Article.FullContent != nil {
		fmt.Fprintf(&user, "Article content: %s\n", orNA(truncateRunes(*req.Article.FullContent, maxContentChars)))
	}
	if len(req.Hashtags) > 0 {
		fmt.Fprintf(&user, "Use at least one of these hashtags: %s\n", strings.Join(normalizeHashtags(req.Hashtags), " "))
	}

	return ports.Prompt{System: strings.TrimSpace(system.String()), User: strings.TrimSpace(user.String())}
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
