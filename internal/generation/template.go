package generation

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode/utf8"

	"PostForge/internal/domain"
)

var linkedInTemplates = []string{
	`{emoji} {title}

{description}

This is a development worth your attention. Teams that watch shifts like this one early tend to plan with more confidence and avoid costly surprises later. At {brand}, we follow these changes closely because they shape the work our community does every day.

Read the full story from {source}: {link}

What is your take on this, and how is your team preparing for it?

{hashtags}`,
	`{emoji} {title}

{description}

We think this one deserves a closer look. The teams we talk to keep running into the same question: how do you turn news like this into a practical next step for your own organization? At {brand}, we believe the answer starts with a clear picture of what changed and why it matters to you.

Full article via {source}: {link}

Would this change how you work next quarter?

{hashtags}`,
}

var twitterTemplates = []string{
	"{emoji} {short_title}\n\nWorth your time if you care where this is heading. What do you think?\n\n{link}\n\n{hashtags}",
	"{emoji} {short_title}\n\nWe are watching this closely. Are you?\n\n{link}\n\n{hashtags}",
	"{emoji} Have you seen this? {short_title}\n\n{link}\n\n{hashtags}",
}

const defaultEmoji = "📢"

// minTitleRoom is the least headline space worth keeping a link for.
const minTitleRoom = 40

// TemplateStrategy composes a post from fixed templates. It never fails and
// selects templates from a hash of the article URL, so output is stable.
type TemplateStrategy struct{}

var _ Strategy = TemplateStrategy{}

// Name identifies the fallback in run logs.
func (TemplateStrategy) Name() string {
	return domain.StrategyTemplateFallback
}

// Attempt always succeeds.
func (t TemplateStrategy) Attempt(_ context.Context, req Request) (domain.GeneratedPost, error) {
	return t.Compose(req), nil
}

// Compose renders the post for the request platform.
func (TemplateStrategy) Compose(req Request) domain.GeneratedPost {
	seed := articleSeed(req.Article)
	tags := normalizeHashtags(req.Hashtags)

	emoji := defaultEmoji
	if len(req.Voice.Emoji) > 0 {
		emoji = req.Voice.Emoji[seed%uint32(len(req.Voice.Emoji))]
	}

	title := strings.TrimSpace(req.Article.Title)
	if title == "" {
		title = "Industry update"
	}
	brand := req.Brand
	if brand == "" {
		brand = "our team"
	}
	source := req.Article.SourceName
	if source == "" {
		source = "the original source"
	}

	var body string
	if req.Platform == domain.PlatformTwitter {
		if len(tags) > 3 {
			tags = tags[:3]
		}
		tpl := twitterTemplates[seed%uint32(len(twitterTemplates))]
		body = renderTweet(tpl, emoji, title, req.Article.SourceURL, strings.Join(tags, " "))
	} else {
		tpl := linkedInTemplates[seed%uint32(len(linkedInTemplates))]
		body = strings.NewReplacer(
			"{emoji}", emoji,
			"{title}", title,
			"{description}", describe(req.Article.Summary),
			"{brand}", brand,
			"{source}", source,
			"{link}", req.Article.SourceURL,
			"{hashtags}", strings.Join(tags, " "),
		).Replace(tpl)
	}

	return domain.GeneratedPost{
		Platform:     req.Platform,
		BodyText:     collapseBlankLines(body),
		Hashtags:     tags,
		StrategyUsed: domain.StrategyTemplateFallback,
	}
}

func renderTweet(tpl, emoji, title, link, hashtags string) string {
	render := func(shortTitle, link string) string {
		return strings.NewReplacer(
			"{emoji}", emoji,
			"{short_title}", shortTitle,
			"{link}", link,
			"{hashtags}", hashtags,
		).Replace(tpl)
	}

	room := twitterLimit - utf8.RuneCountInString(render("", link))
	if room < minTitleRoom {
		// The link leaves no useful room for the headline; drop the link.
		return render(fitTweet(title, 120), "")
	}
	return render(fitTweet(title, room), link)
}

func describe(summary string) string {
	summary = strings.TrimSpace(summary)
	if utf8.RuneCountInString(summary) > 200 {
		return string([]rune(summary)[:200]) + "..."
	}
	return summary
}

func collapseBlankLines(s string) string {
	return strings.TrimSpace(extraNewlines.ReplaceAllString(s, "\n\n"))
}

func articleSeed(a domain.Article) uint32 {
	key := a.NormalizedURL
	if key == "" {
		key = a.SourceURL + a.Title
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32()
}
