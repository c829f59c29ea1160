package generation

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"PostForge/internal/domain"
)

// ErrUnusableResponse marks a backend reply that carried no usable post.
var ErrUnusableResponse = errors.New("unusable model response")

const minBodyRunes = 20

// Draft is a parsed model reply.
type Draft struct {
	Body     string
	Hashtags []string
}

var (
	codeFence      = regexp.MustCompile("(?m)^\\s*```[a-zA-Z]*\\s*$")
	postSection    = regexp.MustCompile(`(?is)-{2,}\s*POST\s*-{2,}\s*(.+?)\s*(?:-{2,}\s*(?:HASHTAGS|END)\s*-{2,}|$)`)
	tagSection     = regexp.MustCompile(`(?is)-{2,}\s*HASHTAGS\s*-{2,}\s*(.+?)\s*(?:-{2,}\s*END\s*-{2,}|$)`)
	linkedInMarker = regexp.MustCompile(`(?is)-{2,}\s*LINKEDIN\s*-{2,}\s*(.+?)\s*(?:-{2,}\s*(?:TWITTER|X|END)\s*-{2,}|$)`)
	twitterMarker  = regexp.MustCompile(`(?is)-{2,}\s*(?:TWITTER|X)\s*-{2,}\s*(.+?)\s*(?:-{2,}\s*END\s*-{2,}|$)`)
	linkedInLabel  = regexp.MustCompile(`(?is)(?:^|\n)\s*(?:\*\*LinkedIn[^*\n]*\*\*:?|LinkedIn(?: post)?\s*:)\s*(.+?)(?:\n\s*(?:\*\*(?:Twitter|X)\b|(?:Twitter|X)(?: post)?\s*:)|$)`)
	twitterLabel   = regexp.MustCompile(`(?is)(?:^|\n)\s*(?:\*\*(?:Twitter|X)\b[^*\n]*\*\*:?|(?:Twitter|X)(?: post)?\s*:)\s*(.+?)$`)
	hashtagToken   = regexp.MustCompile(`#[\p{L}\p{N}_]+`)
	boldMarkup     = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	italicMarkup   = regexp.MustCompile(`\*([^*\n]+)\*`)
	mdHeading      = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	extraNewlines  = regexp.MustCompile(`\n{3,}`)
	preamble       = regexp.MustCompile(`(?i)^(?:sure|certainly|here(?:'s| is))[^\n]*:\s*\n`)
)

// ParseResponse extracts post text for the platform from a raw model reply.
// It accepts the requested section markers and falls back to per-platform
// markers, bold or plain labels, and finally the whole reply.
func ParseResponse(raw string, platform domain.Platform) (Draft, error) {
	text := strings.TrimSpace(codeFence.ReplaceAllString(raw, ""))
	if text == "" {
		return Draft{}, ErrUnusableResponse
	}

	var draft Draft
	if m := tagSection.FindStringSubmatch(text); m != nil {
		draft.Hashtags = hashtagToken.FindAllString(m[1], -1)
	}

	body := ""
	if m := postSection.FindStringSubmatch(text); m != nil {
		body = m[1]
	}
	if body == "" {
		body = platformSection(text, platform)
	}
	if body == "" {
		body = preamble.ReplaceAllString(text, "")
		if loc := tagSection.FindStringIndex(body); loc != nil {
			body = body[:loc[0]]
		}
	}

	body = cleanPost(body)
	if utf8.RuneCountInString(body) < minBodyRunes {
		return Draft{}, ErrUnusableResponse
	}
	draft.Body = body
	return draft, nil
}

func platformSection(text string, platform domain.Platform) string {
	markers := []*regexp.Regexp{linkedInMarker, linkedInLabel}
	if platform == domain.PlatformTwitter {
		markers = []*regexp.Regexp{twitterMarker, twitterLabel}
	}
	for _, re := range markers {
		if m := re.FindStringSubmatch(text); m != nil && strings.TrimSpace(m[1]) != "" {
			return m[1]
		}
	}
	return ""
}

func cleanPost(text string) string {
	text = boldMarkup.ReplaceAllString(text, "$1")
	text = italicMarkup.ReplaceAllString(text, "$1")
	text = mdHeading.ReplaceAllString(text, "")
	text = strings.Trim(strings.TrimSpace(text), `"'`)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = extraNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func normalizeHashtags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := map[string]bool{}
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if !strings.HasPrefix(tag, "#") {
			tag = "#" + tag
		}
		key := strings.ToLower(tag)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, tag)
	}
	return out
}

// ExtractHashtags lists hashtags found in text in order of appearance.
func ExtractHashtags(text string) []string {
	return normalizeHashtags(hashtagToken.FindAllString(text, -1))
}
