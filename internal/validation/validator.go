// Package validation inspects generated posts against brand and quality rules.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"PostForge/internal/domain"
)

var (
	defaultPlaceholders = []string{
		"[insert", "[add", "[your", "[link]", "placeholder", "example text",
		"lorem ipsum", "{{", "{title}", "{link}", "{hashtags}",
	}
	defaultToneMarkers    = []string{"you", "your", "we", "our", "us", "?"}
	defaultRefusalPhrases = []string{
		"as an ai", "as a language model", "i cannot", "i can't", "i apologize",
		"i'm sorry", "i am unable", "i don't have access", "error occurred",
	}

	defaultPlatformRules = map[domain.Platform]domain.PlatformRules{
		domain.PlatformLinkedIn: {MinChars: 50, MaxChars: 3000, MinWords: 50, RequireHashtag: true},
		domain.PlatformTwitter:  {MinChars: 20, MaxChars: 280, RequireHashtag: true},
	}

	hashtagPattern = regexp.MustCompile(`#[\p{L}\p{N}_]+`)
	wordPattern    = regexp.MustCompile(`[\p{L}\p{N}']+`)
)

// DefaultRules returns the rule set used when a project configures none.
func DefaultRules() domain.ValidationRules {
	platforms := make(map[domain.Platform]domain.PlatformRules, len(defaultPlatformRules))
	for p, r := range defaultPlatformRules {
		platforms[p] = r
	}
	return domain.ValidationRules{
		Platforms:      platforms,
		Placeholders:   append([]string(nil), defaultPlaceholders...),
		ToneMarkers:    append([]string(nil), defaultToneMarkers...),
		RequireTone:    true,
		RefusalPhrases: append([]string(nil), defaultRefusalPhrases...),
	}
}

// Validate checks the post and returns the first failing rule. Checks run in
// a fixed order: refusal, length, placeholders, hashtags, tone.
func Validate(post domain.GeneratedPost, rules domain.ValidationRules) domain.Verdict {
	text := strings.TrimSpace(post.BodyText)
	lower := strings.ToLower(text)
	limits := platformRules(post.Platform, rules)

	if phrase, ok := containsAny(lower, or(rules.RefusalPhrases, defaultRefusalPhrases)); ok {
		return domain.Reject(domain.ReasonAIRefusal, fmt.Sprintf("contains %q", phrase))
	}

	chars := utf8.RuneCountInString(text)
	if chars < limits.MinChars {
		return domain.Reject(domain.ReasonTooShort, fmt.Sprintf("%d chars, minimum %d", chars, limits.MinChars))
	}
	if limits.MaxChars > 0 && chars > limits.MaxChars {
		return domain.Reject(domain.ReasonTooLong, fmt.Sprintf("%d chars, maximum %d", chars, limits.MaxChars))
	}
	if words := len(wordPattern.FindAllString(text, -1)); words < limits.MinWords {
		return domain.Reject(domain.ReasonTooShort, fmt.Sprintf("%d words, minimum %d", words, limits.MinWords))
	}

	if marker, ok := containsAny(lower, or(rules.Placeholders, defaultPlaceholders)); ok {
		return domain.Reject(domain.ReasonPlaceholder, fmt.Sprintf("contains %q", marker))
	}

	if limits.RequireHashtag && !hasBrandHashtag(text, rules.BrandHashtags) {
		if len(rules.BrandHashtags) == 0 {
			return domain.Reject(domain.ReasonMissingHashtag, "no hashtag")
		}
		return domain.Reject(domain.ReasonMissingHashtag, "none of "+strings.Join(rules.BrandHashtags, " "))
	}

	if rules.RequireTone && !conversational(lower, or(rules.ToneMarkers, defaultToneMarkers)) {
		return domain.Reject(domain.ReasonTone, "no reader address or question")
	}

	return domain.Accept()
}

// platformRules fills unset bounds from the platform defaults. A platform
// without configured rules takes the defaults wholesale.
func platformRules(p domain.Platform, rules domain.ValidationRules) domain.PlatformRules {
	def := defaultPlatformRules[p]
	configured, ok := rules.Platforms[p]
	if !ok {
		return def
	}
	if configured.MinChars == 0 {
		configured.MinChars = def.MinChars
	}
	if configured.MaxChars == 0 {
		configured.MaxChars = def.MaxChars
	}
	if configured.MinWords == 0 {
		configured.MinWords = def.MinWords
	}
	return configured
}

func hasBrandHashtag(text string, brand []string) bool {
	found := hashtagPattern.FindAllString(text, -1)
	if len(brand) == 0 {
		return len(found) > 0
	}
	for _, tag := range found {
		for _, want := range brand {
			if strings.EqualFold(tag, "#"+strings.TrimPrefix(want, "#")) {
				return true
			}
		}
	}
	return false
}

func conversational(lower string, markers []string) bool {
	words := map[string]bool{}
	for _, w := range wordPattern.FindAllString(lower, -1) {
		words[w] = true
	}
	for _, marker := range markers {
		marker = strings.ToLower(strings.TrimSpace(marker))
		if marker == "" {
			continue
		}
		if wordPattern.MatchString(marker) && !strings.ContainsAny(marker, " ?!") {
			if words[marker] {
				return true
			}
			continue
		}
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func containsAny(lower string, needles []string) (string, bool) {
	for _, n := range needles {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" && strings.Contains(lower, n) {
			return n, true
		}
	}
	return "", false
}

func or(values, fallback []string) []string {
	if len(values) == 0 {
		return fallback
	}
	return values
}
