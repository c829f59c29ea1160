package domain

import (
	"net/url"
	"strings"
	"time"
)

// Voice carries brand voice parameters embedded into prompts and templates.
type Voice struct {
	Tone       string
	Audience   string
	Guidelines string
	Emoji      []string
}

// Credentials are opaque publisher secrets for one account.
type Credentials map[string]string

// PublishTarget is one account on one platform.
type PublishTarget struct {
	Platform    Platform
	Account     string
	Credentials Credentials
}

// PlatformRules bound post shape for a single platform.
type PlatformRules struct {
	MinChars       int
	MaxChars       int
	MinWords       int
	RequireHashtag bool
}

// ValidationRules configure the post validator for a project.
type ValidationRules struct {
	Platforms      map[Platform]PlatformRules
	Placeholders   []string
	ToneMarkers    []string
	RequireTone    bool
	RefusalPhrases []string
	BrandHashtags  []string
}

// For returns the rules for a platform, zero value when absent.
func (r ValidationRules) For(p Platform) PlatformRules {
	if r.Platforms == nil {
		return PlatformRules{}
	}
	return r.Platforms[p]
}

// Project is a read-only brand configuration snapshot.
type Project struct {
	ID          string
	DisplayName string
	Schedule    string
	Feeds       []string
	Weights     ScoringWeights
	Hashtags    []string
	Voice       Voice
	Targets     []PublishTarget
	Validation  ValidationRules
	EnglishOnly bool
	// Lookback limits deduplication to recently stored articles; zero means unlimited.
	Lookback time.Duration
}

// Platforms returns the distinct target platforms in canonical order.
func (p Project) Platforms() []Platform {
	seen := map[Platform]bool{}
	for _, t := range p.Targets {
		seen[t.Platform] = true
	}
	var out []Platform
	for _, platform := range Platforms {
		if seen[platform] {
			out = append(out, platform)
		}
	}
	return out
}

// TargetsFor lists accounts configured for a platform.
func (p Project) TargetsFor(platform Platform) []PublishTarget {
	var out []PublishTarget
	for _, t := range p.Targets {
		if t.Platform == platform {
			out = append(out, t)
		}
	}
	return out
}

// Rules returns validation rules bound to the project hashtags.
func (p Project) Rules() ValidationRules {
	rules := p.Validation
	if len(rules.BrandHashtags) == 0 {
		rules.BrandHashtags = p.Hashtags
	}
	return rules
}

// Validate checks invariants that must hold before any network call.
func (p Project) Validate() error {
	cfgErr := &ConfigError{ProjectID: p.ID}

	if strings.TrimSpace(p.ID) == "" {
		cfgErr.add("id is required")
	}
	if len(p.Feeds) == 0 {
		cfgErr.add("at least one feed is required")
	}
	for _, feed := range p.Feeds {
		u, err := url.Parse(feed)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			cfgErr.add("feed %q is not an absolute http(s) url", feed)
		}
	}
	for kw := range p.Weights.Keywords {
		if strings.TrimSpace(kw) == "" {
			cfgErr.add("empty keyword in weights")
		}
	}
	for i, combo := range p.Weights.Combos {
		if len(combo.Keywords) < 2 {
			cfgErr.add("combo %d needs at least two keywords", i)
		}
		if combo.Bonus <= 0 {
			cfgErr.add("combo %d bonus must be positive", i)
		}
	}
	for _, t := range p.Targets {
		if _, err := ParsePlatform(string(t.Platform)); err != nil {
			cfgErr.add("target %q: %v", t.Account, err)
		}
	}
	for _, platform := range p.Platforms() {
		rules := p.Validation.For(platform)
		if rules.RequireHashtag && len(p.Hashtags) == 0 {
			cfgErr.add("%s requires hashtags but none are configured", platform)
		}
		if rules.MaxChars > 0 && rules.MinChars > rules.MaxChars {
			cfgErr.add("%s min length exceeds max length", platform)
		}
	}

	if len(cfgErr.Problems) > 0 {
		return cfgErr
	}
	return nil
}
