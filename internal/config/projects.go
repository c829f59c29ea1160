package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"PostForge/internal/domain"
	"PostForge/internal/validation"
)

// ProjectConfig is one brand configuration as written in YAML.
type ProjectConfig struct {
	ID          string             `yaml:"id"`
	DisplayName string             `yaml:"displayName"`
	Schedule    string             `yaml:"schedule"`
	Feeds       []string           `yaml:"feeds"`
	Keywords    map[string]float64 `yaml:"keywords"`
	Combos      []ComboConfig      `yaml:"combos"`
	Hashtags    []string           `yaml:"hashtags"`
	Voice       VoiceConfig        `yaml:"voice"`
	Targets     []TargetConfig     `yaml:"targets"`
	Validation  ValidationConfig   `yaml:"validation"`
	EnglishOnly bool               `yaml:"englishOnly"`
	Lookback    time.Duration      `yaml:"lookback"`
}

// ComboConfig adds a bonus when all keywords appear together.
type ComboConfig struct {
	Keywords []string `yaml:"keywords"`
	Bonus    float64  `yaml:"bonus"`
}

// VoiceConfig is the brand voice injected into prompts and templates.
type VoiceConfig struct {
	Tone       string   `yaml:"tone"`
	Audience   string   `yaml:"audience"`
	Guidelines string   `yaml:"guidelines"`
	Emoji      []string `yaml:"emoji"`
}

// TargetConfig is one publishing account. Credential values may reference
// environment variables as ${NAME}.
type TargetConfig struct {
	Platform    string            `yaml:"platform"`
	Account     string            `yaml:"account"`
	Credentials map[string]string `yaml:"credentials"`
}

// PlatformRulesConfig overrides validator bounds for one platform.
type PlatformRulesConfig struct {
	MinChars        int   `yaml:"minChars"`
	MaxChars        int   `yaml:"maxChars"`
	MinWords        int   `yaml:"minWords"`
	RequireHashtags *bool `yaml:"requireHashtags"`
}

// ValidationConfig overrides the default post validator rules.
type ValidationConfig struct {
	Platforms      map[string]PlatformRulesConfig `yaml:"platforms"`
	Placeholders   []string                       `yaml:"placeholders"`
	ToneMarkers    []string                       `yaml:"toneMarkers"`
	RequireTone    *bool                          `yaml:"requireTone"`
	RefusalPhrases []string                       `yaml:"refusalPhrases"`
	BrandHashtags  []string                       `yaml:"brandHashtags"`
}

// Projects converts project sections into domain snapshots. Field-level
// problems are left to domain.Project.Validate so they fail the run; only
// duplicate ids and unparseable schedules are rejected here.
func (c Config) Projects() ([]domain.Project, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	seen := map[string]bool{}
	projects := make([]domain.Project, 0, len(c.Projects))

	for _, pc := range c.Projects {
		if seen[pc.ID] {
			return nil, fmt.Errorf("duplicate project id %q", pc.ID)
		}
		seen[pc.ID] = true

		if pc.Schedule != "" {
			if _, err := parser.Parse(pc.Schedule); err != nil {
				return nil, fmt.Errorf("project %s schedule %q: %w", pc.ID, pc.Schedule, err)
			}
		}
		projects = append(projects, pc.toDomain())
	}
	return projects, nil
}

func (pc ProjectConfig) toDomain() domain.Project {
	combos := make([]domain.ComboRule, 0, len(pc.Combos))
	for _, c := range pc.Combos {
		combos = append(combos, domain.ComboRule{Keywords: c.Keywords, Bonus: c.Bonus})
	}

	targets := make([]domain.PublishTarget, 0, len(pc.Targets))
	for _, t := range pc.Targets {
		platform, err := domain.ParsePlatform(strings.ToLower(strings.TrimSpace(t.Platform)))
		if err != nil {
			platform = domain.Platform(t.Platform)
		}
		creds := make(domain.Credentials, len(t.Credentials))
		for k, v := range t.Credentials {
			creds[k] = os.ExpandEnv(v)
		}
		targets = append(targets, domain.PublishTarget{Platform: platform, Account: t.Account, Credentials: creds})
	}

	name := pc.DisplayName
	if name == "" {
		name = pc.ID
	}

	return domain.Project{
		ID:          pc.ID,
		DisplayName: name,
		Schedule:    pc.Schedule,
		Feeds:       pc.Feeds,
		Weights:     domain.ScoringWeights{Keywords: pc.Keywords, Combos: combos},
		Hashtags:    pc.Hashtags,
		Voice: domain.Voice{
			Tone:       pc.Voice.Tone,
			Audience:   pc.Voice.Audience,
			Guidelines: pc.Voice.Guidelines,
			Emoji:      pc.Voice.Emoji,
		},
		Targets:     targets,
		Validation:  pc.Validation.toDomain(),
		EnglishOnly: pc.EnglishOnly,
		Lookback:    pc.Lookback,
	}
}

func (vc ValidationConfig) toDomain() domain.ValidationRules {
	rules := validation.DefaultRules()

	for name, override := range vc.Platforms {
		platform, err := domain.ParsePlatform(strings.ToLower(name))
		if err != nil {
			continue
		}
		r := rules.Platforms[platform]
		if override.MinChars > 0 {
			r.MinChars = override.MinChars
		}
		if override.MaxChars > 0 {
			r.MaxChars = override.MaxChars
		}
		if override.MinWords > 0 {
			r.MinWords = override.MinWords
		}
		if override.RequireHashtags != nil {
			r.RequireHashtag = *override.RequireHashtags
		}
		rules.Platforms[platform] = r
	}
	if len(vc.Placeholders) > 0 {
		rules.Placeholders = vc.Placeholders
	}
	if len(vc.ToneMarkers) > 0 {
		rules.ToneMarkers = vc.ToneMarkers
	}
	if vc.RequireTone != nil {
		rules.RequireTone = *vc.RequireTone
	}
	if len(vc.RefusalPhrases) > 0 {
		rules.RefusalPhrases = vc.RefusalPhrases
	}
	rules.BrandHashtags = vc.BrandHashtags
	return rules
}
