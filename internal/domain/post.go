package domain

import "fmt"

// Platform enumerates publish destinations.
type Platform string

const (
	PlatformLinkedIn Platform = "linkedin"
	PlatformTwitter  Platform = "twitter"
)

// Platforms lists every supported platform in publish order.
var Platforms = []Platform{PlatformLinkedIn, PlatformTwitter}

// ParsePlatform validates a platform name from configuration.
func ParsePlatform(value string) (Platform, error) {
	switch Platform(value) {
	case PlatformLinkedIn, PlatformTwitter:
		return Platform(value), nil
	case "x":
		return PlatformTwitter, nil
	default:
		return "", fmt.Errorf("unknown platform %q", value)
	}
}

// StrategyTemplateFallback names the deterministic last-resort generator.
const StrategyTemplateFallback = "template_fallback"

// RejectReason is a closed set of validator rule identifiers.
type RejectReason string

const (
	ReasonTooShort       RejectReason = "too_short"
	ReasonTooLong        RejectReason = "too_long"
	ReasonMissingHashtag RejectReason = "missing_hashtag"
	ReasonPlaceholder    RejectReason = "placeholder"
	ReasonTone           RejectReason = "tone"
	ReasonAIRefusal      RejectReason = "ai_refusal"
)

// Verdict is the validator outcome for a generated post.
type Verdict struct {
	Accepted bool
	Reason   RejectReason
	Detail   string
}

// Accept builds a passing verdict.
func Accept() Verdict {
	return Verdict{Accepted: true}
}

// Reject builds a failing verdict.
func Reject(reason RejectReason, detail string) Verdict {
	return Verdict{Reason: reason, Detail: detail}
}

func (v Verdict) String() string {
	if v.Accepted {
		return "accept"
	}
	if v.Detail == "" {
		return "reject(" + string(v.Reason) + ")"
	}
	return fmt.Sprintf("reject(%s): %s", v.Reason, v.Detail)
}

// GeneratedPost is the text produced for one platform within a run.
type GeneratedPost struct {
	Platform          Platform
	BodyText          string
	Hashtags          []string
	StrategyUsed      string
	ValidationVerdict *Verdict
}

// IsFallback reports whether the template generator produced the text.
func (p GeneratedPost) IsFallback() bool {
	return p.StrategyUsed == StrategyTemplateFallback
}

// WithVerdict returns a copy sealed with the validator outcome.
func (p GeneratedPost) WithVerdict(v Verdict) GeneratedPost {
	p.ValidationVerdict = &v
	return p
}
