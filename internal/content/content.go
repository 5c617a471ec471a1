// Package content holds the records that flow through the content pipeline:
// trend observations, ideas, per-platform renderings and scheduled posts.
package content

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrSourceUnavailable means no trend input could be obtained at all.
	ErrSourceUnavailable = errors.New("trend source unavailable")
	// ErrGenerationUnavailable means a caption strategy could not produce text.
	ErrGenerationUnavailable = errors.New("caption generation unavailable")
	// ErrInvalidRequest means a workflow request is missing required fields.
	ErrInvalidRequest = errors.New("invalid workflow request")
)

// Platform identifies a social network.
type Platform string

const (
	PlatformX         Platform = "x"
	PlatformInstagram Platform = "instagram"
	PlatformLinkedIn  Platform = "linkedin"
)

// ParsePlatform normalizes a platform name. Unrecognized names are kept as-is
// so that downstream stages can degrade per platform instead of failing.
func ParsePlatform(s string) Platform {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	if p == "twitter" {
		return PlatformX
	}
	return p
}

// Known reports whether p is one of the supported platforms.
func (p Platform) Known() bool {
	switch p {
	case PlatformX, PlatformInstagram, PlatformLinkedIn:
		return true
	}
	return false
}

// DisplayName returns the platform's brand spelling.
func (p Platform) DisplayName() string {
	switch p {
	case PlatformX:
		return "X"
	case PlatformInstagram:
		return "Instagram"
	case PlatformLinkedIn:
		return "LinkedIn"
	}
	return string(p)
}

// DefaultPlatforms returns the platforms targeted when a request names none.
func DefaultPlatforms() []Platform {
	return []Platform{PlatformX, PlatformInstagram, PlatformLinkedIn}
}

// Engagement counts interactions on a trend observation.
type Engagement struct {
	Likes    int `json:"likes" yaml:"likes"`
	Comments int `json:"comments" yaml:"comments"`
	Shares   int `json:"shares" yaml:"shares"`
}

// TrendRecord is a single scored observation of engagement around a topic.
type TrendRecord struct {
	ID         int64      `json:"id" yaml:"id"`
	Source     Platform   `json:"source" yaml:"source"`
	Topic      string     `json:"topic" yaml:"topic"`
	Text       string     `json:"text" yaml:"text"`
	Author     string     `json:"author" yaml:"author"`
	URL        string     `json:"url,omitempty" yaml:"url"`
	Engagement Engagement `json:"engagement" yaml:"engagement"`
	Score      float64    `json:"score" yaml:"score"`
	CapturedAt time.Time  `json:"captured_at,omitzero" yaml:"captured_at"`
}

// IdeaStatus tracks an idea through the approval workflow.
type IdeaStatus string

const (
	IdeaDraft     IdeaStatus = "draft"
	IdeaApproved  IdeaStatus = "approved"
	IdeaScheduled IdeaStatus = "scheduled"
)

// Idea is a platform-agnostic content concept derived from one trend.
type Idea struct {
	ID       int64      `json:"id"`
	TrendID  int64      `json:"trend_id"`
	Title    string     `json:"title"`
	Summary  string     `json:"summary"`
	Hook     string     `json:"hook"`
	Caption  string     `json:"caption"`
	Hashtags []string   `json:"hashtags"`
	AIType   string     `json:"ai_type"`
	Status   IdeaStatus `json:"status"`
}

// ComplianceStatus is the outcome of the banned-term check.
type ComplianceStatus string

const (
	ComplianceUnknown ComplianceStatus = "unknown"
	CompliancePassed  ComplianceStatus = "passed"
	ComplianceFailed  ComplianceStatus = "failed"
)

// Extra holds the platform-specific rendering fields. At most one is set.
type Extra struct {
	CharacterLimit int    `json:"character_limit,omitempty"`
	MediaType      string `json:"media_type,omitempty"`
	Tone           string `json:"tone,omitempty"`
}

// PlatformContent is an idea rendered for one platform.
type PlatformContent struct {
	IdeaID           int64            `json:"idea_id"`
	Platform         Platform         `json:"platform"`
	Title            string           `json:"title"`
	Hook             string           `json:"hook"`
	Caption          string           `json:"caption,omitempty"`
	Hashtags         []string         `json:"hashtags,omitempty"`
	Extra                             // flattened into the JSON object
	ComplianceStatus ComplianceStatus `json:"compliance_status"`
	ComplianceIssues string           `json:"compliance_issues,omitempty"`
}

// PostStatus is the state of a scheduled post suggestion.
type PostStatus string

const PostSuggested PostStatus = "suggested"

// ScheduledPost pairs passed content with a suggested time-of-day slot.
type ScheduledPost struct {
	IdeaID        int64           `json:"idea_id"`
	Platform      Platform        `json:"platform"`
	Content       PlatformContent `json:"content"`
	SuggestedTime string          `json:"suggested_time"`
	Status        PostStatus      `json:"status"`
}
