package database

import (
	"encoding/json"

	"github.com/TobiSchelling/SocialAgent/internal/content"
)

// Account is a connected social platform account. The token is stored sealed.
type Account struct {
	ID          int64            `json:"id"`
	UserID      string           `json:"user_id"`
	Platform    content.Platform `json:"platform"`
	SealedToken string           `json:"-"`
	Scopes      string           `json:"scopes,omitempty"`
	CreatedAt   string           `json:"connected_at"`
	UpdatedAt   string           `json:"updated_at"`
}

// StoredIdea is an idea persisted by the service layer.
type StoredIdea struct {
	content.Idea
	RunID           int64              `json:"run_id"`
	Persona         string             `json:"persona"`
	BrandRules      string             `json:"brand_rules"`
	PlatformTargets []content.Platform `json:"platform_targets"`
	CreatedAt       string             `json:"created_at"`
	UpdatedAt       string             `json:"updated_at"`
}

// StoredContent is a platform rendering persisted for an idea.
type StoredContent struct {
	ID int64 `json:"id"`
	content.PlatformContent
}

// ScheduleStatus tracks a schedule entry.
type ScheduleStatus string

const (
	ScheduleSuggested ScheduleStatus = "suggested"
	ScheduleScheduled ScheduleStatus = "scheduled"
	SchedulePublished ScheduleStatus = "published"
	ScheduleFailed    ScheduleStatus = "failed"
)

// ScheduleEntry is a planned or suggested post for an idea on a platform.
type ScheduleEntry struct {
	ID           int64            `json:"id"`
	IdeaID       int64            `json:"idea_id"`
	Platform     content.Platform `json:"platform"`
	Slot         string           `json:"slot,omitempty"`
	ScheduledFor string           `json:"scheduled_for,omitempty"` // UTC TimeLayout; empty for suggestions
	Timezone     string           `json:"timezone"`
	Status       ScheduleStatus   `json:"status"`
	PostID       *int64           `json:"post_id,omitempty"`
	Error        *string          `json:"error,omitempty"`
}

// Post is a published post. Metrics holds the latest snapshot, if any.
type Post struct {
	ID         int64            `json:"id"`
	IdeaID     int64            `json:"idea_id"`
	Platform   content.Platform `json:"platform"`
	ExternalID string           `json:"external_id"`
	Permalink  string           `json:"permalink"`
	PostedAt   string           `json:"posted_at"`
	Metrics    json.RawMessage  `json:"metrics,omitempty"`
	MetricsAt  string           `json:"metrics_at,omitempty"`
}

// MetricsSnapshot is one reading of a post's platform counters.
type MetricsSnapshot struct {
	ID         int64            `json:"id"`
	PostID     int64            `json:"post_id"`
	Platform   content.Platform `json:"platform"`
	ExternalID string           `json:"external_id"`
	SnapshotAt string           `json:"snapshot_at"`
	Metrics    json.RawMessage  `json:"metrics"`
}

// BrandProfile holds the persisted persona and rules.
type BrandProfile struct {
	Persona         string   `json:"persona"`
	BrandRules      string   `json:"brand_rules"`
	DefaultHashtags []string `json:"default_hashtags"`
	UpdatedAt       string   `json:"updated_at,omitempty"`
}

// RunReport holds metadata about a pipeline run.
type RunReport struct {
	ID             int64
	GeneratedAt    string
	Persona        string
	Platforms      []content.Platform
	TrendCount     int
	IdeaCount      int
	ContentCount   int
	PassedCount    int
	FailedCount    int
	ScheduledCount int
}

// Stats contains aggregate database statistics.
type Stats struct {
	Accounts       int
	Trends         int
	Ideas          int
	DraftIdeas     int
	ApprovedIdeas  int
	ScheduledIdeas int
	ScheduledPosts int
	Posts          int
	Snapshots      int
	Runs           int
}
