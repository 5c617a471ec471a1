package publish

import (
	"context"
	"errors"
	"hash/fnv"
	"time"

	"golang.org/x/oauth2"
)

// ErrUnknownPost is returned when a platform has no post with the given ID.
var ErrUnknownPost = errors.New("unknown post")

// maxGrowth caps how long a stub post keeps gathering engagement.
const maxGrowth = 72 * time.Hour

// PostMetrics are the engagement counters of one published post.
type PostMetrics struct {
	Impressions    int     `json:"impressions"`
	Reach          int     `json:"reach,omitempty"`
	Likes          int     `json:"likes"`
	Comments       int     `json:"comments"`
	Shares         int     `json:"shares"`
	Clicks         int     `json:"clicks,omitempty"`
	EngagementRate float64 `json:"engagement_rate"`
}

// Add accumulates o into m and recomputes the engagement rate.
func (m *PostMetrics) Add(o PostMetrics) {
	m.Impressions += o.Impressions
	m.Reach += o.Reach
	m.Likes += o.Likes
	m.Comments += o.Comments
	m.Shares += o.Shares
	m.Clicks += o.Clicks
	m.EngagementRate = engagementRate(*m)
}

func engagementRate(m PostMetrics) float64 {
	if m.Impressions == 0 {
		return 0
	}
	return float64(m.Likes+m.Comments+m.Shares) / float64(m.Impressions)
}

// stubMetrics derives stable counters from the post ID and grow with the
// post's age up to maxGrowth.
func stubMetrics(externalID string, postedAt, now time.Time) PostMetrics {
	h := fnv.New32a()
	h.Write([]byte(externalID))
	base := 100 + int(h.Sum32()%100)

	age := min(max(now.Sub(postedAt), 0), maxGrowth)
	impressions := base * (int(age.Hours()) + 1)
	m := PostMetrics{
		Impressions: impressions,
		Likes:       impressions / 25,
		Comments:    impressions / 200,
		Shares:      impressions / 400,
	}
	m.EngagementRate = engagementRate(m)
	return m
}

// Metrics implements Publisher.
func (c *XClient) Metrics(_ context.Context, _ *oauth2.Token, externalID string, postedAt time.Time) (*PostMetrics, error) {
	if externalID == "" {
		return nil, ErrUnknownPost
	}
	m := stubMetrics(externalID, postedAt, c.now())
	return &m, nil
}

// Metrics implements Publisher. Instagram insights also report reach.
func (c *InstagramClient) Metrics(_ context.Context, _ *oauth2.Token, externalID string, postedAt time.Time) (*PostMetrics, error) {
	if externalID == "" {
		return nil, ErrUnknownPost
	}
	m := stubMetrics(externalID, postedAt, c.now())
	m.Reach = m.Impressions * 78 / 100
	return &m, nil
}

// Metrics implements Publisher. LinkedIn share statistics also report clicks.
func (c *LinkedInClient) Metrics(_ context.Context, _ *oauth2.Token, externalID string, postedAt time.Time) (*PostMetrics, error) {
	if externalID == "" {
		return nil, ErrUnknownPost
	}
	m := stubMetrics(externalID, postedAt, c.now())
	m.Clicks = m.Impressions * 8 / 100
	return &m, nil
}
