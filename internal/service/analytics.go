package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/TobiSchelling/SocialAgent/internal/content"
	"github.com/TobiSchelling/SocialAgent/internal/database"
	"github.com/TobiSchelling/SocialAgent/internal/publish"
)

// AnalyticsResult reports one metrics refresh over the stored posts.
type AnalyticsResult struct {
	Posts       int                                      `json:"posts"`
	Snapshots   int                                      `json:"snapshots"`
	Failed      int                                      `json:"failed"`
	ByPlatform  map[content.Platform]publish.PostMetrics `json:"by_platform"`
	Errors      []string                                 `json:"errors"`
	RefreshedAt string                                   `json:"refreshed_at"`
}

// RefreshAnalytics pulls current metrics for every published post and stores a
// snapshot of each. A post whose metrics cannot be read is reported in Errors
// and does not stop the run.
func (s *Service) RefreshAnalytics(ctx context.Context) (*AnalyticsResult, error) {
	if s.publisher == nil {
		return nil, ErrNoPublisher
	}
	posts, err := s.db.AllPosts()
	if err != nil {
		return nil, fmt.Errorf("loading posts: %w", err)
	}
	now := s.now()
	result := &AnalyticsResult{
		Posts:       len(posts),
		ByPlatform:  map[content.Platform]publish.PostMetrics{},
		Errors:      []string{},
		RefreshedAt: database.FormatTime(now),
	}
	log.Printf("Refreshing metrics for %d posts...", len(posts))

	for _, p := range posts {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		m, err := s.snapshotPost(ctx, p)
		s.metrics.ObserveSnapshot(string(p.Platform), err)
		if err != nil {
			log.Printf("Metrics for post %d failed: %v", p.ID, err)
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("post %d (%s): %v", p.ID, p.Platform, err))
			continue
		}
		total := result.ByPlatform[p.Platform]
		total.Add(*m)
		result.ByPlatform[p.Platform] = total
		result.Snapshots++
	}
	return result, nil
}

func (s *Service) snapshotPost(ctx context.Context, p database.Post) (*publish.PostMetrics, error) {
	postedAt, err := database.ParseTime(p.PostedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing posted_at %q: %w", p.PostedAt, err)
	}
	m, err := s.publisher.Metrics(ctx, p.Platform, p.ExternalID, postedAt)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.SaveSnapshot(p.ID, s.now(), raw); err != nil {
		return nil, fmt.Errorf("storing snapshot: %w", err)
	}
	return m, nil
}

// Analytics lists published posts with their latest stored metrics.
func (s *Service) Analytics(limit int) ([]database.Post, error) {
	posts, err := s.db.ListPosts(limit)
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []database.Post{}
	}
	return posts, nil
}

// PostHistory returns the metrics snapshots of one post, oldest first.
func (s *Service) PostHistory(postID int64) ([]database.MetricsSnapshot, error) {
	if _, err := s.db.GetPost(postID); err != nil {
		return nil, err
	}
	history, err := s.db.ListSnapshots(postID)
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = []database.MetricsSnapshot{}
	}
	return history, nil
}
