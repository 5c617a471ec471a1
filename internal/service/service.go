// Package service persists what the content pipeline produces and drives the
// approval, scheduling and publishing workflow around it.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/TobiSchelling/SocialAgent/internal/content"
	"github.com/TobiSchelling/SocialAgent/internal/database"
	"github.com/TobiSchelling/SocialAgent/internal/metrics"
	"github.com/TobiSchelling/SocialAgent/internal/pipeline"
	"github.com/TobiSchelling/SocialAgent/internal/publish"
	"github.com/TobiSchelling/SocialAgent/internal/schedule"
	"github.com/TobiSchelling/SocialAgent/internal/trends"
)

var (
	ErrIdeaNotFound  = errors.New("idea not found")
	ErrNotApproved   = errors.New("idea must be approved before scheduling")
	ErrNoPublisher   = errors.New("publishing is not configured")
	ErrNoTrendSource = errors.New("no trend source configured")

	// ErrNoPassedContent means the idea has no rendering for the platform
	// that passed compliance, so there is nothing that may be posted.
	ErrNoPassedContent = fmt.Errorf("%w: no compliance-passed content for platform", content.ErrInvalidRequest)
)

// DefaultBrand is used until a brand profile is saved.
func DefaultBrand() database.BrandProfile {
	return database.BrandProfile{
		Persona:         "Playful AI coach for creators",
		BrandRules:      "Be optimistic, include actionable advice, keep it concise.",
		DefaultHashtags: []string{"#AI", "#CreatorEconomy"},
	}
}

// Options configures a Service. Only Pipeline is required.
type Options struct {
	Pipeline  *pipeline.Pipeline
	Refresh   trends.Source
	Query     trends.Query
	Publisher *publish.Registry
	Suggester *schedule.Suggester
	Metrics   *metrics.Metrics
	Location  *time.Location
	Brand     *database.BrandProfile
}

// Service is safe for concurrent use; all state lives in the database.
type Service struct {
	db        *database.DB
	pipeline  *pipeline.Pipeline
	refresh   trends.Source
	query     trends.Query
	publisher *publish.Registry
	suggester *schedule.Suggester
	metrics   *metrics.Metrics
	loc       *time.Location
	brand     database.BrandProfile
	now       func() time.Time
}

// New creates a Service.
func New(db *database.DB, opts Options) *Service {
	s := &Service{
		db:        db,
		pipeline:  opts.Pipeline,
		refresh:   opts.Refresh,
		query:     opts.Query,
		publisher: opts.Publisher,
		suggester: opts.Suggester,
		metrics:   opts.Metrics,
		loc:       opts.Location,
		brand:     DefaultBrand(),
		now:       time.Now,
	}
	if s.pipeline == nil {
		s.pipeline = pipeline.New(pipeline.Options{})
	}
	if s.suggester == nil {
		s.suggester = schedule.NewSuggester(nil, "")
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if opts.Brand != nil {
		s.brand = *opts.Brand
	}
	return s
}

// RefreshResult reports a trend refresh.
type RefreshResult struct {
	Trends []content.TrendRecord `json:"trends"`
	Count  int                   `json:"count"`
}

// RefreshTrends fetches trends from the live sources and stores them. Records
// already stored under the same URL are updated in place.
func (s *Service) RefreshTrends(ctx context.Context) (*RefreshResult, error) {
	if s.refresh == nil {
		return nil, ErrNoTrendSource
	}
	log.Printf("Refreshing trends from %s...", s.refresh.Name())
	records, err := s.refresh.Fetch(ctx, s.query)
	if err != nil {
		return nil, fmt.Errorf("fetching trends: %w", err)
	}

	stored := make([]content.TrendRecord, 0, len(records))
	for _, r := range records {
		if r.CapturedAt.IsZero() {
			r.CapturedAt = s.now()
		}
		id, err := s.db.UpsertTrend(r)
		if err != nil {
			log.Printf("Failed to store trend %q: %v", r.Topic, err)
			continue
		}
		r.ID = id
		r.URL = database.TrendURL(r)
		stored = append(stored, r)
	}
	s.metrics.AddTrends(len(stored))
	log.Printf("Stored %d of %d trends", len(stored), len(records))
	return &RefreshResult{Trends: stored, Count: len(stored)}, nil
}

// GenerateResult is a pipeline result whose idea IDs refer to stored ideas.
type GenerateResult struct {
	RunID int64 `json:"run_id"`
	*pipeline.Result
}

// GenerateIdeas runs the pipeline and persists its output. An empty persona or
// brand rules falls back to the brand profile.
func (s *Service) GenerateIdeas(ctx context.Context, req pipeline.Request) (*GenerateResult, error) {
	if strings.TrimSpace(req.Persona) == "" || strings.TrimSpace(req.BrandRules) == "" {
		brand, err := s.Brand()
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(req.Persona) == "" {
			req.Persona = brand.Persona
		}
		if strings.TrimSpace(req.BrandRules) == "" {
			req.BrandRules = brand.BrandRules
		}
	}
	req, err := pipeline.Normalize(req)
	if err != nil {
		return nil, err
	}

	start := s.now()
	res, err := s.pipeline.Run(ctx, req)
	s.metrics.ObserveRun(err, s.now().Sub(start))
	if err != nil {
		return nil, err
	}
	s.metrics.AddIdeas(len(res.Ideas))

	passed, failed := 0, 0
	for _, p := range res.RepurposedContent.Platforms() {
		pp, pf := 0, 0
		for _, pc := range res.RepurposedContent.Items(p) {
			if pc.ComplianceStatus == content.CompliancePassed {
				pp++
			} else {
				pf++
			}
		}
		s.metrics.AddCompliance(string(p), pp, pf)
		passed += pp
		failed += pf
	}

	runID, ids, err := s.db.SaveRun(database.RunRecord{
		Persona:    req.Persona,
		BrandRules: req.BrandRules,
		Platforms:  req.Platforms,
		TrendCount: len(res.TrendingContext),
		Ideas:      res.Ideas,
		Content:    res.RepurposedContent,
		Suggested:  res.ScheduledPosts,
		Passed:     passed,
		Failed:     failed,
	})
	if err != nil {
		return nil, fmt.Errorf("saving run: %w", err)
	}
	remap(res, ids)
	log.Printf("Run %d: stored %d ideas, %d platform items, %d suggestions",
		runID, len(res.Ideas), res.RepurposedContent.Len(), len(res.ScheduledPosts))
	return &GenerateResult{RunID: runID, Result: res}, nil
}

// remap rewrites in-run idea IDs to their stored IDs.
func remap(res *pipeline.Result, ids map[int64]int64) {
	for i := range res.Ideas {
		res.Ideas[i].ID = ids[res.Ideas[i].ID]
	}
	for _, p := range res.RepurposedContent.Platforms() {
		items := res.RepurposedContent.Items(p)
		for i := range items {
			items[i].IdeaID = ids[items[i].IdeaID]
		}
	}
	for i := range res.ScheduledPosts {
		sp := &res.ScheduledPosts[i]
		sp.IdeaID = ids[sp.IdeaID]
		sp.Content.IdeaID = sp.IdeaID
	}
}

// ApproveIdea marks a stored idea approved.
func (s *Service) ApproveIdea(id int64) (*database.StoredIdea, error) {
	if err := s.db.SetIdeaStatus(id, content.IdeaApproved); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrIdeaNotFound, id)
		}
		return nil, err
	}
	return s.db.GetIdea(id)
}

// ScheduleRequest places an approved idea on a platform. At wins over Slot;
// without either the idea's suggested slot for the platform is used.
type ScheduleRequest struct {
	IdeaID   int64            `json:"idea_id"`
	Platform content.Platform `json:"platform"`
	Slot     string           `json:"slot,omitempty"`
	At       time.Time        `json:"scheduled_for,omitzero"`
	Timezone string           `json:"timezone,omitempty"`
}

// ScheduleIdea creates a schedule entry and moves the idea to scheduled.
func (s *Service) ScheduleIdea(req ScheduleRequest) (*database.ScheduleEntry, error) {
	idea, err := s.db.GetIdea(req.IdeaID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrIdeaNotFound, req.IdeaID)
	}
	if err != nil {
		return nil, err
	}
	if idea.Status != content.IdeaApproved && idea.Status != content.IdeaScheduled {
		return nil, ErrNotApproved
	}

	platform := content.ParsePlatform(string(req.Platform))
	if !platform.Known() {
		return nil, fmt.Errorf("%w: unknown platform %q", content.ErrInvalidRequest, req.Platform)
	}
	if _, err := s.passedContent(idea.ID, platform); err != nil {
		return nil, err
	}

	loc := s.loc
	if req.Timezone != "" {
		if loc, err = time.LoadLocation(req.Timezone); err != nil {
			return nil, fmt.Errorf("%w: %v", content.ErrInvalidRequest, err)
		}
	}

	at, slot := req.At, req.Slot
	if at.IsZero() {
		if slot == "" {
			slot = s.suggestedSlot(idea.ID, platform)
		}
		if at, err = schedule.Resolve(slot, s.now(), loc); err != nil {
			return nil, fmt.Errorf("%w: %v", content.ErrInvalidRequest, err)
		}
	} else if slot == "" {
		slot = at.In(loc).Format("15:04")
	}

	id, err := s.db.InsertSchedule(idea.ID, platform, slot, at, loc.String())
	if err != nil {
		return nil, fmt.Errorf("inserting schedule: %w", err)
	}
	if err := s.db.SetIdeaStatus(idea.ID, content.IdeaScheduled); err != nil {
		return nil, err
	}
	log.Printf("Scheduled idea %d on %s for %s", idea.ID, platform, at.In(loc).Format(time.RFC3339))
	return &database.ScheduleEntry{
		ID:           id,
		IdeaID:       idea.ID,
		Platform:     platform,
		Slot:         slot,
		ScheduledFor: database.FormatTime(at),
		Timezone:     loc.String(),
		Status:       database.ScheduleScheduled,
	}, nil
}

func (s *Service) suggestedSlot(ideaID int64, p content.Platform) string {
	if suggestions, err := s.db.GetSuggestions(ideaID); err == nil {
		for _, e := range suggestions {
			if e.Platform == p && e.Slot != "" {
				return e.Slot
			}
		}
	}
	if slots := s.suggester.Slots(p); len(slots) > 0 {
		return slots[0]
	}
	return schedule.DefaultFallbackSlot
}

// PublishResult reports one publisher run.
type PublishResult struct {
	Due       int             `json:"due"`
	Published int             `json:"published"`
	Failed    int             `json:"failed"`
	Posts     []database.Post `json:"posts"`
	Errors    []string        `json:"errors"`
}

// RunPublisher publishes every due schedule entry. Individual failures are
// recorded on the entry and do not stop the run.
func (s *Service) RunPublisher(ctx context.Context) (*PublishResult, error) {
	if s.publisher == nil {
		return nil, ErrNoPublisher
	}
	due, err := s.db.DueSchedule(s.now())
	if err != nil {
		return nil, fmt.Errorf("loading due schedule: %w", err)
	}
	result := &PublishResult{Due: len(due), Posts: []database.Post{}, Errors: []string{}}
	log.Printf("Publishing %d due posts...", len(due))

	for _, entry := range due {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		post, err := s.publishEntry(ctx, entry)
		s.metrics.ObservePublish(string(entry.Platform), err)
		if err != nil {
			log.Printf("Publishing schedule entry %d failed: %v", entry.ID, err)
			if markErr := s.db.MarkFailed(entry.ID, err.Error()); markErr != nil {
				log.Printf("Failed to mark entry %d: %v", entry.ID, markErr)
			}
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("entry %d (%s): %v", entry.ID, entry.Platform, err))
			continue
		}
		result.Published++
		result.Posts = append(result.Posts, *post)
	}
	return result, nil
}

func (s *Service) publishEntry(ctx context.Context, entry database.ScheduleEntry) (*database.Post, error) {
	pc, err := s.passedContent(entry.IdeaID, entry.Platform)
	if err != nil {
		return nil, err
	}
	post := publish.Post{Platform: entry.Platform, Caption: pc.Caption, Hashtags: pc.Hashtags}

	receipt, err := s.publisher.Publish(ctx, post)
	if err != nil {
		return nil, err
	}
	postID, err := s.db.InsertPost(entry.IdeaID, entry.Platform, receipt.ExternalID, receipt.Permalink)
	if err != nil {
		return nil, fmt.Errorf("storing post: %w", err)
	}
	if err := s.db.MarkPublished(entry.ID, postID); err != nil {
		return nil, fmt.Errorf("marking published: %w", err)
	}
	return &database.Post{
		ID:         postID,
		IdeaID:     entry.IdeaID,
		Platform:   entry.Platform,
		ExternalID: receipt.ExternalID,
		Permalink:  receipt.Permalink,
		PostedAt:   database.FormatTime(receipt.PostedAt),
	}, nil
}

// passedContent returns the stored rendering of an idea for platform. Only
// content that passed compliance may be scheduled or published.
func (s *Service) passedContent(ideaID int64, p content.Platform) (*database.StoredContent, error) {
	pc, err := s.db.GetContent(ideaID, p)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: idea %d was not generated for %s", ErrNoPassedContent, ideaID, p)
	}
	if err != nil {
		return nil, err
	}
	if pc.ComplianceStatus != content.CompliancePassed {
		return nil, fmt.Errorf("%w: %s content of idea %d is %s (%s)", ErrNoPassedContent, p, ideaID, pc.ComplianceStatus, pc.ComplianceIssues)
	}
	return pc, nil
}

// Brand returns the stored brand profile or the default one.
func (s *Service) Brand() (*database.BrandProfile, error) {
	p, err := s.db.GetBrandProfile()
	if errors.Is(err, database.ErrNotFound) {
		b := s.brand
		b.DefaultHashtags = append([]string(nil), s.brand.DefaultHashtags...)
		return &b, nil
	}
	return p, err
}

// UpdateBrand validates and stores the brand profile.
func (s *Service) UpdateBrand(p database.BrandProfile) (*database.BrandProfile, error) {
	p.Persona = strings.TrimSpace(p.Persona)
	p.BrandRules = strings.TrimSpace(p.BrandRules)
	if p.Persona == "" || p.BrandRules == "" {
		return nil, fmt.Errorf("%w: persona and brand_rules are required", content.ErrInvalidRequest)
	}
	if err := s.db.UpsertBrandProfile(p); err != nil {
		return nil, fmt.Errorf("saving brand profile: %w", err)
	}
	return s.db.GetBrandProfile()
}
