package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/TobiSchelling/SocialAgent/internal/content"
	"github.com/TobiSchelling/SocialAgent/internal/database"
	"github.com/TobiSchelling/SocialAgent/internal/metrics"
	"github.com/TobiSchelling/SocialAgent/internal/pipeline"
	"github.com/TobiSchelling/SocialAgent/internal/publish"
	"github.com/TobiSchelling/SocialAgent/internal/trends"
)

var testNow = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

type failingSource struct{}

func (failingSource) Name() string { return "broken" }
func (failingSource) Fetch(context.Context, trends.Query) ([]content.TrendRecord, error) {
	return nil, errors.New("connection refused")
}

type mockCreds struct{ err error }

func (m mockCreds) Credential(context.Context, string, content.Platform) (*oauth2.Token, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &oauth2.Token{AccessToken: "token"}, nil
}

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedSource() trends.Source {
	return trends.NewStaticSource([]content.TrendRecord{
		{ID: 1, Source: content.PlatformLinkedIn, Topic: "#AI", Text: "AI agents are revolutionizing content creation workflows", Author: "TechInfluencer",
			Engagement: content.Engagement{Likes: 150, Comments: 25, Shares: 30}, Score: 0.85},
		{ID: 2, Source: content.PlatformX, Topic: "#CreatorEconomy", Text: "The creator economy is booming with new AI-powered tools", Author: "CreatorExpert",
			Engagement: content.Engagement{Likes: 200, Comments: 40, Shares: 50}, Score: 0.92},
		{ID: 3, Source: content.PlatformInstagram, Topic: "#SocialMedia", Text: "Social media strategies that actually work in 2024", Author: "SocialMediaGuru",
			Engagement: content.Engagement{Likes: 300, Comments: 60, Shares: 25}, Score: 0.78},
	})
}

func newTestService(t *testing.T, creds publish.CredentialSource) (*Service, *database.DB) {
	t.Helper()
	return newServiceWithSource(t, creds, seedSource())
}

func newServiceWithSource(t *testing.T, creds publish.CredentialSource, src trends.Source) (*Service, *database.DB) {
	t.Helper()
	db := openTestDB(t)
	s := New(db, Options{
		Pipeline:  pipeline.New(pipeline.Options{Source: src}),
		Refresh:   src,
		Publisher: publish.NewRegistry(creds, "demo-user"),
		Metrics:   metrics.New("test"),
	})
	s.now = func() time.Time { return testNow }
	return s, db
}

func request(platforms ...content.Platform) pipeline.Request {
	return pipeline.Request{Persona: "AI content creator", BrandRules: "Be authentic and helpful", Platforms: platforms}
}

func TestRefreshTrendsStoresAndDedups(t *testing.T) {
	s, db := newTestService(t, mockCreds{})
	res, err := s.RefreshTrends(context.Background())
	if err != nil {
		t.Fatalf("RefreshTrends: %v", err)
	}
	if res.Count != 3 || res.Trends[0].URL == "" {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, err := s.RefreshTrends(context.Background()); err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	stored, _ := db.ListTrends(0, 0)
	if len(stored) != 3 {
		t.Errorf("expected 3 stored trends after two refreshes, got %d", len(stored))
	}
	if stored[0].Topic != "#CreatorEconomy" {
		t.Errorf("expected best score first, got %q", stored[0].Topic)
	}
}

func TestRefreshWithoutSource(t *testing.T) {
	s := New(openTestDB(t), Options{})
	if _, err := s.RefreshTrends(context.Background()); !errors.Is(err, ErrNoTrendSource) {
		t.Errorf("expected ErrNoTrendSource, got %v", err)
	}
}

func TestGenerateIdeasPersistsRun(t *testing.T) {
	s, db := newTestService(t, mockCreds{})
	res, err := s.GenerateIdeas(context.Background(), request(content.PlatformX, content.PlatformLinkedIn))
	if err != nil {
		t.Fatalf("GenerateIdeas: %v", err)
	}
	if res.RunID == 0 || len(res.Ideas) != 3 {
		t.Fatalf("unexpected result run=%d ideas=%d", res.RunID, len(res.Ideas))
	}

	for _, idea := range res.Ideas {
		stored, err := db.GetIdea(idea.ID)
		if err != nil {
			t.Fatalf("idea %d not stored: %v", idea.ID, err)
		}
		if stored.TrendID != idea.TrendID || stored.Caption != idea.Caption {
			t.Errorf("stored idea %d differs from result", idea.ID)
		}
	}
	for _, sp := range res.ScheduledPosts {
		if sp.Content.IdeaID != sp.IdeaID {
			t.Errorf("scheduled post content not remapped: %d vs %d", sp.Content.IdeaID, sp.IdeaID)
		}
	}

	items, _ := db.GetIdeaContent(res.Ideas[0].ID)
	if len(items) != 2 {
		t.Errorf("expected 2 platform items, got %d", len(items))
	}
	sugg, _ := db.GetSuggestions(res.Ideas[0].ID)
	if len(sugg) != 2 {
		t.Errorf("expected 2 suggestions, got %d", len(sugg))
	}

	last, _ := db.GetLastRun()
	if last == nil || last.PassedCount != 6 || last.ScheduledCount != 6 || last.TrendCount != 3 {
		t.Errorf("unexpected run report %+v", last)
	}
}

func TestGenerateIdeasUsesBrandProfile(t *testing.T) {
	s, db := newTestService(t, mockCreds{})
	if _, err := s.GenerateIdeas(context.Background(), pipeline.Request{}); err != nil {
		t.Fatalf("GenerateIdeas: %v", err)
	}
	last, _ := db.GetLastRun()
	if last.Persona != DefaultBrand().Persona {
		t.Errorf("expected default persona, got %q", last.Persona)
	}

	if _, err := s.UpdateBrand(database.BrandProfile{Persona: "Growth mentor", BrandRules: "No hype"}); err != nil {
		t.Fatalf("UpdateBrand: %v", err)
	}
	if _, err := s.GenerateIdeas(context.Background(), pipeline.Request{}); err != nil {
		t.Fatalf("GenerateIdeas: %v", err)
	}
	last, _ = db.GetLastRun()
	if last.Persona != "Growth mentor" {
		t.Errorf("expected stored persona, got %q", last.Persona)
	}
}

func TestGenerateIdeasSourceFailure(t *testing.T) {
	db := openTestDB(t)
	s := New(db, Options{Pipeline: pipeline.New(pipeline.Options{Source: trends.NewMultiSource(failingSource{})})})
	_, err := s.GenerateIdeas(context.Background(), request())
	if !errors.Is(err, content.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
	if last, _ := db.GetLastRun(); last != nil {
		t.Error("failed run must not be stored")
	}
}

func TestApproveAndSchedule(t *testing.T) {
	s, db := newTestService(t, mockCreds{})
	res, _ := s.GenerateIdeas(context.Background(), request(content.PlatformX, content.PlatformLinkedIn))
	id := res.Ideas[0].ID

	if _, err := s.ScheduleIdea(ScheduleRequest{IdeaID: id, Platform: content.PlatformX}); !errors.Is(err, ErrNotApproved) {
		t.Fatalf("expected ErrNotApproved, got %v", err)
	}
	if _, err := s.ApproveIdea(9999); !errors.Is(err, ErrIdeaNotFound) {
		t.Errorf("expected ErrIdeaNotFound, got %v", err)
	}
	idea, err := s.ApproveIdea(id)
	if err != nil || idea.Status != content.IdeaApproved {
		t.Fatalf("ApproveIdea: %v %+v", err, idea)
	}

	entry, err := s.ScheduleIdea(ScheduleRequest{IdeaID: id, Platform: "X"})
	if err != nil {
		t.Fatalf("ScheduleIdea: %v", err)
	}
	// First x suggestion is 09:00, already past at 10:00 so it rolls to tomorrow.
	if entry.Slot != "09:00" || entry.ScheduledFor != "2026-05-02 09:00:00" {
		t.Errorf("unexpected entry %+v", entry)
	}
	stored, _ := db.GetIdea(id)
	if stored.Status != content.IdeaScheduled {
		t.Errorf("expected scheduled status, got %s", stored.Status)
	}

	if _, err := s.ScheduleIdea(ScheduleRequest{IdeaID: id, Platform: content.PlatformLinkedIn, Slot: "11:30"}); err != nil {
		t.Errorf("scheduled ideas can be placed on more platforms: %v", err)
	}
	if _, err := s.ScheduleIdea(ScheduleRequest{IdeaID: id, Platform: "tiktok"}); !errors.Is(err, content.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
	if _, err := s.ScheduleIdea(ScheduleRequest{IdeaID: id, Platform: content.PlatformX, Slot: "noon"}); !errors.Is(err, content.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for bad slot, got %v", err)
	}
}

func TestScheduleRequiresPassedContent(t *testing.T) {
	src := trends.NewStaticSource([]content.TrendRecord{
		{ID: 1, Source: content.PlatformX, Topic: "#Money", Text: "Guaranteed instant returns, get rich quick", Author: "Spammer", Score: 0.9},
	})
	s, _ := newServiceWithSource(t, mockCreds{}, src)
	res, err := s.GenerateIdeas(context.Background(), request(content.PlatformX))
	if err != nil {
		t.Fatalf("GenerateIdeas: %v", err)
	}
	if got := res.RepurposedContent.Items(content.PlatformX)[0].ComplianceStatus; got != content.ComplianceFailed {
		t.Fatalf("expected failed x content, got %s", got)
	}
	id := res.Ideas[0].ID
	if _, err := s.ApproveIdea(id); err != nil {
		t.Fatalf("ApproveIdea: %v", err)
	}

	tests := []struct {
		name     string
		platform content.Platform
	}{
		{"failed compliance", content.PlatformX},
		{"not generated for platform", content.PlatformLinkedIn},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.ScheduleIdea(ScheduleRequest{IdeaID: id, Platform: tt.platform, At: testNow.Add(-time.Minute)})
			if !errors.Is(err, ErrNoPassedContent) || !errors.Is(err, content.ErrInvalidRequest) {
				t.Errorf("expected ErrNoPassedContent, got %v", err)
			}
		})
	}
}

func TestRunPublisherSkipsUncheckedContent(t *testing.T) {
	src := trends.NewStaticSource([]content.TrendRecord{
		{ID: 1, Source: content.PlatformX, Topic: "#Money", Text: "Guaranteed instant returns, get rich quick", Author: "Spammer", Score: 0.9},
	})
	s, db := newServiceWithSource(t, mockCreds{}, src)
	res, _ := s.GenerateIdeas(context.Background(), request(content.PlatformX))
	id := res.Ideas[0].ID
	s.ApproveIdea(id)

	// Entries written outside ScheduleIdea: one for failed content and one
	// for a platform the idea was never rendered for.
	past := testNow.Add(-time.Minute)
	if _, err := db.InsertSchedule(id, content.PlatformX, "09:00", past, "UTC"); err != nil {
		t.Fatalf("InsertSchedule: %v", err)
	}
	if _, err := db.InsertSchedule(id, content.PlatformLinkedIn, "09:00", past, "UTC"); err != nil {
		t.Fatalf("InsertSchedule: %v", err)
	}

	out, err := s.RunPublisher(context.Background())
	if err != nil {
		t.Fatalf("RunPublisher: %v", err)
	}
	if out.Due != 2 || out.Published != 0 || out.Failed != 2 {
		t.Fatalf("expected both entries to fail, got %+v", out)
	}
	if posts, _ := db.ListPosts(0); len(posts) != 0 {
		t.Errorf("expected no posts, got %d", len(posts))
	}
}

func TestRunPublisher(t *testing.T) {
	s, db := newTestService(t, mockCreds{})
	res, _ := s.GenerateIdeas(context.Background(), request(content.PlatformX, content.PlatformLinkedIn))
	id := res.Ideas[0].ID
	s.ApproveIdea(id)

	if _, err := s.ScheduleIdea(ScheduleRequest{IdeaID: id, Platform: content.PlatformX, At: testNow.Add(-time.Minute)}); err != nil {
		t.Fatalf("ScheduleIdea: %v", err)
	}
	if _, err := s.ScheduleIdea(ScheduleRequest{IdeaID: id, Platform: content.PlatformLinkedIn, At: testNow.Add(time.Hour)}); err != nil {
		t.Fatalf("ScheduleIdea: %v", err)
	}

	out, err := s.RunPublisher(context.Background())
	if err != nil {
		t.Fatalf("RunPublisher: %v", err)
	}
	if out.Due != 1 || out.Published != 1 || out.Failed != 0 {
		t.Fatalf("unexpected publish result %+v", out)
	}
	if out.Posts[0].Platform != content.PlatformX || out.Posts[0].ExternalID == "" {
		t.Errorf("unexpected post %+v", out.Posts[0])
	}
	published, _ := db.ListSchedule(database.SchedulePublished)
	if len(published) != 1 {
		t.Errorf("expected 1 published entry, got %d", len(published))
	}

	again, _ := s.RunPublisher(context.Background())
	if again.Due != 0 {
		t.Errorf("published entries must not be due again, got %d", again.Due)
	}
}

func TestRunPublisherRecordsFailures(t *testing.T) {
	s, db := newTestService(t, mockCreds{err: errors.New("account not connected")})
	res, _ := s.GenerateIdeas(context.Background(), request(content.PlatformX))
	id := res.Ideas[0].ID
	s.ApproveIdea(id)
	s.ScheduleIdea(ScheduleRequest{IdeaID: id, Platform: content.PlatformX, At: testNow.Add(-time.Minute)})

	out, err := s.RunPublisher(context.Background())
	if err != nil {
		t.Fatalf("RunPublisher: %v", err)
	}
	if out.Failed != 1 || len(out.Errors) != 1 {
		t.Fatalf("unexpected result %+v", out)
	}
	failed, _ := db.ListSchedule(database.ScheduleFailed)
	if len(failed) != 1 || failed[0].Error == nil {
		t.Errorf("expected failed entry with error, got %+v", failed)
	}
}

func TestBrand(t *testing.T) {
	s, _ := newTestService(t, mockCreds{})
	b, err := s.Brand()
	if err != nil || b.Persona != "Playful AI coach for creators" || len(b.DefaultHashtags) != 2 {
		t.Fatalf("unexpected default brand %+v %v", b, err)
	}
	if _, err := s.UpdateBrand(database.BrandProfile{Persona: " "}); !errors.Is(err, content.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
	updated, err := s.UpdateBrand(database.BrandProfile{Persona: "Coach", BrandRules: "Short", DefaultHashtags: []string{"#Go"}})
	if err != nil || updated.Persona != "Coach" || updated.DefaultHashtags[0] != "#Go" {
		t.Errorf("unexpected update %+v %v", updated, err)
	}
}
