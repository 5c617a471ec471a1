package schedule

import (
	"strings"
	"testing"
	"time"

	"github.com/TobiSchelling/SocialAgent/internal/content"
)

func passed(id int64, p content.Platform) content.PlatformContent {
	return content.PlatformContent{IdeaID: id, Platform: p, ComplianceStatus: content.CompliancePassed}
}

func failed(id int64, p content.Platform) content.PlatformContent {
	return content.PlatformContent{IdeaID: id, Platform: p, ComplianceStatus: content.ComplianceFailed}
}

func times(posts []content.ScheduledPost) string {
	var out []string
	for _, p := range posts {
		out = append(out, p.SuggestedTime)
	}
	return strings.Join(out, ",")
}

func TestSuggestRoundRobin(t *testing.T) {
	r := content.NewRepurposed()
	for i := int64(1); i <= 4; i++ {
		r.Add(content.PlatformX, passed(i, content.PlatformX))
	}
	posts := NewSuggester(nil, "").Suggest(r)
	if got := times(posts); got != "09:00,12:00,17:00,09:00" {
		t.Errorf("unexpected times %s", got)
	}
	for i, p := range posts {
		if p.IdeaID != int64(i+1) {
			t.Errorf("post %d: expected idea %d, got %d", i, i+1, p.IdeaID)
		}
		if p.Status != content.PostSuggested {
			t.Errorf("post %d: expected suggested status", i)
		}
	}
}

func TestSuggestSkipsFailedContent(t *testing.T) {
	r := content.NewRepurposed()
	r.Add(content.PlatformInstagram,
		failed(1, content.PlatformInstagram),
		passed(2, content.PlatformInstagram),
		failed(3, content.PlatformInstagram),
		passed(4, content.PlatformInstagram),
	)
	posts := NewSuggester(nil, "").Suggest(r)
	if len(posts) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(posts))
	}
	if got := times(posts); got != "11:00,14:00" {
		t.Errorf("expected failed items excluded from index, got %s", got)
	}
	for _, p := range posts {
		if p.Content.ComplianceStatus != content.CompliancePassed {
			t.Errorf("scheduled non-passed content for idea %d", p.IdeaID)
		}
	}
}

func TestSuggestPlatformOrderAndLocalIndex(t *testing.T) {
	r := content.NewRepurposed()
	r.Add(content.PlatformLinkedIn, passed(1, content.PlatformLinkedIn), passed(2, content.PlatformLinkedIn))
	r.Add(content.PlatformX, passed(1, content.PlatformX))
	r.Add(content.Platform("tiktok"), passed(1, "tiktok"), passed(2, "tiktok"))

	posts := NewSuggester(nil, "").Suggest(r)
	if got := times(posts); got != "08:00,12:00,09:00,12:00,12:00" {
		t.Errorf("unexpected times %s", got)
	}
	if posts[0].Platform != content.PlatformLinkedIn || posts[2].Platform != content.PlatformX {
		t.Errorf("unexpected platform order")
	}
}

func TestSuggestCustomSlots(t *testing.T) {
	r := content.NewRepurposed()
	r.Add(content.PlatformX, passed(1, content.PlatformX), passed(2, content.PlatformX))
	r.Add(content.Platform("threads"), passed(1, "threads"))
	s := NewSuggester(map[content.Platform][]string{content.PlatformX: {"07:30"}}, "10:00")
	if got := times(s.Suggest(r)); got != "07:30,07:30,10:00" {
		t.Errorf("unexpected times %s", got)
	}
}

func TestSuggestEmpty(t *testing.T) {
	posts := NewSuggester(nil, "").Suggest(content.NewRepurposed())
	if posts == nil || len(posts) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", posts)
	}
}

func TestResolve(t *testing.T) {
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	got, err := Resolve("12:00", now, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("expected same day, got %v", got)
	}

	got, _ = Resolve("09:00", now, nil)
	if !got.Equal(time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("expected next day, got %v", got)
	}

	got, _ = Resolve("10:00", now, nil)
	if !got.Equal(time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("expected strictly after now, got %v", got)
	}

	loc := time.FixedZone("UTC+2", 2*3600)
	got, _ = Resolve("11:00", now, loc)
	if got.Hour() != 11 || got.Location() != loc || got.Day() != 11 {
		t.Errorf("expected 11:00 next day in zone, got %v", got)
	}
	got, _ = Resolve("13:00", now, loc)
	if got.Day() != 10 {
		t.Errorf("expected 13:00 same day in zone, got %v", got)
	}
}

func TestParseSlotErrors(t *testing.T) {
	for _, slot := range []string{"", "9", "24:00", "12:60", "ab:cd"} {
		if _, _, err := ParseSlot(slot); err == nil {
			t.Errorf("expected error for %q", slot)
		}
	}
	if err := ValidateSlots(map[content.Platform][]string{content.PlatformX: {"09:00", "bad"}}); err == nil {
		t.Error("expected validation error")
	}
}
