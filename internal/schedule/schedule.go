// Package schedule suggests posting slots for compliant content.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/TobiSchelling/SocialAgent/internal/content"
)

// DefaultFallbackSlot is used for platforms without a slot table.
const DefaultFallbackSlot = "12:00"

// DefaultSlots returns the stock time-of-day table.
func DefaultSlots() map[content.Platform][]string {
	return map[content.Platform][]string{
		content.PlatformX:         {"09:00", "12:00", "17:00"},
		content.PlatformInstagram: {"11:00", "14:00", "19:00"},
		content.PlatformLinkedIn:  {"08:00", "12:00", "17:00"},
	}
}

// Suggester assigns round-robin slots per platform.
type Suggester struct {
	slots    map[content.Platform][]string
	fallback []string
}

// NewSuggester creates a suggester. Platforms missing from slots use the
// defaults; an empty fallback means DefaultFallbackSlot.
func NewSuggester(slots map[content.Platform][]string, fallback string) *Suggester {
	merged := DefaultSlots()
	for p, times := range slots {
		if len(times) > 0 {
			merged[p] = append([]string(nil), times...)
		}
	}
	if fallback == "" {
		fallback = DefaultFallbackSlot
	}
	return &Suggester{slots: merged, fallback: []string{fallback}}
}

// Slots returns the slot list used for platform p.
func (s *Suggester) Slots(p content.Platform) []string {
	if times, ok := s.slots[p]; ok {
		return times
	}
	return s.fallback
}

// Suggest returns one scheduled post per passed item, in platform insertion
// order then content order. The slot index counts passed items only.
func (s *Suggester) Suggest(r *content.Repurposed) []content.ScheduledPost {
	posts := make([]content.ScheduledPost, 0, r.Len())
	for _, p := range r.Platforms() {
		times := s.Slots(p)
		i := 0
		for _, pc := range r.Items(p) {
			if pc.ComplianceStatus != content.CompliancePassed {
				continue
			}
			posts = append(posts, content.ScheduledPost{
				IdeaID:        pc.IdeaID,
				Platform:      p,
				Content:       clone(pc),
				SuggestedTime: times[i%len(times)],
				Status:        content.PostSuggested,
			})
			i++
		}
	}
	return posts
}

func clone(pc content.PlatformContent) content.PlatformContent {
	if pc.Hashtags != nil {
		pc.Hashtags = append([]string(nil), pc.Hashtags...)
	}
	return pc
}

// ParseSlot parses an "HH:MM" time-of-day.
func ParseSlot(slot string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(strings.TrimSpace(slot), ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid slot %q: want HH:MM", slot)
	}
	hour, err = strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in slot %q", slot)
	}
	minute, err = strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in slot %q", slot)
	}
	return hour, minute, nil
}

// Resolve returns the next occurrence of slot strictly after now, in loc.
// A nil loc means UTC.
func Resolve(slot string, now time.Time, loc *time.Location) (time.Time, error) {
	hour, minute, err := ParseSlot(slot)
	if err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	t := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !t.After(local) {
		t = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, loc)
	}
	return t, nil
}

// ValidateSlots checks every slot in a table.
func ValidateSlots(slots map[content.Platform][]string) error {
	for p, times := range slots {
		for _, slot := range times {
			if _, _, err := ParseSlot(slot); err != nil {
				return fmt.Errorf("platform %s: %w", p, err)
			}
		}
	}
	return nil
}
