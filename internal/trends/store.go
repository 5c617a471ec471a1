package trends

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/TobiSchelling/SocialAgent/internal/content"
)

// TrendStore is the read side of the local trend table.
type TrendStore interface {
	RecentTrends(since time.Time, limit int) ([]content.TrendRecord, error)
}

// StoreSource replays trends captured by earlier refreshes.
type StoreSource struct {
	store  TrendStore
	window time.Duration
	limit  int
	now    func() time.Time
}

// NewStoreSource reads trends captured within window, at most limit of them.
func NewStoreSource(store TrendStore, window time.Duration, limit int) *StoreSource {
	if window <= 0 {
		window = 7 * 24 * time.Hour
	}
	if limit <= 0 {
		limit = 100
	}
	return &StoreSource{store: store, window: window, limit: limit, now: time.Now}
}

// Name implements Source.
func (s *StoreSource) Name() string { return "store" }

// Fetch implements Source.
func (s *StoreSource) Fetch(_ context.Context, q Query) ([]content.TrendRecord, error) {
	records, err := s.store.RecentTrends(s.now().Add(-s.window), s.limit)
	if err != nil {
		return nil, fmt.Errorf("reading stored trends: %w", err)
	}
	return filter(records, q), nil
}

// FallbackSource reads primary and turns to secondary only when primary has
// nothing or fails.
type FallbackSource struct {
	primary   Source
	secondary Source
}

// NewFallbackSource creates a FallbackSource.
func NewFallbackSource(primary, secondary Source) *FallbackSource {
	return &FallbackSource{primary: primary, secondary: secondary}
}

// Name implements Source.
func (f *FallbackSource) Name() string {
	return f.primary.Name() + "|" + f.secondary.Name()
}

// Fetch implements Source.
func (f *FallbackSource) Fetch(ctx context.Context, q Query) ([]content.TrendRecord, error) {
	records, err := f.primary.Fetch(ctx, q)
	if err == nil && len(records) > 0 {
		return records, nil
	}
	if err != nil {
		log.Printf("Trend source %s failed, using %s: %v", f.primary.Name(), f.secondary.Name(), err)
	}
	return f.secondary.Fetch(ctx, q)
}
