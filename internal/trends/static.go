package trends

import (
	"context"

	"github.com/TobiSchelling/SocialAgent/internal/content"
)

// StaticSource returns a fixed list of seed records.
type StaticSource struct {
	records []content.TrendRecord
}

// NewStaticSource creates a source over records. Records with a zero score are
// scored from their engagement.
func NewStaticSource(records []content.TrendRecord) *StaticSource {
	out := make([]content.TrendRecord, len(records))
	for i, r := range records {
		r.Source = content.ParsePlatform(string(r.Source))
		if r.Score == 0 {
			r.Score = EngagementScore(r.Source, r.Engagement)
		}
		out[i] = r
	}
	return &StaticSource{records: out}
}

// Name implements Source.
func (s *StaticSource) Name() string { return "static" }

// Fetch returns a copy of the seed records matching q.
func (s *StaticSource) Fetch(_ context.Context, q Query) ([]content.TrendRecord, error) {
	return filter(s.records, q), nil
}
