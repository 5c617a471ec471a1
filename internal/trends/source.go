// Package trends supplies trend records from configured seeds, feeds and the
// local store.
package trends

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/TobiSchelling/SocialAgent/internal/content"
)

// Query narrows what a source returns. Zero values mean no restriction.
type Query struct {
	Topics      []string
	MaxPerTopic int
}

// Source fetches trend records. An empty result is not an error; errors are
// reserved for transport failures.
type Source interface {
	Name() string
	Fetch(ctx context.Context, q Query) ([]content.TrendRecord, error)
}

// MultiSource concatenates several sources in order.
type MultiSource struct {
	sources []Source
}

// NewMultiSource creates a source that reads from each of sources.
func NewMultiSource(sources ...Source) *MultiSource {
	return &MultiSource{sources: sources}
}

// Name implements Source.
func (m *MultiSource) Name() string {
	names := make([]string, 0, len(m.sources))
	for _, s := range m.sources {
		names = append(names, s.Name())
	}
	return strings.Join(names, "+")
}

// Fetch reads every source. Failing sources are logged and skipped; the call
// fails with content.ErrSourceUnavailable only when every source failed.
// Records without an ID are numbered after the highest ID seen.
func (m *MultiSource) Fetch(ctx context.Context, q Query) ([]content.TrendRecord, error) {
	if len(m.sources) == 0 {
		return []content.TrendRecord{}, nil
	}

	var all []content.TrendRecord
	var errs []error
	for _, s := range m.sources {
		records, err := s.Fetch(ctx, q)
		if err != nil {
			log.Printf("Trend source %s failed: %v", s.Name(), err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		log.Printf("Trend source %s returned %d records", s.Name(), len(records))
		all = append(all, records...)
	}
	if len(errs) == len(m.sources) {
		return nil, fmt.Errorf("%w: %w", content.ErrSourceUnavailable, errors.Join(errs...))
	}
	if all == nil {
		all = []content.TrendRecord{}
	}
	return assignIDs(all), nil
}

func assignIDs(records []content.TrendRecord) []content.TrendRecord {
	var maxID int64
	for _, r := range records {
		maxID = max(maxID, r.ID)
	}
	for i := range records {
		if records[i].ID == 0 {
			maxID++
			records[i].ID = maxID
		}
	}
	return records
}

func normalizeTopic(t string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(t), "#"))
}

// filter applies q to records, keeping input order.
func filter(records []content.TrendRecord, q Query) []content.TrendRecord {
	wanted := make(map[string]bool, len(q.Topics))
	for _, t := range q.Topics {
		if n := normalizeTopic(t); n != "" {
			wanted[n] = true
		}
	}
	perTopic := make(map[string]int)
	out := make([]content.TrendRecord, 0, len(records))
	for _, r := range records {
		key := normalizeTopic(r.Topic)
		if len(wanted) > 0 && !wanted[key] {
			continue
		}
		if q.MaxPerTopic > 0 && perTopic[key] >= q.MaxPerTopic {
			continue
		}
		perTopic[key]++
		out = append(out, r)
	}
	return out
}
