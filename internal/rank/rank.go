// Package rank orders trend records by score.
package rank

import (
	"cmp"
	"slices"

	"github.com/TobiSchelling/SocialAgent/internal/content"
)

// DefaultTopN is the number of trends kept when no limit is given.
const DefaultTopN = 5

// Rank returns the topN highest-scoring records. Records with equal scores
// keep their input order. The input slice is not modified.
func Rank(records []content.TrendRecord, topN int) []content.TrendRecord {
	if topN <= 0 {
		topN = DefaultTopN
	}
	ranked := slices.Clone(records)
	if ranked == nil {
		return []content.TrendRecord{}
	}
	slices.SortStableFunc(ranked, func(a, b content.TrendRecord) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}
