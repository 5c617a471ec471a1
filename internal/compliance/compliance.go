// Package compliance checks rendered content against a banned-term policy.
package compliance

import (
	"context"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/SocialAgent/internal/content"
)

// DefaultIssueText is recorded on content that fails the check.
const DefaultIssueText = "Contains banned terms"

// DefaultBannedTerms returns the stock banned-term list.
func DefaultBannedTerms() []string {
	return []string{"fake", "scam", "guaranteed", "instant", "get rich quick"}
}

// Guard marks content passed or failed. It holds no mutable state.
type Guard struct {
	terms []string
	issue string
}

// NewGuard creates a guard. A nil term list means DefaultBannedTerms; an empty
// non-nil list passes everything. Terms are matched case-insensitively.
func NewGuard(terms []string, issueText string) *Guard {
	if terms == nil {
		terms = DefaultBannedTerms()
	}
	if issueText == "" {
		issueText = DefaultIssueText
	}
	lowered := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			lowered = append(lowered, t)
		}
	}
	return &Guard{terms: lowered, issue: issueText}
}

// Terms returns the normalized banned terms.
func (g *Guard) Terms() []string {
	out := make([]string, len(g.terms))
	copy(out, g.terms)
	return out
}

// Check sets the compliance status of pc in place and returns it.
func (g *Guard) Check(pc *content.PlatformContent) *content.PlatformContent {
	caption := strings.ToLower(pc.Caption)
	for _, term := range g.terms {
		if strings.Contains(caption, term) {
			pc.ComplianceStatus = content.ComplianceFailed
			pc.ComplianceIssues = g.issue
			return pc
		}
	}
	pc.ComplianceStatus = content.CompliancePassed
	pc.ComplianceIssues = ""
	return pc
}

// Summary counts check outcomes.
type Summary struct {
	Passed int
	Failed int
}

// CheckAll checks every item of every platform exactly once, one goroutine
// per platform.
func (g *Guard) CheckAll(ctx context.Context, r *content.Repurposed) (Summary, error) {
	var passed, failed atomic.Int64
	eg, ctx := errgroup.WithContext(ctx)
	for _, p := range r.Platforms() {
		items := r.Items(p)
		eg.Go(func() error {
			for i := range items {
				if err := ctx.Err(); err != nil {
					return err
				}
				if g.Check(&items[i]).ComplianceStatus == content.CompliancePassed {
					passed.Add(1)
				} else {
					failed.Add(1)
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Summary{}, err
	}
	return Summary{Passed: int(passed.Load()), Failed: int(failed.Load())}, nil
}
