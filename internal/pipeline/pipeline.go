// Package pipeline runs one content workflow invocation: rank trends, generate
// ideas, adapt them per platform, check compliance and suggest a schedule.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/SocialAgent/internal/adapt"
	"github.com/TobiSchelling/SocialAgent/internal/compliance"
	"github.com/TobiSchelling/SocialAgent/internal/content"
	"github.com/TobiSchelling/SocialAgent/internal/ideas"
	"github.com/TobiSchelling/SocialAgent/internal/rank"
	"github.com/TobiSchelling/SocialAgent/internal/schedule"
	"github.com/TobiSchelling/SocialAgent/internal/trends"
)

const stepCount = 6

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string `json:"name"`
	Summary string `json:"summary"`
}

// Request is the input of one workflow invocation.
type Request struct {
	Persona    string             `json:"persona"`
	BrandRules string             `json:"brand_rules"`
	Platforms  []content.Platform `json:"platforms"`
}

// Result is the output of one workflow invocation.
type Result struct {
	Ideas             []content.Idea          `json:"ideas"`
	RepurposedContent *content.Repurposed     `json:"repurposed_content"`
	ScheduledPosts    []content.ScheduledPost `json:"scheduled_posts"`
	TrendingContext   []content.TrendRecord   `json:"trending_context"`
	Steps             []StepResult            `json:"-"`
}

// Options configures a pipeline. Nil components get their defaults.
type Options struct {
	Source    trends.Source
	Query     trends.Query
	TopN      int
	Generator *ideas.Generator
	Adapter   *adapt.Adapter
	Guard     *compliance.Guard
	Suggester *schedule.Suggester
}

// Pipeline holds the stage components. It keeps no per-run state, so one
// value can serve concurrent invocations.
type Pipeline struct {
	source    trends.Source
	query     trends.Query
	topN      int
	generator *ideas.Generator
	adapter   *adapt.Adapter
	guard     *compliance.Guard
	suggester *schedule.Suggester
}

// New creates a pipeline.
func New(opts Options) *Pipeline {
	p := &Pipeline{
		source:    opts.Source,
		query:     opts.Query,
		topN:      opts.TopN,
		generator: opts.Generator,
		adapter:   opts.Adapter,
		guard:     opts.Guard,
		suggester: opts.Suggester,
	}
	if p.source == nil {
		p.source = trends.NewStaticSource(nil)
	}
	if p.topN <= 0 {
		p.topN = rank.DefaultTopN
	}
	if p.generator == nil {
		p.generator = ideas.NewGenerator(nil, nil)
	}
	if p.adapter == nil {
		p.adapter = adapt.New(adapt.DefaultPolicy())
	}
	if p.guard == nil {
		p.guard = compliance.NewGuard(nil, "")
	}
	if p.suggester == nil {
		p.suggester = schedule.NewSuggester(nil, "")
	}
	return p
}

// Normalize validates req and fills in default platforms. Duplicate platforms
// keep their first position.
func Normalize(req Request) (Request, error) {
	req.Persona = strings.TrimSpace(req.Persona)
	req.BrandRules = strings.TrimSpace(req.BrandRules)
	if req.Persona == "" {
		return req, fmt.Errorf("%w: persona is required", content.ErrInvalidRequest)
	}
	if req.BrandRules == "" {
		return req, fmt.Errorf("%w: brand_rules is required", content.ErrInvalidRequest)
	}
	if len(req.Platforms) == 0 {
		req.Platforms = content.DefaultPlatforms()
		return req, nil
	}
	seen := make(map[content.Platform]bool, len(req.Platforms))
	platforms := make([]content.Platform, 0, len(req.Platforms))
	for _, p := range req.Platforms {
		p = content.ParsePlatform(string(p))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		platforms = append(platforms, p)
	}
	if len(platforms) == 0 {
		platforms = content.DefaultPlatforms()
	}
	req.Platforms = platforms
	return req, nil
}

// Run executes the workflow. It returns either a complete result or an error,
// never both.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	req, err := Normalize(req)
	if err != nil {
		return nil, err
	}
	r := &Result{}

	// Step 1: Fetch trends
	log.Printf("Step 1/%d: Fetching trends from %s...", stepCount, p.source.Name())
	records, err := p.source.Fetch(ctx, p.query)
	if err != nil {
		return nil, fmt.Errorf("fetching trends: %w", err)
	}
	r.Steps = append(r.Steps, StepResult{Name: "Fetch", Summary: fmt.Sprintf("Fetched %d trend records", len(records))})

	// Step 2: Rank
	log.Printf("Step 2/%d: Ranking trends...", stepCount)
	r.TrendingContext = rank.Rank(records, p.topN)
	r.Steps = append(r.Steps, StepResult{Name: "Rank", Summary: fmt.Sprintf("Kept top %d of %d", len(r.TrendingContext), len(records))})

	// Step 3: Generate ideas
	log.Printf("Step 3/%d: Generating ideas...", stepCount)
	r.Ideas = p.generator.GenerateAll(ctx, r.TrendingContext, req.Persona, req.BrandRules)
	r.Steps = append(r.Steps, StepResult{Name: "Generate", Summary: fmt.Sprintf("Generated %d ideas", len(r.Ideas))})

	// Step 4: Adapt
	log.Printf("Step 4/%d: Adapting ideas for %d platforms...", stepCount, len(req.Platforms))
	r.RepurposedContent, err = p.adaptAll(ctx, r.Ideas, req.Platforms)
	if err != nil {
		return nil, fmt.Errorf("adapting content: %w", err)
	}
	r.Steps = append(r.Steps, StepResult{Name: "Adapt", Summary: fmt.Sprintf("Rendered %d platform items", r.RepurposedContent.Len())})

	// Step 5: Compliance
	log.Printf("Step 5/%d: Checking compliance...", stepCount)
	sum, err := p.guard.CheckAll(ctx, r.RepurposedContent)
	if err != nil {
		return nil, fmt.Errorf("checking compliance: %w", err)
	}
	r.Steps = append(r.Steps, StepResult{Name: "Compliance", Summary: fmt.Sprintf("%d passed, %d failed", sum.Passed, sum.Failed)})

	// Step 6: Schedule
	log.Printf("Step 6/%d: Suggesting schedule...", stepCount)
	r.ScheduledPosts = p.suggester.Suggest(r.RepurposedContent)
	r.Steps = append(r.Steps, StepResult{Name: "Schedule", Summary: fmt.Sprintf("Suggested %d posts", len(r.ScheduledPosts))})

	return r, nil
}

// adaptAll renders ideas for each platform in parallel. The result keeps the
// requested platform order.
func (p *Pipeline) adaptAll(ctx context.Context, ideaList []content.Idea, platforms []content.Platform) (*content.Repurposed, error) {
	rendered := make([][]content.PlatformContent, len(platforms))
	eg, ctx := errgroup.WithContext(ctx)
	for i, platform := range platforms {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rendered[i] = p.adapter.AdaptAll(ideaList, platform)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	out := content.NewRepurposed()
	for i, platform := range platforms {
		out.Add(platform, rendered[i]...)
	}
	return out, nil
}

// DryRun reports what Run would do without generating anything.
func (p *Pipeline) DryRun(ctx context.Context, req Request) (*Result, error) {
	req, err := Normalize(req)
	if err != nil {
		return nil, err
	}
	r := &Result{}

	records, err := p.source.Fetch(ctx, p.query)
	if err != nil {
		return nil, fmt.Errorf("fetching trends: %w", err)
	}
	top := rank.Rank(records, p.topN)
	names := make([]string, len(req.Platforms))
	for i, pl := range req.Platforms {
		names[i] = string(pl)
	}

	r.TrendingContext = top
	r.Steps = append(r.Steps,
		StepResult{Name: "Fetch", Summary: fmt.Sprintf("[dry-run] %d trend records available from %s", len(records), p.source.Name())},
		StepResult{Name: "Rank", Summary: fmt.Sprintf("[dry-run] Would keep top %d", len(top))},
		StepResult{Name: "Generate", Summary: fmt.Sprintf("[dry-run] Would generate %d ideas", len(top))},
		StepResult{Name: "Adapt", Summary: fmt.Sprintf("[dry-run] Would render %d items for %s", len(top)*len(names), strings.Join(names, ", "))},
		StepResult{Name: "Compliance", Summary: fmt.Sprintf("[dry-run] Would check against %d banned terms", len(p.guard.Terms()))},
		StepResult{Name: "Schedule", Summary: "[dry-run] Would suggest slots for passed content"},
	)
	return r, nil
}
