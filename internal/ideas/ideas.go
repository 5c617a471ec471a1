// Package ideas turns ranked trends into draft content ideas.
package ideas

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/TobiSchelling/SocialAgent/internal/content"
)

const summaryLimit = 200

// DefaultGenericHashtags follow the trend topic on every idea.
var DefaultGenericHashtags = []string{"#ContentCreation", "#SocialMedia", "#AI", "#CreatorEconomy"}

// Generator builds ideas using a caption strategy with a template fallback.
type Generator struct {
	strategy CaptionStrategy
	fallback TemplateStrategy
	tags     []string
}

// NewGenerator creates a generator. A nil strategy means templates only; a nil
// or empty tag list means DefaultGenericHashtags.
func NewGenerator(strategy CaptionStrategy, genericTags []string) *Generator {
	if strategy == nil {
		strategy = TemplateStrategy{}
	}
	if len(genericTags) == 0 {
		genericTags = DefaultGenericHashtags
	}
	tags := make([]string, len(genericTags))
	copy(tags, genericTags)
	return &Generator{strategy: strategy, tags: tags}
}

// Generate builds the idea for the trend at position index of the ranked list.
// Caption failures fall back to the template and are only logged.
func (g *Generator) Generate(ctx context.Context, trend content.TrendRecord, persona, brandRules string, index int) content.Idea {
	caption, err := g.strategy.Caption(ctx, trend, persona, brandRules)
	if err != nil || caption == "" {
		log.Printf("Caption generation failed for trend %d, using template: %v", trend.ID, err)
		caption, _ = g.fallback.Caption(ctx, trend, persona, brandRules)
	}

	hashtags := make([]string, 0, len(g.tags)+1)
	if topic := strings.TrimSpace(trend.Topic); topic != "" {
		hashtags = append(hashtags, topic)
	}
	hashtags = append(hashtags, g.tags...)

	return content.Idea{
		ID:       int64(index + 1),
		TrendID:  trend.ID,
		Title:    fmt.Sprintf("Content idea: %s", trend.Topic),
		Summary:  truncateRunes(caption, summaryLimit) + "...",
		Hook:     fmt.Sprintf("Transform your strategy with %s", trend.Topic),
		Caption:  caption,
		Hashtags: hashtags,
		AIType:   "text",
		Status:   content.IdeaDraft,
	}
}

// GenerateAll builds one idea per ranked trend, in order.
func (g *Generator) GenerateAll(ctx context.Context, trends []content.TrendRecord, persona, brandRules string) []content.Idea {
	out := make([]content.Idea, 0, len(trends))
	for i, trend := range trends {
		out = append(out, g.Generate(ctx, trend, persona, brandRules, i))
	}
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
