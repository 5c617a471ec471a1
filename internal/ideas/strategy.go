package ideas

import (
	"context"
	"fmt"
	"strings"

	"github.com/TobiSchelling/SocialAgent/internal/content"
	"github.com/TobiSchelling/SocialAgent/internal/llm"
)

// CaptionStrategy produces a caption for a trend.
type CaptionStrategy interface {
	Caption(ctx context.Context, trend content.TrendRecord, persona, brandRules string) (string, error)
}

// TemplateStrategy renders one of three fixed caption templates. It never fails.
type TemplateStrategy struct{}

// Caption picks the template by topic: AI first, then CreatorEconomy, then a
// generic one.
func (TemplateStrategy) Caption(_ context.Context, trend content.TrendRecord, persona, brandRules string) (string, error) {
	switch {
	case strings.Contains(trend.Topic, "AI"):
		return fmt.Sprintf("🤖 AI is transforming how we create content!\n\n%s\n\nAs a %s, I believe this trend shows us that the future of content creation is here. %s\n\nWhat's your experience with AI tools? Share below! 👇",
			trend.Text, persona, brandRules), nil
	case strings.Contains(trend.Topic, "CreatorEconomy"):
		return fmt.Sprintf("💰 The creator economy is evolving fast!\n\n%s\n\nThis aligns perfectly with my role as a %s. %s\n\nHow are you adapting to these changes? Let's discuss! 💬",
			trend.Text, persona, brandRules), nil
	default:
		return fmt.Sprintf("📱 %s insights you need to know:\n\n%s\n\nAs a %s, I'm excited about these developments. %s\n\nWhat are your thoughts? Drop a comment! 👇",
			trend.Topic, trend.Text, persona, brandRules), nil
	}
}

const captionPrompt = `Persona: %s
Brand rules: %s

Create a social media post idea based on the trending topic below.
Make it engaging, actionable, and aligned with the brand persona.

Trending topic: %s
Create content based on this trend: %s

Respond with ONLY this JSON:
{
    "caption": "The full post caption"
}`

// LLMStrategy asks a text-generation provider for the caption.
type LLMStrategy struct {
	provider  llm.Provider
	maxTokens int
}

// NewLLMStrategy creates a strategy backed by provider, which may be nil.
func NewLLMStrategy(provider llm.Provider, maxTokens int) *LLMStrategy {
	if maxTokens <= 0 {
		maxTokens = 512
	}
	return &LLMStrategy{provider: provider, maxTokens: maxTokens}
}

// Caption returns content.ErrGenerationUnavailable when no provider is
// configured, the call fails, or the response is empty.
func (s *LLMStrategy) Caption(ctx context.Context, trend content.TrendRecord, persona, brandRules string) (string, error) {
	if s == nil || s.provider == nil {
		return "", content.ErrGenerationUnavailable
	}

	prompt := fmt.Sprintf(captionPrompt, persona, brandRules, trend.Topic, trend.Text)
	responseText, err := s.provider.Generate(ctx, prompt, s.maxTokens)
	if err != nil {
		return "", fmt.Errorf("%w: %v", content.ErrGenerationUnavailable, err)
	}

	caption := strings.TrimSpace(responseText)
	if parsed := llm.ParseJSONResponse(responseText); parsed != nil {
		caption = strings.TrimSpace(llm.String(parsed, "caption", ""))
	}
	if caption == "" {
		return "", fmt.Errorf("%w: empty response", content.ErrGenerationUnavailable)
	}
	return caption, nil
}
