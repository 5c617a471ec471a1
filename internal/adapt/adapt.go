// Package adapt renders generic ideas into platform-specific content.
package adapt

import (
	"slices"

	"github.com/TobiSchelling/SocialAgent/internal/content"
)

const (
	xCharacterLimit = 280
	xTruncateAbove  = 250
	xTruncateTo     = 247
	xHashtagCount   = 3

	instagramSuffix = "\n\n✨ What's your experience with this? Share in the comments!"
	linkedInPrefix  = "Professional insight: "
	linkedInSuffix  = "\n\nWhat are your thoughts on this trend? Let's discuss in the comments."
)

// Policy holds the configurable hashtag rules.
type Policy struct {
	InstagramTags       []string
	LinkedInAllowedTags []string
}

// DefaultPolicy returns the stock hashtag rules.
func DefaultPolicy() Policy {
	return Policy{
		InstagramTags:       []string{"#Instagram", "#Reels", "#ContentStrategy"},
		LinkedInAllowedTags: []string{"#AI", "#CreatorEconomy", "#ContentCreation"},
	}
}

type renderFunc func(Policy, content.Idea, *content.PlatformContent)

var renderers = map[content.Platform]renderFunc{
	content.PlatformX:         renderX,
	content.PlatformInstagram: renderInstagram,
	content.PlatformLinkedIn:  renderLinkedIn,
}

// Adapter renders ideas using a fixed policy. It is safe for concurrent use.
type Adapter struct {
	policy Policy
}

// New creates an adapter. Empty tag lists in policy fall back to the defaults.
func New(policy Policy) *Adapter {
	def := DefaultPolicy()
	if len(policy.InstagramTags) == 0 {
		policy.InstagramTags = def.InstagramTags
	}
	if len(policy.LinkedInAllowedTags) == 0 {
		policy.LinkedInAllowedTags = def.LinkedInAllowedTags
	}
	return &Adapter{policy: policy}
}

// Adapt renders idea for platform. Unknown platforms carry only title and hook.
func (a *Adapter) Adapt(idea content.Idea, platform content.Platform) content.PlatformContent {
	pc := content.PlatformContent{
		IdeaID:           idea.ID,
		Platform:         platform,
		Title:            idea.Title,
		Hook:             idea.Hook,
		ComplianceStatus: content.ComplianceUnknown,
	}
	if render, ok := renderers[platform]; ok {
		render(a.policy, idea, &pc)
	}
	return pc
}

// AdaptAll renders every idea for one platform, preserving idea order.
func (a *Adapter) AdaptAll(ideas []content.Idea, platform content.Platform) []content.PlatformContent {
	out := make([]content.PlatformContent, 0, len(ideas))
	for _, idea := range ideas {
		out = append(out, a.Adapt(idea, platform))
	}
	return out
}

func renderX(_ Policy, idea content.Idea, pc *content.PlatformContent) {
	caption := idea.Caption
	if r := []rune(caption); len(r) > xTruncateAbove {
		caption = string(r[:xTruncateTo]) + "..."
	}
	pc.Caption = caption
	pc.Hashtags = slices.Clone(idea.Hashtags[:min(xHashtagCount, len(idea.Hashtags))])
	pc.CharacterLimit = xCharacterLimit
}

func renderInstagram(p Policy, idea content.Idea, pc *content.PlatformContent) {
	pc.Caption = idea.Caption + instagramSuffix
	tags := make([]string, 0, len(idea.Hashtags)+len(p.InstagramTags))
	tags = append(tags, idea.Hashtags...)
	tags = append(tags, p.InstagramTags...)
	pc.Hashtags = tags
	pc.MediaType = "image_or_video"
}

func renderLinkedIn(p Policy, idea content.Idea, pc *content.PlatformContent) {
	pc.Caption = linkedInPrefix + idea.Caption + linkedInSuffix
	var tags []string
	for _, tag := range idea.Hashtags {
		if slices.Contains(p.LinkedInAllowedTags, tag) {
			tags = append(tags, tag)
		}
	}
	pc.Hashtags = tags
	pc.Tone = "professional"
}
