package trends

import (
	"math"
	"time"

	"github.com/TobiSchelling/SocialAgent/internal/content"
)

// RecencyHalfLife is the age at which a feed item's score halves.
const RecencyHalfLife = 24 * time.Hour

// EngagementScore maps raw engagement counts to [0,1] using per-platform
// weights. Unknown platforms weigh every interaction equally.
func EngagementScore(p content.Platform, e content.Engagement) float64 {
	var raw, norm float64
	switch p {
	case content.PlatformInstagram:
		raw, norm = float64(e.Likes+3*e.Comments), 1000
	case content.PlatformLinkedIn:
		raw, norm = float64(e.Likes+3*e.Comments+2*e.Shares), 500
	case content.PlatformX:
		raw, norm = float64(e.Likes+2*e.Comments+3*e.Shares), 1000
	default:
		raw, norm = float64(e.Likes+e.Comments+e.Shares), 1000
	}
	return clamp(raw / norm)
}

// RecencyScore decays from 1 for items published at now.
func RecencyScore(published, now time.Time) float64 {
	if published.IsZero() {
		return 0.5
	}
	age := now.Sub(published)
	if age <= 0 {
		return 1
	}
	return clamp(math.Pow(0.5, age.Hours()/RecencyHalfLife.Hours()))
}

func clamp(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	}
	return v
}
