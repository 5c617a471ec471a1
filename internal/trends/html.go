package trends

import (
	"html"
	"net/url"
	"strings"
)

// stripHTML drops tags, decodes entities and collapses whitespace. Tags become
// spaces so adjacent block elements don't run together.
func stripHTML(text string) string {
	var b strings.Builder
	inTag := false
	for _, r := range text {
		switch {
		case r == '<':
			inTag = true
			b.WriteRune(' ')
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(html.UnescapeString(b.String())), " ")
}

// extractSourceName turns a feed URL into an author label, e.g.
// "https://blog.example.com/feed" becomes "Example".
func extractSourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Hostname() == "" {
		return feedURL
	}
	host := strings.ToLower(u.Hostname())
	for _, prefix := range []string{"www.", "blog.", "blogs.", "rss.", "feeds.", "news."} {
		host = strings.TrimPrefix(host, prefix)
	}

	name := host
	if parts := strings.Split(host, "."); len(parts) >= 2 {
		name = parts[len(parts)-2]
	}
	if name == "" {
		return feedURL
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
