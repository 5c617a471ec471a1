package trends

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	readability "github.com/go-shiori/go-readability"
)

const minExtractedText = 100

// Extractor pulls readable text from a linked page. Domains that answer with an
// HTTP error are skipped for the rest of the extractor's lifetime.
type Extractor struct {
	client *http.Client

	mu            sync.Mutex
	failedDomains map[string]struct{}
}

// NewExtractor creates an extractor with the given request timeout.
func NewExtractor(timeout time.Duration) *Extractor {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Extractor{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		failedDomains: make(map[string]struct{}),
	}
}

// Extract returns the page's main text, or "" when nothing usable was found.
func (e *Extractor) Extract(ctx context.Context, pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	domain := strings.ToLower(u.Host)
	if e.domainFailed(domain) {
		return ""
	}

	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", "SocialAgent/1.0 (trend reader)")

	resp, err := e.client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		e.markFailed(domain)
		log.Printf("HTTP %d for %s, skipping remaining pages from %s", resp.StatusCode, pageURL, domain)
		return ""
	}

	article, err := readability.FromReader(resp.Body, u)
	if err != nil {
		return ""
	}

	text := strings.Join(strings.Fields(article.TextContent), " ")
	if len(text) > minExtractedText {
		return text
	}
	return ""
}

func (e *Extractor) domainFailed(domain string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.failedDomains[domain]
	return ok
}

func (e *Extractor) markFailed(domain string) {
	if domain == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failedDomains[domain] = struct{}{}
}
