package trends

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/TobiSchelling/SocialAgent/internal/content"
)

const newsAPIBaseURL = "https://newsapi.org/v2/everything"

// NewsQuery is one NewsAPI search whose hits become trends under Topic.
type NewsQuery struct {
	Query    string
	Topic    string
	Platform content.Platform
}

// NewsAPISource searches NewsAPI and scores hits by recency.
type NewsAPISource struct {
	apiKey   string
	queries  []NewsQuery
	daysBack int
	pageSize int
	baseURL  string
	client   *http.Client
	now      func() time.Time
}

// NewNewsAPISource reads the API key from apiKeyEnv.
func NewNewsAPISource(apiKeyEnv string, queries []NewsQuery, daysBack int) *NewsAPISource {
	if daysBack <= 0 {
		daysBack = 2
	}
	return &NewsAPISource{
		apiKey:   os.Getenv(apiKeyEnv),
		queries:  queries,
		daysBack: daysBack,
		pageSize: maxPerFeed,
		baseURL:  newsAPIBaseURL,
		client:   &http.Client{Timeout: 30 * time.Second},
		now:      time.Now,
	}
}

// IsConfigured returns whether the API key is available.
func (s *NewsAPISource) IsConfigured() bool {
	return s.apiKey != ""
}

// Name implements Source.
func (s *NewsAPISource) Name() string { return "newsapi" }

// Fetch runs every query. It fails only when the source is unconfigured or
// every query failed.
func (s *NewsAPISource) Fetch(ctx context.Context, q Query) ([]content.TrendRecord, error) {
	if !s.IsConfigured() {
		return nil, fmt.Errorf("%w: NewsAPI key not set", content.ErrSourceUnavailable)
	}
	if len(s.queries) == 0 {
		return []content.TrendRecord{}, nil
	}

	seen := make(map[string]struct{})
	var all []content.TrendRecord
	failures := 0
	for _, nq := range s.queries {
		records, err := s.search(ctx, nq)
		if err != nil {
			log.Printf("NewsAPI query %q failed: %v", nq.Query, err)
			failures++
			continue
		}
		for _, r := range records {
			if _, ok := seen[r.URL]; ok {
				continue
			}
			seen[r.URL] = struct{}{}
			all = append(all, r)
		}
	}
	if failures == len(s.queries) {
		return nil, fmt.Errorf("all %d NewsAPI queries failed", failures)
	}
	return filter(all, q), nil
}

type newsAPIResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Articles []struct {
		URL         string `json:"url"`
		Title       string `json:"title"`
		PublishedAt string `json:"publishedAt"`
		Content     string `json:"content"`
		Description string `json:"description"`
		Author      string `json:"author"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

func (s *NewsAPISource) search(ctx context.Context, nq NewsQuery) ([]content.TrendRecord, error) {
	now := s.now()
	params := url.Values{
		"q":        {nq.Query},
		"from":     {now.AddDate(0, 0, -s.daysBack).Format("2006-01-02")},
		"to":       {now.Format("2006-01-02")},
		"language": {"en"},
		"pageSize": {strconv.Itoa(s.pageSize)},
		"sortBy":   {"popularity"},
	}

	req, err := http.NewRequestWithContext(ctx, "GET", s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var result newsAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if result.Status != "ok" {
		return nil, fmt.Errorf("status %s: %s", result.Status, result.Message)
	}

	topic := nq.Topic
	if topic == "" {
		topic = "#" + strings.Join(strings.Fields(nq.Query), "")
	}
	var records []content.TrendRecord
	for _, a := range result.Articles {
		title := strings.TrimSpace(a.Title)
		if a.URL == "" || title == "" || title == "[Removed]" || a.URL == "https://removed.com" {
			continue
		}

		var published time.Time
		if a.PublishedAt != "" {
			published, _ = time.Parse(time.RFC3339, a.PublishedAt)
		}

		body := strings.TrimSpace(a.Description)
		if body == "" {
			body = strings.TrimSpace(a.Content)
		}
		text := title
		if body != "" && body != title {
			text = title + " - " + body
		}

		author := a.Source.Name
		if author == "" {
			author = "NewsAPI"
		}

		records = append(records, content.TrendRecord{
			Source:     content.ParsePlatform(string(nq.Platform)),
			Topic:      topic,
			Text:       truncate(text, maxTextRune),
			Author:     author,
			URL:        a.URL,
			Score:      RecencyScore(published, now),
			CapturedAt: now.UTC(),
		})
	}
	log.Printf("Fetched %d articles from NewsAPI for query: %s", len(records), nq.Query)
	return records, nil
}
