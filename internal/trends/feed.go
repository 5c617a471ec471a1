package trends

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/TobiSchelling/SocialAgent/internal/content"
)

const (
	maxPerFeed  = 20
	maxTextRune = 500
)

// FeedConfig maps one RSS/Atom feed onto a platform and topic.
type FeedConfig struct {
	URL      string
	Name     string
	Platform content.Platform
	Topic    string
}

// FeedSource turns recent feed items into trend records scored by recency.
type FeedSource struct {
	feeds     []FeedConfig
	extractor *Extractor
	now       func() time.Time
}

// NewFeedSource creates a feed source. extractor may be nil, in which case
// items without a description carry only their title.
func NewFeedSource(feeds []FeedConfig, extractor *Extractor) *FeedSource {
	return &FeedSource{feeds: feeds, extractor: extractor, now: time.Now}
}

// Name implements Source.
func (f *FeedSource) Name() string { return "feeds" }

// Fetch parses every feed. Individual feed failures are logged; the call only
// fails if no feed could be parsed.
func (f *FeedSource) Fetch(ctx context.Context, q Query) ([]content.TrendRecord, error) {
	if len(f.feeds) == 0 {
		return []content.TrendRecord{}, nil
	}

	parser := gofeed.NewParser()
	var all []content.TrendRecord
	failures := 0
	for _, fc := range f.feeds {
		records, err := f.parseFeed(ctx, parser, fc)
		if err != nil {
			log.Printf("Failed to parse feed %s: %v", fc.URL, err)
			failures++
			continue
		}
		log.Printf("Parsed %d trend items from %s", len(records), feedName(fc))
		all = append(all, records...)
	}
	if failures == len(f.feeds) {
		return nil, fmt.Errorf("all %d feeds failed", failures)
	}
	return filter(all, q), nil
}

func (f *FeedSource) parseFeed(ctx context.Context, parser *gofeed.Parser, fc FeedConfig) ([]content.TrendRecord, error) {
	feed, err := parser.ParseURLWithContext(fc.URL, ctx)
	if err != nil {
		return nil, err
	}

	now := f.now()
	platform := content.ParsePlatform(string(fc.Platform))
	var records []content.TrendRecord
	for _, item := range feed.Items {
		if len(records) >= maxPerFeed {
			break
		}
		rec, ok := f.parseItem(ctx, item, fc, platform, now)
		if ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

func (f *FeedSource) parseItem(ctx context.Context, item *gofeed.Item, fc FeedConfig, platform content.Platform, now time.Time) (content.TrendRecord, bool) {
	link := item.Link
	if link == "" {
		link = item.GUID
	}
	title := strings.TrimSpace(item.Title)
	if title == "" {
		return content.TrendRecord{}, false
	}

	body := ""
	if item.Description != "" {
		body = stripHTML(item.Description)
	} else if item.Content != "" {
		body = stripHTML(item.Content)
	}
	if body == "" && link != "" && f.extractor != nil {
		body = f.extractor.Extract(ctx, link)
	}

	text := title
	if body != "" && body != title {
		text = title + " - " + body
	}

	var published time.Time
	if item.PublishedParsed != nil {
		published = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		published = *item.UpdatedParsed
	}

	author := feedName(fc)
	if item.Author != nil && item.Author.Name != "" {
		author = item.Author.Name
	}

	topic := fc.Topic
	if topic == "" {
		topic = "#" + strings.ReplaceAll(feedName(fc), " ", "")
	}

	return content.TrendRecord{
		Source:     platform,
		Topic:      topic,
		Text:       truncate(text, maxTextRune),
		Author:     author,
		URL:        link,
		Score:      RecencyScore(published, now),
		CapturedAt: now.UTC(),
	}, true
}

func feedName(fc FeedConfig) string {
	if fc.Name != "" {
		return fc.Name
	}
	return extractSourceName(fc.URL)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "..."
}
