// Package publish sends approved content to the social platforms.
//
// The platform clients are stubs: they validate the post, log it and return
// generated identifiers instead of calling the platform APIs.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/TobiSchelling/SocialAgent/internal/content"
)

// XCharacterLimit is the maximum post length on x.
const XCharacterLimit = 280

var (
	ErrNoPublisher  = errors.New("no publisher for platform")
	ErrEmptyPost    = errors.New("post has no text")
	ErrTooLong      = errors.New("post exceeds character limit")
	ErrMissingToken = errors.New("missing access token")
)

// Post is the text and media to publish.
type Post struct {
	Platform content.Platform
	Caption  string
	Hashtags []string
	MediaURL string
}

// Text joins the caption and hashtags the way they are posted.
func (p Post) Text() string {
	text := strings.TrimSpace(p.Caption)
	if len(p.Hashtags) > 0 {
		text += "\n\n" + strings.Join(p.Hashtags, " ")
	}
	return strings.TrimSpace(text)
}

// Receipt identifies a published post.
type Receipt struct {
	ExternalID string
	Permalink  string
	PostedAt   time.Time
}

// Publisher posts to one platform and reports how its posts perform.
type Publisher interface {
	Platform() content.Platform
	Publish(ctx context.Context, token *oauth2.Token, post Post) (*Receipt, error)
	Metrics(ctx context.Context, token *oauth2.Token, externalID string, postedAt time.Time) (*PostMetrics, error)
}

// CredentialSource hands out the stored token of a connected account.
type CredentialSource interface {
	Credential(ctx context.Context, userID string, platform content.Platform) (*oauth2.Token, error)
}

// Registry routes posts to the publisher of their platform.
type Registry struct {
	creds      CredentialSource
	userID     string
	publishers map[content.Platform]Publisher
}

// NewRegistry creates a registry publishing on behalf of userID. Without
// publishers it registers the stub clients for every platform.
func NewRegistry(creds CredentialSource, userID string, publishers ...Publisher) *Registry {
	if len(publishers) == 0 {
		publishers = []Publisher{NewXClient(), NewInstagramClient(), NewLinkedInClient()}
	}
	r := &Registry{creds: creds, userID: userID, publishers: make(map[content.Platform]Publisher, len(publishers))}
	for _, p := range publishers {
		r.publishers[p.Platform()] = p
	}
	return r
}

// Supports reports whether a publisher is registered for p.
func (r *Registry) Supports(p content.Platform) bool {
	_, ok := r.publishers[p]
	return ok
}

// Publish looks up the account credential and publishes post.
func (r *Registry) Publish(ctx context.Context, post Post) (*Receipt, error) {
	pub, token, err := r.resolve(ctx, post.Platform)
	if err != nil {
		return nil, err
	}
	return pub.Publish(ctx, token, post)
}

// Metrics fetches the current counters of a published post.
func (r *Registry) Metrics(ctx context.Context, p content.Platform, externalID string, postedAt time.Time) (*PostMetrics, error) {
	pub, token, err := r.resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	return pub.Metrics(ctx, token, externalID, postedAt)
}

func (r *Registry) resolve(ctx context.Context, p content.Platform) (Publisher, *oauth2.Token, error) {
	pub, ok := r.publishers[p]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoPublisher, p)
	}
	token, err := r.creds.Credential(ctx, r.userID, p)
	if err != nil {
		return nil, nil, err
	}
	if token == nil || token.AccessToken == "" {
		return nil, nil, fmt.Errorf("%w: %s", ErrMissingToken, p)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return pub, token, nil
}

type clock func() time.Time

// XClient publishes text posts to x.
type XClient struct{ now clock }

func NewXClient() *XClient { return &XClient{now: time.Now} }

func (c *XClient) Platform() content.Platform { return content.PlatformX }

func (c *XClient) Publish(_ context.Context, _ *oauth2.Token, post Post) (*Receipt, error) {
	text, err := fitText(post, XCharacterLimit)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	log.Printf("Published to x: %s (%d chars)", id, utf8.RuneCountInString(text))
	return &Receipt{ExternalID: id, Permalink: "https://x.com/i/status/" + id, PostedAt: c.now()}, nil
}

// fitText builds the post text within limit runes. The caption must fit on its
// own; hashtags that still fit are appended in order.
func fitText(post Post, limit int) (string, error) {
	text := strings.TrimSpace(post.Caption)
	if text == "" {
		return "", ErrEmptyPost
	}
	if n := utf8.RuneCountInString(text); n > limit {
		return "", fmt.Errorf("%w: %d > %d", ErrTooLong, n, limit)
	}
	sep := "\n\n"
	for _, tag := range post.Hashtags {
		if utf8.RuneCountInString(text)+utf8.RuneCountInString(sep+tag) > limit {
			continue
		}
		text += sep + tag
		sep = " "
	}
	return text, nil
}

// InstagramClient publishes in two steps: create a media container, then
// publish it. Posts without media publish the caption alone.
type InstagramClient struct{ now clock }

func NewInstagramClient() *InstagramClient { return &InstagramClient{now: time.Now} }

func (c *InstagramClient) Platform() content.Platform { return content.PlatformInstagram }

func (c *InstagramClient) Publish(_ context.Context, _ *oauth2.Token, post Post) (*Receipt, error) {
	if post.Text() == "" && post.MediaURL == "" {
		return nil, ErrEmptyPost
	}
	container := c.createMedia(post)
	mediaID := c.publishMedia(container)
	short := strings.ReplaceAll(mediaID, "-", "")[:11]
	log.Printf("Published to instagram: %s (container %s)", mediaID, container)
	return &Receipt{ExternalID: mediaID, Permalink: "https://www.instagram.com/p/" + short + "/", PostedAt: c.now()}, nil
}

func (c *InstagramClient) createMedia(post Post) string {
	kind := "caption"
	if post.MediaURL != "" {
		kind = "image"
	}
	return kind + "_" + uuid.NewString()
}

func (c *InstagramClient) publishMedia(string) string {
	return uuid.NewString()
}

// LinkedInClient publishes shares to LinkedIn.
type LinkedInClient struct{ now clock }

func NewLinkedInClient() *LinkedInClient { return &LinkedInClient{now: time.Now} }

func (c *LinkedInClient) Platform() content.Platform { return content.PlatformLinkedIn }

func (c *LinkedInClient) Publish(_ context.Context, _ *oauth2.Token, post Post) (*Receipt, error) {
	if post.Text() == "" {
		return nil, ErrEmptyPost
	}
	id := uuid.NewString()
	log.Printf("Published to linkedin: %s", id)
	return &Receipt{
		ExternalID: "urn:li:share:" + id,
		Permalink:  "https://www.linkedin.com/posts/activity-" + id,
		PostedAt:   c.now(),
	}, nil
}
