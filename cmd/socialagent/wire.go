package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/TobiSchelling/SocialAgent/internal/adapt"
	"github.com/TobiSchelling/SocialAgent/internal/compliance"
	"github.com/TobiSchelling/SocialAgent/internal/content"
	"github.com/TobiSchelling/SocialAgent/internal/crypto"
	"github.com/TobiSchelling/SocialAgent/internal/database"
	"github.com/TobiSchelling/SocialAgent/internal/ideas"
	"github.com/TobiSchelling/SocialAgent/internal/llm"
	"github.com/TobiSchelling/SocialAgent/internal/metrics"
	"github.com/TobiSchelling/SocialAgent/internal/oauth"
	"github.com/TobiSchelling/SocialAgent/internal/pipeline"
	"github.com/TobiSchelling/SocialAgent/internal/publish"
	"github.com/TobiSchelling/SocialAgent/internal/schedule"
	"github.com/TobiSchelling/SocialAgent/internal/service"
	"github.com/TobiSchelling/SocialAgent/internal/trends"
)

const (
	tokenPurpose   = "oauth-token"
	extractTimeout = 15 * time.Second
	storeLimit     = 200
)

// app holds the components built from the loaded config.
type app struct {
	db       *database.DB
	pipeline *pipeline.Pipeline
	svc      *service.Service
	auth     *oauth.Manager
	metrics  *metrics.Metrics
}

func (a *app) Close() error {
	return a.db.Close()
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return database.Open(cfg.DBPath())
}

// liveSource reads the configured seed trends, feeds and NewsAPI searches.
func liveSource() trends.Source {
	sources := []trends.Source{trends.NewStaticSource(cfg.Sources.Static)}
	if len(cfg.Sources.Feeds) > 0 {
		feeds := make([]trends.FeedConfig, len(cfg.Sources.Feeds))
		for i, f := range cfg.Sources.Feeds {
			feeds[i] = trends.FeedConfig{URL: f.URL, Name: f.Name, Platform: content.ParsePlatform(f.Platform), Topic: f.Topic}
		}
		var extractor *trends.Extractor
		if cfg.Sources.FetchContent {
			extractor = trends.NewExtractor(extractTimeout)
		}
		sources = append(sources, trends.NewFeedSource(feeds, extractor))
	}
	if n := cfg.Sources.NewsAPI; len(n.Queries) > 0 {
		queries := make([]trends.NewsQuery, len(n.Queries))
		for i, q := range n.Queries {
			queries[i] = trends.NewsQuery{Query: q.Query, Topic: q.Topic, Platform: content.ParsePlatform(q.Platform)}
		}
		news := trends.NewNewsAPISource(n.APIKeyEnv, queries, n.DaysBack)
		if news.IsConfigured() {
			sources = append(sources, news)
		} else {
			log.Printf("NewsAPI queries configured but %s is not set, skipping", n.APIKeyEnv)
		}
	}
	return trends.NewMultiSource(sources...)
}

func captionStrategy() ideas.CaptionStrategy {
	provider := llm.WithRetry(llm.CreateProvider(cfg.LLMSettings()), cfg.RetryConfig())
	if provider == nil {
		return nil
	}
	return ideas.NewLLMStrategy(provider, cfg.Generation.MaxTokens)
}

func adaptPolicy() adapt.Policy {
	policy := adapt.DefaultPolicy()
	if len(cfg.Platforms.InstagramTags) > 0 {
		policy.InstagramTags = cfg.Platforms.InstagramTags
	}
	if len(cfg.Platforms.LinkedInAllowedTags) > 0 {
		policy.LinkedInAllowedTags = cfg.Platforms.LinkedInAllowedTags
	}
	return policy
}

// newOAuth builds the login manager. It returns nil when the state or token
// secret is not set, which disables accounts and publishing.
func newOAuth(db *database.DB) (*oauth.Manager, error) {
	o := cfg.OAuth
	stateSecret := os.Getenv(o.StateSecretEnv)
	encSecret := os.Getenv(o.EncryptionSecretEnv)
	if stateSecret == "" || encSecret == "" {
		log.Printf("OAuth disabled: set %s and %s to connect accounts", o.StateSecretEnv, o.EncryptionSecretEnv)
		return nil, nil
	}
	cipher, err := crypto.NewTokenCipher([]byte(encSecret), tokenPurpose)
	if err != nil {
		return nil, fmt.Errorf("creating token cipher: %w", err)
	}

	clients := make(map[content.Platform]oauth.Client, len(o.Clients))
	for name, c := range o.Clients {
		clients[content.ParsePlatform(name)] = oauth.Client{
			ID:          os.Getenv(c.ClientIDEnv),
			Secret:      os.Getenv(c.ClientSecretEnv),
			RedirectURI: os.Getenv(c.RedirectURIEnv),
		}
	}

	var exchanger oauth.Exchanger
	if o.Exchange == "oauth2" {
		exchanger = oauth.OAuth2Exchanger{}
	}
	return oauth.NewManager(db, oauth.Options{
		Clients:         clients,
		RedirectBaseURL: fmt.Sprintf("http://localhost:%d", cfg.Server.Port),
		StateSecret:     []byte(stateSecret),
		Cipher:          cipher,
		Exchanger:       exchanger,
	})
}

// newApp opens the database and wires every component from cfg.
func newApp() (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	db, err := openDB()
	if err != nil {
		return nil, err
	}

	live := liveSource()
	query := trends.Query{MaxPerTopic: cfg.Sources.MaxPerTopic}
	suggester := schedule.NewSuggester(cfg.SlotMap(), cfg.Schedule.Fallback)
	pipe := pipeline.New(pipeline.Options{
		Source:    trends.NewFallbackSource(trends.NewStoreSource(db, cfg.Sources.StoreWindow, storeLimit), live),
		Query:     query,
		TopN:      cfg.Pipeline.TopN,
		Generator: ideas.NewGenerator(captionStrategy(), cfg.Brand.GenericHashtags),
		Adapter:   adapt.New(adaptPolicy()),
		Guard:     compliance.NewGuard(cfg.Compliance.BannedTerms, cfg.Compliance.IssueText),
		Suggester: suggester,
	})

	auth, err := newOAuth(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	m := metrics.New(version)

	opts := service.Options{
		Pipeline:  pipe,
		Refresh:   live,
		Query:     query,
		Suggester: suggester,
		Metrics:   m,
		Location:  loc,
	}
	if auth != nil {
		opts.Publisher = publish.NewRegistry(auth, cfg.OAuth.UserID)
	}
	if cfg.Brand.Persona != "" && cfg.Brand.BrandRules != "" {
		opts.Brand = &database.BrandProfile{
			Persona:         cfg.Brand.Persona,
			BrandRules:      cfg.Brand.BrandRules,
			DefaultHashtags: cfg.Brand.GenericHashtags,
		}
	}

	return &app{
		db:       db,
		pipeline: pipe,
		svc:      service.New(db, opts),
		auth:     auth,
		metrics:  m,
	}, nil
}
