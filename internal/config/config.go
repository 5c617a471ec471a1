package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/TobiSchelling/SocialAgent/internal/content"
	"github.com/TobiSchelling/SocialAgent/internal/llm"
	"github.com/TobiSchelling/SocialAgent/internal/schedule"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

const appName = "socialagent"

type Config struct {
	Brand      Brand      `yaml:"brand"`
	Pipeline   Pipeline   `yaml:"pipeline"`
	Sources    Sources    `yaml:"sources"`
	Generation Generation `yaml:"generation"`
	Compliance Compliance `yaml:"compliance"`
	Platforms  Platforms  `yaml:"platforms"`
	Schedule   Schedule   `yaml:"schedule"`
	OAuth      OAuth      `yaml:"oauth"`
	Output     Output     `yaml:"output"`
	Server     Server     `yaml:"server"`
	Logging    Logging    `yaml:"logging"`
}

type Brand struct {
	Persona         string   `yaml:"persona"`
	BrandRules      string   `yaml:"brand_rules"`
	GenericHashtags []string `yaml:"generic_hashtags"`
}

type Pipeline struct {
	TopN      int      `yaml:"top_n"`
	Platforms []string `yaml:"platforms"`
}

type Sources struct {
	Static       []content.TrendRecord `yaml:"static"`
	Feeds        []Feed                `yaml:"feeds"`
	NewsAPI      NewsAPI               `yaml:"newsapi"`
	FetchContent bool                  `yaml:"fetch_content"`
	StoreWindow  time.Duration         `yaml:"store_window"`
	MaxPerTopic  int                   `yaml:"max_per_topic"`
}

type Feed struct {
	URL      string `yaml:"url"`
	Name     string `yaml:"name"`
	Platform string `yaml:"platform"`
	Topic    string `yaml:"topic"`
}

// NewsAPI configures keyword searches whose hits become trends. It is only
// used when the key env var is set.
type NewsAPI struct {
	APIKeyEnv string      `yaml:"api_key_env"`
	DaysBack  int         `yaml:"days_back"`
	Queries   []NewsQuery `yaml:"queries"`
}

type NewsQuery struct {
	Query    string `yaml:"query"`
	Topic    string `yaml:"topic"`
	Platform string `yaml:"platform"`
}

type Generation struct {
	Provider     string  `yaml:"provider"`
	Model        string  `yaml:"model"`
	OllamaURL    string  `yaml:"ollama_url"`
	OpenAIModel  string  `yaml:"openai_model"`
	ClaudeModel  string  `yaml:"claude_model"`
	APIKeyEnv    string  `yaml:"api_key_env"`
	ClaudeKeyEnv string  `yaml:"claude_key_env"`
	MaxTokens    int     `yaml:"max_tokens"`
	Temperature  float64 `yaml:"temperature"`
	Retry        Retry   `yaml:"retry"`
}

type Retry struct {
	MaxRetries int           `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
	MaxDelay   time.Duration `yaml:"max_delay"`
}

// Compliance holds the banned-term policy. A missing banned_terms key keeps
// the built-in list; an explicit empty list disables the check.
type Compliance struct {
	BannedTerms []string `yaml:"banned_terms"`
	IssueText   string   `yaml:"issue_text"`
}

type Platforms struct {
	InstagramTags       []string `yaml:"instagram_tags"`
	LinkedInAllowedTags []string `yaml:"linkedin_allowed_tags"`
}

type Schedule struct {
	Timezone string              `yaml:"timezone"`
	Fallback string              `yaml:"fallback"`
	Slots    map[string][]string `yaml:"slots"`
}

type OAuth struct {
	UserID              string                 `yaml:"user_id"`
	Exchange            string                 `yaml:"exchange"`
	StateSecretEnv      string                 `yaml:"state_secret_env"`
	EncryptionSecretEnv string                 `yaml:"encryption_secret_env"`
	Clients             map[string]OAuthClient `yaml:"clients"`
}

type OAuthClient struct {
	ClientIDEnv     string `yaml:"client_id_env"`
	ClientSecretEnv string `yaml:"client_secret_env"`
	RedirectURIEnv  string `yaml:"redirect_uri_env"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for socialagent.
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, appName)
}

// DataDir returns the XDG data directory for socialagent.
func DataDir() string {
	return filepath.Join(xdg.DataHome, appName)
}

// ResolveConfigPath finds the config file following priority:
// explicit path > $XDG_CONFIG_HOME/socialagent/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'socialagent init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// Default returns the embedded default configuration.
func Default() *Config {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded config: %v", err))
	}
	return cfg
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Brand: Brand{
			Persona:    "Playful AI coach for creators",
			BrandRules: "Be optimistic, include actionable advice, keep it concise.",
		},
		Pipeline: Pipeline{TopN: 5},
		Sources: Sources{
			StoreWindow: 7 * 24 * time.Hour,
			NewsAPI:     NewsAPI{APIKeyEnv: "NEWSAPI_KEY", DaysBack: 2},
		},
		Generation: Generation{
			Provider:     "none",
			Model:        "qwen2.5:7b",
			OllamaURL:    "http://localhost:11434",
			OpenAIModel:  "gpt-4o-mini",
			ClaudeModel:  "claude-3-5-haiku-latest",
			APIKeyEnv:    "OPENAI_API_KEY",
			ClaudeKeyEnv: "ANTHROPIC_API_KEY",
			MaxTokens:    512,
			Retry: Retry{
				MaxRetries: 2,
				BaseDelay:  500 * time.Millisecond,
				MaxDelay:   5 * time.Second,
			},
		},
		Schedule: Schedule{Timezone: "UTC", Fallback: "12:00"},
		OAuth: OAuth{
			UserID:              "demo-user",
			Exchange:            "local",
			StateSecretEnv:      "OAUTH_STATE_SECRET",
			EncryptionSecretEnv: "TOKEN_ENCRYPTION_KEY",
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// DBPath returns the SQLite database path inside the data directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.GetDataDir(), appName+".db")
}

// PlatformList returns the configured default platforms, normalized.
func (c *Config) PlatformList() []content.Platform {
	if len(c.Pipeline.Platforms) == 0 {
		return content.DefaultPlatforms()
	}
	out := make([]content.Platform, 0, len(c.Pipeline.Platforms))
	for _, p := range c.Pipeline.Platforms {
		out = append(out, content.ParsePlatform(p))
	}
	return out
}

// SlotMap returns the configured schedule slots keyed by platform.
func (c *Config) SlotMap() map[content.Platform][]string {
	if len(c.Schedule.Slots) == 0 {
		return nil
	}
	out := make(map[content.Platform][]string, len(c.Schedule.Slots))
	for name, slots := range c.Schedule.Slots {
		out[content.ParsePlatform(name)] = slots
	}
	return out
}

// Location loads the schedule timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Schedule.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Schedule.Timezone, err)
	}
	return loc, nil
}

// LLMSettings converts the generation section into provider settings.
func (c *Config) LLMSettings() llm.Settings {
	g := c.Generation
	return llm.Settings{
		Provider:     g.Provider,
		Model:        g.Model,
		OllamaURL:    g.OllamaURL,
		OpenAIModel:  g.OpenAIModel,
		ClaudeModel:  g.ClaudeModel,
		APIKeyEnv:    g.APIKeyEnv,
		ClaudeKeyEnv: g.ClaudeKeyEnv,
		Temperature:  g.Temperature,
	}
}

// RetryConfig converts the retry section for the llm package.
func (c *Config) RetryConfig() llm.RetryConfig {
	r := c.Generation.Retry
	return llm.RetryConfig{MaxRetries: r.MaxRetries, BaseDelay: r.BaseDelay, MaxDelay: r.MaxDelay}
}

// Validate reports configuration errors that would only surface at run time.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if err := schedule.ValidateSlots(c.SlotMap()); err != nil {
		return fmt.Errorf("schedule.slots: %w", err)
	}
	if c.Schedule.Fallback != "" {
		if _, _, err := schedule.ParseSlot(c.Schedule.Fallback); err != nil {
			return fmt.Errorf("schedule.fallback: %w", err)
		}
	}
	for i, f := range c.Sources.Feeds {
		if f.URL == "" {
			return fmt.Errorf("sources.feeds[%d]: url is required", i)
		}
	}
	for i, q := range c.Sources.NewsAPI.Queries {
		if strings.TrimSpace(q.Query) == "" {
			return fmt.Errorf("sources.newsapi.queries[%d]: query is required", i)
		}
	}
	return nil
}
