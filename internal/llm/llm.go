package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

// Provider is the interface for text-generation backends.
type Provider interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
	IsConfigured() bool
}

// Settings selects and configures a provider.
type Settings struct {
	Provider     string // "ollama", "openai", "claude" or "none"
	Model        string
	OllamaURL    string
	OpenAIModel  string
	ClaudeModel  string
	APIKeyEnv    string
	ClaudeKeyEnv string
	Temperature  float64
}

// OllamaProvider is a local Ollama LLM provider.
type OllamaProvider struct {
	Model       string
	BaseURL     string
	Temperature float64
	client      *http.Client
}

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(model, baseURL string) *OllamaProvider {
	return &OllamaProvider{
		Model:       model,
		BaseURL:     strings.TrimRight(baseURL, "/"),
		Temperature: 0.7,
		client:      &http.Client{Timeout: 120 * time.Second},
	}
}

// IsConfigured checks if Ollama is running and the model is available.
func (o *OllamaProvider) IsConfigured() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", o.BaseURL+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false
	}

	modelBase := strings.SplitN(o.Model, ":", 2)[0]
	for _, m := range result.Models {
		if strings.Contains(m.Name, modelBase) {
			return true
		}
	}
	log.Printf("Ollama model %q not found", o.Model)
	return false
}

// Generate sends a prompt to Ollama and returns the response.
func (o *OllamaProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	body := map[string]any{
		"model": o.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"stream": false,
		"options": map[string]any{
			"num_predict": maxTokens,
			"temperature": o.Temperature,
		},
	}

	var result struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := postJSON(ctx, o.client, o.BaseURL+"/api/chat", nil, body, &result); err != nil {
		return "", fmt.Errorf("ollama: %w", err)
	}
	return result.Message.Content, nil
}

// OpenAIProvider is an OpenAI chat completions provider.
type OpenAIProvider struct {
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	client      *http.Client
}

// NewOpenAIProvider creates a new OpenAI provider reading its key from apiKeyEnv.
func NewOpenAIProvider(model, apiKeyEnv string) *OpenAIProvider {
	return &OpenAIProvider{
		Model:       model,
		APIKey:      os.Getenv(apiKeyEnv),
		BaseURL:     "https://api.openai.com/v1",
		Temperature: 0.7,
		client:      &http.Client{Timeout: 120 * time.Second},
	}
}

// IsConfigured checks if the API key is set.
func (o *OpenAIProvider) IsConfigured() bool {
	return o.APIKey != ""
}

// Generate sends a prompt to OpenAI and returns the response.
func (o *OpenAIProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if o.APIKey == "" {
		return "", fmt.Errorf("OpenAI API key not configured")
	}

	body := map[string]any{
		"model": o.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"max_tokens":  maxTokens,
		"temperature": o.Temperature,
	}
	headers := map[string]string{"Authorization": "Bearer " + o.APIKey}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := postJSON(ctx, o.client, o.BaseURL+"/chat/completions", headers, body, &result); err != nil {
		return "", fmt.Errorf("OpenAI: %w", err)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in OpenAI response")
	}
	return result.Choices[0].Message.Content, nil
}

// ClaudeProvider calls the Anthropic messages API.
type ClaudeProvider struct {
	Model   string
	APIKey  string
	BaseURL string
	client  *http.Client
}

// NewClaudeProvider creates a new Claude provider reading its key from apiKeyEnv.
func NewClaudeProvider(model, apiKeyEnv string) *ClaudeProvider {
	return &ClaudeProvider{
		Model:   model,
		APIKey:  os.Getenv(apiKeyEnv),
		BaseURL: "https://api.anthropic.com/v1",
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// IsConfigured checks if the API key is set.
func (c *ClaudeProvider) IsConfigured() bool {
	return c.APIKey != ""
}

// Generate sends a prompt to Claude and returns the first text block.
func (c *ClaudeProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if c.APIKey == "" {
		return "", fmt.Errorf("Claude API key not configured")
	}

	body := map[string]any{
		"model":      c.Model,
		"max_tokens": maxTokens,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	headers := map[string]string{
		"x-api-key":         c.APIKey,
		"anthropic-version": "2023-06-01",
	}

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := postJSON(ctx, c.client, c.BaseURL+"/messages", headers, body, &result); err != nil {
		return "", fmt.Errorf("claude: %w", err)
	}
	if len(result.Content) == 0 {
		return "", fmt.Errorf("empty claude response")
	}
	return result.Content[0].Text, nil
}

func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{Code: resp.StatusCode, Body: string(respBody)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// StatusError is returned when a provider answers with a non-200 status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API returned %d: %s", e.Code, e.Body)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// CreateProvider creates a provider based on settings. It returns nil when no
// backend is usable, in which case callers fall back to templates.
func CreateProvider(s Settings) Provider {
	switch strings.ToLower(s.Provider) {
	case "", "none":
		log.Println("Text generation disabled, using caption templates")
		return nil
	case "claude":
		p := NewClaudeProvider(s.ClaudeModel, s.ClaudeKeyEnv)
		if p.IsConfigured() {
			log.Printf("Using Claude with model: %s", s.ClaudeModel)
			return p
		}
		log.Println("Claude API key not set, trying OpenAI fallback...")
	case "ollama":
		p := NewOllamaProvider(s.Model, s.OllamaURL)
		if s.Temperature > 0 {
			p.Temperature = s.Temperature
		}
		if p.IsConfigured() {
			log.Printf("Using Ollama with model: %s", s.Model)
			return p
		}
		log.Println("Ollama not available, trying OpenAI fallback...")
	}

	p := NewOpenAIProvider(s.OpenAIModel, s.APIKeyEnv)
	if s.Temperature > 0 {
		p.Temperature = s.Temperature
	}
	if p.IsConfigured() {
		log.Printf("Using OpenAI with model: %s", s.OpenAIModel)
		return p
	}

	log.Println("No LLM provider available, using caption templates. Set OPENAI_API_KEY or start Ollama to enable generation.")
	return nil
}
