// Package gemini implements llm.Provider on the Google Gen AI SDK.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"google.golang.org/genai"

	"echopaths/pkg/config"
	"echopaths/pkg/llm"
	"echopaths/pkg/logging"
	"echopaths/pkg/tracker"
)

const providerName = "gemini"

// DefaultModel is used for intents without a profile.
const DefaultModel = "gemini-2.5-flash"

// Client implements llm.Provider for Google Gemini.
type Client struct {
	genaiClient *genai.Client
	apiKey      string
	modelName   string
	profiles    map[string]string // intent -> model
	baseURL     string
	tracker     *tracker.Tracker

	mu sync.RWMutex
}

// Option adjusts the client before it connects.
type Option func(*Client)

// WithBaseURL points the client at a different endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// NewClient creates a new Gemini client.
func NewClient(cfg config.LLMConfig, t *tracker.Tracker, opts ...Option) (*Client, error) {
	c := &Client{tracker: t}
	for _, o := range opts {
		o(c)
	}
	if err := c.Configure(cfg); err != nil {
		return nil, err
	}
	return c, nil
}

// Configure updates the client with new settings.
func (c *Client) Configure(cfg config.LLMConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.apiKey = cfg.Key
	c.profiles = cfg.Profiles
	c.modelName = DefaultModel
	if m := cfg.Profiles["outline"]; m != "" {
		c.modelName = m
	}

	if c.apiKey == "" {
		// Can't initialize without key.
		c.genaiClient = nil
		return nil
	}

	cc := &genai.ClientConfig{APIKey: c.apiKey, Backend: genai.BackendGeminiAPI}
	if c.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: c.baseURL}
	}
	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return fmt.Errorf("failed to create genai client: %w", err)
	}
	c.genaiClient = client
	return nil
}

// HasProfile checks if the provider has a model configured for name.
func (c *Client) HasProfile(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.profiles[name] != ""
}

// HealthCheck verifies the key is set and the default model is visible.
func (c *Client) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	client, model := c.genaiClient, c.modelName
	c.mu.RUnlock()
	if client == nil {
		return llm.ErrNotConfigured
	}
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}
	if _, err := client.Models.Get(ctx, model, nil); err != nil {
		return fmt.Errorf("gemini model %s unavailable: %w", model, classify(err))
	}
	return nil
}

// GenerateText sends a prompt and returns the text response.
func (c *Client) GenerateText(ctx context.Context, name, prompt string) (string, error) {
	return c.generate(ctx, name, prompt, false)
}

// GenerateJSON sends a prompt and unmarshals the response into the target.
func (c *Client) GenerateJSON(ctx context.Context, name, prompt string, target any) error {
	text, err := c.generate(ctx, name, prompt, true)
	if err != nil {
		return err
	}
	cleaned := llm.CleanJSONBlock(text)
	if err := json.Unmarshal([]byte(cleaned), target); err != nil {
		c.track(false)
		return fmt.Errorf("%w: %v. Response: %s", llm.ErrInvalidJSON, err, llm.Excerpt(cleaned, 200))
	}
	return nil
}

func (c *Client) generate(ctx context.Context, name, prompt string, jsonMode bool) (string, error) {
	c.mu.RLock()
	client := c.genaiClient
	c.mu.RUnlock()
	if client == nil {
		return "", llm.ErrNotConfigured
	}

	model, cfg := c.resolveModel(name)
	if jsonMode {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), cfg)
	if err != nil {
		c.logPrompt(name, model, prompt, fmt.Sprintf("ERROR: %v", err))
		c.track(false)
		return "", fmt.Errorf("gemini %s: %w", name, classify(err))
	}

	text, err := responseText(resp)
	if err != nil {
		c.logPrompt(name, model, prompt, fmt.Sprintf("TEXT_PARSE_ERROR: %v", err))
		c.track(false)
		return "", err
	}

	c.logPrompt(name, model, prompt, text)
	c.track(true)
	return text, nil
}

// resolveModel returns the target model name and configuration for the given intent.
func (c *Client) resolveModel(intent string) (string, *genai.GenerateContentConfig) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	model := c.modelName
	if m, ok := c.profiles[intent]; ok && m != "" {
		model = m
	}
	return model, &genai.GenerateContentConfig{}
}

func (c *Client) logPrompt(name, model, prompt, response string) {
	logging.RequestLogger.Info("Gemini request",
		"intent", name,
		"model", model,
		"prompt", prompt,
		"response", response)
}

func (c *Client) track(ok bool) {
	if c.tracker == nil {
		return
	}
	if ok {
		c.tracker.TrackAPISuccess(providerName)
		return
	}
	c.tracker.TrackAPIFailure(providerName)
}

// responseText joins the text parts of the first candidate. A candidate
// that did not finish normally is an error even when it carries text.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", llm.ErrEmptyResponse
	}
	cand := resp.Candidates[0]
	if cand.FinishReason != "" && cand.FinishReason != genai.FinishReasonStop {
		return "", &llm.FinishError{Reason: string(cand.FinishReason)}
	}
	if cand.Content == nil {
		return "", llm.ErrEmptyResponse
	}

	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", llm.ErrEmptyResponse
	}
	return text, nil
}

// classify converts SDK errors into llm.StatusError.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		slog.Debug("Gemini: API error", "code", apiErr.Code, "status", apiErr.Status)
		return &llm.StatusError{Provider: providerName, Code: apiErr.Code, Message: apiErr.Message}
	}
	return err
}
