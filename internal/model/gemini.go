package model

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiConfig configures the Gemini client.
type GeminiConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int32
	Temperature float32
}

// DefaultGeminiConfig returns sensible defaults.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey:    apiKey,
		Model:     "gemini-2.5-flash",
		MaxTokens: 1024,
	}
}

// GeminiClient implements Client on top of the google.golang.org/genai SDK.
type GeminiClient struct {
	client *genai.Client
	cfg    GeminiConfig
}

// NewGeminiClient creates a Gemini client with default configuration.
func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	return NewGeminiClientWithConfig(ctx, DefaultGeminiConfig(apiKey))
}

// NewGeminiClientWithConfig creates a Gemini client with custom configuration.
func NewGeminiClientWithConfig(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &GeminiClient{client: client, cfg: cfg}, nil
}

// SetModel overrides the model name.
func (c *GeminiClient) SetModel(model string) {
	if model != "" {
		c.cfg.Model = model
	}
}

// Complete sends a prompt and returns the completion.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem sends a prompt with a system instruction.
func (c *GeminiClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(c.cfg.Temperature),
		MaxOutputTokens: c.cfg.MaxTokens,
	}
	if systemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	result, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, genai.Text(userPrompt), config)
	if err != nil {
		return "", fmt.Errorf("gemini: generate: %w", err)
	}
	return strings.TrimSpace(result.Text()), nil
}
