package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiProvider calls the Gemini API through the genai SDK.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider builds a backend for model. An empty apiKey yields a provider whose
// Validate reports ErrConfig, so callers never reach the network without credentials.
func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	p := &GeminiProvider{model: model}
	if apiKey == "" {
		return p, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	p.client = client
	return p, nil
}

func (p *GeminiProvider) Validate() error {
	if p.client == nil {
		return fmt.Errorf("%w: gemini: API key not found", ErrConfig)
	}
	if p.model == "" {
		return fmt.Errorf("%w: gemini: model is empty", ErrConfig)
	}
	return nil
}

func (p *GeminiProvider) Complete(ctx context.Context, req Request) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(req.Temperature)),
		MaxOutputTokens: int32(req.MaxTokens),
	}
	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(req.Prompt), cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", statusError("gemini", apiErr.Code, err)
		}
		return "", fmt.Errorf("gemini: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("gemini: %w", ErrEmptyCompletion)
	}
	return text, nil
}
