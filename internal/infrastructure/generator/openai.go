package generator

import (
	"context"
	"errors"

	"github.com/rowens2025/powervisualize/internal/domain/generation"
	"github.com/rowens2025/powervisualize/internal/infrastructure/config"
)

// OpenAI talks to an OpenAI-compatible chat completions endpoint
type OpenAI struct {
	http   httpClient
	model  string
	apiKey string
}

// NewOpenAI creates an OpenAI-compatible generator
func NewOpenAI(cfg config.GeneratorConfig, opts ...Option) *OpenAI {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAI{
		http:   newHTTPClient(baseURL, cfg.Timeout, opts),
		model:  cfg.Model,
		apiKey: cfg.APIKey,
	}
}

func (o *OpenAI) Name() string { return ProviderOpenAI }

type openAIRequest struct {
	Model          string               `json:"model"`
	Messages       []generation.Message `json:"messages"`
	MaxTokens      int                  `json:"max_tokens,omitempty"`
	Temperature    float64              `json:"temperature"`
	ResponseFormat *responseFormat      `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate sends the chat to the completions endpoint
func (o *OpenAI) Generate(ctx context.Context, req generation.Request) (*generation.Response, error) {
	if o.apiKey == "" {
		return nil, generation.NewFatalError(errors.New("OpenAI API key not configured"))
	}

	body := openAIRequest{
		Model:       o.model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.JSON {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	var out openAIResponse
	headers := map[string]string{"Authorization": "Bearer " + o.apiKey}
	if err := o.http.postJSON(ctx, "/chat/completions", headers, body, &out); err != nil {
		return nil, err
	}
	if len(out.Choices) == 0 {
		return nil, generation.NewTransientError(errors.New("no choices in response"))
	}
	return &generation.Response{Content: out.Choices[0].Message.Content, Model: out.Model}, nil
}

var _ generation.Generator = (*OpenAI)(nil)
