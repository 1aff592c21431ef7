package generator

import (
	"context"

	"github.com/rowens2025/powervisualize/internal/domain/generation"
	"github.com/rowens2025/powervisualize/internal/infrastructure/config"
)

// Ollama talks to a local Ollama server
type Ollama struct {
	http  httpClient
	model string
}

// NewOllama creates an Ollama generator
func NewOllama(cfg config.GeneratorConfig, opts ...Option) *Ollama {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &Ollama{
		http:  newHTTPClient(baseURL, cfg.Timeout, opts),
		model: cfg.Model,
	}
}

func (o *Ollama) Name() string { return ProviderOllama }

type ollamaRequest struct {
	Model    string               `json:"model"`
	Messages []generation.Message `json:"messages"`
	Stream   bool                 `json:"stream"`
	Format   string               `json:"format,omitempty"`
	Options  ollamaOptions        `json:"options"`
}

type ollamaOptions struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature"`
}

type ollamaResponse struct {
	Model   string `json:"model"`
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

// Generate sends the chat to /api/chat without streaming
func (o *Ollama) Generate(ctx context.Context, req generation.Request) (*generation.Response, error) {
	body := ollamaRequest{
		Model:    o.model,
		Messages: req.Messages,
		Options:  ollamaOptions{NumPredict: req.MaxTokens, Temperature: req.Temperature},
	}
	if req.JSON {
		body.Format = "json"
	}

	var out ollamaResponse
	if err := o.http.postJSON(ctx, "/api/chat", nil, body, &out); err != nil {
		return nil, err
	}
	return &generation.Response{Content: out.Message.Content, Model: out.Model}, nil
}

var _ generation.Generator = (*Ollama)(nil)
