package generator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowens2025/powervisualize/internal/domain/generation"
	"github.com/rowens2025/powervisualize/internal/infrastructure/config"
)

func testRequest() generation.Request {
	return generation.Request{
		Messages: []generation.Message{
			{Role: generation.RoleSystem, Content: "Answer in JSON."},
			{Role: generation.RoleUser, Content: "Does he know Power BI?"},
		},
		MaxTokens: 200,
		JSON:      true,
	}
}

func TestNew_SelectsProvider(t *testing.T) {
	g, err := New(config.GeneratorConfig{Provider: "openai"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, g.Name())

	g, err = New(config.GeneratorConfig{Provider: "Ollama"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, g.Name())

	_, err = New(config.GeneratorConfig{Provider: "bard"})
	assert.Error(t, err)
}

func TestOpenAI_Generate(t *testing.T) {
	var got openAIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"model":"gpt-test","choices":[{"message":{"content":"{\"answer\":\"Yes\"}"}}]}`))
	}))
	defer srv.Close()

	g := NewOpenAI(config.GeneratorConfig{BaseURL: srv.URL + "/v1/", Model: "gpt-test", APIKey: "sk-test", Timeout: time.Second})
	resp, err := g.Generate(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, `{"answer":"Yes"}`, resp.Content)
	assert.Equal(t, "gpt-test", resp.Model)
	assert.Equal(t, "gpt-test", got.Model)
	assert.Len(t, got.Messages, 2)
	assert.Equal(t, 200, got.MaxTokens)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
}

func TestOpenAI_MissingKeyIsFatal(t *testing.T) {
	g := NewOpenAI(config.GeneratorConfig{Model: "gpt-test"})
	_, err := g.Generate(context.Background(), testRequest())
	assert.True(t, generation.IsFatal(err))
}

func TestOpenAI_ErrorClassification(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
		{http.StatusInternalServerError, true},
		{http.StatusUnauthorized, false},
		{http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte(`{"error":"nope"}`))
		}))

		g := NewOpenAI(config.GeneratorConfig{BaseURL: srv.URL, Model: "m", APIKey: "k"})
		_, err := g.Generate(context.Background(), testRequest())
		srv.Close()

		require.Error(t, err, "status %d", tt.status)
		assert.Equal(t, tt.transient, generation.IsTransient(err), "status %d", tt.status)
		assert.Equal(t, !tt.transient, generation.IsFatal(err), "status %d", tt.status)
		assert.Contains(t, err.Error(), "nope")
	}
}

func TestOpenAI_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	g := NewOpenAI(config.GeneratorConfig{BaseURL: srv.URL, Model: "m", APIKey: "k"})
	_, err := g.Generate(context.Background(), testRequest())
	assert.True(t, generation.IsTransient(err))
}

func TestOpenAI_ContextCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	g := NewOpenAI(config.GeneratorConfig{BaseURL: srv.URL, Model: "m", APIKey: "k", Timeout: 5 * time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := g.Generate(ctx, testRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, generation.IsFatal(err))
}

func TestOllama_Generate(t *testing.T) {
	var got ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"model":"llama3","message":{"role":"assistant","content":"{\"answer\":\"ok\"}"}}`))
	}))
	defer srv.Close()

	g := NewOllama(config.GeneratorConfig{BaseURL: srv.URL, Model: "llama3"})
	resp, err := g.Generate(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, `{"answer":"ok"}`, resp.Content)
	assert.False(t, got.Stream)
	assert.Equal(t, "json", got.Format)
	assert.Equal(t, 200, got.Options.NumPredict)
}

func TestOllama_ServerDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	g := NewOllama(config.GeneratorConfig{BaseURL: url, Model: "llama3"})
	_, err := g.Generate(context.Background(), testRequest())
	assert.True(t, generation.IsTransient(err))
}
