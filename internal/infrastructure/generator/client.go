// Package generator implements generation.Generator over HTTP chat APIs.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rowens2025/powervisualize/internal/domain/generation"
	"github.com/rowens2025/powervisualize/internal/infrastructure/config"
)

// Providers
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

const maxResponseBytes = 1 << 20

// New creates the configured generator
func New(cfg config.GeneratorConfig, opts ...Option) (generation.Generator, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI, "":
		return NewOpenAI(cfg, opts...), nil
	case ProviderOllama:
		return NewOllama(cfg, opts...), nil
	default:
		return nil, fmt.Errorf("unknown generator provider: %s", cfg.Provider)
	}
}

// Option configures a client
type Option func(*httpClient)

// WithHTTPClient replaces the HTTP client, e.g. to add tracing transport
func WithHTTPClient(c *http.Client) Option {
	return func(h *httpClient) {
		h.client = c
	}
}

// httpClient is the transport shared by both providers
type httpClient struct {
	baseURL string
	client  *http.Client
}

func newHTTPClient(baseURL string, timeout time.Duration, opts []Option) httpClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	h := httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		// bounds requests made without a context deadline
		client: &http.Client{Timeout: timeout + 5*time.Second},
	}
	for _, opt := range opts {
		opt(&h)
	}
	return h
}

// postJSON sends body and decodes a 200 response into out. Errors are
// classified as transient or fatal.
func (h httpClient) postJSON(ctx context.Context, path string, headers map[string]string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return generation.NewFatalError(fmt.Errorf("marshaling request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return generation.NewFatalError(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return generation.NewTransientError(fmt.Errorf("HTTP request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return generation.NewTransientError(fmt.Errorf("read response body: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return classifyHTTPError(resp.StatusCode, respBody)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return generation.NewFatalError(fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

// classifyHTTPError determines if an HTTP error is transient or fatal
func classifyHTTPError(statusCode int, body []byte) error {
	bodyStr := string(body)
	if len(bodyStr) > 200 {
		bodyStr = bodyStr[:200] + "..."
	}
	err := fmt.Errorf("generator API error (status %d): %s", statusCode, bodyStr)

	switch {
	case statusCode == http.StatusTooManyRequests,
		statusCode == http.StatusRequestTimeout,
		statusCode >= 500:
		return generation.NewTransientError(err)
	default:
		return generation.NewFatalError(err)
	}
}
