// Package generation defines the port to the text generator that formats
// evidence bundles into answers.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat message sent to the generator.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single completion request.
type Request struct {
	Messages    []Message
	MaxTokens   int
	Temperature float64
	// JSON asks the provider for a JSON object response when it supports it.
	JSON bool
}

// Response is the raw generator output.
type Response struct {
	Content string
	Model   string
}

// Generator produces a completion for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	Name() string
}

// TransientError represents a temporary error that may succeed on retry.
type TransientError struct {
	err error
}

func (e *TransientError) Error() string { return e.err.Error() }
func (e *TransientError) Unwrap() error { return e.err }

// NewTransientError wraps an error as transient.
func NewTransientError(err error) error {
	return &TransientError{err: err}
}

// FatalError represents a permanent error.
type FatalError struct {
	err error
}

func (e *FatalError) Error() string { return e.err.Error() }
func (e *FatalError) Unwrap() error { return e.err }

// NewFatalError wraps an error as fatal.
func NewFatalError(err error) error {
	return &FatalError{err: err}
}

// IsTransient reports whether err is a TransientError.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// IsFatal reports whether err is a FatalError.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}

// ErrMalformedOutput is returned when generator output has no usable JSON object.
var ErrMalformedOutput = errors.New("generator output is not a JSON object")

var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ExtractJSON pulls the first JSON object out of s. Fenced blocks are
// preferred; otherwise the outermost braces are used.
func ExtractJSON(s string) (string, error) {
	if m := fencePattern.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", ErrMalformedOutput
	}
	candidate := s[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return "", fmt.Errorf("%w: invalid JSON", ErrMalformedOutput)
	}
	return candidate, nil
}

// Output is the JSON shape the generator is asked to return.
type Output struct {
	Answer          string   `json:"answer"`
	SkillsConfirmed []string `json:"skills_confirmed"`
	MissingInfo     []string `json:"missing_info"`
}

// ParseOutput extracts and decodes an Output. An empty answer is malformed.
func ParseOutput(raw string) (*Output, error) {
	body, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}
	var out Output
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if strings.TrimSpace(out.Answer) == "" {
		return nil, fmt.Errorf("%w: empty answer", ErrMalformedOutput)
	}
	return &out, nil
}
