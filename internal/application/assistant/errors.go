package assistant

import (
	"fmt"
	"time"

	"github.com/rowens2025/powervisualize/internal/domain/shared"
)

// Validation errors returned before any other processing.
var (
	ErrQuestionRequired = shared.NewDomainError("QUESTION_REQUIRED", "A question is required")
	ErrQuestionTooLong  = shared.NewDomainError("QUESTION_TOO_LONG",
		fmt.Sprintf("Questions are limited to %d characters", MaxQuestionRunes))
)

// RateLimitError is returned when the client exceeded its request window.
// Response carries the payload to send with the 429.
type RateLimitError struct {
	RetryAfter time.Duration
	Response   *Response
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// FailureError is an internal failure that still carries a user-facing
// response. Code is one of the shared domain error codes.
type FailureError struct {
	Code     string
	Response *Response
	Err      error
}

func (e *FailureError) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return e.Code + ": " + e.Err.Error()
}

func (e *FailureError) Unwrap() error { return e.Err }

// Retryable reports whether the client may retry the same question.
func (e *FailureError) Retryable() bool {
	return e.Response != nil && e.Response.Meta != nil && e.Response.Meta.Retryable
}
