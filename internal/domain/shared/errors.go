package shared

// DomainError is an error with a stable machine-readable code. Two domain
// errors match under errors.Is when their codes are equal.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

func (e *DomainError) Error() string { return e.Message }

func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

var (
	ErrNotFound         = NewDomainError("NOT_FOUND", "Resource not found")
	ErrInvalidInput     = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrStoreUnavailable = NewDomainError("STORE_UNAVAILABLE", "Evidence store is unavailable")
	ErrGeneratorTimeout = NewDomainError("GENERATOR_TIMEOUT", "Answer generation timed out")
	ErrGeneratorFailed  = NewDomainError("GENERATOR_FAILED", "Answer generation failed")
	// ErrInvariantViolated marks stored evidence that breaks a data rule,
	// such as a page linked to a project without a project page type.
	ErrInvariantViolated = NewDomainError("INVARIANT_VIOLATED", "Stored evidence violates a data invariant")
)
