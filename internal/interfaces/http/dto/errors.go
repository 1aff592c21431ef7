package dto

import "net/http"

// API error codes. Every failure response carries one in error.code and in
// the X-Error-Code header.
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"

	ErrCodeValidation         = "ERR_VALIDATION"
	ErrCodeValidationRequired = "ERR_VALIDATION_REQUIRED"
	ErrCodeValidationLength   = "ERR_VALIDATION_LENGTH"

	ErrCodeBadRequest       = "ERR_BAD_REQUEST"
	ErrCodeNotFound         = "ERR_NOT_FOUND"
	ErrCodeForbidden        = "ERR_FORBIDDEN"
	ErrCodeInvalidJSON      = "ERR_INVALID_JSON"
	ErrCodeBodyTooLarge     = "ERR_BODY_TOO_LARGE"
	ErrCodeMethodNotAllowed = "ERR_METHOD_NOT_ALLOWED"

	ErrCodeRateLimited = "ERR_RATE_LIMITED"

	// Generator and store failures still answer 500 with a canned message.
	ErrCodeGeneratorTimeout = "ERR_GENERATOR_TIMEOUT"
	ErrCodeGeneratorFailed  = "ERR_GENERATOR_FAILED"
	ErrCodeStoreUnavailable = "ERR_STORE_UNAVAILABLE"

	ErrCodeNotReady = "ERR_NOT_READY"
)

type codeInfo struct {
	status int
	// domain is the application-layer code translated into this one, if any.
	domain string
}

var codes = map[string]codeInfo{
	ErrCodeUnknown:            {status: http.StatusInternalServerError},
	ErrCodeInternal:           {http.StatusInternalServerError, "INTERNAL"},
	ErrCodeValidation:         {status: http.StatusBadRequest},
	ErrCodeValidationRequired: {http.StatusBadRequest, "QUESTION_REQUIRED"},
	ErrCodeValidationLength:   {http.StatusBadRequest, "QUESTION_TOO_LONG"},
	ErrCodeBadRequest:         {http.StatusBadRequest, "INVALID_INPUT"},
	ErrCodeNotFound:           {http.StatusNotFound, "NOT_FOUND"},
	ErrCodeForbidden:          {status: http.StatusForbidden},
	ErrCodeInvalidJSON:        {status: http.StatusBadRequest},
	ErrCodeBodyTooLarge:       {status: http.StatusRequestEntityTooLarge},
	ErrCodeMethodNotAllowed:   {status: http.StatusMethodNotAllowed},
	ErrCodeRateLimited:        {status: http.StatusTooManyRequests},
	ErrCodeGeneratorTimeout:   {http.StatusInternalServerError, "GENERATOR_TIMEOUT"},
	ErrCodeGeneratorFailed:    {http.StatusInternalServerError, "GENERATOR_FAILED"},
	ErrCodeStoreUnavailable:   {http.StatusInternalServerError, "STORE_UNAVAILABLE"},
	ErrCodeNotReady:           {status: http.StatusServiceUnavailable},
}

var fromDomain = func() map[string]string {
	m := make(map[string]string, len(codes))
	for api, info := range codes {
		if info.domain != "" {
			m[info.domain] = api
		}
	}
	return m
}()

// GetHTTPStatus returns the status for an API error code, 500 for codes it
// does not know.
func GetHTTPStatus(code string) int {
	if info, ok := codes[code]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

// NormalizeErrorCode translates an application-layer code into its API
// code. Anything else comes back unchanged.
func NormalizeErrorCode(code string) string {
	if api, ok := fromDomain[code]; ok {
		return api
	}
	return code
}
