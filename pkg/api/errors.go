package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Application error codes surfaced to callers.
const (
	CodeInvalidRequest      = "invalid_request"
	CodeNoProviderAvailable = "no_provider_available"
	CodeAllProvidersFailed  = "all_providers_failed"
	CodeConfigurationError  = "configuration_error"
	CodeCancelled           = "cancelled"
	CodeTimeout             = "timeout"
	CodeNotFound            = "not_found"
	CodeUnauthorized        = "unauthorized"
	CodeRateLimited         = "rate_limited"
	CodeInternal            = "internal_error"
)

// Failure classes assigned to dispatch attempts. They appear in attempt
// errors and in usage records.
const (
	ClassTimeout        = "timeout"
	ClassAuthError      = "auth_error"
	ClassRateLimited    = "rate_limited"
	ClassTransientError = "transient_error"
	ClassInvalidRequest = "invalid_request"
	ClassCancelled      = "cancelled"
)

// AttemptError describes why one fallback candidate failed. A consolidated
// list of these is returned to callers instead of raw provider errors.
type AttemptError struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Class    string `json:"class"`
	Message  string `json:"message"`
}

// Problem implements RFC 9457 with a stable application `code` extension.
type Problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`

	Extensions map[string]interface{} `json:"-"`

	// Log carries an internal error for server-side logging. Never serialized.
	Log error `json:"-"`
}

func (p *Problem) Error() string {
	return fmt.Sprintf("[%d] %s: %s", p.Status, p.Title, p.Detail)
}

// Code returns the application error code extension, if present.
func (p *Problem) Code() string {
	if c, ok := p.Extensions["code"].(string); ok {
		return c
	}
	return ""
}

func (p *Problem) MarshalJSON() ([]byte, error) {
	type alias Problem

	data := make(map[string]interface{})
	for k, v := range p.Extensions {
		data[k] = v
	}

	stdJSON, err := json.Marshal(alias(*p))
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(stdJSON, &data); err != nil {
		return nil, err
	}

	return json.Marshal(data)
}

type ProblemOption func(*Problem)

// NewProblem creates a generic Problem.
func NewProblem(status int, title, detail string, opts ...ProblemOption) *Problem {
	p := &Problem{
		Type:       "about:blank",
		Title:      title,
		Status:     status,
		Detail:     detail,
		Extensions: make(map[string]interface{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithCode sets the application error code extension.
func WithCode(code string) ProblemOption {
	return func(p *Problem) {
		p.Extensions["code"] = code
	}
}

// WithExtension adds a custom key-value pair to the response.
func WithExtension(key string, value interface{}) ProblemOption {
	return func(p *Problem) {
		p.Extensions[key] = value
	}
}

// WithLog attaches an internal error for server-side logging.
func WithLog(err error) ProblemOption {
	return func(p *Problem) {
		p.Log = err
	}
}

func InvalidRequestError(detail string, opts ...ProblemOption) *Problem {
	opts = append([]ProblemOption{WithCode(CodeInvalidRequest)}, opts...)
	return NewProblem(http.StatusBadRequest, "Invalid Request", detail, opts...)
}

// ValidationError wraps field-level binding failures.
func ValidationError(fields map[string]string) *Problem {
	return InvalidRequestError("One or more fields failed validation",
		WithExtension("errors", fields))
}

func NoProviderAvailableError() *Problem {
	return NewProblem(http.StatusServiceUnavailable, "No Provider Available",
		"every provider is unavailable or no model supports the requested task",
		WithCode(CodeNoProviderAvailable))
}

func AllProvidersFailedError(attempts []AttemptError) *Problem {
	return NewProblem(http.StatusBadGateway, "All Providers Failed",
		fmt.Sprintf("all %d candidate(s) failed", len(attempts)),
		WithCode(CodeAllProvidersFailed),
		WithExtension("attempts", attempts))
}

func ConfigurationError(detail string, opts ...ProblemOption) *Problem {
	opts = append([]ProblemOption{WithCode(CodeConfigurationError)}, opts...)
	return NewProblem(http.StatusUnprocessableEntity, "Configuration Error", detail, opts...)
}

func CancelledError() *Problem {
	// 499 is the de facto client-closed-request status.
	return NewProblem(499, "Request Cancelled",
		"the caller cancelled the request", WithCode(CodeCancelled))
}

func TimeoutError(detail string) *Problem {
	return NewProblem(http.StatusGatewayTimeout, "Request Timed Out", detail,
		WithCode(CodeTimeout))
}

func NotFoundError(detail string) *Problem {
	return NewProblem(http.StatusNotFound, "Not Found", detail, WithCode(CodeNotFound))
}

func RateLimitedError() *Problem {
	return NewProblem(http.StatusTooManyRequests, "Rate Limit Exceeded",
		"too many requests, slow down", WithCode(CodeRateLimited))
}

func UnauthorizedError(detail string) *Problem {
	return NewProblem(http.StatusUnauthorized, "Unauthorized", detail,
		WithCode(CodeUnauthorized))
}

func InternalError(detail string, err error) *Problem {
	return NewProblem(http.StatusInternalServerError, "Internal Server Error", detail,
		WithCode(CodeInternal), WithLog(err))
}
