package llm

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// DefaultRetryAfter is used for rate limits when the provider does not say.
const DefaultRetryAfter = 60 * time.Second

// Error represents a provider-neutral LLM error.
type Error struct {
	Type        ErrorType
	Message     string
	Retryable   bool
	RetryAfter  *time.Duration
	StatusCode  int
	ProviderErr error // Original provider-specific error
}

// ErrorType represents the category of error.
type ErrorType string

const (
	ErrorTypeRateLimit       ErrorType = "rate_limit"
	ErrorTypeRequestTooLarge ErrorType = "request_too_large"
	ErrorTypeInvalidRequest  ErrorType = "invalid_request"
	ErrorTypeAuthentication  ErrorType = "authentication"
	ErrorTypeProvider        ErrorType = "provider"
	ErrorTypeNetwork         ErrorType = "network"
	ErrorTypeTimeout         ErrorType = "timeout"
	ErrorTypeUnknown         ErrorType = "unknown"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.ProviderErr != nil {
		return e.Message + ": " + e.ProviderErr.Error()
	}
	return e.Message
}

// Unwrap returns the underlying provider error.
func (e *Error) Unwrap() error {
	return e.ProviderErr
}

// IsRateLimitError checks if an error is a rate limit error.
func IsRateLimitError(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type == ErrorTypeRateLimit
	}
	return false
}

// IsRequestTooLargeError checks if an error is a request too large error.
func IsRequestTooLargeError(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type == ErrorTypeRequestTooLarge
	}
	return false
}

// IsRetryableError checks if an error is retryable.
func IsRetryableError(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Retryable
	}
	return false
}

// ExtractRetryAfter extracts the retry-after duration from an error.
func ExtractRetryAfter(err error) *time.Duration {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.RetryAfter
	}
	return nil
}

// NewRateLimitError creates a new rate limit error.
func NewRateLimitError(message string, retryAfter *time.Duration, providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeRateLimit,
		Message:     message,
		Retryable:   true,
		RetryAfter:  retryAfter,
		StatusCode:  http.StatusTooManyRequests,
		ProviderErr: providerErr,
	}
}

// NewRequestTooLargeError creates a new request too large error.
func NewRequestTooLargeError(message string, providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeRequestTooLarge,
		Message:     message,
		Retryable:   true,
		StatusCode:  http.StatusRequestEntityTooLarge,
		ProviderErr: providerErr,
	}
}

// NewProviderError creates a new provider error.
func NewProviderError(message string, providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeProvider,
		Message:     message,
		Retryable:   false,
		ProviderErr: providerErr,
	}
}

// NewNetworkError wraps a transport failure that never produced a status code.
func NewNetworkError(message string, providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeNetwork,
		Message:     message,
		Retryable:   true,
		ProviderErr: providerErr,
	}
}

// ErrorFromStatus classifies a failed provider call by its HTTP status code.
// provider prefixes the message, detail is the provider's own explanation.
func ErrorFromStatus(provider string, status int, detail string, providerErr error) *Error {
	switch status {
	case http.StatusTooManyRequests:
		retryAfter := DefaultRetryAfter
		return NewRateLimitError(fmt.Sprintf("%s rate limit: %s", provider, detail), &retryAfter, providerErr)
	case http.StatusRequestEntityTooLarge:
		return NewRequestTooLargeError(fmt.Sprintf("%s request too large: %s", provider, detail), providerErr)
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
		return &Error{
			Type:        ErrorTypeInvalidRequest,
			Message:     fmt.Sprintf("%s invalid request: %s", provider, detail),
			StatusCode:  status,
			ProviderErr: providerErr,
		}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &Error{
			Type:        ErrorTypeAuthentication,
			Message:     fmt.Sprintf("%s authentication failed: %s", provider, detail),
			StatusCode:  status,
			ProviderErr: providerErr,
		}
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return &Error{
			Type:        ErrorTypeTimeout,
			Message:     fmt.Sprintf("%s timeout: %s", provider, detail),
			Retryable:   true,
			StatusCode:  status,
			ProviderErr: providerErr,
		}
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return &Error{
			Type:        ErrorTypeProvider,
			Message:     fmt.Sprintf("%s server error: %s", provider, detail),
			Retryable:   true,
			StatusCode:  status,
			ProviderErr: providerErr,
		}
	default:
		return &Error{
			Type:        ErrorTypeProvider,
			Message:     fmt.Sprintf("%s API error: %s", provider, detail),
			StatusCode:  status,
			ProviderErr: providerErr,
		}
	}
}
