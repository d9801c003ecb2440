package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinels for errors.Is checks across the taxonomy.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrUpstream          = errors.New("upstream failure")
	ErrBreakerOpen       = errors.New("circuit_open")
	ErrContentStore      = errors.New("content store failure")
	ErrWebhookValidation = errors.New("webhook validation failed")
	ErrWebhookProcessing = errors.New("webhook processing failed")
)

// ValidationError reports malformed input detected before any remote call.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError means the authoritative source confirmed absence.
type NotFoundError struct {
	Resource string
	ID       string
}

func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", capitalize(e.Resource), e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// RemoteError is returned by the remote client once retries are exhausted.
// Message carries the last underlying failure.
type RemoteError struct {
	Operation string
	Attempts  int
	Message   string
	Err       error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s failed after %d attempt(s): %s", e.Operation, e.Attempts, e.Message)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// UpstreamError wraps any transport or breaker failure surfaced to callers.
type UpstreamError struct {
	Op  string
	Err error
}

func NewUpstreamError(op string, err error) *UpstreamError {
	return &UpstreamError{Op: op, Err: err}
}

func (e *UpstreamError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: upstream failure", e.Op)
	}
	return fmt.Sprintf("%s: upstream failure: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// BreakerOpenError is the fast-fail variant of UpstreamError: the call was never attempted.
type BreakerOpenError struct {
	Name   string
	Reason string
}

func NewBreakerOpenError(name string) *BreakerOpenError {
	return &BreakerOpenError{Name: name, Reason: "circuit_open"}
}

func (e *BreakerOpenError) Error() string {
	return fmt.Sprintf("circuit breaker %q rejected call: %s", e.Name, e.Reason)
}

func (e *BreakerOpenError) Is(target error) bool {
	return target == ErrBreakerOpen || target == ErrUpstream
}

// ContentStoreError reports a failed call against the downstream content store.
type ContentStoreError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *ContentStoreError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("content store %s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("content store %s: status %d: %s", e.Op, e.StatusCode, e.Message)
}

func (e *ContentStoreError) Is(target error) bool { return target == ErrContentStore }

// WebhookValidationError rejects an inbound event before any side effect happened.
type WebhookValidationError struct {
	Topic   string
	Message string
}

func NewWebhookValidationError(topic, message string) *WebhookValidationError {
	return &WebhookValidationError{Topic: topic, Message: message}
}

func (e *WebhookValidationError) Error() string {
	return fmt.Sprintf("invalid %s webhook: %s", e.Topic, e.Message)
}

func (e *WebhookValidationError) Is(target error) bool { return target == ErrWebhookValidation }

// WebhookProcessingError wraps whatever failed after the payload was validated.
type WebhookProcessingError struct {
	Topic      string
	ResourceID string
	Err        error
}

func NewWebhookProcessingError(topic, resourceID string, err error) *WebhookProcessingError {
	return &WebhookProcessingError{Topic: topic, ResourceID: resourceID, Err: err}
}

func (e *WebhookProcessingError) Error() string {
	return fmt.Sprintf("failed to process %s webhook for %s: %v", e.Topic, e.ResourceID, e.Err)
}

func (e *WebhookProcessingError) Unwrap() error { return e.Err }

func (e *WebhookProcessingError) Is(target error) bool { return target == ErrWebhookProcessing }

// HTTPStatus maps an error from the taxonomy onto a response status.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrWebhookProcessing):
		return http.StatusInternalServerError
	case errors.Is(err, ErrWebhookValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrBreakerOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrUpstream), errors.Is(err, ErrContentStore):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func capitalize(s string) string {
	if s == "" {
		return "Resource"
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}
