package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Webhook actions
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// WebhookEvent is an inbound platform event. It only lives for the duration of processing.
type WebhookEvent struct {
	Topic     string          `json:"topic"`
	Resource  string          `json:"resource"`
	Action    string          `json:"action"`
	Shop      string          `json:"shop"`
	WebhookID string          `json:"webhook_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

// ParseTopic splits a platform topic such as "products/create" into resource kind and action.
// ok is false for topics that do not map onto a known resource and action.
func ParseTopic(topic string) (resource, action string, ok bool) {
	plural, act, found := strings.Cut(strings.ToLower(strings.TrimSpace(topic)), "/")
	if !found {
		return "", "", false
	}

	switch plural {
	case "products":
		resource = ResourceProduct
	case "collections":
		resource = ResourceCollection
	default:
		return "", "", false
	}

	switch act {
	case ActionCreate, ActionUpdate, ActionDelete:
		return resource, act, true
	}
	return "", "", false
}

// Job names
const (
	JobSendEmail      = "send-email"
	JobGenerateReport = "generate-report"
)

// Backoff types
const (
	BackoffFixed       = "fixed"
	BackoffExponential = "exponential"
)

// RetryPolicy controls how the worker retries a job.
type RetryPolicy struct {
	MaxAttempts      int           `json:"max_attempts"`
	BackoffType      string        `json:"backoff_type"`
	Backoff          time.Duration `json:"backoff"`
	RemoveOnComplete bool          `json:"remove_on_complete"`
	KeepOnFail       bool          `json:"keep_on_fail"`
}

// DefaultRetryPolicy is 3 attempts with a fixed 1s backoff; completed jobs are
// discarded and failed jobs are kept.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:      3,
		BackoffType:      BackoffFixed,
		Backoff:          time.Second,
		RemoveOnComplete: true,
		KeepOnFail:       true,
	}
}

// Job is a unit of deferred work carried by the queue.
type Job struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Payload   json.RawMessage `json:"payload"`
	Retry     RetryPolicy     `json:"retry"`
	CreatedAt time.Time       `json:"created_at"`
}

// EmailPayload is the payload of a send-email job.
type EmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// ReportPayload is the payload of a generate-report job.
type ReportPayload struct {
	UserID     string `json:"user_id"`
	ReportType string `json:"report_type"`
}
