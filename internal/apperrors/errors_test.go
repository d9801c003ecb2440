package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotFoundErrorMessage(t *testing.T) {
	err := NewNotFoundError("product", "123")

	assert.Equal(t, "Product with ID 123 not found", err.Error())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrUpstream)
}

func TestBreakerOpenIsUpstream(t *testing.T) {
	err := fmt.Errorf("get product: %w", NewBreakerOpenError("shopify.getProduct"))

	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.ErrorIs(t, err, ErrUpstream)

	var boe *BreakerOpenError
	assert.True(t, errors.As(err, &boe))
	assert.Equal(t, "circuit_open", boe.Reason)
}

func TestUpstreamUnwrapsRemoteError(t *testing.T) {
	remote := &RemoteError{Operation: "query", Attempts: 3, Message: "connection refused"}
	err := NewUpstreamError("getProduct", remote)

	var re *RemoteError
	assert.True(t, errors.As(err, &re))
	assert.Equal(t, 3, re.Attempts)
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestWebhookProcessingKeepsCause(t *testing.T) {
	cause := NewNotFoundError("product", "9")
	err := NewWebhookProcessingError("products/create", "9", cause)

	assert.ErrorIs(t, err, ErrWebhookProcessing)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", NewValidationError("title", "required"), http.StatusBadRequest},
		{"not found", NewNotFoundError("product", "1"), http.StatusNotFound},
		{"breaker open", NewBreakerOpenError("x"), http.StatusServiceUnavailable},
		{"upstream", NewUpstreamError("op", errors.New("boom")), http.StatusBadGateway},
		{"webhook validation", NewWebhookValidationError("products/create", "missing id"), http.StatusUnprocessableEntity},
		{"webhook processing", NewWebhookProcessingError("products/create", "1", NewNotFoundError("product", "1")), http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}
