package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"storefront-sync/internal/apperrors"
	"storefront-sync/internal/util"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const accessTokenHeader = "X-Shopify-Access-Token"

// RetryPolicy bounds the attempts made for a single GraphQL call.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Factor       float64
}

// DefaultRetryPolicy makes up to 3 attempts, waiting 1s then 2s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialDelay: time.Second, Factor: 2}
}

// Config configures the GraphQL client.
type Config struct {
	Endpoint    string
	AccessToken string
	Timeout     time.Duration
	Retry       RetryPolicy
}

// Client issues GraphQL queries and mutations against the storefront admin API.
// It retries failed calls but holds no cache or breaker state.
type Client struct {
	endpoint   string
	httpClient *http.Client
	retry      RetryPolicy
	reporter   util.ErrorReporter
	metrics    *util.Metrics
	logger     *zap.Logger

	mu          sync.RWMutex
	accessToken string
}

func NewClient(cfg Config, reporter util.ErrorReporter, metrics *util.Metrics, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Retry.MaxAttempts < 1 {
		cfg.Retry = DefaultRetryPolicy()
	}
	if cfg.Retry.Factor < 1 {
		cfg.Retry.Factor = 1
	}
	if reporter == nil {
		reporter = util.NopReporter{}
	}

	return &Client{
		endpoint:    cfg.Endpoint,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		retry:       cfg.Retry,
		reporter:    reporter,
		metrics:     metrics,
		logger:      logger,
		accessToken: cfg.AccessToken,
	}
}

// SetAccessToken replaces the token used on subsequent calls.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	c.accessToken = token
	c.mu.Unlock()
	c.logger.Debug("Shopify access token updated")
}

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors"`
}

// GraphQLError is one entry of a response's top-level errors array.
type GraphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

// ResponseError reports a GraphQL errors array.
type ResponseError struct {
	Errors []GraphQLError
}

func (e *ResponseError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, ge := range e.Errors {
		msgs = append(msgs, ge.Message)
	}
	return "graphql: " + strings.Join(msgs, "; ")
}

func (e *ResponseError) throttled() bool {
	for _, ge := range e.Errors {
		if ge.Extensions.Code == "THROTTLED" {
			return true
		}
	}
	return false
}

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("graphql endpoint returned status %d: %s", e.StatusCode, e.Body)
}

// Query sends document with variables and decodes the data object into out.
// Failed attempts are retried with exponential backoff; once attempts are
// exhausted the call fails with *apperrors.RemoteError.
func (c *Client) Query(ctx context.Context, document string, variables map[string]interface{}, out interface{}) (err error) {
	ctx, span := util.StartSpan(ctx, "shopify.graphql.query")
	defer func() { util.EndSpan(span, err) }()

	attempt := 0
	var lastErr error

	op := func() error {
		attempt++
		data, err := c.do(ctx, document, variables)
		if err != nil {
			lastErr = err
			c.onAttemptFailed(ctx, attempt, err)
			if !retryable(ctx, err) {
				return backoff.Permanent(err)
			}
			return err
		}
		c.recordAttempt("success")

		if out == nil || len(data) == 0 || string(data) == "null" {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			lastErr = fmt.Errorf("decode graphql data: %w", err)
			return backoff.Permanent(lastErr)
		}
		return nil
	}

	if err := backoff.Retry(op, c.backoff(ctx)); err != nil {
		if lastErr == nil {
			lastErr = err
		}
		c.logger.Error("GraphQL query failed",
			zap.Int("attempts", attempt),
			zap.Error(lastErr))
		return &apperrors.RemoteError{
			Operation: operationName(document),
			Attempts:  attempt,
			Message:   lastErr.Error(),
			Err:       lastErr,
		}
	}
	return nil
}

// Mutate is an alias of Query.
func (c *Client) Mutate(ctx context.Context, document string, variables map[string]interface{}, out interface{}) error {
	return c.Query(ctx, document, variables, out)
}

func (c *Client) backoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retry.InitialDelay
	b.Multiplier = c.retry.Factor
	b.RandomizationFactor = 0
	b.MaxInterval = time.Hour
	b.MaxElapsedTime = 0
	b.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.retry.MaxAttempts-1)), ctx)
}

func (c *Client) onAttemptFailed(ctx context.Context, attempt int, err error) {
	c.recordAttempt("failure")
	c.logger.Warn("GraphQL query attempt failed",
		zap.Int("attempt", attempt),
		zap.Error(err))
	c.reporter.Report(ctx, "shopify.graphql", err)
}

func (c *Client) recordAttempt(outcome string) {
	if c.metrics != nil {
		c.metrics.RemoteAttempts.WithLabelValues(outcome).Inc()
	}
}

func (c *Client) do(ctx context.Context, document string, variables map[string]interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(graphQLRequest{Query: document, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("encode graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(accessTokenHeader, c.token())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read graphql response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(raw), 512)}
	}

	var gr graphQLResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return nil, fmt.Errorf("decode graphql response: %w", err)
	}
	if len(gr.Errors) > 0 {
		return nil, &ResponseError{Errors: gr.Errors}
	}
	return gr.Data, nil
}

// retryable treats client-side HTTP errors and non-throttling GraphQL errors
// as permanent; transport failures, 408, 429 and 5xx are retried.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == http.StatusRequestTimeout, se.StatusCode == http.StatusTooManyRequests:
			return true
		case se.StatusCode >= 400 && se.StatusCode < 500:
			return false
		}
		return true
	}

	var re *ResponseError
	if errors.As(err, &re) {
		return re.throttled()
	}
	return true
}

// operationName extracts "getProduct" from "query getProduct($id: ID!) {...}".
func operationName(document string) string {
	fields := strings.Fields(document)
	for i, f := range fields {
		if (f == "query" || f == "mutation") && i+1 < len(fields) {
			name := fields[i+1]
			if idx := strings.IndexAny(name, "({"); idx >= 0 {
				name = name[:idx]
			}
			if name != "" {
				return name
			}
			return f
		}
	}
	return "query"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
