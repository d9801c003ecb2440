package util

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

// ErrorReporter is the error-tracking sink. Report must never block the caller
// on network I/O and never fails.
type ErrorReporter interface {
	Report(ctx context.Context, source string, err error)
}

// SentryReporter forwards errors to Sentry and counts them.
type SentryReporter struct {
	hub     *sentry.Hub
	metrics *Metrics
	logger  *zap.Logger
}

// NewSentryReporter initializes the Sentry client. An empty DSN yields a
// reporter that only counts and logs.
func NewSentryReporter(dsn, env string, metrics *Metrics, logger *zap.Logger) (*SentryReporter, error) {
	r := &SentryReporter{metrics: metrics, logger: logger}
	if dsn == "" {
		return r, nil
	}

	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: env,
		ServerName:  ServiceName,
	})
	if err != nil {
		return nil, err
	}

	r.hub = sentry.NewHub(client, sentry.NewScope())
	return r, nil
}

// Report implements ErrorReporter. Sentry's default transport is asynchronous.
func (r *SentryReporter) Report(ctx context.Context, source string, err error) {
	if err == nil {
		return
	}
	if r.metrics != nil {
		r.metrics.ErrorsReported.WithLabelValues(source).Inc()
	}
	r.logger.Debug("Reporting error", zap.String("source", source), zap.Error(err))

	if r.hub == nil {
		return
	}
	hub := r.hub.Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("source", source)
		hub.CaptureException(err)
	})
}

// Flush waits up to timeout for buffered events to be delivered.
func (r *SentryReporter) Flush(timeout time.Duration) {
	if r.hub != nil {
		r.hub.Flush(timeout)
	}
}

// NopReporter discards errors.
type NopReporter struct{}

func (NopReporter) Report(context.Context, string, error) {}
