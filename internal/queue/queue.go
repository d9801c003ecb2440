package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront-sync/internal/models"
	"storefront-sync/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Publisher delivers job envelopes to the broker.
type Publisher interface {
	PublishJob(ctx context.Context, job models.Job) error
}

// Queue enqueues background jobs. Jobs are processed by the worker.
type Queue struct {
	publisher Publisher
	policy    models.RetryPolicy
	metrics   *util.Metrics
	logger    *zap.Logger
}

// New returns a queue whose jobs default to policy.
func New(publisher Publisher, policy models.RetryPolicy, metrics *util.Metrics, logger *zap.Logger) *Queue {
	if policy.MaxAttempts < 1 {
		policy = models.DefaultRetryPolicy()
	}
	return &Queue{publisher: publisher, policy: policy, metrics: metrics, logger: logger}
}

// Enqueue publishes a job named name carrying payload. When policy is omitted
// the queue's default applies. It returns the new job's ID.
func (q *Queue) Enqueue(ctx context.Context, name string, payload interface{}, policy ...models.RetryPolicy) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s payload: %w", name, err)
	}

	job := models.Job{
		ID:        uuid.New().String(),
		Name:      name,
		Payload:   data,
		Retry:     q.policy,
		CreatedAt: time.Now().UTC(),
	}
	if len(policy) > 0 {
		job.Retry = policy[0]
	}

	if err := q.publisher.PublishJob(ctx, job); err != nil {
		q.record(name, "enqueue_failed")
		return "", err
	}

	q.record(name, "enqueued")
	q.logger.Info("Job enqueued", zap.String("job", name), zap.String("job_id", job.ID))
	return job.ID, nil
}

// EnqueueEmail adds a send-email job.
func (q *Queue) EnqueueEmail(ctx context.Context, to, subject, body string) (string, error) {
	return q.Enqueue(ctx, models.JobSendEmail, models.EmailPayload{To: to, Subject: subject, Body: body})
}

// EnqueueReport adds a generate-report job.
func (q *Queue) EnqueueReport(ctx context.Context, userID, reportType string) (string, error) {
	return q.Enqueue(ctx, models.JobGenerateReport, models.ReportPayload{UserID: userID, ReportType: reportType})
}

func (q *Queue) record(name, outcome string) {
	if q.metrics != nil {
		q.metrics.JobsTotal.WithLabelValues(name, outcome).Inc()
	}
}
