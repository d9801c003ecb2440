package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront-sync/internal/broker"
	"storefront-sync/internal/models"
	"storefront-sync/internal/util"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// JobStore retains failed jobs and remembers completed ones.
type JobStore interface {
	SaveFailedJob(ctx context.Context, job *models.FailedJob) error
	IsJobProcessed(ctx context.Context, jobID string) (bool, error)
	MarkJobProcessed(ctx context.Context, jobID, name string) error
}

// JobWorker handles background processing of queued jobs
type JobWorker struct {
	consumer *broker.Consumer
	router   *broker.JobRouter
	store    JobStore
	metrics  *util.Metrics
	logger   *zap.Logger
}

// NewJobWorker creates a worker with the built-in handlers registered.
func NewJobWorker(consumer *broker.Consumer, store JobStore, metrics *util.Metrics, logger *zap.Logger) *JobWorker {
	w := &JobWorker{
		consumer: consumer,
		router:   broker.NewJobRouter(logger),
		store:    store,
		metrics:  metrics,
		logger:   logger,
	}

	h := &handlers{logger: logger}
	w.Handle(models.JobSendEmail, h.sendEmail)
	w.Handle(models.JobGenerateReport, h.generateReport)
	w.router.Default(w.withRetry(h.generic))

	return w
}

// Handle registers handler for jobs named name, wrapped in the job's retry policy.
func (w *JobWorker) Handle(name string, handler broker.JobHandler) {
	w.router.On(name, w.withRetry(handler))
}

// Start starts the worker
func (w *JobWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting job worker")
	return w.consumer.StartConsuming(ctx, w.HandleMessage)
}

// HandleMessage dispatches one broker message.
func (w *JobWorker) HandleMessage(ctx context.Context, msg kafka.Message) error {
	return w.router.HandleMessage(ctx, msg)
}

// Stop stops the worker
func (w *JobWorker) Stop() error {
	w.logger.Info("Stopping job worker")
	return w.consumer.Close()
}

// withRetry runs handler under the job's retry policy. Once attempts are
// exhausted the job is retained when the policy keeps failures, and the
// message is acknowledged either way.
func (w *JobWorker) withRetry(handler broker.JobHandler) broker.JobHandler {
	return func(ctx context.Context, job models.Job) error {
		if w.store != nil && job.ID != "" {
			done, err := w.store.IsJobProcessed(ctx, job.ID)
			if err != nil {
				w.logger.Warn("Failed to check job status", zap.String("job_id", job.ID), zap.Error(err))
			} else if done {
				w.logger.Info("Job already processed", zap.String("job_id", job.ID))
				return nil
			}
		}

		policy := job.Retry
		if policy.MaxAttempts < 1 {
			policy = models.DefaultRetryPolicy()
		}

		attempts := 0
		err := backoff.Retry(func() error {
			attempts++
			err := handler(ctx, job)
			if err != nil {
				w.logger.Warn("Job attempt failed",
					zap.String("job_name", job.Name),
					zap.String("job_id", job.ID),
					zap.Int("attempt", attempts),
					zap.Error(err))
			}
			return err
		}, backoffFor(ctx, policy))

		if err != nil {
			w.record(job.Name, "failed")
			w.logger.Error("Job failed",
				zap.String("job_name", job.Name),
				zap.String("job_id", job.ID),
				zap.Int("attempts", attempts),
				zap.Error(err))
			if policy.KeepOnFail {
				w.retain(ctx, job, attempts, err)
			}
			return nil
		}

		w.record(job.Name, "completed")
		if !policy.RemoveOnComplete && w.store != nil {
			if err := w.store.MarkJobProcessed(ctx, job.ID, job.Name); err != nil {
				w.logger.Error("Failed to mark job processed", zap.String("job_id", job.ID), zap.Error(err))
			}
		}
		return nil
	}
}

func (w *JobWorker) retain(ctx context.Context, job models.Job, attempts int, cause error) {
	if w.store == nil {
		return
	}
	failed := &models.FailedJob{
		ID:        job.ID,
		Name:      job.Name,
		Payload:   job.Payload,
		Attempts:  attempts,
		LastError: cause.Error(),
		FailedAt:  time.Now().UTC(),
	}
	if err := w.store.SaveFailedJob(ctx, failed); err != nil {
		w.logger.Error("Failed to retain failed job", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func (w *JobWorker) record(name, outcome string) {
	if w.metrics != nil {
		w.metrics.JobsTotal.WithLabelValues(name, outcome).Inc()
	}
}

func backoffFor(ctx context.Context, policy models.RetryPolicy) backoff.BackOff {
	var b backoff.BackOff
	if policy.BackoffType == models.BackoffExponential {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = policy.Backoff
		eb.Multiplier = 2
		eb.RandomizationFactor = 0
		eb.MaxElapsedTime = 0
		eb.Reset()
		b = eb
	} else {
		b = backoff.NewConstantBackOff(policy.Backoff)
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(policy.MaxAttempts-1)), ctx)
}

type handlers struct {
	logger *zap.Logger
}

// sendEmail logs the notification; no mail provider is wired.
func (h *handlers) sendEmail(_ context.Context, job models.Job) error {
	var p models.EmailPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return backoff.Permanent(fmt.Errorf("invalid send-email payload: %w", err))
	}
	if p.To == "" {
		return backoff.Permanent(fmt.Errorf("send-email job %s has no recipient", job.ID))
	}

	h.logger.Info("Sending email",
		zap.String("job_id", job.ID),
		zap.String("to", p.To),
		zap.String("subject", p.Subject))
	h.logger.Debug("Email body", zap.String("body", p.Body))
	return nil
}

func (h *handlers) generateReport(_ context.Context, job models.Job) error {
	var p models.ReportPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return backoff.Permanent(fmt.Errorf("invalid generate-report payload: %w", err))
	}

	h.logger.Info("Generating report",
		zap.String("job_id", job.ID),
		zap.String("user_id", p.UserID),
		zap.String("report_type", p.ReportType))
	return nil
}

func (h *handlers) generic(_ context.Context, job models.Job) error {
	h.logger.Info("Processing generic job",
		zap.String("job_id", job.ID),
		zap.String("job_name", job.Name),
		zap.ByteString("payload", job.Payload))
	return nil
}
