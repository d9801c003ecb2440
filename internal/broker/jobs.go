package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"storefront-sync/internal/models"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// JobHandler processes one decoded job.
type JobHandler func(ctx context.Context, job models.Job) error

// JobRouter dispatches job envelopes to handlers registered by job name.
type JobRouter struct {
	handlers map[string]JobHandler
	fallback JobHandler
	logger   *zap.Logger
}

func NewJobRouter(logger *zap.Logger) *JobRouter {
	return &JobRouter{handlers: make(map[string]JobHandler), logger: logger}
}

// On registers handler for jobs named name.
func (r *JobRouter) On(name string, handler JobHandler) {
	r.handlers[name] = handler
}

// Default registers the handler for names with no specific handler.
func (r *JobRouter) Default(handler JobHandler) {
	r.fallback = handler
}

// DecodeJob unmarshals a job envelope from a message value.
func DecodeJob(msg kafka.Message) (models.Job, error) {
	var job models.Job
	if err := json.Unmarshal(msg.Value, &job); err != nil {
		return job, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	if job.Name == "" {
		for _, h := range msg.Headers {
			if h.Key == jobNameHeader {
				job.Name = string(h.Value)
			}
		}
	}
	return job, nil
}

// HandleMessage routes messages to the appropriate handler. Malformed
// envelopes are logged and dropped so they do not block the partition.
func (r *JobRouter) HandleMessage(ctx context.Context, msg kafka.Message) error {
	job, err := DecodeJob(msg)
	if err != nil {
		r.logger.Error("Dropping malformed job message",
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
		return nil
	}

	r.logger.Debug("Handling job", zap.String("job", job.Name), zap.String("job_id", job.ID))

	if h, ok := r.handlers[job.Name]; ok {
		return h(ctx, job)
	}
	if r.fallback != nil {
		return r.fallback(ctx, job)
	}

	r.logger.Warn("Unhandled job", zap.String("job", job.Name))
	return nil
}
