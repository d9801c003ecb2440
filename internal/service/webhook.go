package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront-sync/internal/apperrors"
	"storefront-sync/internal/cache"
	"storefront-sync/internal/models"
	"storefront-sync/internal/util"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const webhookDedupPrefix = "webhook:"

// IdempotencyStore remembers delivered webhook IDs.
type IdempotencyStore interface {
	CheckIdempotencyKey(ctx context.Context, key string) (bool, error)
	SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// ProcessorConfig tunes the webhook processor.
type ProcessorConfig struct {
	AdminEmail      string
	RefetchAttempts int
	RefetchDelay    time.Duration
	RefetchFactor   float64
	DedupTTL        time.Duration
}

// DefaultProcessorConfig refetches up to 3 times starting at 1s and remembers deliveries for a day.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		RefetchAttempts: 3,
		RefetchDelay:    time.Second,
		RefetchFactor:   2,
		DedupTTL:        24 * time.Hour,
	}
}

// WebhookProcessor applies inbound platform events: it invalidates the cached
// snapshot, refetches the authoritative resource, pushes it to the content
// store and enqueues an admin notification.
type WebhookProcessor struct {
	catalog  *CatalogService
	queue    Notifier
	dedup    IdempotencyStore
	cfg      ProcessorConfig
	metrics  *util.Metrics
	reporter util.ErrorReporter
	logger   *zap.Logger
}

// NewWebhookProcessor builds a processor. queue and dedup may be nil.
func NewWebhookProcessor(catalog *CatalogService, queue Notifier, dedup IdempotencyStore, cfg ProcessorConfig) *WebhookProcessor {
	def := DefaultProcessorConfig()
	if cfg.RefetchAttempts < 1 {
		cfg.RefetchAttempts = def.RefetchAttempts
	}
	if cfg.RefetchFactor < 1 {
		cfg.RefetchFactor = def.RefetchFactor
	}
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = def.DedupTTL
	}

	return &WebhookProcessor{
		catalog:  catalog,
		queue:    queue,
		dedup:    dedup,
		cfg:      cfg,
		metrics:  catalog.metrics,
		reporter: catalog.reporter,
		logger:   catalog.logger,
	}
}

// Process runs one event to completion. Validation failures return
// *apperrors.WebhookValidationError before any side effect; anything failing
// later returns *apperrors.WebhookProcessingError. Both are reported.
func (p *WebhookProcessor) Process(ctx context.Context, event models.WebhookEvent) (err error) {
	ctx, span := util.StartSpan(ctx, "WebhookProcessor.Process",
		attribute.String("webhook.topic", event.Topic),
		attribute.String("webhook.shop", event.Shop))
	start := time.Now()
	outcome := "processed"
	defer func() {
		p.observe(event.Topic, outcome, time.Since(start))
		util.EndSpan(span, err)
	}()

	resource, action, ok := models.ParseTopic(event.Topic)
	if !ok {
		outcome = "ignored"
		p.logger.Info("Ignoring unsupported webhook topic",
			zap.String("topic", event.Topic),
			zap.String("shop", event.Shop))
		return nil
	}
	event.Resource, event.Action = resource, action

	id, err := ResourceID(event.Payload)
	if err != nil {
		outcome = "invalid"
		verr := apperrors.NewWebhookValidationError(event.Topic, err.Error())
		p.logger.Warn("Rejected webhook", zap.String("topic", event.Topic), zap.Error(verr))
		p.reporter.Report(ctx, "webhook", verr)
		return verr
	}

	if p.seen(ctx, event.WebhookID) {
		outcome = "duplicate"
		p.logger.Info("Skipping duplicate webhook",
			zap.String("topic", event.Topic),
			zap.String("webhook_id", event.WebhookID))
		return nil
	}

	if err := p.apply(ctx, event, id); err != nil {
		outcome = "failed"
		perr := apperrors.NewWebhookProcessingError(event.Topic, id, err)
		p.logger.Error("Webhook processing failed",
			zap.String("topic", event.Topic),
			zap.String("resource_id", id),
			zap.String("shop", event.Shop),
			zap.Error(err))
		p.reporter.Report(ctx, "webhook", perr)
		return perr
	}

	p.remember(ctx, event.WebhookID)
	p.logger.Info("Webhook processed",
		zap.String("topic", event.Topic),
		zap.String("resource_id", id),
		zap.String("shop", event.Shop))
	return nil
}

func (p *WebhookProcessor) apply(ctx context.Context, event models.WebhookEvent, id string) error {
	key := cache.Key(event.Resource, id)
	if _, err := p.catalog.cache.Delete(ctx, key); err != nil {
		return fmt.Errorf("invalidate %s: %w", key, err)
	}

	if event.Action == models.ActionDelete {
		if err := p.catalog.content.delete(ctx, event.Resource, id); err != nil {
			return fmt.Errorf("content delete: %w", err)
		}
		return nil
	}

	entry, err := p.refetch(ctx, event.Resource, id)
	if err != nil {
		return err
	}

	if event.Action == models.ActionCreate {
		err = p.catalog.content.create(ctx, entry)
	} else {
		err = p.catalog.content.update(ctx, entry)
	}
	if err != nil {
		return fmt.Errorf("content %s: %w", event.Action, err)
	}

	p.notify(ctx, event, entry)
	return nil
}

// refetch reads the resource through the catalog, retrying transient failures.
// Confirmed absence and an open breaker end the retries early.
func (p *WebhookProcessor) refetch(ctx context.Context, resource, id string) (models.ContentEntry, error) {
	fetch := util.Measure(p.metrics, "webhook.refetch_"+resource, func(ctx context.Context) (models.ContentEntry, error) {
		if resource == models.ResourceCollection {
			c, err := p.catalog.GetCollectionByID(ctx, id)
			if err != nil {
				return models.ContentEntry{}, err
			}
			return models.EntryFromCollection(c), nil
		}
		pr, err := p.catalog.GetProductByID(ctx, id)
		if err != nil {
			return models.ContentEntry{}, err
		}
		return models.EntryFromProduct(pr), nil
	})

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.cfg.RefetchDelay
	b.Multiplier = p.cfg.RefetchFactor
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.cfg.RefetchAttempts-1)), ctx)

	var entry models.ContentEntry
	err := backoff.Retry(func() error {
		var err error
		entry, err = fetch(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, apperrors.ErrBreakerOpen) || errors.Is(err, apperrors.ErrValidation) {
			return backoff.Permanent(err)
		}
		p.logger.Warn("Refetch attempt failed", zap.String("resource", resource), zap.String("resource_id", id), zap.Error(err))
		return err
	}, policy)
	return entry, err
}

func (p *WebhookProcessor) notify(ctx context.Context, event models.WebhookEvent, entry models.ContentEntry) {
	if p.queue == nil || p.cfg.AdminEmail == "" {
		return
	}

	subject := fmt.Sprintf("%s %sd: %s", titleCase(event.Resource), event.Action, entry.Title)
	body := fmt.Sprintf("%s %s was %sd in shop %s.", event.Resource, entry.ID, event.Action, event.Shop)

	if _, err := p.queue.EnqueueEmail(ctx, p.cfg.AdminEmail, subject, body); err != nil {
		p.logger.Error("Failed to enqueue notification",
			zap.String("topic", event.Topic),
			zap.String("resource_id", entry.ID),
			zap.Error(err))
	}
}

func (p *WebhookProcessor) seen(ctx context.Context, webhookID string) bool {
	if p.dedup == nil || webhookID == "" {
		return false
	}
	exists, err := p.dedup.CheckIdempotencyKey(ctx, webhookDedupPrefix+webhookID)
	if err != nil {
		p.logger.Warn("Failed to check webhook delivery", zap.String("webhook_id", webhookID), zap.Error(err))
		return false
	}
	return exists
}

func (p *WebhookProcessor) remember(ctx context.Context, webhookID string) {
	if p.dedup == nil || webhookID == "" {
		return
	}
	if err := p.dedup.SetIdempotencyKey(ctx, webhookDedupPrefix+webhookID, "1", p.cfg.DedupTTL); err != nil {
		p.logger.Warn("Failed to record webhook delivery", zap.String("webhook_id", webhookID), zap.Error(err))
	}
}

func (p *WebhookProcessor) observe(topic, outcome string, d time.Duration) {
	if p.metrics == nil {
		return
	}
	p.metrics.WebhookDuration.WithLabelValues(topic, outcome).Observe(d.Seconds())
	p.metrics.WebhooksTotal.WithLabelValues(topic, outcome).Inc()
}

// ResourceID extracts the resource identifier from a webhook body. The
// platform sends numeric IDs; strings and the admin GraphQL ID are accepted too.
func ResourceID(payload json.RawMessage) (string, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return "", errors.New("payload is empty")
	}

	var body struct {
		ID        json.RawMessage `json:"id"`
		GraphQLID string          `json:"admin_graphql_api_id"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return "", fmt.Errorf("payload is not a JSON object: %w", err)
	}

	var id string
	if len(body.ID) > 0 && string(body.ID) != "null" {
		var s string
		if err := json.Unmarshal(body.ID, &s); err == nil {
			id = s
		} else {
			var n json.Number
			if err := json.Unmarshal(body.ID, &n); err != nil {
				return "", errors.New("id must be a string or number")
			}
			id = n.String()
		}
	}
	if strings.TrimSpace(id) == "" {
		id = body.GraphQLID
	}

	id = models.NormalizeID(id)
	if id == "" {
		return "", errors.New("payload has no resource id")
	}
	return id, nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
