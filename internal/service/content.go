package service

import (
	"context"

	"storefront-sync/internal/breaker"
	"storefront-sync/internal/models"
	"storefront-sync/internal/util"
)

// contentSync pushes title/description projections to the content store,
// each call guarded by its own breaker.
type contentSync struct {
	store    ContentStore
	breakers *breaker.Registry
	metrics  *util.Metrics
}

func (c *contentSync) create(ctx context.Context, entry models.ContentEntry) error {
	return c.fire(ctx, OpContentCreate, func(ctx context.Context) error {
		return c.store.CreateEntry(ctx, entry)
	})
}

func (c *contentSync) update(ctx context.Context, entry models.ContentEntry) error {
	return c.fire(ctx, OpContentUpdate, func(ctx context.Context) error {
		return c.store.UpdateEntry(ctx, entry)
	})
}

func (c *contentSync) delete(ctx context.Context, kind, id string) error {
	return c.fire(ctx, OpContentDelete, func(ctx context.Context) error {
		return c.store.DeleteEntry(ctx, kind, id)
	})
}

func (c *contentSync) fire(ctx context.Context, op string, fn func(context.Context) error) error {
	_, err := breaker.Fire(ctx, c.breakers, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	if err != nil && c.metrics != nil {
		c.metrics.DownstreamSyncFailed.WithLabelValues(op).Inc()
	}
	return err
}
