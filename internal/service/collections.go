package service

import (
	"context"

	"storefront-sync/internal/apperrors"
	"storefront-sync/internal/cache"
	"storefront-sync/internal/models"
	"storefront-sync/internal/util"

	"go.uber.org/zap"
)

func (s *CatalogService) GetCollectionByID(ctx context.Context, id string) (c *models.Collection, err error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.GetCollectionByID")
	defer func() { util.EndSpan(span, err) }()

	return readThrough(ctx, s, models.ResourceCollection, OpGetCollection, id, s.remote.GetCollectionByID)
}

func (s *CatalogService) CreateCollection(ctx context.Context, input models.CollectionInput) (c *models.Collection, err error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.CreateCollection")
	defer func() { util.EndSpan(span, err) }()

	if err := s.checkInput(input); err != nil {
		return nil, err
	}

	c, err = guarded(ctx, s, OpCreateCollection, func(ctx context.Context) (*models.Collection, error) {
		return s.remote.CreateCollection(ctx, input)
	})
	if err != nil {
		return nil, err
	}
	if c == nil || c.ID == "" {
		return nil, apperrors.NewUpstreamError(OpCreateCollection, errEmptyMutation)
	}

	s.store(ctx, cache.Key(models.ResourceCollection, c.ID), c)
	s.syncBestEffort(ctx, OpContentCreate, c.ID, s.content.create(ctx, models.EntryFromCollection(c)))

	s.logger.Info("Collection created", zap.String("collection_id", c.ID))
	return c, nil
}

func (s *CatalogService) UpdateCollection(ctx context.Context, id string, input models.CollectionInput) (c *models.Collection, err error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.UpdateCollection")
	defer func() { util.EndSpan(span, err) }()

	if id, err = requireID(id); err != nil {
		return nil, err
	}
	if err := s.checkInput(input); err != nil {
		return nil, err
	}

	c, err = guarded(ctx, s, OpUpdateCollection, func(ctx context.Context) (*models.Collection, error) {
		return s.remote.UpdateCollection(ctx, id, input)
	})
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperrors.NewNotFoundError(models.ResourceCollection, id)
	}

	s.store(ctx, cache.Key(models.ResourceCollection, c.ID), c)
	s.syncBestEffort(ctx, OpContentUpdate, c.ID, s.content.update(ctx, models.EntryFromCollection(c)))

	s.logger.Info("Collection updated", zap.String("collection_id", c.ID))
	return c, nil
}

func (s *CatalogService) DeleteCollection(ctx context.Context, id string) (err error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.DeleteCollection")
	defer func() { util.EndSpan(span, err) }()

	if id, err = requireID(id); err != nil {
		return err
	}

	deleted, err := guarded(ctx, s, OpDeleteCollection, func(ctx context.Context) (bool, error) {
		return s.remote.DeleteCollection(ctx, id)
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, cache.Key(models.ResourceCollection, id))
	if !deleted {
		return apperrors.NewNotFoundError(models.ResourceCollection, id)
	}
	s.syncBestEffort(ctx, OpContentDelete, id, s.content.delete(ctx, models.ResourceCollection, id))

	s.logger.Info("Collection deleted", zap.String("collection_id", id))
	return nil
}
