package service

import (
	"context"
	"errors"
	"strings"

	"storefront-sync/internal/apperrors"
	"storefront-sync/internal/cache"
	"storefront-sync/internal/models"
	"storefront-sync/internal/util"

	"go.uber.org/zap"
)

var errEmptyMutation = errors.New("mutation returned no resource")

// GetProductByID returns the product from cache, or from the platform on a miss.
func (s *CatalogService) GetProductByID(ctx context.Context, id string) (p *models.Product, err error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.GetProductByID")
	defer func() { util.EndSpan(span, err) }()

	return readThrough(ctx, s, models.ResourceProduct, OpGetProduct, id, s.remote.GetProductByID)
}

// SearchProducts queries the platform directly. Results are not cached.
func (s *CatalogService) SearchProducts(ctx context.Context, query string) (products []models.Product, err error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.SearchProducts")
	defer func() { util.EndSpan(span, err) }()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.NewValidationError("query", "must not be empty")
	}

	return guarded(ctx, s, OpSearchProducts, func(ctx context.Context) ([]models.Product, error) {
		return s.remote.SearchProducts(ctx, query)
	})
}

func (s *CatalogService) CreateProduct(ctx context.Context, input models.ProductInput) (p *models.Product, err error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.CreateProduct")
	defer func() { util.EndSpan(span, err) }()

	if err := s.checkInput(input); err != nil {
		return nil, err
	}

	p, err = guarded(ctx, s, OpCreateProduct, func(ctx context.Context) (*models.Product, error) {
		return s.remote.CreateProduct(ctx, input)
	})
	if err != nil {
		return nil, err
	}
	if p == nil || p.ID == "" {
		return nil, apperrors.NewUpstreamError(OpCreateProduct, errEmptyMutation)
	}

	s.store(ctx, cache.Key(models.ResourceProduct, p.ID), p)
	s.syncBestEffort(ctx, OpContentCreate, p.ID, s.content.create(ctx, models.EntryFromProduct(p)))

	s.logger.Info("Product created", zap.String("product_id", p.ID))
	return p, nil
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id string, input models.ProductInput) (p *models.Product, err error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.UpdateProduct")
	defer func() { util.EndSpan(span, err) }()

	if id, err = requireID(id); err != nil {
		return nil, err
	}
	if err := s.checkInput(input); err != nil {
		return nil, err
	}

	p, err = guarded(ctx, s, OpUpdateProduct, func(ctx context.Context) (*models.Product, error) {
		return s.remote.UpdateProduct(ctx, id, input)
	})
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperrors.NewNotFoundError(models.ResourceProduct, id)
	}

	s.store(ctx, cache.Key(models.ResourceProduct, p.ID), p)
	s.syncBestEffort(ctx, OpContentUpdate, p.ID, s.content.update(ctx, models.EntryFromProduct(p)))

	s.logger.Info("Product updated", zap.String("product_id", p.ID))
	return p, nil
}

// DeleteProduct removes the product from the platform, then from the cache and content store.
func (s *CatalogService) DeleteProduct(ctx context.Context, id string) (err error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.DeleteProduct")
	defer func() { util.EndSpan(span, err) }()

	if id, err = requireID(id); err != nil {
		return err
	}

	deleted, err := guarded(ctx, s, OpDeleteProduct, func(ctx context.Context) (bool, error) {
		return s.remote.DeleteProduct(ctx, id)
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, cache.Key(models.ResourceProduct, id))
	if !deleted {
		return apperrors.NewNotFoundError(models.ResourceProduct, id)
	}
	s.syncBestEffort(ctx, OpContentDelete, id, s.content.delete(ctx, models.ResourceProduct, id))

	s.logger.Info("Product deleted", zap.String("product_id", id))
	return nil
}

// InvalidateProductCache drops the cached snapshot and reports how many keys were removed.
func (s *CatalogService) InvalidateProductCache(ctx context.Context, id string) (int64, error) {
	id, err := requireID(id)
	if err != nil {
		return 0, err
	}
	return s.cache.Delete(ctx, cache.Key(models.ResourceProduct, id))
}

// syncBestEffort records a failed content sync without failing the write.
func (s *CatalogService) syncBestEffort(ctx context.Context, op, id string, err error) {
	if err == nil {
		return
	}
	s.logger.Error("Content sync failed",
		zap.String("operation", op),
		zap.String("resource_id", id),
		zap.Error(err))
	s.reporter.Report(ctx, "content_sync", err)
}
