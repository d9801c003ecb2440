package service

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"time"

	"storefront-sync/internal/apperrors"
	"storefront-sync/internal/breaker"
	"storefront-sync/internal/cache"
	"storefront-sync/internal/models"
	"storefront-sync/internal/util"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Breaker names, one per protected operation.
const (
	OpGetProduct       = "get_product"
	OpSearchProducts   = "search_products"
	OpCreateProduct    = "create_product"
	OpUpdateProduct    = "update_product"
	OpDeleteProduct    = "delete_product"
	OpGetCollection    = "get_collection"
	OpCreateCollection = "create_collection"
	OpUpdateCollection = "update_collection"
	OpDeleteCollection = "delete_collection"
	OpContentCreate    = "content_create_entry"
	OpContentUpdate    = "content_update_entry"
	OpContentDelete    = "content_delete_entry"
)

// Operations lists every breaker-protected operation so they can be registered at startup.
var Operations = []string{
	OpGetProduct, OpSearchProducts, OpCreateProduct, OpUpdateProduct, OpDeleteProduct,
	OpGetCollection, OpCreateCollection, OpUpdateCollection, OpDeleteCollection,
	OpContentCreate, OpContentUpdate, OpContentDelete,
}

// Remote is the storefront platform as seen by the catalog.
type Remote interface {
	GetProductByID(ctx context.Context, id string) (*models.Product, error)
	SearchProducts(ctx context.Context, query string) ([]models.Product, error)
	CreateProduct(ctx context.Context, input models.ProductInput) (*models.Product, error)
	UpdateProduct(ctx context.Context, id string, input models.ProductInput) (*models.Product, error)
	DeleteProduct(ctx context.Context, id string) (bool, error)

	GetCollectionByID(ctx context.Context, id string) (*models.Collection, error)
	CreateCollection(ctx context.Context, input models.CollectionInput) (*models.Collection, error)
	UpdateCollection(ctx context.Context, id string, input models.CollectionInput) (*models.Collection, error)
	DeleteCollection(ctx context.Context, id string) (bool, error)

	SetAccessToken(token string)
}

// ContentStore is the downstream content management system.
type ContentStore interface {
	CreateEntry(ctx context.Context, entry models.ContentEntry) error
	UpdateEntry(ctx context.Context, entry models.ContentEntry) error
	DeleteEntry(ctx context.Context, kind, id string) error
}

// Notifier defers admin email to the background job queue.
type Notifier interface {
	EnqueueEmail(ctx context.Context, to, subject, body string) (string, error)
}

// CatalogService orchestrates products and collections across the cache,
// the storefront platform and the content store. Reads are read-through,
// writes are write-through, and content sync is best-effort.
type CatalogService struct {
	remote   Remote
	cache    cache.Store
	breakers *breaker.Registry
	content  *contentSync
	ttl      time.Duration
	group    singleflight.Group
	validate *validator.Validate
	metrics  *util.Metrics
	reporter util.ErrorReporter
	logger   *zap.Logger
}

// Options holds the optional collaborators of a CatalogService.
type Options struct {
	TTL      time.Duration
	Metrics  *util.Metrics
	Reporter util.ErrorReporter
	Logger   *zap.Logger
}

func NewCatalogService(remote Remote, store cache.Store, breakers *breaker.Registry, content ContentStore, opts Options) *CatalogService {
	if opts.TTL <= 0 {
		opts.TTL = cache.DefaultTTL
	}
	if opts.Reporter == nil {
		opts.Reporter = util.NopReporter{}
	}
	if opts.Logger == nil {
		opts.Logger = util.GetLogger()
	}

	return &CatalogService{
		remote:   remote,
		cache:    store,
		breakers: breakers,
		content:  &contentSync{store: content, breakers: breakers, metrics: opts.Metrics},
		ttl:      opts.TTL,
		validate: newValidator(),
		metrics:  opts.Metrics,
		reporter: opts.Reporter,
		logger:   opts.Logger,
	}
}

// SetAccessToken rotates the storefront platform credential.
func (s *CatalogService) SetAccessToken(token string) {
	s.remote.SetAccessToken(token)
}

// readThrough serves resource id from cache, falling back to fetch through
// the op breaker. Concurrent misses for one key share a single fetch. A nil
// result is a NotFoundError and is never cached.
func readThrough[T any](ctx context.Context, s *CatalogService, resource, op, id string, fetch func(context.Context, string) (*T, error)) (*T, error) {
	id = models.NormalizeID(id)
	if id == "" {
		return nil, apperrors.NewValidationError("id", "must not be empty")
	}
	key := cache.Key(resource, id)

	if v, ok := lookup[T](ctx, s, resource, key); ok {
		return v, nil
	}

	// The shared fetch outlives any single caller; each caller still stops
	// waiting when its own context ends.
	fetchCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		call := util.Measure(s.metrics, op, func(ctx context.Context) (*T, error) {
			return fetch(ctx, id)
		})
		v, err := breaker.Fire(fetchCtx, s.breakers, op, call)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, apperrors.NewNotFoundError(resource, id)
		}
		s.store(fetchCtx, key, v)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return nil, s.remoteError(op, ctx.Err())
	case r := <-ch:
		if r.Shared {
			s.logger.Debug("Coalesced cache miss", zap.String("key", key))
		}
		if r.Err != nil {
			return nil, s.remoteError(op, r.Err)
		}
		return r.Val.(*T), nil
	}
}

func lookup[T any](ctx context.Context, s *CatalogService, resource, key string) (*T, bool) {
	raw, ok := s.cache.Get(ctx, key)
	if !ok {
		s.recordCache(resource, "miss")
		return nil, false
	}

	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		s.logger.Warn("Discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
		s.recordCache(resource, "error")
		return nil, false
	}
	s.recordCache(resource, "hit")
	return &v, true
}

// store writes a snapshot with the configured TTL. Failures are logged only.
func (s *CatalogService) store(ctx context.Context, key string, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("Failed to encode cache entry", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, key, string(b), s.ttl); err != nil {
		s.logger.Warn("Failed to populate cache", zap.String("key", key), zap.Error(err))
	}
}

// invalidate removes a snapshot. Failures are logged only.
func (s *CatalogService) invalidate(ctx context.Context, key string) {
	if _, err := s.cache.Delete(ctx, key); err != nil {
		s.logger.Warn("Failed to invalidate cache entry", zap.String("key", key), zap.Error(err))
	}
}

// guarded runs a remote call through its breaker and maps failures.
func guarded[T any](ctx context.Context, s *CatalogService, op string, fn func(context.Context) (T, error)) (T, error) {
	v, err := breaker.Fire(ctx, s.breakers, op, util.Measure(s.metrics, op, fn))
	if err != nil {
		var zero T
		return zero, s.remoteError(op, err)
	}
	return v, nil
}

// remoteError maps a breaker or remote failure onto the caller-facing taxonomy.
func (s *CatalogService) remoteError(op string, err error) error {
	switch {
	case errors.Is(err, apperrors.ErrNotFound), errors.Is(err, apperrors.ErrValidation):
		return err
	case errors.Is(err, apperrors.ErrBreakerOpen):
		s.logger.Warn("Call rejected by open circuit", zap.String("operation", op))
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewUpstreamError(op, err)
	}

	s.logger.Error("Upstream call failed", zap.String("operation", op), zap.Error(err))
	return apperrors.NewUpstreamError(op, err)
}

func (s *CatalogService) checkInput(input interface{}) error {
	err := s.validate.Struct(input)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return apperrors.NewValidationError(fe.Field(), validationMessage(fe))
	}
	return apperrors.NewValidationError("", err.Error())
}

func (s *CatalogService) recordCache(resource, result string) {
	if s.metrics != nil {
		s.metrics.CacheRequests.WithLabelValues(resource, result).Inc()
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

func requireID(id string) (string, error) {
	id = models.NormalizeID(id)
	if id == "" {
		return "", apperrors.NewValidationError("id", "must not be empty")
	}
	return id, nil
}
