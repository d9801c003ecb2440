package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strconv"
	"time"

	"storefront-sync/internal/apperrors"
	"storefront-sync/internal/models"
	"storefront-sync/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Webhook headers set by the storefront platform.
const (
	HeaderTopic     = "X-Shopify-Topic"
	HeaderShop      = "X-Shopify-Shop-Domain"
	HeaderHMAC      = "X-Shopify-Hmac-Sha256"
	HeaderWebhookID = "X-Shopify-Webhook-Id"
)

const defaultFailedJobsLimit = 50

// Catalog is the product and collection service exposed over HTTP.
type Catalog interface {
	GetProductByID(ctx context.Context, id string) (*models.Product, error)
	SearchProducts(ctx context.Context, query string) ([]models.Product, error)
	CreateProduct(ctx context.Context, input models.ProductInput) (*models.Product, error)
	UpdateProduct(ctx context.Context, id string, input models.ProductInput) (*models.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	InvalidateProductCache(ctx context.Context, id string) (int64, error)

	GetCollectionByID(ctx context.Context, id string) (*models.Collection, error)
	CreateCollection(ctx context.Context, input models.CollectionInput) (*models.Collection, error)
	UpdateCollection(ctx context.Context, id string, input models.CollectionInput) (*models.Collection, error)
	DeleteCollection(ctx context.Context, id string) error
}

// WebhookProcessor applies inbound platform events.
type WebhookProcessor interface {
	Process(ctx context.Context, event models.WebhookEvent) error
}

// FailedJobLister exposes jobs retained after exhausting their retries.
type FailedJobLister interface {
	ListFailedJobs(ctx context.Context, limit int) ([]models.FailedJob, error)
}

// ReportQueue defers report generation to the background worker.
type ReportQueue interface {
	EnqueueReport(ctx context.Context, userID, reportType string) (string, error)
}

// Pinger is a dependency checked by the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BreakerStates reports the state of every circuit breaker.
type BreakerStates interface {
	States() map[string]string
}

// Options holds the optional collaborators of a Handler.
type Options struct {
	WebhookSecret string
	FailedJobs    FailedJobLister
	Reports       ReportQueue
	Breakers      BreakerStates
	Dependencies  map[string]Pinger
	Metrics       *util.Metrics
	Logger        *zap.Logger
}

// Handler contains HTTP handlers
type Handler struct {
	catalog  Catalog
	webhooks WebhookProcessor
	opts     Options
	logger   *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(catalog Catalog, webhooks WebhookProcessor, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = util.GetLogger()
	}
	return &Handler{
		catalog:  catalog,
		webhooks: webhooks,
		opts:     opts,
		logger:   logger,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	if h.opts.Metrics != nil {
		router.Use(prometheusMiddleware(h.opts.Metrics))
	}

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/webhooks/shopify", h.receiveWebhook)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/products/search", h.searchProducts)
		v1.GET("/products/:id", h.getProduct)
		v1.POST("/products", h.createProduct)
		v1.PUT("/products/:id", h.updateProduct)
		v1.DELETE("/products/:id", h.deleteProduct)
		v1.DELETE("/products/:id/cache", h.invalidateProduct)

		v1.GET("/collections/:id", h.getCollection)
		v1.POST("/collections", h.createCollection)
		v1.PUT("/collections/:id", h.updateCollection)
		v1.DELETE("/collections/:id", h.deleteCollection)

		v1.GET("/queue/failed", h.listFailedJobs)
		v1.POST("/reports", h.requestReport)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	resp := gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	}
	if h.opts.Breakers != nil {
		resp["breakers"] = h.opts.Breakers.States()
	}
	c.JSON(http.StatusOK, resp)
}

// readinessCheck pings every dependency and reports 503 if any is down.
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.opts.Dependencies))
	for name, dep := range h.opts.Dependencies {
		if err := dep.Ping(ctx); err != nil {
			h.logger.Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not ready"
	}
	c.JSON(status, gin.H{
		"status": state,
		"checks": checks,
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.catalog.GetProductByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) searchProducts(c *gin.Context) {
	products, err := h.catalog.SearchProducts(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

// createProduct handles product creation
func (h *Handler) createProduct(c *gin.Context) {
	var input models.ProductInput
	if !bindJSON(c, &input) {
		return
	}

	product, err := h.catalog.CreateProduct(c.Request.Context(), input)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (h *Handler) updateProduct(c *gin.Context) {
	var input models.ProductInput
	if !bindJSON(c, &input) {
		return
	}

	product, err := h.catalog.UpdateProduct(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) deleteProduct(c *gin.Context) {
	if err := h.catalog.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) invalidateProduct(c *gin.Context) {
	removed, err := h.catalog.InvalidateProductCache(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func (h *Handler) getCollection(c *gin.Context) {
	collection, err := h.catalog.GetCollectionByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, collection)
}

func (h *Handler) createCollection(c *gin.Context) {
	var input models.CollectionInput
	if !bindJSON(c, &input) {
		return
	}

	collection, err := h.catalog.CreateCollection(c.Request.Context(), input)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, collection)
}

func (h *Handler) updateCollection(c *gin.Context) {
	var input models.CollectionInput
	if !bindJSON(c, &input) {
		return
	}

	collection, err := h.catalog.UpdateCollection(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, collection)
}

func (h *Handler) deleteCollection(c *gin.Context) {
	if err := h.catalog.DeleteCollection(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listFailedJobs(c *gin.Context) {
	if h.opts.FailedJobs == nil {
		c.JSON(http.StatusOK, gin.H{"jobs": []models.FailedJob{}})
		return
	}

	limit := defaultFailedJobsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = n
	}

	jobs, err := h.opts.FailedJobs.ListFailedJobs(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

type reportRequest struct {
	UserID     string `json:"user_id" binding:"required"`
	ReportType string `json:"report_type" binding:"required"`
}

// requestReport enqueues a generate-report job and answers 202 with its ID.
func (h *Handler) requestReport(c *gin.Context) {
	if h.opts.Reports == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Report queue unavailable"})
		return
	}

	var req reportRequest
	if !bindJSON(c, &req) {
		return
	}

	id, err := h.opts.Reports.EnqueueReport(c.Request.Context(), req.UserID, req.ReportType)
	if err != nil {
		h.logger.Error("Failed to enqueue report", zap.String("user_id", req.UserID), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to enqueue report"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": id})
}

// receiveWebhook verifies and processes a platform webhook delivery.
func (h *Handler) receiveWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	if h.opts.WebhookSecret != "" && !ValidSignature(h.opts.WebhookSecret, body, c.GetHeader(HeaderHMAC)) {
		h.logger.Warn("Rejected webhook with invalid signature",
			zap.String("topic", c.GetHeader(HeaderTopic)),
			zap.String("shop", c.GetHeader(HeaderShop)))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid webhook signature"})
		return
	}

	event := models.WebhookEvent{
		Topic:     c.GetHeader(HeaderTopic),
		Shop:      c.GetHeader(HeaderShop),
		WebhookID: c.GetHeader(HeaderWebhookID),
		Payload:   body,
	}
	if err := h.webhooks.Process(c.Request.Context(), event); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ValidSignature checks a base64 HMAC-SHA256 of body under secret.
func ValidSignature(secret string, body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	got, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func bindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return false
	}
	return true
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware(m *util.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		m.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Observe(duration)

		m.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Inc()
	}
}
