package contentful

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"storefront-sync/internal/apperrors"
	"storefront-sync/internal/models"
	"storefront-sync/internal/util"

	"go.uber.org/zap"
)

const (
	mediaType          = "application/vnd.contentful.management.v1+json"
	contentTypeHeader  = "X-Contentful-Content-Type"
	versionHeader      = "X-Contentful-Version"
	maxEntryIDLength   = 64
	defaultHTTPTimeout = 10 * time.Second
)

var invalidIDChars = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

// Config addresses one space environment of the Content Management API.
type Config struct {
	BaseURL     string
	SpaceID     string
	Environment string
	AccessToken string
	ContentType string
	Locale      string
	Timeout     time.Duration
}

// Client keeps title/description entries in the content store in step with
// the catalog. It makes a single attempt per call.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	if cfg.Environment == "" {
		cfg.Environment = "master"
	}
	if cfg.Locale == "" {
		cfg.Locale = "en-US"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

type entryFields map[string]map[string]string

type entryBody struct {
	Fields entryFields `json:"fields"`
}

type entryResponse struct {
	Sys struct {
		ID      string `json:"id"`
		Version int    `json:"version"`
	} `json:"sys"`
}

// CreateEntry creates the entry under an ID derived from the resource kind and ID.
func (c *Client) CreateEntry(ctx context.Context, entry models.ContentEntry) (err error) {
	ctx, span := util.StartSpan(ctx, "contentful.create_entry")
	defer func() { util.EndSpan(span, err) }()

	id := EntryID(entry.Kind, entry.ID)
	_, err = c.send(ctx, "create_entry", http.MethodPut, id, c.body(entry), map[string]string{
		contentTypeHeader: c.cfg.ContentType,
	})
	if err != nil {
		return err
	}
	c.logger.Info("Content entry created", zap.String("entry_id", id))
	return nil
}

// UpdateEntry overwrites the entry's fields, creating it if it does not exist yet.
func (c *Client) UpdateEntry(ctx context.Context, entry models.ContentEntry) (err error) {
	ctx, span := util.StartSpan(ctx, "contentful.update_entry")
	defer func() { util.EndSpan(span, err) }()

	id := EntryID(entry.Kind, entry.ID)
	current, err := c.send(ctx, "get_entry", http.MethodGet, id, nil, nil)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return c.CreateEntry(ctx, entry)
		}
		return err
	}

	var existing entryResponse
	if err := json.Unmarshal(current, &existing); err != nil {
		return &apperrors.ContentStoreError{Op: "get_entry", Message: "decode entry: " + err.Error()}
	}

	_, err = c.send(ctx, "update_entry", http.MethodPut, id, c.body(entry), map[string]string{
		versionHeader: strconv.Itoa(existing.Sys.Version),
	})
	if err != nil {
		return err
	}
	c.logger.Info("Content entry updated",
		zap.String("entry_id", id),
		zap.Int("version", existing.Sys.Version))
	return nil
}

// DeleteEntry removes the entry. A missing entry is not an error.
func (c *Client) DeleteEntry(ctx context.Context, kind, resourceID string) (err error) {
	ctx, span := util.StartSpan(ctx, "contentful.delete_entry")
	defer func() { util.EndSpan(span, err) }()

	id := EntryID(kind, resourceID)
	_, err = c.send(ctx, "delete_entry", http.MethodDelete, id, nil, nil)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			c.logger.Debug("Content entry already absent", zap.String("entry_id", id))
			return nil
		}
		return err
	}
	c.logger.Info("Content entry deleted", zap.String("entry_id", id))
	return nil
}

func (c *Client) body(entry models.ContentEntry) []byte {
	b, _ := json.Marshal(entryBody{Fields: entryFields{
		"title":       {c.cfg.Locale: entry.Title},
		"description": {c.cfg.Locale: entry.Description},
	}})
	return b
}

func (c *Client) entryURL(id string) string {
	return fmt.Sprintf("%s/spaces/%s/environments/%s/entries/%s", c.cfg.BaseURL, c.cfg.SpaceID, c.cfg.Environment, id)
}

func (c *Client) send(ctx context.Context, op, method, id string, body []byte, headers map[string]string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.entryURL(id), reader)
	if err != nil {
		return nil, &apperrors.ContentStoreError{Op: op, Message: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	if body != nil {
		req.Header.Set("Content-Type", mediaType)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &apperrors.ContentStoreError{Op: op, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &apperrors.ContentStoreError{Op: op, StatusCode: resp.StatusCode, Message: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &apperrors.ContentStoreError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}
	return raw, nil
}

func isStatus(err error, code int) bool {
	cse, ok := err.(*apperrors.ContentStoreError)
	return ok && cse.StatusCode == code
}

// errorMessage extracts the message of a CMA error body, falling back to the raw text.
func errorMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Message != "" {
		return body.Message
	}
	s := strings.TrimSpace(string(raw))
	if len(s) > 256 {
		s = s[:256]
	}
	return s
}

// EntryID maps a resource onto an entry ID in the character set and length the
// content store accepts. The kind prefix keeps products and collections that
// share a numeric ID apart.
func EntryID(kind, resourceID string) string {
	id := models.NormalizeID(resourceID)
	if kind != "" {
		id = kind + "-" + id
	}
	id = invalidIDChars.ReplaceAllString(id, "-")
	if len(id) > maxEntryIDLength {
		id = id[:maxEntryIDLength]
	}
	return id
}

// NopStore is used when the content store is not configured.
type NopStore struct{}

func (NopStore) CreateEntry(context.Context, models.ContentEntry) error { return nil }
func (NopStore) UpdateEntry(context.Context, models.ContentEntry) error { return nil }
func (NopStore) DeleteEntry(context.Context, string, string) error      { return nil }
