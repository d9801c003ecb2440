package contentful

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"storefront-sync/internal/apperrors"
	"storefront-sync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorded struct {
	Method string
	Path   string
	Header http.Header
	Body   map[string]interface{}
}

type fakeCMA struct {
	mu       sync.Mutex
	requests []recorded
	entries  map[string]int
	failWith int
}

func (f *fakeCMA) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, _ := io.ReadAll(r.Body)
	var body map[string]interface{}
	_ = json.Unmarshal(raw, &body)
	f.requests = append(f.requests, recorded{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone(), Body: body})

	if f.failWith != 0 {
		w.WriteHeader(f.failWith)
		_, _ = io.WriteString(w, `{"sys":{"type":"Error","id":"ServerError"},"message":"boom"}`)
		return
	}

	id := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	version, exists := f.entries[id]

	switch r.Method {
	case http.MethodGet:
		if !exists {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, `{"sys":{"id":"`+id+`","version":`+itoa(version)+`}}`)
	case http.MethodPut:
		f.entries[id] = version + 1
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"sys":{"id":"`+id+`"}}`)
	case http.MethodDelete:
		if !exists {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		delete(f.entries, id)
		w.WriteHeader(http.StatusNoContent)
	}
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func newTestClient(t *testing.T) (*Client, *fakeCMA) {
	t.Helper()
	fake := &fakeCMA{entries: map[string]int{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	return NewClient(Config{
		BaseURL:     srv.URL,
		SpaceID:     "space1",
		AccessToken: "cma-token",
		ContentType: "product",
	}, zap.NewNop()), fake
}

func TestCreateEntry(t *testing.T) {
	c, fake := newTestClient(t)

	err := c.CreateEntry(context.Background(), models.ContentEntry{Kind: models.ResourceProduct, ID: "7", Title: "Shirt", Description: "Cotton"})
	require.NoError(t, err)

	require.Len(t, fake.requests, 1)
	req := fake.requests[0]
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "/spaces/space1/environments/master/entries/product-7", req.Path)
	assert.Equal(t, "Bearer cma-token", req.Header.Get("Authorization"))
	assert.Equal(t, "product", req.Header.Get(contentTypeHeader))
	assert.Equal(t, map[string]interface{}{
		"title":       map[string]interface{}{"en-US": "Shirt"},
		"description": map[string]interface{}{"en-US": "Cotton"},
	}, req.Body["fields"])
}

func TestUpdateEntrySendsCurrentVersion(t *testing.T) {
	c, fake := newTestClient(t)
	fake.entries["product-7"] = 4

	require.NoError(t, c.UpdateEntry(context.Background(), models.ContentEntry{Kind: models.ResourceProduct, ID: "7", Title: "New"}))

	require.Len(t, fake.requests, 2)
	assert.Equal(t, http.MethodGet, fake.requests[0].Method)
	assert.Equal(t, http.MethodPut, fake.requests[1].Method)
	assert.Equal(t, "4", fake.requests[1].Header.Get(versionHeader))
}

func TestUpdateEntryCreatesMissingEntry(t *testing.T) {
	c, fake := newTestClient(t)

	require.NoError(t, c.UpdateEntry(context.Background(), models.ContentEntry{Kind: models.ResourceProduct, ID: "8", Title: "New"}))

	require.Len(t, fake.requests, 2)
	assert.Equal(t, "product", fake.requests[1].Header.Get(contentTypeHeader))
	assert.Empty(t, fake.requests[1].Header.Get(versionHeader))
	assert.Contains(t, fake.entries, "product-8")
}

func TestDeleteEntryToleratesMissingEntry(t *testing.T) {
	c, fake := newTestClient(t)
	fake.entries["product-7"] = 1

	require.NoError(t, c.DeleteEntry(context.Background(), models.ResourceProduct, "7"))
	require.NoError(t, c.DeleteEntry(context.Background(), models.ResourceProduct, "7"))
	assert.NotContains(t, fake.entries, "product-7")
}

func TestDeleteEntryKeepsOtherKindWithSameID(t *testing.T) {
	c, fake := newTestClient(t)
	fake.entries["product-42"] = 1
	fake.entries["collection-42"] = 1

	require.NoError(t, c.DeleteEntry(context.Background(), models.ResourceCollection, "42"))

	assert.NotContains(t, fake.entries, "collection-42")
	assert.Contains(t, fake.entries, "product-42")
}

func TestServerErrorsAreContentStoreErrors(t *testing.T) {
	c, fake := newTestClient(t)
	fake.failWith = http.StatusInternalServerError

	err := c.CreateEntry(context.Background(), models.ContentEntry{ID: "7"})

	assert.ErrorIs(t, err, apperrors.ErrContentStore)
	cse, ok := err.(*apperrors.ContentStoreError)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, cse.StatusCode)
	assert.Equal(t, "boom", cse.Message)
}

func TestEntryID(t *testing.T) {
	assert.Equal(t, "product-7", EntryID(models.ResourceProduct, "7"))
	assert.Equal(t, "collection-7", EntryID(models.ResourceCollection, "7"))
	assert.Equal(t, "product-42", EntryID(models.ResourceProduct, "gid://shopify/Product/42"))
	assert.Equal(t, "a-b-c", EntryID("", "a b/c"))
	assert.Len(t, EntryID(models.ResourceProduct, strings.Repeat("x", 100)), maxEntryIDLength)
}
