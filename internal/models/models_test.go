package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTopic(t *testing.T) {
	tests := []struct {
		topic    string
		resource string
		action   string
		ok       bool
	}{
		{"products/create", ResourceProduct, ActionCreate, true},
		{"products/update", ResourceProduct, ActionUpdate, true},
		{"products/delete", ResourceProduct, ActionDelete, true},
		{"collections/update", ResourceCollection, ActionUpdate, true},
		{" Products/Create ", ResourceProduct, ActionCreate, true},
		{"orders/create", "", "", false},
		{"products/publish", "", "", false},
		{"products", "", "", false},
		{"", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			resource, action, ok := ParseTopic(tt.topic)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.resource, resource)
			assert.Equal(t, tt.action, action)
		})
	}
}

func TestNormalizeID(t *testing.T) {
	assert.Equal(t, "42", NormalizeID("gid://shopify/Product/42"))
	assert.Equal(t, "42", NormalizeID(" 42 "))
	assert.Equal(t, "", NormalizeID(""))
	assert.Equal(t, "abc-1", NormalizeID("abc-1"))
}

func TestEntryProjection(t *testing.T) {
	p := &Product{ID: "1", Title: "Mug", Description: "Ceramic", Handle: "mug"}
	assert.Equal(t, ContentEntry{Kind: ResourceProduct, ID: "1", Title: "Mug", Description: "Ceramic"}, EntryFromProduct(p))

	c := &Collection{ID: "2", Title: "Sale"}
	assert.Equal(t, ContentEntry{Kind: ResourceCollection, ID: "2", Title: "Sale"}, EntryFromCollection(c))
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, BackoffFixed, p.BackoffType)
	assert.True(t, p.RemoveOnComplete)
	assert.True(t, p.KeepOnFail)
}
