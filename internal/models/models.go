package models

import (
	"strings"
	"time"
)

// Resource kinds, also used as cache key prefixes.
const (
	ResourceProduct    = "product"
	ResourceCollection = "collection"
)

// Product is a storefront product snapshot as returned by the platform.
type Product struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Handle      string             `json:"handle,omitempty"`
	Description string             `json:"description,omitempty"`
	Images      *ImageConnection   `json:"images,omitempty"`
	Variants    *VariantConnection `json:"variants,omitempty"`
}

type ImageConnection struct {
	Edges []ImageEdge `json:"edges"`
}

type ImageEdge struct {
	Node Image `json:"node"`
}

type Image struct {
	OriginalSrc string `json:"originalSrc"`
}

type VariantConnection struct {
	Edges []VariantEdge `json:"edges"`
}

type VariantEdge struct {
	Node Variant `json:"node"`
}

type Variant struct {
	ID    string `json:"id"`
	Price string `json:"price"`
}

// Collection is a storefront collection snapshot.
type Collection struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Handle      string             `json:"handle,omitempty"`
	Description string             `json:"description,omitempty"`
	Products    *ProductConnection `json:"products,omitempty"`
}

type ProductConnection struct {
	Edges []ProductEdge `json:"edges"`
}

type ProductEdge struct {
	Node ProductSummary `json:"node"`
}

type ProductSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ProductInput mirrors the platform's ProductInput for create and update mutations.
type ProductInput struct {
	Title           string   `json:"title,omitempty" validate:"required,max=255"`
	DescriptionHTML string   `json:"descriptionHtml,omitempty"`
	Handle          string   `json:"handle,omitempty" validate:"omitempty,max=255"`
	ProductType     string   `json:"productType,omitempty"`
	Vendor          string   `json:"vendor,omitempty"`
	Tags            []string `json:"tags,omitempty" validate:"omitempty,dive,required"`
}

// CollectionInput mirrors the platform's CollectionInput.
type CollectionInput struct {
	Title           string `json:"title,omitempty" validate:"required,max=255"`
	DescriptionHTML string `json:"descriptionHtml,omitempty"`
	Handle          string `json:"handle,omitempty" validate:"omitempty,max=255"`
}

// ContentEntry is the title/description projection pushed to the content store.
type ContentEntry struct {
	Kind        string `json:"kind"`
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// EntryFromProduct projects a product onto a content store entry.
func EntryFromProduct(p *Product) ContentEntry {
	return ContentEntry{Kind: ResourceProduct, ID: p.ID, Title: p.Title, Description: p.Description}
}

// EntryFromCollection projects a collection onto a content store entry.
func EntryFromCollection(c *Collection) ContentEntry {
	return ContentEntry{Kind: ResourceCollection, ID: c.ID, Title: c.Title, Description: c.Description}
}

// FailedJob is a job retained after exhausting its retry policy.
type FailedJob struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Payload   []byte    `db:"payload" json:"payload"`
	Attempts  int       `db:"attempts" json:"attempts"`
	LastError string    `db:"last_error" json:"last_error"`
	FailedAt  time.Time `db:"failed_at" json:"failed_at"`
}

const globalIDPrefix = "gid://"

// NormalizeID reduces a platform global ID such as "gid://shopify/Product/42"
// to its trailing segment. Plain IDs are returned unchanged.
func NormalizeID(id string) string {
	id = strings.TrimSpace(id)
	if !strings.HasPrefix(id, globalIDPrefix) {
		return id
	}
	if i := strings.LastIndex(id, "/"); i >= 0 {
		return id[i+1:]
	}
	return id
}
