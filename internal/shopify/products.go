package shopify

import (
	"context"
	"strings"

	"storefront-sync/internal/apperrors"
	"storefront-sync/internal/models"
)

const productFields = `
	id
	title
	handle
	description
	images(first: 1) {
		edges {
			node {
				originalSrc
			}
		}
	}
	variants(first: 1) {
		edges {
			node {
				id
				price
			}
		}
	}`

const getProductQuery = `
query getProduct($id: ID!) {
	product(id: $id) {` + productFields + `
	}
}`

const searchProductsQuery = `
query getProducts($query: String!) {
	products(first: 10, query: $query) {
		edges {
			node {` + productFields + `
			}
		}
	}
}`

const createProductMutation = `
mutation createProduct($input: ProductInput!) {
	productCreate(input: $input) {
		product {` + productFields + `
		}
		userErrors {
			field
			message
		}
	}
}`

const updateProductMutation = `
mutation updateProduct($id: ID!, $input: ProductInput!) {
	productUpdate(id: $id, input: $input) {
		product {` + productFields + `
		}
		userErrors {
			field
			message
		}
	}
}`

const deleteProductMutation = `
mutation deleteProduct($id: ID!) {
	productDelete(input: { id: $id }) {
		deletedProductId
		userErrors {
			field
			message
		}
	}
}`

// UserError is a mutation-level validation error reported inside data.
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

func userErrorsToValidation(errs []UserError) error {
	if len(errs) == 0 {
		return nil
	}
	ue := errs[0]
	return apperrors.NewValidationError(strings.Join(ue.Field, "."), ue.Message)
}

// GlobalID expands a plain numeric ID into the platform's global ID form.
func GlobalID(kind, id string) string {
	if strings.HasPrefix(id, "gid://") {
		return id
	}
	return "gid://shopify/" + kind + "/" + id
}

// GetProductByID returns nil without error when the product does not exist.
func (c *Client) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	var data struct {
		Product *models.Product `json:"product"`
	}
	vars := map[string]interface{}{"id": GlobalID("Product", id)}
	if err := c.Query(ctx, getProductQuery, vars, &data); err != nil {
		return nil, err
	}
	normalizeProduct(data.Product)
	return data.Product, nil
}

// SearchProducts returns the first 10 products matching the platform search syntax.
func (c *Client) SearchProducts(ctx context.Context, query string) ([]models.Product, error) {
	var data struct {
		Products struct {
			Edges []struct {
				Node models.Product `json:"node"`
			} `json:"edges"`
		} `json:"products"`
	}
	if err := c.Query(ctx, searchProductsQuery, map[string]interface{}{"query": query}, &data); err != nil {
		return nil, err
	}

	products := make([]models.Product, 0, len(data.Products.Edges))
	for _, e := range data.Products.Edges {
		p := e.Node
		normalizeProduct(&p)
		products = append(products, p)
	}
	return products, nil
}

func (c *Client) CreateProduct(ctx context.Context, input models.ProductInput) (*models.Product, error) {
	var data struct {
		ProductCreate struct {
			Product    *models.Product `json:"product"`
			UserErrors []UserError     `json:"userErrors"`
		} `json:"productCreate"`
	}
	if err := c.Mutate(ctx, createProductMutation, map[string]interface{}{"input": input}, &data); err != nil {
		return nil, err
	}
	if err := userErrorsToValidation(data.ProductCreate.UserErrors); err != nil {
		return nil, err
	}
	normalizeProduct(data.ProductCreate.Product)
	return data.ProductCreate.Product, nil
}

// UpdateProduct returns nil without error when the product does not exist.
func (c *Client) UpdateProduct(ctx context.Context, id string, input models.ProductInput) (*models.Product, error) {
	var data struct {
		ProductUpdate struct {
			Product    *models.Product `json:"product"`
			UserErrors []UserError     `json:"userErrors"`
		} `json:"productUpdate"`
	}
	vars := map[string]interface{}{"id": GlobalID("Product", id), "input": input}
	if err := c.Mutate(ctx, updateProductMutation, vars, &data); err != nil {
		return nil, err
	}
	if err := userErrorsToValidation(data.ProductUpdate.UserErrors); err != nil {
		return nil, err
	}
	normalizeProduct(data.ProductUpdate.Product)
	return data.ProductUpdate.Product, nil
}

// DeleteProduct reports whether the platform confirmed the deletion.
func (c *Client) DeleteProduct(ctx context.Context, id string) (bool, error) {
	var data struct {
		ProductDelete struct {
			DeletedProductID *string     `json:"deletedProductId"`
			UserErrors       []UserError `json:"userErrors"`
		} `json:"productDelete"`
	}
	if err := c.Mutate(ctx, deleteProductMutation, map[string]interface{}{"id": GlobalID("Product", id)}, &data); err != nil {
		return false, err
	}
	if err := userErrorsToValidation(data.ProductDelete.UserErrors); err != nil {
		return false, err
	}
	return data.ProductDelete.DeletedProductID != nil && *data.ProductDelete.DeletedProductID != "", nil
}

func normalizeProduct(p *models.Product) {
	if p != nil {
		p.ID = models.NormalizeID(p.ID)
	}
}
