package shopify

import (
	"context"

	"storefront-sync/internal/models"
)

const collectionFields = `
	id
	title
	handle
	description`

const getCollectionQuery = `
query getCollection($id: ID!) {
	collection(id: $id) {` + collectionFields + `
		products(first: 10) {
			edges {
				node {
					id
					title
				}
			}
		}
	}
}`

const createCollectionMutation = `
mutation createCollection($input: CollectionInput!) {
	collectionCreate(input: $input) {
		collection {` + collectionFields + `
		}
		userErrors {
			field
			message
		}
	}
}`

const updateCollectionMutation = `
mutation updateCollection($id: ID!, $input: CollectionInput!) {
	collectionUpdate(id: $id, input: $input) {
		collection {` + collectionFields + `
		}
		userErrors {
			field
			message
		}
	}
}`

const deleteCollectionMutation = `
mutation deleteCollection($id: ID!) {
	collectionDelete(input: { id: $id }) {
		deletedCollectionId
		userErrors {
			field
			message
		}
	}
}`

// GetCollectionByID returns nil without error when the collection does not exist.
func (c *Client) GetCollectionByID(ctx context.Context, id string) (*models.Collection, error) {
	var data struct {
		Collection *models.Collection `json:"collection"`
	}
	if err := c.Query(ctx, getCollectionQuery, map[string]interface{}{"id": GlobalID("Collection", id)}, &data); err != nil {
		return nil, err
	}
	normalizeCollection(data.Collection)
	return data.Collection, nil
}

func (c *Client) CreateCollection(ctx context.Context, input models.CollectionInput) (*models.Collection, error) {
	var data struct {
		CollectionCreate struct {
			Collection *models.Collection `json:"collection"`
			UserErrors []UserError        `json:"userErrors"`
		} `json:"collectionCreate"`
	}
	if err := c.Mutate(ctx, createCollectionMutation, map[string]interface{}{"input": input}, &data); err != nil {
		return nil, err
	}
	if err := userErrorsToValidation(data.CollectionCreate.UserErrors); err != nil {
		return nil, err
	}
	normalizeCollection(data.CollectionCreate.Collection)
	return data.CollectionCreate.Collection, nil
}

func (c *Client) UpdateCollection(ctx context.Context, id string, input models.CollectionInput) (*models.Collection, error) {
	var data struct {
		CollectionUpdate struct {
			Collection *models.Collection `json:"collection"`
			UserErrors []UserError        `json:"userErrors"`
		} `json:"collectionUpdate"`
	}
	vars := map[string]interface{}{"id": GlobalID("Collection", id), "input": input}
	if err := c.Mutate(ctx, updateCollectionMutation, vars, &data); err != nil {
		return nil, err
	}
	if err := userErrorsToValidation(data.CollectionUpdate.UserErrors); err != nil {
		return nil, err
	}
	normalizeCollection(data.CollectionUpdate.Collection)
	return data.CollectionUpdate.Collection, nil
}

func (c *Client) DeleteCollection(ctx context.Context, id string) (bool, error) {
	var data struct {
		CollectionDelete struct {
			DeletedCollectionID *string     `json:"deletedCollectionId"`
			UserErrors          []UserError `json:"userErrors"`
		} `json:"collectionDelete"`
	}
	if err := c.Mutate(ctx, deleteCollectionMutation, map[string]interface{}{"id": GlobalID("Collection", id)}, &data); err != nil {
		return false, err
	}
	if err := userErrorsToValidation(data.CollectionDelete.UserErrors); err != nil {
		return false, err
	}
	return data.CollectionDelete.DeletedCollectionID != nil && *data.CollectionDelete.DeletedCollectionID != "", nil
}

func normalizeCollection(c *models.Collection) {
	if c == nil {
		return
	}
	c.ID = models.NormalizeID(c.ID)
	if c.Products != nil {
		for i := range c.Products.Edges {
			c.Products.Edges[i].Node.ID = models.NormalizeID(c.Products.Edges[i].Node.ID)
		}
	}
}
