package controlplane

import (
	"context"

	"github.com/letta-ai/letta-sync/internal/models"
)

func (c *HTTPClient) ListIdentities(ctx context.Context, filter Filter) ([]models.Identity, error) {
	var out []models.Identity
	if err := c.do(ctx, "GET", "/v1/identities"+query(filter), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) CreateIdentity(ctx context.Context, spec models.Identity) (*models.Identity, error) {
	var out models.Identity
	if err := c.do(ctx, "POST", "/v1/identities", spec, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) UpsertIdentity(ctx context.Context, spec models.Identity) (*models.Identity, error) {
	var out models.Identity
	if err := c.do(ctx, "PUT", "/v1/identities", spec, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
