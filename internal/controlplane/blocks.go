package controlplane

import (
	"context"
	"fmt"

	"github.com/letta-ai/letta-sync/internal/models"
)

func (c *HTTPClient) ListBlocks(ctx context.Context, filter Filter) ([]models.Block, error) {
	var out []models.Block
	if err := c.do(ctx, "GET", "/v1/blocks"+query(filter), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) RetrieveBlock(ctx context.Context, id string) (*models.Block, error) {
	var out models.Block
	if err := c.do(ctx, "GET", "/v1/blocks/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) CreateBlock(ctx context.Context, spec models.Block) (*models.Block, error) {
	var out models.Block
	if err := c.do(ctx, "POST", "/v1/blocks", spec, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) UpdateBlock(ctx context.Context, id string, patch map[string]interface{}) (*models.Block, error) {
	var out models.Block
	if err := c.do(ctx, "PATCH", "/v1/blocks/"+id, patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) DeleteBlock(ctx context.Context, id string) error {
	return c.do(ctx, "DELETE", "/v1/blocks/"+id, nil, nil)
}

func (c *HTTPClient) ListAgentBlocks(ctx context.Context, agentID string) ([]models.Block, error) {
	var out []models.Block
	if err := c.do(ctx, "GET", fmt.Sprintf("/v1/agents/%s/core-memory/blocks", agentID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) AttachBlock(ctx context.Context, agentID, blockID string) error {
	err := c.do(ctx, "PATCH", fmt.Sprintf("/v1/agents/%s/core-memory/blocks/attach/%s", agentID, blockID), nil, nil)
	if err != nil && IsConflict(err) {
		return nil
	}
	return err
}

func (c *HTTPClient) DetachBlock(ctx context.Context, agentID, blockID string) error {
	err := c.do(ctx, "PATCH", fmt.Sprintf("/v1/agents/%s/core-memory/blocks/detach/%s", agentID, blockID), nil, nil)
	if err != nil && IsConflict(err) {
		return nil
	}
	return err
}
