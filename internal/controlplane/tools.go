package controlplane

import (
	"context"
	"fmt"

	"github.com/letta-ai/letta-sync/internal/models"
)

func (c *HTTPClient) ListTools(ctx context.Context, filter Filter) ([]models.Tool, error) {
	var out []models.Tool
	if err := c.do(ctx, "GET", "/v1/tools"+query(filter), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) RetrieveTool(ctx context.Context, id string) (*models.Tool, error) {
	var out models.Tool
	if err := c.do(ctx, "GET", "/v1/tools/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) CreateTool(ctx context.Context, spec models.Tool) (*models.Tool, error) {
	var out models.Tool
	if err := c.do(ctx, "POST", "/v1/tools", spec, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) UpdateTool(ctx context.Context, id string, patch map[string]interface{}) (*models.Tool, error) {
	var out models.Tool
	if err := c.do(ctx, "PATCH", "/v1/tools/"+id, patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) DeleteTool(ctx context.Context, id string) error {
	return c.do(ctx, "DELETE", "/v1/tools/"+id, nil, nil)
}

func (c *HTTPClient) ListAgentTools(ctx context.Context, agentID string) ([]models.Tool, error) {
	var out []models.Tool
	if err := c.do(ctx, "GET", fmt.Sprintf("/v1/agents/%s/tools", agentID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) AttachTool(ctx context.Context, agentID, toolID string) error {
	err := c.do(ctx, "PATCH", fmt.Sprintf("/v1/agents/%s/tools/attach/%s", agentID, toolID), nil, nil)
	if err != nil && IsConflict(err) {
		return nil
	}
	return err
}

func (c *HTTPClient) DetachTool(ctx context.Context, agentID, toolID string) error {
	err := c.do(ctx, "PATCH", fmt.Sprintf("/v1/agents/%s/tools/detach/%s", agentID, toolID), nil, nil)
	if err != nil && IsConflict(err) {
		return nil
	}
	return err
}
