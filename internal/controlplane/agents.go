package controlplane

import (
	"context"
	"net/url"

	"github.com/letta-ai/letta-sync/internal/models"
)

func (c *HTTPClient) ListAgents(ctx context.Context, filter AgentFilter) ([]models.Agent, error) {
	q := url.Values{}
	for _, tag := range filter.Tags {
		q.Add("tags", tag)
	}
	path := "/v1/agents"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []models.Agent
	if err := c.do(ctx, "GET", path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) RetrieveAgent(ctx context.Context, id string) (*models.Agent, error) {
	var out models.Agent
	if err := c.do(ctx, "GET", "/v1/agents/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) UpdateAgent(ctx context.Context, id string, update AgentUpdate) (*models.Agent, error) {
	patch := map[string]interface{}{}
	if update.Tags != nil {
		patch["tags"] = *update.Tags
	}
	if update.IdentityIDs != nil {
		patch["identity_ids"] = *update.IdentityIDs
	}
	if update.System != nil {
		patch["system"] = *update.System
	}

	var out models.Agent
	if err := c.do(ctx, "PATCH", "/v1/agents/"+id, patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
