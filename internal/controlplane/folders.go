package controlplane

import (
	"context"
	"fmt"

	"github.com/letta-ai/letta-sync/internal/models"
)

func (c *HTTPClient) ListFolders(ctx context.Context, filter Filter) ([]models.Folder, error) {
	var out []models.Folder
	if err := c.do(ctx, "GET", "/v1/folders"+query(filter), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) RetrieveFolder(ctx context.Context, id string) (*models.Folder, error) {
	var out models.Folder
	if err := c.do(ctx, "GET", "/v1/folders/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) CreateFolder(ctx context.Context, spec models.Folder) (*models.Folder, error) {
	var out models.Folder
	if err := c.do(ctx, "POST", "/v1/folders", spec, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) UpdateFolder(ctx context.Context, id string, patch map[string]interface{}) (*models.Folder, error) {
	var out models.Folder
	if err := c.do(ctx, "PATCH", "/v1/folders/"+id, patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) DeleteFolder(ctx context.Context, id string) error {
	return c.do(ctx, "DELETE", "/v1/folders/"+id, nil, nil)
}

func (c *HTTPClient) ListAgentFolders(ctx context.Context, agentID string) ([]models.Folder, error) {
	var out []models.Folder
	if err := c.do(ctx, "GET", fmt.Sprintf("/v1/agents/%s/sources", agentID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) AttachFolder(ctx context.Context, agentID, folderID string) error {
	err := c.do(ctx, "PATCH", fmt.Sprintf("/v1/agents/%s/sources/attach/%s", agentID, folderID), nil, nil)
	if err != nil && IsConflict(err) {
		return nil
	}
	return err
}

func (c *HTTPClient) DetachFolder(ctx context.Context, agentID, folderID string) error {
	err := c.do(ctx, "PATCH", fmt.Sprintf("/v1/agents/%s/sources/detach/%s", agentID, folderID), nil, nil)
	if err != nil && IsConflict(err) {
		return nil
	}
	return err
}
