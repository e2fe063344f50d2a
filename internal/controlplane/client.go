// Package controlplane defines the interface the reconciliation engine uses
// to talk to the external HTTP control plane, plus a concrete HTTP-backed
// implementation. Spec.md §6 treats this wire client as an external
// collaborator: the core only depends on the typed method set below.
package controlplane

import (
	"context"

	"github.com/letta-ai/letta-sync/internal/models"
)

// Filter narrows a list call by name or label.
type Filter struct {
	Name  string
	Label string
}

// BlockStore exposes the five block operations the core needs.
type BlockStore interface {
	ListBlocks(ctx context.Context, filter Filter) ([]models.Block, error)
	RetrieveBlock(ctx context.Context, id string) (*models.Block, error)
	CreateBlock(ctx context.Context, spec models.Block) (*models.Block, error)
	UpdateBlock(ctx context.Context, id string, patch map[string]interface{}) (*models.Block, error)
	DeleteBlock(ctx context.Context, id string) error
}

// ToolStore exposes the five tool operations plus name-based filtering.
type ToolStore interface {
	ListTools(ctx context.Context, filter Filter) ([]models.Tool, error)
	RetrieveTool(ctx context.Context, id string) (*models.Tool, error)
	CreateTool(ctx context.Context, spec models.Tool) (*models.Tool, error)
	UpdateTool(ctx context.Context, id string, patch map[string]interface{}) (*models.Tool, error)
	DeleteTool(ctx context.Context, id string) error
}

// FolderStore exposes the five folder operations.
type FolderStore interface {
	ListFolders(ctx context.Context, filter Filter) ([]models.Folder, error)
	RetrieveFolder(ctx context.Context, id string) (*models.Folder, error)
	CreateFolder(ctx context.Context, spec models.Folder) (*models.Folder, error)
	UpdateFolder(ctx context.Context, id string, patch map[string]interface{}) (*models.Folder, error)
	DeleteFolder(ctx context.Context, id string) error
}

// IdentityStore exposes list/create/upsert; upsert is required for the
// identity sub-reconciler's ensure operation to be a single round trip.
type IdentityStore interface {
	ListIdentities(ctx context.Context, filter Filter) ([]models.Identity, error)
	CreateIdentity(ctx context.Context, spec models.Identity) (*models.Identity, error)
	UpsertIdentity(ctx context.Context, spec models.Identity) (*models.Identity, error)
}

// AgentUpdate is the subset of agent fields the engine is allowed to write.
type AgentUpdate struct {
	Tags        *[]string
	IdentityIDs *[]string
	System      *string
}

// AgentFilter narrows ListAgents by tag, used by the Upgrade Controller's
// batch selection criterion (spec.md §4.5).
type AgentFilter struct {
	// Tags restricts results to agents carrying every listed tag.
	Tags []string
}

// AgentStore exposes agent retrieval, update, and per-kind attach/detach.
type AgentStore interface {
	ListAgents(ctx context.Context, filter AgentFilter) ([]models.Agent, error)
	RetrieveAgent(ctx context.Context, id string) (*models.Agent, error)
	UpdateAgent(ctx context.Context, id string, update AgentUpdate) (*models.Agent, error)

	ListAgentBlocks(ctx context.Context, agentID string) ([]models.Block, error)
	AttachBlock(ctx context.Context, agentID, blockID string) error
	DetachBlock(ctx context.Context, agentID, blockID string) error

	ListAgentTools(ctx context.Context, agentID string) ([]models.Tool, error)
	AttachTool(ctx context.Context, agentID, toolID string) error
	DetachTool(ctx context.Context, agentID, toolID string) error

	ListAgentFolders(ctx context.Context, agentID string) ([]models.Folder, error)
	AttachFolder(ctx context.Context, agentID, folderID string) error
	DetachFolder(ctx context.Context, agentID, folderID string) error
}

// Client is the full capability set the reconciliation engine depends on.
type Client interface {
	BlockStore
	ToolStore
	FolderStore
	IdentityStore
	AgentStore
}
