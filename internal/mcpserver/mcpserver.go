// Package mcpserver exposes the reconciler over MCP (stdio) so another
// agent, or a human driving an agent client, can invoke list_agents,
// plan_upgrade, apply_upgrade, and ensure_identity as tools - closing the
// loop implied by the domain: agents configuring agents.
package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/letta-ai/letta-sync/internal/controlplane"
	"github.com/letta-ai/letta-sync/internal/identitykey"
	"github.com/letta-ai/letta-sync/internal/reconcile/identity"
	"github.com/letta-ai/letta-sync/internal/reconcile/upgrade"
)

// Server wraps the control-plane client and manifest root every tool
// handler needs.
type Server struct {
	Client      controlplane.Client
	ManifestDir string
}

// New builds an *mcp.Server with every tool registered.
func (s *Server) New() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "lettasync", Version: "0.1.0"}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_agents",
		Description: "List agents matching an optional tag filter",
	}, s.listAgents)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "plan_upgrade",
		Description: "Compute an upgrade plan for one agent without applying it",
	}, s.planUpgrade)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "apply_upgrade",
		Description: "Compute a fresh upgrade plan for one agent and apply it",
	}, s.applyUpgrade)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ensure_identity",
		Description: "Resolve, and if permitted create, an identity by its loose identifier",
	}, s.ensureIdentity)

	return server
}

// Serve runs the server over stdio until the client disconnects or ctx is
// canceled.
func (s *Server) Serve(ctx context.Context) error {
	return s.New().Run(ctx, &mcp.StdioTransport{})
}

type listAgentsArgs struct {
	Tags []string `json:"tags,omitempty"`
}

func (s *Server) listAgents(ctx context.Context, req *mcp.CallToolRequest, args listAgentsArgs) (*mcp.CallToolResult, any, error) {
	agents, err := s.Client.ListAgents(ctx, controlplane.AgentFilter{Tags: args.Tags})
	if err != nil {
		return nil, nil, err
	}
	return nil, agents, nil
}

type planUpgradeArgs struct {
	AgentID string `json:"agentId"`
}

func (s *Server) planUpgrade(ctx context.Context, req *mcp.CallToolRequest, args planUpgradeArgs) (*mcp.CallToolResult, any, error) {
	result := upgrade.RunOne(ctx, s.Client, upgrade.Options{
		ManifestDir: s.ManifestDir,
		AgentID:     args.AgentID,
		Mode:        upgrade.ModeDryRun,
		Versions:    upgrade.GitTargetVersion{RepoDir: s.ManifestDir},
	})
	return nil, result, nil
}

type applyUpgradeArgs struct {
	AgentID      string `json:"agentId"`
	Force        bool   `json:"force,omitempty"`
	AllowDelete  bool   `json:"allowDelete,omitempty"`
	AllowService bool   `json:"allowService,omitempty"`
	AllowTeam    bool   `json:"allowTeam,omitempty"`
}

func (s *Server) applyUpgrade(ctx context.Context, req *mcp.CallToolRequest, args applyUpgradeArgs) (*mcp.CallToolResult, any, error) {
	result := upgrade.RunOne(ctx, s.Client, upgrade.Options{
		ManifestDir: s.ManifestDir,
		AgentID:     args.AgentID,
		Mode:        upgrade.ModeApply,
		Force:       args.Force,
		AllowDelete: args.AllowDelete,
		Versions:    upgrade.GitTargetVersion{RepoDir: s.ManifestDir},
		IdentityPolicy: identity.AutoCreatePolicy{
			AllowService: args.AllowService,
			AllowTeam:    args.AllowTeam,
		},
	})
	return nil, result, nil
}

type ensureIdentityArgs struct {
	Identifier   string `json:"identifier"`
	DefaultOrg   string `json:"defaultOrg,omitempty"`
	AllowService bool   `json:"allowService,omitempty"`
	AllowTeam    bool   `json:"allowTeam,omitempty"`
}

func (s *Server) ensureIdentity(ctx context.Context, req *mcp.CallToolRequest, args ensureIdentityArgs) (*mcp.CallToolResult, any, error) {
	result, err := identity.Ensure(ctx, s.Client, args.Identifier,
		identitykey.ResolveOptions{DefaultOrg: args.DefaultOrg, DefaultType: identitykey.TypeUser},
		identity.AutoCreatePolicy{AllowService: args.AllowService, AllowTeam: args.AllowTeam},
		"mcp-server")
	if err != nil {
		return nil, nil, err
	}
	return nil, result, nil
}
