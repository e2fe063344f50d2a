// Package upgrade implements the Upgrade Controller from spec.md §4.5: the
// happy-path, single-agent flow (load manifests, fetch observed state,
// parse role/channel, compute a plan against the repository's current git
// short-SHA, then dry-run or apply), plus batch mode over a selection
// criterion.
package upgrade

import (
	"context"
	"strings"

	"github.com/letta-ai/letta-sync/internal/controlplane"
	"github.com/letta-ai/letta-sync/internal/gitutil"
	"github.com/letta-ai/letta-sync/internal/manifest"
	"github.com/letta-ai/letta-sync/internal/models"
	"github.com/letta-ai/letta-sync/internal/reconcile/apply"
	"github.com/letta-ai/letta-sync/internal/reconcile/identity"
	"github.com/letta-ai/letta-sync/internal/reconcile/plan"
)

// TargetVersionResolver supplies the per-layer version to stamp into a
// plan, normally the repository's current git short-SHA (spec.md §4.5
// step 4). It is an interface so tests and environments without a git
// work tree can substitute content-addressed versioning.
type TargetVersionResolver interface {
	TargetVersion() (map[models.Layer]string, map[models.Layer]string, error)
}

// GitTargetVersion resolves every manifest layer to the same git short-SHA
// found at repoDir, the default behavior spec.md §4.5 describes.
type GitTargetVersion struct {
	RepoDir string
}

func (g GitTargetVersion) TargetVersion() (map[models.Layer]string, map[models.Layer]string, error) {
	repo, err := gitutil.Open(g.RepoDir)
	if err != nil {
		return nil, nil, err
	}
	sha, err := repo.ShortSHA()
	if err != nil {
		return nil, nil, err
	}
	versions := map[models.Layer]string{}
	paths := map[models.Layer]string{}
	for _, layer := range models.Ordered() {
		versions[layer] = sha
		paths[layer] = string(layer)
	}
	return versions, paths, nil
}

// Mode selects between a preview and a real apply.
type Mode int

const (
	ModeDryRun Mode = iota
	ModeApply
)

// Options configures a single-agent upgrade run.
type Options struct {
	ManifestDir    string
	AgentID        string
	Mode           Mode
	Force          bool
	AllowDelete    bool
	Versions       TargetVersionResolver
	IdentityPolicy identity.AutoCreatePolicy
}

// Result is the outcome of one agent's upgrade: the plan that was computed
// and, unless Mode is ModeDryRun, the apply result.
type Result struct {
	AgentID string
	Plan    plan.Plan
	Apply   *apply.Result
	Error   string
}

// RunOne drives the full happy-path flow for one agent (spec.md §4.5,
// steps 1-5).
func RunOne(ctx context.Context, client controlplane.Client, opts Options) Result {
	result := Result{AgentID: opts.AgentID}

	desired, _, err := manifest.Load(opts.ManifestDir)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	agent, err := client.RetrieveAgent(ctx, opts.AgentID)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	role, channel := parseRoleAndChannel(agent.Tags)

	versions, paths, err := opts.Versions.TargetVersion()
	if err != nil {
		result.Error = err.Error()
		return result
	}

	prior := readPriorState(ctx, client, opts.AgentID)

	p := plan.Build(plan.Input{
		Agent:         *agent,
		Desired:       desired,
		Channel:       channel,
		Role:          role,
		TargetVersion: versions,
		Prior:         prior,
	})
	result.Plan = p

	if opts.Mode == ModeDryRun {
		return result
	}

	applyResult := apply.Apply(ctx, client, p, apply.Options{
		Force:          opts.Force,
		AllowDelete:    opts.AllowDelete,
		PackageVersion: versions,
		PackagePaths:   paths,
		DesiredState:   desired,
		Prior:          prior,
		Channel:        channel,
		Role:           role,
		IdentityPolicy: opts.IdentityPolicy,
	})
	result.Apply = &applyResult
	if !applyResult.Success {
		result.Error = strings.Join(applyResult.Errors, "; ")
	}
	return result
}

// parseRoleAndChannel extracts role/channel tags, falling back to the
// role-agent historical value mapping to lane-dev and stable as defaults
// when absent (spec.md §4.5 step 3, §3 NormalizeRole).
func parseRoleAndChannel(tags []string) (models.Role, models.Channel) {
	role := models.RoleLaneDev
	channel := models.ChannelStable
	for _, tag := range tags {
		k, v, ok := strings.Cut(tag, ":")
		if !ok {
			continue
		}
		switch k {
		case "role":
			if v == "agent" {
				role = models.RoleLaneDev
			} else {
				role = models.NormalizeRole(v)
			}
		case "channel":
			switch models.Channel(v) {
			case models.ChannelStable, models.ChannelBeta, models.ChannelPinned:
				channel = models.Channel(v)
			}
		}
	}
	return role, channel
}

// readPriorState looks up the agent's existing managed_state block, if
// any, so the plan builder can compute drift warnings and the apply
// engine can distinguish a first apply from a subsequent one.
func readPriorState(ctx context.Context, client controlplane.Client, agentID string) *models.ManagedState {
	blocks, err := client.ListAgentBlocks(ctx, agentID)
	if err != nil {
		return nil
	}
	for _, b := range blocks {
		if b.Label != models.ManagedStateLabel {
			continue
		}
		state, err := apply.ParseManagedState(b.Value)
		if err != nil {
			return nil
		}
		return &state
	}
	return nil
}
