package plan

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/letta-ai/letta-sync/internal/manifest"
	"github.com/letta-ai/letta-sync/internal/models"
)

// Input bundles everything the Plan Builder needs for one agent,
// spec.md §4.3.
type Input struct {
	Agent   models.Agent
	Desired *manifest.Desired

	Channel models.Channel
	Role    models.Role

	// ForceBreaking upgrades every non-skip action to breaking; drives
	// preview modes that show worst-case policy (spec.md §4.3).
	ForceBreaking bool

	// TargetVersion is the version to stamp per layer (spec.md §4.5: the
	// repository's current git short-SHA, by convention).
	TargetVersion map[models.Layer]string

	// Prior is the agent's existing managed_state record, if any, used to
	// detect package-version drift warnings.
	Prior *models.ManagedState
}

// Build computes the Plan for one agent. It is a pure function of its
// inputs up to the fresh plan id and timestamp (spec.md §8 invariant 1).
func Build(in Input) Plan {
	var actions []Action
	var warnings []string

	actions = append(actions, buildBlockActions(in)...)
	actions = append(actions, buildToolActions(in)...)
	actions = append(actions, buildFolderActions(in)...)
	actions = append(actions, buildIdentityActions(in)...)

	if in.ForceBreaking {
		for i := range actions {
			if actions[i].Verb != VerbSkip {
				actions[i].Risk = Breaking
			}
		}
	}

	// Within one verb, actions keep the block/tool/folder/identity grouping
	// and are ordered by name, so map iteration order never leaks into the plan.
	kindOrder := map[models.Kind]int{models.KindBlock: 0, models.KindTool: 1, models.KindFolder: 2, models.KindIdentity: 3}
	sort.SliceStable(actions, func(i, j int) bool {
		a, b := actions[i], actions[j]
		if executionOrder[a.Verb] != executionOrder[b.Verb] {
			return executionOrder[a.Verb] < executionOrder[b.Verb]
		}
		if kindOrder[a.Kind] != kindOrder[b.Kind] {
			return kindOrder[a.Kind] < kindOrder[b.Kind]
		}
		return a.Name < b.Name
	})

	hasSafe := false
	hasBreaking := false
	for _, a := range actions {
		if a.Verb == VerbSkip {
			continue
		}
		if a.Risk == Safe {
			hasSafe = true
		} else {
			hasBreaking = true
		}
	}

	if in.Channel == models.ChannelPinned && hasSafe {
		warnings = append(warnings, "channel is pinned: safe changes require an explicit override")
	}
	if in.Prior != nil {
		warnings = append(warnings, driftWarnings(in)...)
	}

	p := Plan{
		ID:                   newPlanID(),
		CreatedAt:            time.Now().UTC(),
		AgentID:              in.Agent.ID,
		Actions:              actions,
		RequiresConfirmation: hasBreaking || (in.Channel == models.ChannelPinned && hasSafe),
		Warnings:             warnings,
	}
	p.Summary = newSummary(actions)
	return p
}

// newPlanID derives a plan id from the current time plus a short random
// suffix, so concurrent Build calls for distinct agents never collide.
func newPlanID() string {
	return fmt.Sprintf("plan-%d-%s", time.Now().UnixNano(), uuid.NewString()[:8])
}

func driftWarnings(in Input) []string {
	var out []string
	if in.Prior == nil {
		return out
	}
	for layer, target := range in.TargetVersion {
		applied, ok := in.Prior.AppliedPackages[layer]
		if ok && applied.Version != "" && applied.Version != target {
			out = append(out, fmt.Sprintf("package version drift on layer %s: applied %s, target %s", layer, applied.Version, target))
		}
	}
	sort.Strings(out)
	return out
}
