// Package apply implements the Apply Engine from spec.md §4.4: it executes
// a Plan against the control plane through four sequential phases — policy
// gate, per-action execution, tag rebuild, and managed_state record update.
package apply

import (
	"context"
	"fmt"
	"time"

	"github.com/letta-ai/letta-sync/internal/controlplane"
	"github.com/letta-ai/letta-sync/internal/errkind"
	"github.com/letta-ai/letta-sync/internal/manifest"
	"github.com/letta-ai/letta-sync/internal/models"
	"github.com/letta-ai/letta-sync/internal/reconcile/identity"
	"github.com/letta-ai/letta-sync/internal/reconcile/plan"
)

// ReconcilerVersion is stamped into every managed_state record this engine
// writes (spec.md §3).
const ReconcilerVersion = "letta-sync/1"

// Options recognized by Apply, spec.md §4.4.
type Options struct {
	DryRun         bool
	Force          bool
	AllowDelete    bool
	PackageVersion map[models.Layer]string
	PackagePaths   map[models.Layer]string
	DesiredState   *manifest.Desired

	// Prior is the agent's existing managed_state record, if any. Its
	// absence means this is the agent's first apply (spec.md §3).
	Prior *models.ManagedState

	Channel models.Channel
	Role    models.Role
	Org     string
	Project string

	// IdentityPolicy gates auto-creation of service/team identities reached
	// through identity attach actions (spec.md §4.6); user identities are
	// always permitted to auto-create.
	IdentityPolicy identity.AutoCreatePolicy
}

// ActionResult is the per-action outcome reported in ApplyResult.
type ActionResult struct {
	Action  plan.Action `json:"action"`
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
}

// Result is the Apply Engine's output shape, spec.md §4.4.
type Result struct {
	Success          bool                 `json:"success"`
	Actions          []ActionResult       `json:"actions"`
	SkippedBreaking  []plan.Action        `json:"skippedBreaking,omitempty"`
	Errors           []string             `json:"errors,omitempty"`
	ManagedState     *models.ManagedState `json:"managedState,omitempty"`
	StateUpdateError string               `json:"stateUpdateError,omitempty"`
}

// now is overridable in tests so record timestamps are deterministic.
var now = func() time.Time { return time.Now().UTC() }

// Apply executes p for one agent against client, per the four-phase
// protocol in spec.md §4.4.
func Apply(ctx context.Context, client controlplane.Client, p plan.Plan, opts Options) Result {
	var result Result
	result.Success = true

	// Phase 1: policy gate.
	executable, skipped, gateErr := gate(p, opts)
	result.SkippedBreaking = skipped
	if gateErr != nil {
		result.Success = false
		result.Errors = append(result.Errors, gateErr.Error())
	}
	if len(skipped) > 0 && !opts.Force {
		result.Success = false
	}
	// A pinned channel without force applies nothing: no actions, no tag
	// rebuild, no record write.
	if gateErr != nil && opts.Channel == models.ChannelPinned && !opts.Force {
		return result
	}

	// Phase 2: per-action execution, in the plan's already-ordered slice
	// restricted to the executable subset (order preserved).
	for _, a := range executable {
		if opts.DryRun {
			result.Actions = append(result.Actions, ActionResult{Action: a, Success: true})
			continue
		}
		err := execute(ctx, client, p.AgentID, a, opts)
		if err != nil {
			result.Success = false
			result.Errors = append(result.Errors, fmt.Sprintf("%s %s %s: %v", a.Verb, a.Kind, a.Name, err))
			result.Actions = append(result.Actions, ActionResult{Action: a, Success: false, Error: err.Error()})
			continue
		}
		result.Actions = append(result.Actions, ActionResult{Action: a, Success: true})
	}

	// Phase 3: tag rebuild.
	if !opts.DryRun {
		if err := rebuildTags(ctx, client, p.AgentID, opts); err != nil {
			result.Success = false
			result.Errors = append(result.Errors, fmt.Sprintf("tag update: %v", err))
		}
	}

	// Phase 4: managed_state record update. Failures here are recorded but
	// do not demote an otherwise-successful data-plane apply (spec.md §4.4).
	state := buildManagedState(p, opts, executable)
	result.ManagedState = &state
	if !opts.DryRun {
		if err := writeManagedState(ctx, client, p.AgentID, state); err != nil {
			result.StateUpdateError = errkind.Wrap(errkind.StateUpdate, err).Error()
		}
	}

	return result
}

// gate applies the policy gate: pinned channel without force fails
// outright; otherwise any breaking action without force is skipped while
// safe actions still execute (spec.md §4.4 phase 1).
func gate(p plan.Plan, opts Options) (executable []plan.Action, skipped []plan.Action, err error) {
	if opts.Channel == models.ChannelPinned && !opts.Force {
		hasSafe := false
		for _, a := range p.Actions {
			if a.Verb != plan.VerbSkip && a.Risk == plan.Safe {
				hasSafe = true
			}
		}
		if hasSafe {
			return nil, p.Actions, errkind.New(errkind.Policy, "channel is pinned: pass --force to apply any change").
				WithSuggestion("--force")
		}
	}

	breakingSkipped := 0
	for _, a := range p.Actions {
		if a.Verb == plan.VerbSkip {
			continue
		}
		if a.Risk == plan.Breaking && !opts.Force {
			skipped = append(skipped, a)
			breakingSkipped++
			continue
		}
		if a.Verb == plan.VerbDetach && !opts.AllowDelete {
			skipped = append(skipped, a)
			continue
		}
		executable = append(executable, a)
	}
	if breakingSkipped > 0 {
		return executable, skipped, errkind.New(errkind.Policy, "%d breaking change(s) skipped: pass --force to apply them", breakingSkipped).
			WithSuggestion("--force")
	}
	return executable, skipped, nil
}

func classifyOverallUpgradeType(executed []plan.Action, isFirstApply bool) models.UpgradeType {
	for _, a := range executed {
		if a.Risk == plan.Breaking {
			return models.UpgradeBreakingManual
		}
	}
	if isFirstApply {
		return models.UpgradeInitial
	}
	return models.UpgradeSafeAuto
}
