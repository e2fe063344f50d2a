package apply

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/letta-ai/letta-sync/internal/controlplane"
	"github.com/letta-ai/letta-sync/internal/manifest"
	"github.com/letta-ai/letta-sync/internal/models"
	"github.com/letta-ai/letta-sync/internal/reconcile/plan"
)

// managedStateSource is the agent-scoped metadata.source key used to find
// the existing record block among an agent's attached blocks (spec.md §4.4
// phase 4: "locate the existing record block ... by its reserved label and
// an agent-specific metadata.source key").
func managedStateSource(agentID string) string {
	return "letta-sync:managed_state:" + agentID
}

// buildManagedState assembles the record this apply would write, whether
// or not DryRun suppresses the actual write.
func buildManagedState(p plan.Plan, opts Options, executed []plan.Action) models.ManagedState {
	packages := map[models.Layer]models.AppliedPackage{}
	if opts.DesiredState != nil {
		for _, layer := range models.Ordered() {
			version := layerVersion(opts, layer)
			if version == "" {
				continue
			}
			packages[layer] = models.AppliedPackage{
				Version:     version,
				AppliedAt:   now(),
				PackagePath: opts.PackagePaths[layer],
				ManifestSha: manifest.ManifestSha(version),
			}
		}
	}

	return models.ManagedState{
		AppliedPackages:   packages,
		ReconcilerVersion: ReconcilerVersion,
		LastUpgradeType:   classifyOverallUpgradeType(executed, opts.Prior == nil),
		UpgradeChannel:    opts.Channel,
		LastUpgradeAt:     now(),
	}
}

// SerializeManagedState renders a record to its block text form. Invariant
// 4 (spec.md §8) requires ParseManagedState(SerializeManagedState(r)) to
// round-trip r field-for-field, so this is a plain JSON encoding.
func SerializeManagedState(s models.ManagedState) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ParseManagedState parses a record previously produced by
// SerializeManagedState.
func ParseManagedState(text string) (models.ManagedState, error) {
	var s models.ManagedState
	if err := json.Unmarshal([]byte(text), &s); err != nil {
		return models.ManagedState{}, fmt.Errorf("parse managed_state: %w", err)
	}
	return s, nil
}

// writeManagedState creates or updates the reserved managed_state block for
// agentID, matching by label and metadata.source (spec.md §4.4 phase 4).
func writeManagedState(ctx context.Context, client controlplane.Client, agentID string, state models.ManagedState) error {
	text, err := SerializeManagedState(state)
	if err != nil {
		return err
	}
	source := managedStateSource(agentID)

	existing, err := client.ListBlocks(ctx, controlplane.Filter{Label: models.ManagedStateLabel})
	if err != nil {
		return err
	}
	for _, b := range existing {
		if b.Metadata != nil && b.Metadata["source"] == source {
			_, err := client.UpdateBlock(ctx, b.ID, map[string]interface{}{"value": text})
			return err
		}
	}

	b, err := client.CreateBlock(ctx, models.Block{
		Label: models.ManagedStateLabel,
		Value: text,
		Metadata: map[string]string{
			"source":     source,
			"managed_by": models.ManagedBySystem,
		},
	})
	if err != nil {
		return err
	}
	return client.AttachBlock(ctx, agentID, b.ID)
}
