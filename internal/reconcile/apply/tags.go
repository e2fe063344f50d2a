package apply

import (
	"context"
	"strings"

	"github.com/letta-ai/letta-sync/internal/controlplane"
	"github.com/letta-ai/letta-sync/internal/models"
)

// reservedTagPrefixes are the tag keys this engine owns; anything else on
// the agent's existing tag set survives a rebuild untouched (spec.md §4.4
// phase 3, invariant 6).
var reservedTagPrefixes = []string{"managed_by", "layer", "channel", "role", "last_synced", "package_version"}

func isReservedTag(tag string) bool {
	k, _, found := strings.Cut(tag, ":")
	if !found {
		return false
	}
	for _, p := range reservedTagPrefixes {
		if k == p || strings.HasPrefix(k, p+"_") {
			return true
		}
	}
	return false
}

// rebuildTags preserves user tags and overwrites the managed set with a
// single update call (spec.md §4.4 phase 3).
func rebuildTags(ctx context.Context, client controlplane.Client, agentID string, opts Options) error {
	agent, err := client.RetrieveAgent(ctx, agentID)
	if err != nil {
		return err
	}

	out := make([]string, 0, len(agent.Tags)+8)
	for _, tag := range agent.Tags {
		if !isReservedTag(tag) {
			out = append(out, tag)
		}
	}
	out = append(out, "managed_by:"+models.ManagedBySystem, "channel:"+string(opts.Channel), "role:"+string(opts.Role))
	for layer, version := range opts.PackageVersion {
		if version != "" {
			out = append(out, "package_version_"+string(layer)+":"+version)
		}
	}
	out = append(out, layerTag(opts))

	_, err = client.UpdateAgent(ctx, agentID, controlplane.AgentUpdate{Tags: &out})
	return err
}

// layerTag records the most specific layer this apply touched; project
// beats org beats base when multiple layers contributed entities, as
// recorded in DesiredState.LayerTags; base when none is recorded.
func layerTag(opts Options) string {
	contributed := map[models.Layer]bool{}
	if opts.DesiredState != nil {
		for _, byName := range opts.DesiredState.LayerTags {
			for _, l := range byName {
				contributed[l] = true
			}
		}
	}
	layer := models.LayerBase
	for _, candidate := range []models.Layer{models.LayerProject, models.LayerOrg, models.LayerBase} {
		if contributed[candidate] {
			layer = candidate
			break
		}
	}
	return "layer:" + string(layer)
}
