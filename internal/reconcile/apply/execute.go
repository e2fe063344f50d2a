package apply

import (
	"context"
	"fmt"

	"github.com/letta-ai/letta-sync/internal/controlplane"
	"github.com/letta-ai/letta-sync/internal/identitykey"
	"github.com/letta-ai/letta-sync/internal/models"
	"github.com/letta-ai/letta-sync/internal/ownership"
	"github.com/letta-ai/letta-sync/internal/reconcile/identity"
	"github.com/letta-ai/letta-sync/internal/reconcile/plan"
)

// execute dispatches one action to the corresponding control-plane method
// (spec.md §4.4 phase 2). A block, tool or folder attach always creates a
// new resource and attaches it; existing control-plane resources with the
// same name or label are not looked up first. Identity attaches go through
// identity.Ensure, which looks the key up before creating. A 409 on attach
// or detach is treated as success by the HTTP client's Attach*/Detach*
// methods.
func execute(ctx context.Context, client controlplane.Client, agentID string, a plan.Action, opts Options) error {
	switch a.Kind {
	case models.KindBlock:
		return executeBlock(ctx, client, agentID, a, opts)
	case models.KindTool:
		return executeTool(ctx, client, agentID, a, opts)
	case models.KindFolder:
		return executeFolder(ctx, client, agentID, a, opts)
	case models.KindIdentity:
		return executeIdentity(ctx, client, agentID, a, opts)
	default:
		return fmt.Errorf("apply: unsupported kind %q", a.Kind)
	}
}

func layerVersion(opts Options, layer models.Layer) string {
	if opts.PackageVersion == nil {
		return ""
	}
	return opts.PackageVersion[layer]
}

func executeBlock(ctx context.Context, client controlplane.Client, agentID string, a plan.Action, opts Options) error {
	switch a.Verb {
	case plan.VerbAttach:
		entity, ok := opts.DesiredState.Get(models.KindBlock, a.Name)
		if !ok {
			return fmt.Errorf("attach_block: %q not found in desired state", a.Name)
		}
		value, _ := entity.Spec["value"].(string)
		marker := ownership.NewMarker(entity.Layer, opts.Org, opts.Project, layerVersion(opts, entity.Layer), now())
		b, err := client.CreateBlock(ctx, models.Block{
			Label:       a.Name,
			Value:       value,
			Description: entity.Description,
			Limit:       intSpec(entity.Spec["limit"]),
			Metadata:    ownership.MarkerToMetadata(nil, marker),
		})
		if err != nil {
			return err
		}
		return client.AttachBlock(ctx, agentID, b.ID)

	case plan.VerbUpdate:
		entity, ok := opts.DesiredState.Get(models.KindBlock, a.Name)
		if !ok {
			return fmt.Errorf("update_block: %q not found in desired state", a.Name)
		}
		value, _ := entity.Spec["value"].(string)
		patch := map[string]interface{}{
			"value":       value,
			"description": entity.Description,
		}
		if lim, ok := entity.Spec["limit"]; ok {
			patch["limit"] = intSpec(lim)
		}
		_, err := client.UpdateBlock(ctx, a.ResourceID, patch)
		return err

	case plan.VerbAdopt:
		entity, ok := opts.DesiredState.Get(models.KindBlock, a.Name)
		if !ok {
			return fmt.Errorf("adopt_block: %q not found in desired state", a.Name)
		}
		marker := ownership.AdoptionStamp(
			ownership.NewMarker(entity.Layer, opts.Org, opts.Project, layerVersion(opts, entity.Layer), now()),
			a.Name, now(),
		)
		value, _ := entity.Spec["value"].(string)
		_, err := client.UpdateBlock(ctx, a.ResourceID, map[string]interface{}{
			"value":       value,
			"description": entity.Description,
			"metadata":    ownership.MarkerToMetadata(nil, marker),
		})
		return err

	case plan.VerbDetach:
		return client.DetachBlock(ctx, agentID, a.ResourceID)

	default:
		return nil
	}
}

func intSpec(v interface{}) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	default:
		return 0
	}
}

func executeTool(ctx context.Context, client controlplane.Client, agentID string, a plan.Action, opts Options) error {
	switch a.Verb {
	case plan.VerbAttach:
		entity, ok := opts.DesiredState.Get(models.KindTool, a.Name)
		if !ok {
			return fmt.Errorf("attach_tool: %q not found in desired state", a.Name)
		}
		sourceCode, _ := entity.Spec["sourceCode"].(string)
		sourceType, _ := entity.Spec["sourceType"].(string)
		jsonSchema, _ := entity.Spec["jsonSchema"].(string)
		toolType, _ := entity.Spec["toolType"].(string)
		marker := ownership.NewMarker(entity.Layer, opts.Org, opts.Project, layerVersion(opts, entity.Layer), now())
		tool, err := client.CreateTool(ctx, models.Tool{
			Name:        a.Name,
			Description: entity.Description,
			SourceType:  sourceType,
			SourceCode:  sourceCode,
			JSONSchema:  jsonSchema,
			ToolType:    toolType,
			Tags:        ownership.MarkerToTags(nil, marker),
		})
		if err != nil {
			return err
		}
		return client.AttachTool(ctx, agentID, tool.ID)

	case plan.VerbUpdate:
		entity, ok := opts.DesiredState.Get(models.KindTool, a.Name)
		if !ok {
			return fmt.Errorf("update_tool: %q not found in desired state", a.Name)
		}
		sourceCode, _ := entity.Spec["sourceCode"].(string)
		jsonSchema, _ := entity.Spec["jsonSchema"].(string)
		_, err := client.UpdateTool(ctx, a.ResourceID, map[string]interface{}{
			"sourceCode":  sourceCode,
			"description": entity.Description,
			"jsonSchema":  jsonSchema,
		})
		return err

	case plan.VerbAdopt:
		entity, ok := opts.DesiredState.Get(models.KindTool, a.Name)
		if !ok {
			return fmt.Errorf("adopt_tool: %q not found in desired state", a.Name)
		}
		marker := ownership.AdoptionStamp(
			ownership.NewMarker(entity.Layer, opts.Org, opts.Project, layerVersion(opts, entity.Layer), now()),
			a.Name, now(),
		)
		sourceCode, _ := entity.Spec["sourceCode"].(string)
		_, err := client.UpdateTool(ctx, a.ResourceID, map[string]interface{}{
			"sourceCode":  sourceCode,
			"description": entity.Description,
			"tags":        ownership.MarkerToTags(nil, marker),
		})
		return err

	case plan.VerbDetach:
		return client.DetachTool(ctx, agentID, a.ResourceID)

	default:
		return nil
	}
}

func executeFolder(ctx context.Context, client controlplane.Client, agentID string, a plan.Action, opts Options) error {
	switch a.Verb {
	case plan.VerbAttach:
		entity, ok := opts.DesiredState.Get(models.KindFolder, a.Name)
		if !ok {
			return fmt.Errorf("attach_folder: %q not found in desired state", a.Name)
		}
		marker := ownership.NewMarker(entity.Layer, opts.Org, opts.Project, layerVersion(opts, entity.Layer), now())
		f, err := client.CreateFolder(ctx, models.Folder{
			Name:     a.Name,
			Metadata: ownership.MarkerToMetadata(nil, marker),
		})
		if err != nil {
			return err
		}
		return client.AttachFolder(ctx, agentID, f.ID)

	case plan.VerbAdopt:
		entity, ok := opts.DesiredState.Get(models.KindFolder, a.Name)
		if !ok {
			return fmt.Errorf("adopt_folder: %q not found in desired state", a.Name)
		}
		marker := ownership.AdoptionStamp(
			ownership.NewMarker(entity.Layer, opts.Org, opts.Project, layerVersion(opts, entity.Layer), now()),
			a.Name, now(),
		)
		_, err := client.UpdateFolder(ctx, a.ResourceID, map[string]interface{}{
			"metadata": ownership.MarkerToMetadata(nil, marker),
		})
		return err

	case plan.VerbDetach:
		return client.DetachFolder(ctx, agentID, a.ResourceID)

	default:
		return nil
	}
}

// executeIdentity handles plan-level identity attach/detach. a.Name already
// holds a full identifier key by the time a plan reaches the Apply Engine
// (spec.md §4.3), but the key's type still has to clear the identity
// sub-reconciler's auto-create policy (spec.md §4.6) before an attach may
// create a new identity.
func executeIdentity(ctx context.Context, client controlplane.Client, agentID string, a plan.Action, opts Options) error {
	resolveOpts := identitykey.ResolveOptions{DefaultOrg: opts.Org, DefaultType: identitykey.TypeUser}

	switch a.Verb {
	case plan.VerbAttach:
		ensured, err := identity.Ensure(ctx, client, a.Name, resolveOpts, opts.IdentityPolicy, "letta-sync/apply")
		if err != nil {
			return err
		}
		return attachIdentityToAgent(ctx, client, agentID, ensured.Identity.ID)

	case plan.VerbDetach:
		return identity.DetachFromAgent(ctx, client, agentID, []string{a.Name}, resolveOpts)

	default:
		return nil
	}
}

func attachIdentityToAgent(ctx context.Context, client controlplane.Client, agentID, identityID string) error {
	agent, err := client.RetrieveAgent(ctx, agentID)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(agent.Identities)+1)
	seen := map[string]bool{}
	for _, idn := range agent.Identities {
		if !seen[idn.ID] {
			ids = append(ids, idn.ID)
			seen[idn.ID] = true
		}
	}
	if !seen[identityID] {
		ids = append(ids, identityID)
	}
	_, err = client.UpdateAgent(ctx, agentID, controlplane.AgentUpdate{IdentityIDs: &ids})
	return err
}
