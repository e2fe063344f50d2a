package plan

import (
	"fmt"
	"strconv"

	"github.com/letta-ai/letta-sync/internal/manifest"
	"github.com/letta-ai/letta-sync/internal/models"
	"github.com/letta-ai/letta-sync/internal/ownership"
)

// buildBlockActions computes attach/update/detach/adopt/skip actions for
// the Block kind, per spec.md §4.3's drift rules.
func buildBlockActions(in Input) []Action {
	var actions []Action

	observedByLabel := make(map[string]models.Block, len(in.Agent.Blocks))
	for _, b := range in.Agent.Blocks {
		observedByLabel[b.Label] = b
	}

	desiredNames := in.Desired.NameSet(models.KindBlock)

	for name, b := range observedByLabel {
		if name == models.ManagedStateLabel {
			// the reserved record block is written only by the Apply
			// Engine's record update and is never planned.
			continue
		}
		entity, _ := in.Desired.Get(models.KindBlock, name)
		marker, marked := ownership.MarkerFromMetadata(b.Metadata)
		resource := ownership.Resource{Kind: models.KindBlock, Name: name, Marker: marker, Marked: marked}

		desiredKind, desiredHasName := in.Desired.KindForName(name)
		class := ownership.Classify(resource, desiredKind, desiredHasName)

		switch class.Status {
		case ownership.Managed:
			if a, ok := blockUpdateAction(entity, b); ok {
				actions = append(actions, a)
			}
		case ownership.Orphaned:
			actions = append(actions, Action{
				Verb: VerbDetach, Kind: models.KindBlock, Name: name,
				ResourceID: b.ID, Risk: Breaking,
				Reason: "managed block no longer present in desired state",
			})
		case ownership.Adopted:
			actions = append(actions, Action{
				Verb: VerbAdopt, Kind: models.KindBlock, Name: name,
				ResourceID: b.ID, SourceLayer: entity.Layer, Risk: Safe,
				Reason: "unmarked block matches a desired entry by name",
			})
		case ownership.Foreign:
			// never touched, per spec.md §4.2/§8 invariant 3.
		}
	}

	for name := range desiredNames {
		if _, observed := observedByLabel[name]; observed {
			continue
		}
		entity, _ := in.Desired.Get(models.KindBlock, name)
		actions = append(actions, Action{
			Verb: VerbAttach, Kind: models.KindBlock, Name: name,
			SourceLayer: entity.Layer, Risk: Safe,
			Reason: "desired block not present on agent",
		})
	}

	return actions
}

func blockUpdateAction(entity manifest.Entity, observed models.Block) (Action, bool) {
	var changes []FieldChange

	desiredValue, _ := entity.Spec["value"].(string)
	if desiredValue != observed.Value {
		changes = append(changes, FieldChange{Field: "value", Old: observed.Value, New: desiredValue})
	}
	if entity.Description != observed.Description {
		changes = append(changes, FieldChange{Field: "description", Old: observed.Description, New: entity.Description})
	}
	if rawLimit, ok := entity.Spec["limit"]; ok {
		desiredLimit := intSpecValue(rawLimit)
		if desiredLimit != observed.Limit {
			changes = append(changes, FieldChange{
				Field: "limit", Old: strconv.Itoa(observed.Limit), New: strconv.Itoa(desiredLimit),
			})
		}
	}

	marker, _ := ownership.MarkerFromMetadata(observed.Metadata)
	renamed := marker.OriginalName != "" && marker.OriginalName != entity.Name

	if len(changes) == 0 && !renamed {
		return Action{}, false
	}

	risk := Safe
	reason := "content drift only"
	if renamed {
		risk = Breaking
		reason = "block label was renamed"
	} else if observed.ReadOnly {
		risk = Breaking
		reason = "required block changed"
	} else {
		for _, c := range changes {
			if c.Field != "value" && c.Field != "description" {
				risk = Breaking
				reason = fmt.Sprintf("structural field %q changed", c.Field)
				break
			}
		}
	}

	return Action{
		Verb: VerbUpdate, Kind: models.KindBlock, Name: entity.Name,
		ResourceID: observed.ID, SourceLayer: entity.Layer,
		Changes: changes, Risk: risk, Reason: reason,
	}, true
}

func intSpecValue(v interface{}) int {
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
