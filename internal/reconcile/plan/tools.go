package plan

import (
	"encoding/json"
	"reflect"

	"github.com/letta-ai/letta-sync/internal/manifest"
	"github.com/letta-ai/letta-sync/internal/models"
	"github.com/letta-ai/letta-sync/internal/ownership"
)

// buildToolActions computes tool actions. Drift compares sourceCode,
// description, and canonicalized jsonSchema (spec.md §4.3).
func buildToolActions(in Input) []Action {
	var actions []Action

	observedByName := make(map[string]models.Tool, len(in.Agent.Tools))
	for _, t := range in.Agent.Tools {
		observedByName[t.Name] = t
	}
	desiredNames := in.Desired.NameSet(models.KindTool)

	for name, t := range observedByName {
		entity, _ := in.Desired.Get(models.KindTool, name)
		marker, marked := ownership.MarkerFromTags(t.Tags)
		resource := ownership.Resource{Kind: models.KindTool, Name: name, Marker: marker, Marked: marked}

		desiredKind, desiredHasName := in.Desired.KindForName(name)
		class := ownership.Classify(resource, desiredKind, desiredHasName)

		switch class.Status {
		case ownership.Managed:
			if a, ok := toolUpdateAction(entity, t); ok {
				actions = append(actions, a)
			}
		case ownership.Orphaned:
			actions = append(actions, Action{
				Verb: VerbDetach, Kind: models.KindTool, Name: name,
				ResourceID: t.ID, Risk: Breaking,
				Reason: "managed tool no longer present in desired state",
			})
		case ownership.Adopted:
			actions = append(actions, Action{
				Verb: VerbAdopt, Kind: models.KindTool, Name: name,
				ResourceID: t.ID, SourceLayer: entity.Layer, Risk: Safe,
				Reason: "unmarked tool matches a desired entry by name",
			})
		case ownership.Foreign:
		}
	}

	for name := range desiredNames {
		if _, observed := observedByName[name]; observed {
			continue
		}
		entity, _ := in.Desired.Get(models.KindTool, name)
		actions = append(actions, Action{
			Verb: VerbAttach, Kind: models.KindTool, Name: name,
			SourceLayer: entity.Layer, Risk: Safe,
			Reason: "desired tool not present on agent",
		})
	}

	return actions
}

func toolUpdateAction(entity manifest.Entity, observed models.Tool) (Action, bool) {
	var changes []FieldChange

	desiredSource, _ := entity.Spec["sourceCode"].(string)
	if desiredSource != observed.SourceCode {
		changes = append(changes, FieldChange{Field: "sourceCode", Old: observed.SourceCode, New: desiredSource})
	}
	if entity.Description != observed.Description {
		changes = append(changes, FieldChange{Field: "description", Old: observed.Description, New: entity.Description})
	}
	desiredSchema, _ := entity.Spec["jsonSchema"].(string)
	if !schemasEqual(desiredSchema, observed.JSONSchema) {
		changes = append(changes, FieldChange{Field: "jsonSchema", Old: observed.JSONSchema, New: desiredSchema})
	}

	if len(changes) == 0 {
		return Action{}, false
	}

	risk := Safe
	reason := "content drift only"
	for _, c := range changes {
		if c.Field != "sourceCode" && c.Field != "description" {
			risk = Breaking
			reason = "tool schema changed"
			break
		}
	}

	return Action{
		Verb: VerbUpdate, Kind: models.KindTool, Name: entity.Name,
		ResourceID: observed.ID, SourceLayer: entity.Layer,
		Changes: changes, Risk: risk, Reason: reason,
	}, true
}

// schemasEqual compares two JSON schema documents for semantic equality:
// key order and whitespace are irrelevant (spec.md §4.3).
func schemasEqual(a, b string) bool {
	if a == b {
		return true
	}
	var av, bv interface{}
	if err := json.Unmarshal([]byte(a), &av); err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(b), &bv); err != nil {
		return false
	}
	return reflect.DeepEqual(av, bv)
}
