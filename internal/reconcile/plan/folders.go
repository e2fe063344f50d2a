package plan

import (
	"github.com/letta-ai/letta-sync/internal/models"
	"github.com/letta-ai/letta-sync/internal/ownership"
)

// buildFolderActions computes folder actions. Folders are existence-only:
// no drift is detected once attached, only attach/adopt/detach (spec.md §4.3).
func buildFolderActions(in Input) []Action {
	var actions []Action

	observedByName := make(map[string]models.Folder, len(in.Agent.Folders))
	for _, fo := range in.Agent.Folders {
		observedByName[fo.Name] = fo
	}
	desiredNames := in.Desired.NameSet(models.KindFolder)

	for name, fo := range observedByName {
		marker, marked := ownership.MarkerFromMetadata(fo.Metadata)
		resource := ownership.Resource{Kind: models.KindFolder, Name: name, Marker: marker, Marked: marked}

		desiredKind, desiredHasName := in.Desired.KindForName(name)
		class := ownership.Classify(resource, desiredKind, desiredHasName)

		switch class.Status {
		case ownership.Managed:
			// existence-only: nothing to drift.
		case ownership.Orphaned:
			actions = append(actions, Action{
				Verb: VerbDetach, Kind: models.KindFolder, Name: name,
				ResourceID: fo.ID, Risk: Breaking,
				Reason: "managed folder no longer present in desired state",
			})
		case ownership.Adopted:
			entity, _ := in.Desired.Get(models.KindFolder, name)
			actions = append(actions, Action{
				Verb: VerbAdopt, Kind: models.KindFolder, Name: name,
				ResourceID: fo.ID, SourceLayer: entity.Layer, Risk: Safe,
				Reason: "unmarked folder matches a desired entry by name",
			})
		case ownership.Foreign:
		}
	}

	for name := range desiredNames {
		if _, observed := observedByName[name]; observed {
			continue
		}
		entity, _ := in.Desired.Get(models.KindFolder, name)
		actions = append(actions, Action{
			Verb: VerbAttach, Kind: models.KindFolder, Name: name,
			SourceLayer: entity.Layer, Risk: Safe,
			Reason: "desired folder not present on agent",
		})
	}

	return actions
}
