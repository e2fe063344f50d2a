package plan

import (
	"github.com/letta-ai/letta-sync/internal/models"
	"github.com/letta-ai/letta-sync/internal/ownership"
)

// buildIdentityActions computes identity actions. Identities are
// existence-only like folders (spec.md §4.3); canonical name is the
// identifier key. Auto-creation and resolution of loose inputs are the
// Identity Sub-reconciler's job (spec.md §4.6), invoked by the Apply
// Engine when executing attach actions.
func buildIdentityActions(in Input) []Action {
	var actions []Action

	observedByKey := make(map[string]models.Identity, len(in.Agent.Identities))
	for _, idn := range in.Agent.Identities {
		observedByKey[idn.IdentifierKey] = idn
	}
	desiredNames := in.Desired.NameSet(models.KindIdentity)

	for key, idn := range observedByKey {
		marker, marked := ownership.MarkerFromMetadata(idn.Metadata)
		resource := ownership.Resource{Kind: models.KindIdentity, Name: key, Marker: marker, Marked: marked}

		desiredKind, desiredHasName := in.Desired.KindForName(key)
		class := ownership.Classify(resource, desiredKind, desiredHasName)

		switch class.Status {
		case ownership.Managed:
			// existence-only: nothing to drift.
		case ownership.Orphaned:
			actions = append(actions, Action{
				Verb: VerbDetach, Kind: models.KindIdentity, Name: key,
				ResourceID: idn.ID, Risk: Breaking,
				Reason: "managed identity no longer present in desired state",
			})
		case ownership.Adopted:
			entity, _ := in.Desired.Get(models.KindIdentity, key)
			actions = append(actions, Action{
				Verb: VerbAdopt, Kind: models.KindIdentity, Name: key,
				ResourceID: idn.ID, SourceLayer: entity.Layer, Risk: Safe,
				Reason: "unmarked identity matches a desired entry by key",
			})
		case ownership.Foreign:
		}
	}

	for key := range desiredNames {
		if _, observed := observedByKey[key]; observed {
			continue
		}
		entity, _ := in.Desired.Get(models.KindIdentity, key)
		actions = append(actions, Action{
			Verb: VerbAttach, Kind: models.KindIdentity, Name: key,
			SourceLayer: entity.Layer, Risk: Safe,
			Reason: "desired identity not present on agent",
		})
	}

	return actions
}
