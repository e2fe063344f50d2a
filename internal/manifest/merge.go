package manifest

import (
	"fmt"

	"github.com/letta-ai/letta-sync/internal/models"
)

// mergeLayer folds one layer's entities into desired, applying
// project > org > base precedence by canonical name and recording
// overrides/duplicates as warnings (spec.md §4.1 "Merge").
func mergeLayer(desired *Desired, layer models.Layer, entities []Entity) {
	// Detect and warn about duplicate names within this single layer
	// first; the stable-order survivor is the first one encountered
	// (spec.md §8 "Duplicate block label within one layer").
	seenInLayer := map[models.Kind]map[string]bool{}

	for _, e := range entities {
		byName := seenInLayer[e.Kind]
		if byName == nil {
			byName = map[string]bool{}
			seenInLayer[e.Kind] = byName
		}
		if byName[e.Name] {
			desired.addWarning("layer %s: duplicate %s %q, keeping first occurrence", layer, e.Kind, e.Name)
			continue
		}
		byName[e.Name] = true

		target := desired.mapFor(e.Kind)
		if target == nil {
			desired.addWarning("layer %s: unknown kind %q for %q, skipping", layer, e.Kind, e.Name)
			continue
		}

		if existing, ok := target[e.Name]; ok {
			desired.addWarning("layer %s overrides %s %q previously declared in layer %s",
				layer, e.Kind, e.Name, existing.Layer)
		}

		target[e.Name] = e

		tags := desired.LayerTags[e.Kind]
		if tags == nil {
			tags = map[string]models.Layer{}
			desired.LayerTags[e.Kind] = tags
		}
		tags[e.Name] = layer
	}
}

// NameSet returns the canonical names present in the given kind's map,
// used by the ownership classifier and plan builder.
func (d *Desired) NameSet(kind models.Kind) map[string]bool {
	out := map[string]bool{}
	for name := range d.mapFor(kind) {
		out[name] = true
	}
	return out
}

// Get returns the merged entity for (kind, name), if present.
func (d *Desired) Get(kind models.Kind, name string) (Entity, bool) {
	m := d.mapFor(kind)
	if m == nil {
		return Entity{}, false
	}
	e, ok := m[name]
	return e, ok
}

// LayerOf returns the effective layer the surviving entity for
// (kind, name) came from.
func (d *Desired) LayerOf(kind models.Kind, name string) (models.Layer, bool) {
	tags, ok := d.LayerTags[kind]
	if !ok {
		return "", false
	}
	l, ok := tags[name]
	return l, ok
}

// allKinds lists every kind the Desired state tracks, used by KindForName
// to scan across kind maps for cross-kind name collisions.
var allKinds = []models.Kind{
	models.KindBlock, models.KindTool, models.KindFolder, models.KindIdentity,
	models.KindMCPServer, models.KindTemplate, models.KindPolicy,
}

// KindForName scans every kind's map for a canonical name and returns the
// kind it is declared under, if any. Used by the ownership classifier's
// cross-kind tie-break rule (spec.md §4.2).
func (d *Desired) KindForName(name string) (models.Kind, bool) {
	for _, k := range allKinds {
		if _, ok := d.Get(k, name); ok {
			return k, true
		}
	}
	return "", false
}

func (d *Desired) String() string {
	return fmt.Sprintf("Desired{blocks=%d tools=%d folders=%d identities=%d}",
		len(d.Blocks), len(d.Tools), len(d.Folders), len(d.Identities))
}
