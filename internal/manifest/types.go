// Package manifest implements the Manifest Loader (spec.md §4.1): repo-root
// discovery, layer directory resolution, per-layer parsing, and the merge
// into one canonical Desired State.
package manifest

import (
	"fmt"

	"github.com/letta-ai/letta-sync/internal/models"
)

// Entity is a single manifest declaration loaded from disk. All kinds share
// this envelope; Spec carries the kind-specific payload as a generic map so
// the loader does not need one Go type per kind's on-disk shape.
type Entity struct {
	Kind        models.Kind
	Name        string
	Description string
	Layer       models.Layer
	Spec        map[string]interface{}
	// SourcePath is the manifest file this entity was parsed from, used in
	// warnings and for registry package-path existence checks.
	SourcePath string
}

// Desired is the merged outcome of every layer's manifests: one map per
// kind keyed by canonical name, plus the effective layer each entity came
// from (spec.md §3, "Desired State").
type Desired struct {
	Blocks     map[string]Entity
	Tools      map[string]Entity
	Folders    map[string]Entity
	Identities map[string]Entity
	MCPServers map[string]Entity
	Templates  map[string]Entity
	Policies   map[string]Entity

	// LayerTags records, per kind and name, which layer the surviving
	// entity came from after merge.
	LayerTags map[models.Kind]map[string]models.Layer

	// Warnings accumulated while loading and merging (duplicate names
	// within a layer, overrides by higher layers, dropped layers).
	Warnings []string
}

func newDesired() *Desired {
	return &Desired{
		Blocks:     map[string]Entity{},
		Tools:      map[string]Entity{},
		Folders:    map[string]Entity{},
		Identities: map[string]Entity{},
		MCPServers: map[string]Entity{},
		Templates:  map[string]Entity{},
		Policies:   map[string]Entity{},
		LayerTags:  map[models.Kind]map[string]models.Layer{},
	}
}

func (d *Desired) mapFor(kind models.Kind) map[string]Entity {
	switch kind {
	case models.KindBlock:
		return d.Blocks
	case models.KindTool:
		return d.Tools
	case models.KindFolder:
		return d.Folders
	case models.KindIdentity:
		return d.Identities
	case models.KindMCPServer:
		return d.MCPServers
	case models.KindTemplate:
		return d.Templates
	case models.KindPolicy:
		return d.Policies
	default:
		return nil
	}
}

func (d *Desired) addWarning(format string, args ...interface{}) {
	d.Warnings = append(d.Warnings, fmt.Sprintf(format, args...))
}
