package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/letta-ai/letta-sync/internal/errkind"
	"github.com/letta-ai/letta-sync/internal/models"
)

// Location describes where manifests were found, so callers can stamp
// packagePaths and emit the deprecation warning spec.md §4.1 requires.
type Location struct {
	RepoRoot      string
	ManifestsRoot string
	Legacy        bool // true when falling back to packages/examples
	LayerDirs     map[models.Layer]string
}

// FindRepoRoot walks upward from start looking for a directory containing
// .letta (preferred) or .git, per spec.md §4.1.
func FindRepoRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", errkind.Wrap(errkind.Validation, err)
	}
	for {
		if isDir(filepath.Join(dir, ".letta")) || isDir(filepath.Join(dir, ".git")) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errkind.New(errkind.NotFound, "no repo root (.letta or .git) found above %s", start)
		}
		dir = parent
	}
}

// Locate resolves the manifest directory and its layer subdirectories,
// preferring .letta/manifests and falling back to packages/examples.
func Locate(repoRoot string) (*Location, []string, error) {
	var warnings []string

	preferred := filepath.Join(repoRoot, ".letta", "manifests")
	legacy := filepath.Join(repoRoot, "packages", "examples")

	if isDir(preferred) {
		return &Location{
			RepoRoot:      repoRoot,
			ManifestsRoot: preferred,
			Legacy:        false,
			LayerDirs: map[models.Layer]string{
				models.LayerBase:    filepath.Join(preferred, "base"),
				models.LayerOrg:     filepath.Join(preferred, "org"),
				models.LayerProject: filepath.Join(preferred, "project"),
			},
		}, warnings, nil
	}

	if isDir(legacy) {
		warnings = append(warnings, fmt.Sprintf(
			"manifest location %q is deprecated; prefer %q", legacy, preferred))
		layerDirs, err := legacyLayerDirs(legacy)
		if err != nil {
			return nil, warnings, err
		}
		return &Location{
			RepoRoot:      repoRoot,
			ManifestsRoot: legacy,
			Legacy:        true,
			LayerDirs:     layerDirs,
		}, warnings, nil
	}

	return nil, warnings, errkind.New(errkind.NotFound,
		"no manifest directory found: tried %q and %q", preferred, legacy)
}

// legacyLayerDirs discovers base/, org-<...>/, project-<...>/ siblings
// under the legacy manifests root.
func legacyLayerDirs(root string) (map[models.Layer]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, errkind.Wrap(errkind.NotFound, err)
	}
	dirs := map[models.Layer]string{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		switch {
		case name == "base":
			dirs[models.LayerBase] = filepath.Join(root, name)
		case strings.HasPrefix(name, "org-"):
			dirs[models.LayerOrg] = filepath.Join(root, name)
		case strings.HasPrefix(name, "project-"):
			dirs[models.LayerProject] = filepath.Join(root, name)
		}
	}
	return dirs, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// LoadLayer recursively walks dir for manifest files, parses each into a
// list of Entities tagged with layer, and validates each against its kind
// schema. A parse or validation failure in this layer is returned as a
// single warning and the whole layer is dropped (spec.md §4.1).
func LoadLayer(dir string, layer models.Layer) ([]Entity, []string, error) {
	var entities []Entity
	var warnings []string

	if !isDir(dir) {
		return nil, nil, nil
	}

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !isManifestFile(path) {
			return nil
		}
		parsed, perr := ParseFile(path)
		if perr != nil {
			warnings = append(warnings, fmt.Sprintf("layer %s: %s: %v", layer, path, perr))
			return nil
		}
		for i := range parsed {
			parsed[i].Layer = layer
			parsed[i].SourcePath = path
			if verr := validateEntity(parsed[i]); verr != nil {
				warnings = append(warnings, fmt.Sprintf("layer %s: %s: %v", layer, path, verr))
				continue
			}
			entities = append(entities, parsed[i])
		}
		return nil
	})
	if err != nil {
		// Treat an unreadable layer directory as a dropped layer, not a
		// fatal error: other layers still load (spec.md §4.1).
		return nil, []string{fmt.Sprintf("layer %s: %v (layer dropped)", layer, err)}, nil
	}
	if len(warnings) > 0 {
		return nil, []string{strings.Join(warnings, "; ") + " (layer dropped)"}, nil
	}
	return entities, warnings, nil
}

func isManifestFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml" || ext == ".json"
}

func validateEntity(e Entity) error {
	if e.Name == "" {
		return errkind.New(errkind.Validation, "entity missing name").WithField(e.SourcePath)
	}
	switch e.Kind {
	case models.KindBlock:
		if _, ok := e.Spec["value"]; !ok {
			return errkind.New(errkind.Validation, "block %q missing value", e.Name).WithField(e.SourcePath)
		}
	case models.KindTool:
		if _, ok := e.Spec["sourceCode"]; !ok {
			return errkind.New(errkind.Validation, "tool %q missing sourceCode", e.Name).WithField(e.SourcePath)
		}
	case models.KindMCPServer:
		st, _ := e.Spec["serverType"].(string)
		switch st {
		case "stdio", "sse", "streamable_http":
		default:
			return errkind.New(errkind.Validation, "mcp server %q has invalid serverType %q", e.Name, st).WithField(e.SourcePath)
		}
	case models.KindFolder, models.KindIdentity, models.KindTemplate, models.KindPolicy:
		// existence-only at this revision.
	default:
		return errkind.New(errkind.Validation, "entity %q has unknown kind %q", e.Name, e.Kind).WithField(e.SourcePath)
	}
	return nil
}

// Load discovers the repo root starting at start, locates the manifest
// directory, loads every layer, and merges them into a Desired state.
func Load(start string) (*Desired, *Location, error) {
	root, err := FindRepoRoot(start)
	if err != nil {
		return nil, nil, err
	}
	loc, locWarnings, err := Locate(root)
	if err != nil {
		return nil, nil, err
	}

	desired := newDesired()
	desired.Warnings = append(desired.Warnings, locWarnings...)

	for _, layer := range models.Ordered() {
		dir, ok := loc.LayerDirs[layer]
		if !ok {
			continue
		}
		entities, warnings, err := LoadLayer(dir, layer)
		if err != nil {
			return nil, nil, err
		}
		desired.Warnings = append(desired.Warnings, warnings...)
		mergeLayer(desired, layer, entities)
	}

	return desired, loc, nil
}
