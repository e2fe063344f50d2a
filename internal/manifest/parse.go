package manifest

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/letta-ai/letta-sync/internal/errkind"
	"github.com/letta-ai/letta-sync/internal/models"
)

// rawEntity is the on-disk shape of one manifest document. The format is a
// structured, human-readable text format per spec.md §6 — this
// implementation picks YAML (JSON parses cleanly through the same decoder
// as a YAML subset), with one document per entity and "---" separating
// multiple entities in a single file.
type rawEntity struct {
	Kind        string                 `yaml:"kind"`
	Name        string                 `yaml:"name"`
	Description string                 `yaml:"description"`
	Spec        map[string]interface{} `yaml:"spec"`
}

// ParseFile parses every YAML/JSON document in path into Entities. A file
// may declare more than one entity by separating documents with "---".
func ParseFile(path string) ([]Entity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errkind.Wrap(errkind.NotFound, err)
	}
	return Parse(data)
}

// Parse decodes raw manifest bytes into Entities without touching the
// filesystem, so it can be unit tested directly. lettasync-validate reads
// manifests from disk through Load and does not call it.
func Parse(data []byte) ([]Entity, error) {
	dec := yaml.NewDecoder(bytesReader(data))
	var entities []Entity
	for {
		var raw rawEntity
		err := dec.Decode(&raw)
		if err != nil {
			if isEOF(err) {
				break
			}
			return nil, errkind.Wrap(errkind.Validation, err)
		}
		if raw.Kind == "" && raw.Name == "" {
			continue // blank document between separators
		}
		entities = append(entities, Entity{
			Kind:        models.Kind(raw.Kind),
			Name:        raw.Name,
			Description: raw.Description,
			Spec:        raw.Spec,
		})
	}
	return entities, nil
}
