package controlplane

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/letta-ai/letta-sync/internal/models"
)

var _ Client = (*Fake)(nil)

// Fake is an in-memory Client used by the reconciliation engine's own test
// suites, so plan/apply/upgrade tests do not depend on a live server.
type Fake struct {
	Blocks     map[string]models.Block
	Tools      map[string]models.Tool
	Folders    map[string]models.Folder
	Identities map[string]models.Identity
	Agents     map[string]models.Agent

	AgentBlocks  map[string]map[string]bool
	AgentTools   map[string]map[string]bool
	AgentFolders map[string]map[string]bool

	// Conflicts, when non-nil, is consulted by Attach/Detach* to simulate a
	// 409 from the control plane for a given (agentID, resourceID) pair.
	Conflicts map[[2]string]bool
}

// NewFake builds an empty fake control plane.
func NewFake() *Fake {
	return &Fake{
		Blocks:       map[string]models.Block{},
		Tools:        map[string]models.Tool{},
		Folders:      map[string]models.Folder{},
		Identities:   map[string]models.Identity{},
		Agents:       map[string]models.Agent{},
		AgentBlocks:  map[string]map[string]bool{},
		AgentTools:   map[string]map[string]bool{},
		AgentFolders: map[string]map[string]bool{},
	}
}

func newID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

func (f *Fake) ListBlocks(ctx context.Context, filter Filter) ([]models.Block, error) {
	return matchBlocks(f.Blocks, filter), nil
}

func matchBlocks(m map[string]models.Block, filter Filter) []models.Block {
	out := make([]models.Block, 0, len(m))
	for _, b := range m {
		if filter.Name != "" && b.Label != filter.Name {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *Fake) RetrieveBlock(ctx context.Context, id string) (*models.Block, error) {
	b, ok := f.Blocks[id]
	if !ok {
		return nil, fmt.Errorf("block %s not found", id)
	}
	return &b, nil
}

func (f *Fake) CreateBlock(ctx context.Context, spec models.Block) (*models.Block, error) {
	spec.ID = newID("block")
	f.Blocks[spec.ID] = spec
	return &spec, nil
}

func (f *Fake) UpdateBlock(ctx context.Context, id string, patch map[string]interface{}) (*models.Block, error) {
	b, ok := f.Blocks[id]
	if !ok {
		return nil, fmt.Errorf("block %s not found", id)
	}
	applyBlockPatch(&b, patch)
	f.Blocks[id] = b
	return &b, nil
}

func applyBlockPatch(b *models.Block, patch map[string]interface{}) {
	if v, ok := patch["value"].(string); ok {
		b.Value = v
	}
	if v, ok := patch["description"].(string); ok {
		b.Description = v
	}
	if v, ok := patch["limit"].(int); ok {
		b.Limit = v
	}
	if v, ok := patch["metadata"].(map[string]string); ok {
		b.Metadata = v
	}
}

func (f *Fake) DeleteBlock(ctx context.Context, id string) error {
	delete(f.Blocks, id)
	return nil
}

func (f *Fake) ListTools(ctx context.Context, filter Filter) ([]models.Tool, error) {
	out := make([]models.Tool, 0, len(f.Tools))
	for _, t := range f.Tools {
		if filter.Name != "" && t.Name != filter.Name {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *Fake) RetrieveTool(ctx context.Context, id string) (*models.Tool, error) {
	t, ok := f.Tools[id]
	if !ok {
		return nil, fmt.Errorf("tool %s not found", id)
	}
	return &t, nil
}

func (f *Fake) CreateTool(ctx context.Context, spec models.Tool) (*models.Tool, error) {
	spec.ID = newID("tool")
	f.Tools[spec.ID] = spec
	return &spec, nil
}

func (f *Fake) UpdateTool(ctx context.Context, id string, patch map[string]interface{}) (*models.Tool, error) {
	t, ok := f.Tools[id]
	if !ok {
		return nil, fmt.Errorf("tool %s not found", id)
	}
	if v, ok := patch["sourceCode"].(string); ok {
		t.SourceCode = v
	}
	if v, ok := patch["description"].(string); ok {
		t.Description = v
	}
	if v, ok := patch["jsonSchema"].(string); ok {
		t.JSONSchema = v
	}
	if v, ok := patch["tags"].([]string); ok {
		t.Tags = v
	}
	f.Tools[id] = t
	return &t, nil
}

func (f *Fake) DeleteTool(ctx context.Context, id string) error {
	delete(f.Tools, id)
	return nil
}

func (f *Fake) ListFolders(ctx context.Context, filter Filter) ([]models.Folder, error) {
	out := make([]models.Folder, 0, len(f.Folders))
	for _, fo := range f.Folders {
		if filter.Name != "" && fo.Name != filter.Name {
			continue
		}
		out = append(out, fo)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *Fake) RetrieveFolder(ctx context.Context, id string) (*models.Folder, error) {
	fo, ok := f.Folders[id]
	if !ok {
		return nil, fmt.Errorf("folder %s not found", id)
	}
	return &fo, nil
}

func (f *Fake) CreateFolder(ctx context.Context, spec models.Folder) (*models.Folder, error) {
	spec.ID = newID("folder")
	f.Folders[spec.ID] = spec
	return &spec, nil
}

func (f *Fake) UpdateFolder(ctx context.Context, id string, patch map[string]interface{}) (*models.Folder, error) {
	fo, ok := f.Folders[id]
	if !ok {
		return nil, fmt.Errorf("folder %s not found", id)
	}
	if v, ok := patch["metadata"].(map[string]string); ok {
		fo.Metadata = v
	}
	f.Folders[id] = fo
	return &fo, nil
}

func (f *Fake) DeleteFolder(ctx context.Context, id string) error {
	delete(f.Folders, id)
	return nil
}

func (f *Fake) ListIdentities(ctx context.Context, filter Filter) ([]models.Identity, error) {
	out := make([]models.Identity, 0, len(f.Identities))
	for _, id := range f.Identities {
		if filter.Name != "" && id.IdentifierKey != filter.Name {
			continue
		}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *Fake) CreateIdentity(ctx context.Context, spec models.Identity) (*models.Identity, error) {
	for _, existing := range f.Identities {
		if existing.IdentifierKey == spec.IdentifierKey {
			return nil, &StatusError{Status: 409, Body: "identity already exists"}
		}
	}
	spec.ID = newID("identity")
	f.Identities[spec.ID] = spec
	return &spec, nil
}

func (f *Fake) UpsertIdentity(ctx context.Context, spec models.Identity) (*models.Identity, error) {
	for id, existing := range f.Identities {
		if existing.IdentifierKey == spec.IdentifierKey {
			spec.ID = id
			f.Identities[id] = spec
			return &spec, nil
		}
	}
	spec.ID = newID("identity")
	f.Identities[spec.ID] = spec
	return &spec, nil
}

func (f *Fake) ListAgents(ctx context.Context, filter AgentFilter) ([]models.Agent, error) {
	out := make([]models.Agent, 0, len(f.Agents))
	for id, a := range f.Agents {
		if !hasAllTags(a.Tags, filter.Tags) {
			continue
		}
		a.Blocks = f.resolvedAgentBlocks(id)
		a.Tools = f.resolvedAgentTools(id)
		a.Folders = f.resolvedAgentFolders(id)
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func hasAllTags(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	set := map[string]bool{}
	for _, t := range have {
		set[t] = true
	}
	for _, t := range want {
		if !set[t] {
			return false
		}
	}
	return true
}

func (f *Fake) RetrieveAgent(ctx context.Context, id string) (*models.Agent, error) {
	a, ok := f.Agents[id]
	if !ok {
		return nil, fmt.Errorf("agent %s not found", id)
	}
	a.Blocks = f.resolvedAgentBlocks(id)
	a.Tools = f.resolvedAgentTools(id)
	a.Folders = f.resolvedAgentFolders(id)
	return &a, nil
}

func (f *Fake) UpdateAgent(ctx context.Context, id string, update AgentUpdate) (*models.Agent, error) {
	a, ok := f.Agents[id]
	if !ok {
		return nil, fmt.Errorf("agent %s not found", id)
	}
	if update.Tags != nil {
		a.Tags = *update.Tags
	}
	if update.IdentityIDs != nil {
		ids := make([]models.Identity, 0, len(*update.IdentityIDs))
		for _, idv := range *update.IdentityIDs {
			if identity, ok := f.Identities[idv]; ok {
				ids = append(ids, identity)
			}
		}
		a.Identities = ids
	}
	if update.System != nil {
		a.System = *update.System
	}
	f.Agents[id] = a
	return &a, nil
}

func (f *Fake) resolvedAgentBlocks(agentID string) []models.Block {
	var out []models.Block
	for id := range f.AgentBlocks[agentID] {
		if b, ok := f.Blocks[id]; ok {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *Fake) resolvedAgentTools(agentID string) []models.Tool {
	var out []models.Tool
	for id := range f.AgentTools[agentID] {
		if t, ok := f.Tools[id]; ok {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *Fake) resolvedAgentFolders(agentID string) []models.Folder {
	var out []models.Folder
	for id := range f.AgentFolders[agentID] {
		if fo, ok := f.Folders[id]; ok {
			out = append(out, fo)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *Fake) ListAgentBlocks(ctx context.Context, agentID string) ([]models.Block, error) {
	return f.resolvedAgentBlocks(agentID), nil
}

func (f *Fake) AttachBlock(ctx context.Context, agentID, blockID string) error {
	if f.conflict(agentID, blockID) {
		return nil
	}
	if f.AgentBlocks[agentID] == nil {
		f.AgentBlocks[agentID] = map[string]bool{}
	}
	f.AgentBlocks[agentID][blockID] = true
	return nil
}

func (f *Fake) DetachBlock(ctx context.Context, agentID, blockID string) error {
	if f.conflict(agentID, blockID) {
		return nil
	}
	delete(f.AgentBlocks[agentID], blockID)
	return nil
}

func (f *Fake) ListAgentTools(ctx context.Context, agentID string) ([]models.Tool, error) {
	return f.resolvedAgentTools(agentID), nil
}

func (f *Fake) AttachTool(ctx context.Context, agentID, toolID string) error {
	if f.conflict(agentID, toolID) {
		return nil
	}
	if f.AgentTools[agentID] == nil {
		f.AgentTools[agentID] = map[string]bool{}
	}
	f.AgentTools[agentID][toolID] = true
	return nil
}

func (f *Fake) DetachTool(ctx context.Context, agentID, toolID string) error {
	if f.conflict(agentID, toolID) {
		return nil
	}
	delete(f.AgentTools[agentID], toolID)
	return nil
}

func (f *Fake) ListAgentFolders(ctx context.Context, agentID string) ([]models.Folder, error) {
	return f.resolvedAgentFolders(agentID), nil
}

func (f *Fake) AttachFolder(ctx context.Context, agentID, folderID string) error {
	if f.conflict(agentID, folderID) {
		return nil
	}
	if f.AgentFolders[agentID] == nil {
		f.AgentFolders[agentID] = map[string]bool{}
	}
	f.AgentFolders[agentID][folderID] = true
	return nil
}

func (f *Fake) DetachFolder(ctx context.Context, agentID, folderID string) error {
	if f.conflict(agentID, folderID) {
		return nil
	}
	delete(f.AgentFolders[agentID], folderID)
	return nil
}

func (f *Fake) conflict(agentID, resourceID string) bool {
	return f.Conflicts != nil && f.Conflicts[[2]string{agentID, resourceID}]
}
