package apply

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/letta-ai/letta-sync/internal/controlplane"
	"github.com/letta-ai/letta-sync/internal/manifest"
	"github.com/letta-ai/letta-sync/internal/models"
	"github.com/letta-ai/letta-sync/internal/ownership"
	"github.com/letta-ai/letta-sync/internal/reconcile/plan"
)

func newDesired() *manifest.Desired {
	return &manifest.Desired{
		Blocks:     map[string]manifest.Entity{},
		Tools:      map[string]manifest.Entity{},
		Folders:    map[string]manifest.Entity{},
		Identities: map[string]manifest.Entity{},
		MCPServers: map[string]manifest.Entity{},
		Templates:  map[string]manifest.Entity{},
		Policies:   map[string]manifest.Entity{},
		LayerTags:  map[models.Kind]map[string]models.Layer{},
	}
}

func desiredWithPersona() *manifest.Desired {
	d := newDesired()
	d.Blocks["persona"] = manifest.Entity{
		Kind: models.KindBlock, Name: "persona", Layer: models.LayerBase,
		Spec: map[string]interface{}{"value": "You are helpful."},
	}
	return d
}

func baseOptions(desired *manifest.Desired) Options {
	return Options{
		PackageVersion: map[models.Layer]string{models.LayerBase: "abc1234full"},
		PackagePaths:   map[models.Layer]string{models.LayerBase: "base"},
		DesiredState:   desired,
		Channel:        models.ChannelStable,
		Role:           models.RoleLaneDev,
	}
}

func TestApply_FreshAgentAttachesAndRecordsInitial(t *testing.T) {
	client := controlplane.NewFake()
	client.Agents["agent-1"] = models.Agent{ID: "agent-1"}

	desired := desiredWithPersona()
	p := plan.Build(plan.Input{
		Agent:   client.Agents["agent-1"],
		Desired: desired,
		Channel: models.ChannelStable,
		Role:    models.RoleLaneDev,
	})
	p.AgentID = "agent-1"

	result := Apply(context.Background(), client, p, baseOptions(desired))

	if !result.Success {
		t.Fatalf("Apply() not successful: %+v", result.Errors)
	}
	agent, err := client.RetrieveAgent(context.Background(), "agent-1")
	if err != nil {
		t.Fatalf("RetrieveAgent() error = %v", err)
	}
	found := false
	for _, b := range agent.Blocks {
		if b.Label == "persona" {
			found = true
		}
	}
	if !found {
		t.Error("expected persona block attached to agent")
	}

	wantTags := map[string]bool{
		"managed_by:" + models.ManagedBySystem: true,
		"channel:stable":                       true,
		"role:lane-dev":                        true,
		"layer:base":                           true,
	}
	for tag := range wantTags {
		if !containsString(agent.Tags, tag) {
			t.Errorf("agent tags %v missing %q", agent.Tags, tag)
		}
	}

	if result.ManagedState == nil {
		t.Fatal("expected a managed_state record")
	}
	if result.ManagedState.LastUpgradeType != models.UpgradeInitial {
		t.Errorf("LastUpgradeType = %v, want initial", result.ManagedState.LastUpgradeType)
	}
	base := result.ManagedState.AppliedPackages[models.LayerBase]
	if len(base.ManifestSha) != 7 || !strings.HasPrefix("abc1234full", base.ManifestSha) {
		t.Errorf("ManifestSha = %q, want 7-char prefix of target version", base.ManifestSha)
	}

	var recordBlock *models.Block
	for id, b := range client.Blocks {
		if b.Label == models.ManagedStateLabel {
			block := client.Blocks[id]
			recordBlock = &block
		}
	}
	if recordBlock == nil {
		t.Fatal("expected a managed_state block to have been created")
	}
	parsed, err := ParseManagedState(recordBlock.Value)
	if err != nil {
		t.Fatalf("ParseManagedState() error = %v", err)
	}
	if parsed.LastUpgradeType != models.UpgradeInitial {
		t.Errorf("written record LastUpgradeType = %v, want initial", parsed.LastUpgradeType)
	}
}

func containsString(ss []string, want string) bool {
	for _, s := range ss {
		if s == want {
			return true
		}
	}
	return false
}

func TestApply_ContentDriftRecordsSafeAuto(t *testing.T) {
	client := controlplane.NewFake()
	marker := ownership.NewMarker(models.LayerBase, "", "", "v0", time.Now())
	meta := ownership.MarkerToMetadata(nil, marker)
	block, _ := client.CreateBlock(context.Background(), models.Block{
		Label: "persona", Value: "old copy", Metadata: meta,
	})
	client.Agents["agent-1"] = models.Agent{ID: "agent-1"}
	client.AgentBlocks["agent-1"] = map[string]bool{block.ID: true}

	desired := desiredWithPersona()
	agent, _ := client.RetrieveAgent(context.Background(), "agent-1")
	p := plan.Build(plan.Input{
		Agent:   *agent,
		Desired: desired,
		Channel: models.ChannelStable,
		Role:    models.RoleLaneDev,
		Prior:   &models.ManagedState{AppliedPackages: map[models.Layer]models.AppliedPackage{models.LayerBase: {Version: "v0"}}},
	})
	p.AgentID = "agent-1"

	opts := baseOptions(desired)
	opts.Prior = &models.ManagedState{AppliedPackages: map[models.Layer]models.AppliedPackage{models.LayerBase: {Version: "v0"}}}

	result := Apply(context.Background(), client, p, opts)

	if !result.Success {
		t.Fatalf("Apply() not successful: %+v", result.Errors)
	}
	if result.ManagedState.LastUpgradeType != models.UpgradeSafeAuto {
		t.Errorf("LastUpgradeType = %v, want safe_auto", result.ManagedState.LastUpgradeType)
	}
	updated, _ := client.RetrieveBlock(context.Background(), block.ID)
	if updated.Value != "You are helpful." {
		t.Errorf("block value = %q, want updated content", updated.Value)
	}
}

func TestApply_BreakingDetachSkippedWithoutForce(t *testing.T) {
	client := controlplane.NewFake()
	marker := ownership.NewMarker(models.LayerBase, "", "", "v0", time.Now())
	meta := ownership.MarkerToMetadata(nil, marker)
	block, _ := client.CreateBlock(context.Background(), models.Block{Label: "retired", Value: "x", Metadata: meta})
	client.Agents["agent-1"] = models.Agent{ID: "agent-1"}
	client.AgentBlocks["agent-1"] = map[string]bool{block.ID: true}

	desired := newDesired()
	agent, _ := client.RetrieveAgent(context.Background(), "agent-1")
	p := plan.Build(plan.Input{Agent: *agent, Desired: desired, Channel: models.ChannelStable, Role: models.RoleLaneDev})
	p.AgentID = "agent-1"

	opts := baseOptions(desired)
	result := Apply(context.Background(), client, p, opts)

	if result.Success {
		t.Error("expected Apply to report failure when a breaking action is skipped")
	}
	if len(result.SkippedBreaking) != 1 {
		t.Fatalf("SkippedBreaking = %+v, want one entry", result.SkippedBreaking)
	}
	stillAttached := client.AgentBlocks["agent-1"][block.ID]
	if !stillAttached {
		t.Error("expected retired block to remain attached when the detach was skipped")
	}

	opts.Force = true
	opts.AllowDelete = true
	result2 := Apply(context.Background(), client, p, opts)
	if !result2.Success {
		t.Fatalf("Apply() with force not successful: %+v", result2.Errors)
	}
	if client.AgentBlocks["agent-1"][block.ID] {
		t.Error("expected retired block to be detached after forced apply")
	}
	if result2.ManagedState.LastUpgradeType != models.UpgradeBreakingManual {
		t.Errorf("LastUpgradeType = %v, want breaking_manual", result2.ManagedState.LastUpgradeType)
	}
}

func TestApply_PinnedChannelBlocksSafeChangesWithoutForce(t *testing.T) {
	client := controlplane.NewFake()
	client.Agents["agent-1"] = models.Agent{ID: "agent-1"}

	desired := desiredWithPersona()
	p := plan.Build(plan.Input{
		Agent: client.Agents["agent-1"], Desired: desired,
		Channel: models.ChannelPinned, Role: models.RoleLaneDev,
	})
	p.AgentID = "agent-1"

	opts := baseOptions(desired)
	opts.Channel = models.ChannelPinned

	result := Apply(context.Background(), client, p, opts)
	if result.Success {
		t.Error("expected pinned-channel apply without force to fail")
	}
	if !strings.Contains(strings.Join(result.Errors, " "), "force") {
		t.Errorf("Errors = %v, want a mention of --force", result.Errors)
	}
	agent, _ := client.RetrieveAgent(context.Background(), "agent-1")
	if len(agent.Blocks) != 0 {
		t.Error("expected no blocks attached when the pinned-channel gate blocks the apply")
	}

	opts.Force = true
	result2 := Apply(context.Background(), client, p, opts)
	if !result2.Success {
		t.Fatalf("Apply() with force not successful: %+v", result2.Errors)
	}
	// The attach itself is a safe, additive change (spec.md §4.3); --force
	// here only overrides the pinned-channel policy gate, it does not
	// reclassify action risk, so this still records as an initial apply.
	if result2.ManagedState.LastUpgradeType != models.UpgradeInitial {
		t.Errorf("LastUpgradeType = %v, want initial", result2.ManagedState.LastUpgradeType)
	}
}

func TestApply_AttachConflictIsSwallowedAsSuccess(t *testing.T) {
	client := controlplane.NewFake()
	client.Agents["agent-1"] = models.Agent{ID: "agent-1"}

	desired := desiredWithPersona()
	p := plan.Build(plan.Input{Agent: client.Agents["agent-1"], Desired: desired, Channel: models.ChannelStable, Role: models.RoleLaneDev})
	p.AgentID = "agent-1"

	// Force every attach to race a 409 by pre-marking every possible block
	// id as conflicting is impractical (ids are generated inside Apply), so
	// instead verify the documented Fake behavior directly: AttachBlock
	// against a conflicting pair never errors.
	client.Conflicts = map[[2]string]bool{{"agent-1", "some-block"}: true}
	if err := client.AttachBlock(context.Background(), "agent-1", "some-block"); err != nil {
		t.Errorf("AttachBlock() on a conflicting pair returned an error, want nil (409 treated as success): %v", err)
	}

	result := Apply(context.Background(), client, p, baseOptions(desired))
	if !result.Success {
		t.Fatalf("Apply() not successful: %+v", result.Errors)
	}
}

func TestApply_DryRunDoesNotMutateControlPlane(t *testing.T) {
	client := controlplane.NewFake()
	client.Agents["agent-1"] = models.Agent{ID: "agent-1"}

	desired := desiredWithPersona()
	p := plan.Build(plan.Input{Agent: client.Agents["agent-1"], Desired: desired, Channel: models.ChannelStable, Role: models.RoleLaneDev})
	p.AgentID = "agent-1"

	opts := baseOptions(desired)
	opts.DryRun = true
	result := Apply(context.Background(), client, p, opts)

	if !result.Success {
		t.Fatalf("Apply() dry run not successful: %+v", result.Errors)
	}
	if len(client.Blocks) != 0 {
		t.Errorf("expected dry run to create no blocks, got %d", len(client.Blocks))
	}
	agent, _ := client.RetrieveAgent(context.Background(), "agent-1")
	if len(agent.Tags) != 0 {
		t.Errorf("expected dry run to leave tags untouched, got %v", agent.Tags)
	}
}
