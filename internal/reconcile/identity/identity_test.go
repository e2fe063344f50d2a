package identity

import (
	"context"
	"testing"

	"github.com/letta-ai/letta-sync/internal/controlplane"
	"github.com/letta-ai/letta-sync/internal/identitykey"
	"github.com/letta-ai/letta-sync/internal/models"
)

func resolveOpts() identitykey.ResolveOptions {
	return identitykey.ResolveOptions{DefaultOrg: "acme", DefaultType: identitykey.TypeUser}
}

func TestEnsure_CreatesUserIdentityWhenMissing(t *testing.T) {
	client := controlplane.NewFake()
	result, err := Ensure(context.Background(), client, "ada@example.com", resolveOpts(), AutoCreatePolicy{}, "tester")
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if !result.Created {
		t.Error("expected a new identity to be created")
	}
	if result.Identity.DisplayName != "ada" {
		t.Errorf("DisplayName = %q, want %q", result.Identity.DisplayName, "ada")
	}
	if result.Identity.Metadata["auto_created"] != "true" {
		t.Errorf("Metadata = %+v, want auto_created=true", result.Identity.Metadata)
	}
}

func TestEnsure_IsIdempotent(t *testing.T) {
	client := controlplane.NewFake()
	first, err := Ensure(context.Background(), client, "ada@example.com", resolveOpts(), AutoCreatePolicy{}, "tester")
	if err != nil {
		t.Fatalf("Ensure() first call error = %v", err)
	}
	second, err := Ensure(context.Background(), client, "ada@example.com", resolveOpts(), AutoCreatePolicy{}, "tester")
	if err != nil {
		t.Fatalf("Ensure() second call error = %v", err)
	}
	if second.Created {
		t.Error("expected second Ensure() to find the existing identity, not create another")
	}
	if first.Identity.ID != second.Identity.ID {
		t.Errorf("identity ids differ across calls: %q vs %q", first.Identity.ID, second.Identity.ID)
	}
	if len(client.Identities) != 1 {
		t.Errorf("len(Identities) = %d, want 1", len(client.Identities))
	}
}

func TestEnsure_ServiceIdentityRequiresPolicyOverride(t *testing.T) {
	client := controlplane.NewFake()
	opts := identitykey.ResolveOptions{DefaultOrg: "acme", DefaultType: identitykey.TypeService}

	_, err := Ensure(context.Background(), client, "billing-bot", opts, AutoCreatePolicy{}, "tester")
	if err == nil {
		t.Fatal("expected an error auto-creating a service identity without policy override")
	}

	result, err := Ensure(context.Background(), client, "billing-bot", opts, AutoCreatePolicy{AllowService: true}, "tester")
	if err != nil {
		t.Fatalf("Ensure() with override error = %v", err)
	}
	if result.Identity.DisplayName != "Billing Bot" {
		t.Errorf("DisplayName = %q, want title-cased words", result.Identity.DisplayName)
	}
}

func TestAttachToAgent_UnionsAndCollapsesDuplicates(t *testing.T) {
	client := controlplane.NewFake()
	client.Agents["agent-1"] = models.Agent{ID: "agent-1"}

	existing, _ := client.CreateIdentity(context.Background(), models.Identity{IdentifierKey: "org:acme:user:grace", IdentityType: "user"})
	client.AgentBlocks["agent-1"] = map[string]bool{}
	agent := client.Agents["agent-1"]
	agent.Identities = []models.Identity{*existing}
	client.Agents["agent-1"] = agent

	result, err := AttachToAgent(context.Background(), client, "agent-1",
		[]string{"grace@acme.com", "ada@acme.com"}, resolveOpts(), AutoCreatePolicy{}, "tester")
	if err != nil {
		t.Fatalf("AttachToAgent() error = %v", err)
	}
	if len(result.Errors) != 0 {
		t.Errorf("unexpected errors: %v", result.Errors)
	}

	updated, _ := client.RetrieveAgent(context.Background(), "agent-1")
	if len(updated.Identities) != 2 {
		t.Fatalf("agent identities = %+v, want 2 (grace deduped, ada added)", updated.Identities)
	}
}

func TestDetachFromAgent_RemovesMatchingIdentities(t *testing.T) {
	client := controlplane.NewFake()
	grace, _ := client.CreateIdentity(context.Background(), models.Identity{IdentifierKey: "org:acme:user:grace", IdentityType: "user"})
	ada, _ := client.CreateIdentity(context.Background(), models.Identity{IdentifierKey: "org:acme:user:ada", IdentityType: "user"})
	client.Agents["agent-1"] = models.Agent{ID: "agent-1", Identities: []models.Identity{*grace, *ada}}

	if err := DetachFromAgent(context.Background(), client, "agent-1", []string{"grace@acme.com"}, resolveOpts()); err != nil {
		t.Fatalf("DetachFromAgent() error = %v", err)
	}

	updated, _ := client.RetrieveAgent(context.Background(), "agent-1")
	if len(updated.Identities) != 1 || updated.Identities[0].IdentifierKey != "org:acme:user:ada" {
		t.Errorf("agent identities = %+v, want only ada remaining", updated.Identities)
	}
}

func TestValidateAgentIdentities_FlagsMissingUserAndOrphans(t *testing.T) {
	agent := models.Agent{
		Identities: []models.Identity{
			{IdentifierKey: "org:acme:service:billing-bot", IdentityType: "service"},
		},
	}
	result := ValidateAgentIdentities(agent, []string{"org:acme:user:ada"})

	if len(result.Errors) != 0 {
		t.Errorf("unexpected errors: %v", result.Errors)
	}
	foundMissingUser, foundOrphan := false, false
	for _, w := range result.Warnings {
		if w == "agent has no user identity attached" {
			foundMissingUser = true
		}
		if w == `orphaned identity "org:acme:service:billing-bot" is attached but not declared` {
			foundOrphan = true
		}
	}
	if !foundMissingUser {
		t.Errorf("warnings = %v, want missing-user warning", result.Warnings)
	}
	if !foundOrphan {
		t.Errorf("warnings = %v, want orphaned-identity warning", result.Warnings)
	}
}

func TestValidateAgentIdentities_ReportsSyntaxErrors(t *testing.T) {
	result := ValidateAgentIdentities(models.Agent{}, []string{"not-a-valid-key"})
	if len(result.Errors) == 0 {
		t.Error("expected a syntax error for a malformed identifier key")
	}
}
