package controlplane

import (
	"context"
	"testing"

	"github.com/letta-ai/letta-sync/internal/models"
)

func TestFake_CreateAndAttachBlock(t *testing.T) {
	ctx := context.Background()
	f := NewFake()
	f.Agents["agent-1"] = models.Agent{ID: "agent-1", Tags: []string{}}

	b, err := f.CreateBlock(ctx, models.Block{Label: "persona", Value: "hi"})
	if err != nil {
		t.Fatalf("CreateBlock() error = %v", err)
	}
	if err := f.AttachBlock(ctx, "agent-1", b.ID); err != nil {
		t.Fatalf("AttachBlock() error = %v", err)
	}

	agent, err := f.RetrieveAgent(ctx, "agent-1")
	if err != nil {
		t.Fatalf("RetrieveAgent() error = %v", err)
	}
	if len(agent.Blocks) != 1 || agent.Blocks[0].ID != b.ID {
		t.Errorf("expected one attached block, got %v", agent.Blocks)
	}
}

func TestFake_ConflictIsSwallowed(t *testing.T) {
	ctx := context.Background()
	f := NewFake()
	f.Agents["agent-1"] = models.Agent{ID: "agent-1"}
	f.Conflicts = map[[2]string]bool{{"agent-1", "block-x"}: true}

	if err := f.AttachBlock(ctx, "agent-1", "block-x"); err != nil {
		t.Errorf("AttachBlock() with simulated conflict should not error, got %v", err)
	}
	agent, _ := f.RetrieveAgent(ctx, "agent-1")
	if len(agent.Blocks) != 0 {
		t.Errorf("conflicting attach should not have taken effect, got %v", agent.Blocks)
	}
}

func TestFake_UpsertIdentityIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := NewFake()
	spec := models.Identity{IdentifierKey: "org:acme:user:alice", IdentityType: "user"}

	first, err := f.UpsertIdentity(ctx, spec)
	if err != nil {
		t.Fatalf("UpsertIdentity() error = %v", err)
	}
	second, err := f.UpsertIdentity(ctx, spec)
	if err != nil {
		t.Fatalf("UpsertIdentity() error = %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("expected stable identity id across upserts, got %q and %q", first.ID, second.ID)
	}
}

func TestFake_CreateIdentityConflictsOnDuplicateKey(t *testing.T) {
	ctx := context.Background()
	f := NewFake()
	spec := models.Identity{IdentifierKey: "org:acme:user:alice", IdentityType: "user"}
	if _, err := f.CreateIdentity(ctx, spec); err != nil {
		t.Fatalf("CreateIdentity() error = %v", err)
	}
	_, err := f.CreateIdentity(ctx, spec)
	if !IsConflict(err) {
		t.Errorf("expected conflict error on duplicate identifier key, got %v", err)
	}
}
