package ownership

import (
	"testing"
	"time"

	"github.com/letta-ai/letta-sync/internal/models"
)

func TestMarkerFromMetadata_RoundTrip(t *testing.T) {
	m := NewMarker(models.LayerBase, "acme", "", "abc1234", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	meta := MarkerToMetadata(map[string]string{"owner": "alice"}, m)

	if meta["owner"] != "alice" {
		t.Errorf("expected non-reserved metadata to survive, got %v", meta)
	}

	got, ok := MarkerFromMetadata(meta)
	if !ok {
		t.Fatal("expected marker to be found")
	}
	if got.ManagedBy != models.ManagedBySystem || got.Layer != models.LayerBase || got.Org != "acme" {
		t.Errorf("MarkerFromMetadata() = %+v", got)
	}
}

func TestMarkerFromMetadata_Absent(t *testing.T) {
	if _, ok := MarkerFromMetadata(map[string]string{"owner": "alice"}); ok {
		t.Error("expected no marker when managed_by is absent")
	}
	if _, ok := MarkerFromMetadata(nil); ok {
		t.Error("expected no marker for nil metadata")
	}
}

func TestMarkerFromTags_RoundTrip(t *testing.T) {
	m := NewMarker(models.LayerOrg, "acme", "proj", "", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	tags := MarkerToTags([]string{"custom:keep"}, m)

	found := false
	for _, tag := range tags {
		if tag == "custom:keep" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected user tag to survive, got %v", tags)
	}

	got, ok := MarkerFromTags(tags)
	if !ok {
		t.Fatal("expected marker to be found")
	}
	if got.Layer != models.LayerOrg || got.Project != "proj" {
		t.Errorf("MarkerFromTags() = %+v", got)
	}
}

func TestMarkerFromTags_Absent(t *testing.T) {
	if _, ok := MarkerFromTags([]string{"role:lane-dev"}); ok {
		t.Error("expected no marker when managed_by tag is absent")
	}
}

func TestMarkerToTags_OverwritesPreviousMarker(t *testing.T) {
	old := MarkerToTags(nil, NewMarker(models.LayerBase, "", "", "", time.Now().UTC()))
	updated := MarkerToTags(old, NewMarker(models.LayerProject, "", "", "", time.Now().UTC()))

	count := 0
	layerSeen := ""
	for _, tag := range updated {
		if len(tag) > 6 && tag[:6] == "layer:" {
			count++
			layerSeen = tag[6:]
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one layer tag, got %d: %v", count, updated)
	}
	if layerSeen != string(models.LayerProject) {
		t.Errorf("layer tag = %q, want project", layerSeen)
	}
}
