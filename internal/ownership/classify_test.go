package ownership

import (
	"testing"

	"github.com/letta-ai/letta-sync/internal/models"
)

func TestClassify_Managed(t *testing.T) {
	r := Resource{Kind: models.KindBlock, Name: "persona", Marked: true}
	got := Classify(r, models.KindBlock, true)
	if got.Status != Managed {
		t.Errorf("Classify() = %v, want managed", got.Status)
	}
}

func TestClassify_Orphaned(t *testing.T) {
	r := Resource{Kind: models.KindBlock, Name: "retired", Marked: true}
	got := Classify(r, "", false)
	if got.Status != Orphaned {
		t.Errorf("Classify() = %v, want orphaned", got.Status)
	}
}

func TestClassify_Adopted(t *testing.T) {
	r := Resource{Kind: models.KindBlock, Name: "persona", Marked: false}
	got := Classify(r, models.KindBlock, true)
	if got.Status != Adopted {
		t.Errorf("Classify() = %v, want adopted", got.Status)
	}
}

func TestClassify_Foreign(t *testing.T) {
	r := Resource{Kind: models.KindBlock, Name: "notes", Marked: false}
	got := Classify(r, "", false)
	if got.Status != Foreign {
		t.Errorf("Classify() = %v, want foreign", got.Status)
	}
}

func TestClassify_KindConflictTieBreaksToForeign(t *testing.T) {
	// A Tool named "persona" collides with a desired Block "persona"; even
	// though the Tool is marked, the kind mismatch means it must not be
	// folded into the Block's managed set.
	r := Resource{Kind: models.KindTool, Name: "persona", Marked: true}
	got := Classify(r, models.KindBlock, true)
	if got.Status != Foreign {
		t.Errorf("Classify() = %v, want foreign on kind conflict", got.Status)
	}
}

func TestClassifySet(t *testing.T) {
	resources := []Resource{
		{Kind: models.KindBlock, Name: "persona", Marked: true},
		{Kind: models.KindBlock, Name: "retired", Marked: true},
		{Kind: models.KindBlock, Name: "new-one", Marked: false},
		{Kind: models.KindBlock, Name: "notes", Marked: false},
	}
	desired := map[string]models.Kind{
		"persona": models.KindBlock,
		"new-one": models.KindBlock,
	}
	got := ClassifySet(resources, desired)
	want := map[string]Status{
		"persona": Managed,
		"retired": Orphaned,
		"new-one": Adopted,
		"notes":   Foreign,
	}
	for _, c := range got {
		if c.Status != want[c.Name] {
			t.Errorf("ClassifySet()[%s] = %v, want %v", c.Name, c.Status, want[c.Name])
		}
	}
}
