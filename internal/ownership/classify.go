package ownership

import "github.com/letta-ai/letta-sync/internal/models"

// Status is the ownership classification of one observed resource,
// spec.md §4.2.
type Status string

const (
	Managed  Status = "managed"
	Adopted  Status = "adopted"
	Orphaned Status = "orphaned"
	Foreign  Status = "foreign"
)

// Resource is the minimal shape the classifier needs from an observed
// control-plane resource: its canonical name, its kind, and its marker (if
// any was readable from tags or metadata).
type Resource struct {
	Kind   models.Kind
	Name   string
	Marker models.Marker
	Marked bool
}

// Classification is the classifier's verdict for one resource, carrying
// enough of the marker to drive the Plan Builder's adopt/detach logic.
type Classification struct {
	Resource
	Status Status
}

// Classify partitions one resource given the kind recorded for its
// canonical name in desired state, if any name collision exists at all.
//
// Tie-break rule (spec.md §4.2): a resource carrying the marker whose
// canonical name collides with a desired entity of a *different* kind is
// treated as foreign — a cross-kind name collision (e.g. a Tool named
// "persona" when desired state has a Block "persona") never gets folded
// into the wrong kind's managed/adopted set.
func Classify(r Resource, desiredKind models.Kind, desiredHasName bool) Classification {
	if r.Marked && desiredHasName && desiredKind != r.Kind {
		return Classification{Resource: r, Status: Foreign}
	}
	desiredHasEntity := desiredHasName && desiredKind == r.Kind
	switch {
	case r.Marked && desiredHasEntity:
		return Classification{Resource: r, Status: Managed}
	case r.Marked && !desiredHasEntity:
		return Classification{Resource: r, Status: Orphaned}
	case !r.Marked && desiredHasEntity:
		return Classification{Resource: r, Status: Adopted}
	default:
		return Classification{Resource: r, Status: Foreign}
	}
}

// ClassifySet classifies every resource given a lookup from canonical name
// to the kind desired state declares for that name (across all kinds, so
// cross-kind collisions can be detected).
func ClassifySet(resources []Resource, desiredKindByName map[string]models.Kind) []Classification {
	out := make([]Classification, 0, len(resources))
	for _, r := range resources {
		kind, ok := desiredKindByName[r.Name]
		out = append(out, Classify(r, kind, ok))
	}
	return out
}
