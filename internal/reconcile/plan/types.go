// Package plan implements the Plan Builder from spec.md §4.3: it compares
// observed agent state against desired state and produces a typed,
// ordered set of attach/update/detach/adopt/skip actions with safe/breaking
// classification.
package plan

import (
	"time"

	"github.com/letta-ai/letta-sync/internal/models"
)

// Verb is the action verb, spec.md §4.3.
type Verb string

const (
	VerbAttach Verb = "attach"
	VerbUpdate Verb = "update"
	VerbDetach Verb = "detach"
	VerbAdopt  Verb = "adopt"
	VerbSkip   Verb = "skip"
)

// executionOrder is the fixed per-agent action order from spec.md §4.4.
var executionOrder = map[Verb]int{
	VerbAttach: 0,
	VerbUpdate: 1,
	VerbAdopt:  2,
	VerbDetach: 3,
	VerbSkip:   4,
}

// Risk is the safe/breaking classification of one action.
type Risk string

const (
	Safe     Risk = "safe"
	Breaking Risk = "breaking"
)

// FieldChange describes one field's drift between observed and desired.
type FieldChange struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// Action is a single tagged-union step in a Plan: verb x kind.
type Action struct {
	Verb Verb        `json:"verb"`
	Kind models.Kind `json:"kind"`
	// Name is the canonical manifest/resource name this action targets.
	Name string `json:"name"`
	// ResourceID is the observed control-plane id, when one already exists
	// (empty for a pure attach-by-create with no pre-existing match).
	ResourceID string `json:"resourceId,omitempty"`
	// SourceLayer is the layer the desired entity was declared at, when
	// applicable (not set for detach of an orphan with no desired entity).
	SourceLayer models.Layer `json:"sourceLayer,omitempty"`

	Changes []FieldChange `json:"changes,omitempty"`
	Risk    Risk          `json:"risk"`

	// Reason documents why this action was classified the way it was, for
	// display in a change list.
	Reason string `json:"reason,omitempty"`
	// SkipReason is set only for verb == skip.
	SkipReason string `json:"skipReason,omitempty"`
}

// Summary totals a plan's actions by verb and risk.
type Summary struct {
	Attach          int `json:"attach"`
	Update          int `json:"update"`
	Detach          int `json:"detach"`
	Adopt           int `json:"adopt"`
	Skip            int `json:"skip"`
	SafeChanges     int `json:"safeChanges"`
	BreakingChanges int `json:"breakingChanges"`
}

// Plan is the Plan Builder's output, spec.md §4.3.
type Plan struct {
	ID                   string    `json:"id"`
	CreatedAt            time.Time `json:"createdAt"`
	AgentID              string    `json:"agentId"`
	Actions              []Action  `json:"actions"`
	Summary              Summary   `json:"summary"`
	RequiresConfirmation bool      `json:"requiresConfirmation"`
	Warnings             []string  `json:"warnings,omitempty"`
	Errors               []string  `json:"errors,omitempty"`
}

// Changes returns a flattened, display-oriented view of non-skip actions,
// spec.md §4.3's "compatibility changes view".
func (p Plan) Changes() []Action {
	out := make([]Action, 0, len(p.Actions))
	for _, a := range p.Actions {
		if a.Verb != VerbSkip {
			out = append(out, a)
		}
	}
	return out
}

func newSummary(actions []Action) Summary {
	var s Summary
	for _, a := range actions {
		switch a.Verb {
		case VerbAttach:
			s.Attach++
		case VerbUpdate:
			s.Update++
		case VerbDetach:
			s.Detach++
		case VerbAdopt:
			s.Adopt++
		case VerbSkip:
			s.Skip++
		}
		if a.Verb == VerbSkip {
			continue
		}
		if a.Risk == Safe {
			s.SafeChanges++
		} else {
			s.BreakingChanges++
		}
	}
	return s
}
