// Package identity implements the Identity Sub-reconciler from spec.md
// §4.6: resolving loose identity inputs to identifier keys, ensuring an
// identity exists under an auto-create policy, and attaching/detaching
// identities from agents as a union/difference over the agent's current
// identity set.
package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/letta-ai/letta-sync/internal/controlplane"
	"github.com/letta-ai/letta-sync/internal/errkind"
	"github.com/letta-ai/letta-sync/internal/identitykey"
	"github.com/letta-ai/letta-sync/internal/models"
)

// AutoCreatePolicy decides whether an unresolved identity may be created on
// the fly, per type (spec.md §4.6: permitted for user, requires an
// explicit override for service and team).
type AutoCreatePolicy struct {
	AllowService bool
	AllowTeam    bool
}

func (p AutoCreatePolicy) allows(t identitykey.Type) bool {
	switch t {
	case identitykey.TypeUser:
		return true
	case identitykey.TypeService:
		return p.AllowService
	case identitykey.TypeTeam:
		return p.AllowTeam
	default:
		return false
	}
}

// EnsureResult is the outcome of Ensure, spec.md §4.6.
type EnsureResult struct {
	Identity models.Identity
	Created  bool
}

// now is overridable in tests so created_at is deterministic.
var now = func() time.Time { return time.Now().UTC() }

// Ensure resolves raw to an identifier key and looks it up on the control
// plane, auto-creating it when the policy allows (spec.md §4.6 "Ensure
// operation").
func Ensure(ctx context.Context, client controlplane.IdentityStore, raw string, opts identitykey.ResolveOptions, policy AutoCreatePolicy, createdBy string) (EnsureResult, error) {
	key, err := identitykey.Resolve(raw, opts)
	if err != nil {
		return EnsureResult{}, err
	}

	existing, err := lookup(ctx, client, key)
	if err != nil {
		return EnsureResult{}, err
	}
	if existing != nil {
		return EnsureResult{Identity: *existing, Created: false}, nil
	}

	if !policy.allows(key.Type) {
		if key.Type == identitykey.TypeUser {
			return EnsureResult{}, errkind.New(errkind.NotFound, "identity %q not found", key.String()).
				WithField("identifierKey")
		}
		return EnsureResult{}, errkind.New(errkind.Policy, "identity %q does not exist and auto-create is not permitted for type %q", key.String(), key.Type).
			WithField("identifierKey").
			WithSuggestion("allow auto-create for this type or create the identity out of band")
	}

	identity, err := client.CreateIdentity(ctx, models.Identity{
		IdentifierKey: key.String(),
		IdentityType:  string(key.Type),
		DisplayName:   displayName(key),
		Metadata: map[string]string{
			"managed_by":   models.ManagedBySystem,
			"auto_created": "true",
			"created_at":   now().Format(time.RFC3339),
			"created_by":   createdBy,
		},
	})
	if err != nil {
		return EnsureResult{}, err
	}
	return EnsureResult{Identity: *identity, Created: true}, nil
}

func lookup(ctx context.Context, client controlplane.IdentityStore, key identitykey.Key) (*models.Identity, error) {
	candidates, err := client.ListIdentities(ctx, controlplane.Filter{Name: key.String()})
	if err != nil {
		return nil, err
	}
	for _, c := range candidates {
		if c.IdentifierKey == key.String() {
			found := c
			return &found, nil
		}
	}
	return nil, nil
}

// displayName derives a human-readable name from the key: service handles
// are title-cased word-by-word, user/team handles pass through verbatim
// (spec.md §4.6).
func displayName(key identitykey.Key) string {
	if key.Type != identitykey.TypeService {
		return key.Handle
	}
	words := strings.FieldsFunc(key.Handle, func(r rune) bool {
		return r == '_' || r == '-'
	})
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// AttachResult reports the outcome of AttachToAgent, spec.md §4.6
// ("Attach to agent").
type AttachResult struct {
	Attached []models.Identity
	Errors   []string
}

// AttachToAgent resolves and ensures every raw input, reads the agent's
// current identity set, and writes the union. Duplicates collapse;
// a failure resolving any one input is recorded but does not stop the
// others from being attached; a failure in the final agent update fails
// the whole operation (spec.md §4.6).
func AttachToAgent(ctx context.Context, client controlplane.Client, agentID string, raws []string, opts identitykey.ResolveOptions, policy AutoCreatePolicy, createdBy string) (AttachResult, error) {
	agent, err := client.RetrieveAgent(ctx, agentID)
	if err != nil {
		return AttachResult{}, err
	}

	ids := make([]string, 0, len(agent.Identities)+len(raws))
	seen := map[string]bool{}
	for _, idn := range agent.Identities {
		if !seen[idn.ID] {
			ids = append(ids, idn.ID)
			seen[idn.ID] = true
		}
	}

	var result AttachResult
	for _, raw := range raws {
		ensured, err := Ensure(ctx, client, raw, opts, policy, createdBy)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", raw, err))
			continue
		}
		result.Attached = append(result.Attached, ensured.Identity)
		if !seen[ensured.Identity.ID] {
			ids = append(ids, ensured.Identity.ID)
			seen[ensured.Identity.ID] = true
		}
	}

	if _, err := client.UpdateAgent(ctx, agentID, controlplane.AgentUpdate{IdentityIDs: &ids}); err != nil {
		return result, err
	}
	return result, nil
}

// DetachFromAgent removes the identities matching raws (resolved, not
// auto-created) from the agent's identity set — the set difference over
// identifier keys (spec.md §4.6 "Detach is the set difference").
func DetachFromAgent(ctx context.Context, client controlplane.Client, agentID string, raws []string, opts identitykey.ResolveOptions) error {
	agent, err := client.RetrieveAgent(ctx, agentID)
	if err != nil {
		return err
	}

	remove := map[string]bool{}
	for _, raw := range raws {
		key, err := identitykey.Resolve(raw, opts)
		if err != nil {
			return err
		}
		remove[key.String()] = true
	}

	ids := make([]string, 0, len(agent.Identities))
	for _, idn := range agent.Identities {
		if !remove[idn.IdentifierKey] {
			ids = append(ids, idn.ID)
		}
	}

	_, err = client.UpdateAgent(ctx, agentID, controlplane.AgentUpdate{IdentityIDs: &ids})
	return err
}

// ValidationResult is the outcome of ValidateAgentIdentities, spec.md §4.6.
type ValidationResult struct {
	Warnings []string
	Errors   []string
}

// ValidateAgentIdentities checks an agent's current identity set against
// its desired identity-key declarations: a missing user identity and any
// orphaned identity ids are warnings; identifier-key syntax errors are
// hard errors (spec.md §4.6 "Validation").
func ValidateAgentIdentities(agent models.Agent, desiredKeys []string) ValidationResult {
	var result ValidationResult

	desired := map[string]bool{}
	for _, raw := range desiredKeys {
		key, err := identitykey.Parse(raw)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", raw, err))
			continue
		}
		desired[key.String()] = true
	}

	present := map[string]bool{}
	hasUser := false
	for _, idn := range agent.Identities {
		present[idn.IdentifierKey] = true
		if idn.IdentityType == string(identitykey.TypeUser) {
			hasUser = true
		}
		if !desired[idn.IdentifierKey] && len(desiredKeys) > 0 {
			result.Warnings = append(result.Warnings, fmt.Sprintf("orphaned identity %q is attached but not declared", idn.IdentifierKey))
		}
	}
	if !hasUser {
		result.Warnings = append(result.Warnings, "agent has no user identity attached")
	}

	return result
}
