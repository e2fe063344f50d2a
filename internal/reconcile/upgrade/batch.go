package upgrade

import (
	"context"
	"sync"

	"github.com/letta-ai/letta-sync/internal/controlplane"
	"github.com/letta-ai/letta-sync/internal/models"
	"github.com/letta-ai/letta-sync/internal/reconcile/identity"
)

// Selection is the batch-mode selection criterion from spec.md §4.5:
// "{managedOnly, roles?, channels?, project?, org?}".
type Selection struct {
	ManagedOnly bool
	Roles       []models.Role
	Channels    []models.Channel
	Project     string
	Org         string
}

// BatchOptions configures a batch upgrade run.
type BatchOptions struct {
	ManifestDir    string
	Mode           Mode
	Force          bool
	AllowDelete    bool
	Versions       TargetVersionResolver
	IdentityPolicy identity.AutoCreatePolicy

	Selection Selection
	// Concurrency is the batch size; agents within one batch run in
	// parallel, batches run one after another (spec.md §4.5 "partitions
	// them into batches of a configurable concurrency bound (default 5)").
	Concurrency int
	FailFast    bool

	// OnSelected, if set, is called once with the full selected agent set
	// before any batch starts, so a caller can seed a progress view with
	// the complete agent list up front.
	OnSelected func([]models.Agent)

	// OnResult, if set, is called as each agent's result becomes available
	// (from whichever goroutine produced it) so a caller can drive a live
	// progress view (internal/tui) instead of waiting for the final
	// summary.
	OnResult func(Result)
}

// BatchSummary aggregates a batch run's per-agent results, spec.md §4.5
// "aggregated into a batch summary (totals, per-agent status, warnings)".
type BatchSummary struct {
	Total     int
	Succeeded int
	Failed    int
	Results   []Result
}

// RunBatch selects agents per opts.Selection, partitions them into batches
// of opts.Concurrency, and upgrades each batch's agents in parallel. There
// is no cross-agent ordering guarantee beyond batch boundaries (spec.md
// §4.5); FailFast stops starting new batches after the first agent failure.
func RunBatch(ctx context.Context, client controlplane.Client, opts BatchOptions) (BatchSummary, error) {
	agents, err := selectAgents(ctx, client, opts.Selection)
	if err != nil {
		return BatchSummary{}, err
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}

	var summary BatchSummary
	summary.Total = len(agents)

	if opts.OnSelected != nil {
		opts.OnSelected(agents)
	}

	for start := 0; start < len(agents); start += concurrency {
		end := start + concurrency
		if end > len(agents) {
			end = len(agents)
		}
		batch := agents[start:end]

		results := make([]Result, len(batch))
		var wg sync.WaitGroup
		for i, agent := range batch {
			wg.Add(1)
			go func(i int, agentID string) {
				defer wg.Done()
				r := RunOne(ctx, client, Options{
					ManifestDir:    opts.ManifestDir,
					AgentID:        agentID,
					Mode:           opts.Mode,
					Force:          opts.Force,
					AllowDelete:    opts.AllowDelete,
					Versions:       opts.Versions,
					IdentityPolicy: opts.IdentityPolicy,
				})
				results[i] = r
				if opts.OnResult != nil {
					opts.OnResult(r)
				}
			}(i, agent.ID)
		}
		wg.Wait()

		batchFailed := false
		for _, r := range results {
			summary.Results = append(summary.Results, r)
			if r.Error != "" || (r.Apply != nil && !r.Apply.Success) {
				summary.Failed++
				batchFailed = true
			} else {
				summary.Succeeded++
			}
		}
		if batchFailed && opts.FailFast {
			break
		}
	}

	return summary, nil
}

// selectAgents fetches the candidate agent set and narrows it by the
// selection criterion's role/channel/managed-by constraints; control-plane
// side tag filtering narrows by org/project first.
func selectAgents(ctx context.Context, client controlplane.Client, sel Selection) ([]models.Agent, error) {
	var tags []string
	if sel.Org != "" {
		tags = append(tags, "org:"+sel.Org)
	}
	if sel.Project != "" {
		tags = append(tags, "project:"+sel.Project)
	}

	candidates, err := client.ListAgents(ctx, controlplane.AgentFilter{Tags: tags})
	if err != nil {
		return nil, err
	}

	roles := map[models.Role]bool{}
	for _, r := range sel.Roles {
		roles[r] = true
	}
	channels := map[models.Channel]bool{}
	for _, c := range sel.Channels {
		channels[c] = true
	}

	out := make([]models.Agent, 0, len(candidates))
	for _, a := range candidates {
		role, channel := parseRoleAndChannel(a.Tags)
		if sel.ManagedOnly && !isManaged(a.Tags) {
			continue
		}
		if len(roles) > 0 && !roles[role] {
			continue
		}
		if len(channels) > 0 && !channels[channel] {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func isManaged(tags []string) bool {
	for _, tag := range tags {
		if tag == "managed_by:"+models.ManagedBySystem {
			return true
		}
	}
	return false
}
