// Package dashboard serves a minimal read-only status surface (gin) that
// lists the plans and managed_state summaries this process has seen,
// giving operators something to look at between CLI invocations. It does
// not change reconciliation semantics.
package dashboard

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/letta-ai/letta-sync/internal/models"
	"github.com/letta-ai/letta-sync/internal/reconcile/plan"
)

// PlanRecord is one plan the dashboard remembers, newest first.
type PlanRecord struct {
	Plan       plan.Plan `json:"plan"`
	ObservedAt time.Time `json:"observedAt"`
}

// StateRecord is one agent's managed_state the dashboard remembers.
type StateRecord struct {
	AgentID    string              `json:"agentId"`
	State      models.ManagedState `json:"state"`
	ObservedAt time.Time           `json:"observedAt"`
}

// Store is the in-process ring buffer the dashboard reads from. Records
// arrive only through RecordPlan and RecordState; the `serve` command
// starts with an empty Store and no command records into it. It holds no
// durable state of its own (spec.md §1: "no persistence of its own").
type Store struct {
	mu     sync.RWMutex
	limit  int
	plans  []PlanRecord
	states map[string]StateRecord
}

// NewStore returns a Store retaining at most limit plan records.
func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 100
	}
	return &Store{limit: limit, states: map[string]StateRecord{}}
}

// RecordPlan prepends p to the recent-plans list, trimming to the limit.
func (s *Store) RecordPlan(p plan.Plan, observedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans = append([]PlanRecord{{Plan: p, ObservedAt: observedAt}}, s.plans...)
	if len(s.plans) > s.limit {
		s.plans = s.plans[:s.limit]
	}
}

// RecordState remembers the most recent managed_state seen for agentID.
func (s *Store) RecordState(agentID string, state models.ManagedState, observedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[agentID] = StateRecord{AgentID: agentID, State: state, ObservedAt: observedAt}
}

func (s *Store) snapshot() ([]PlanRecord, []StateRecord) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	plans := make([]PlanRecord, len(s.plans))
	copy(plans, s.plans)
	states := make([]StateRecord, 0, len(s.states))
	for _, st := range s.states {
		states = append(states, st)
	}
	return plans, states
}

// Router builds the gin engine exposing /healthz, /plans, and /agents.
func Router(store *Store) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	r.GET("/plans", func(c *gin.Context) {
		plans, _ := store.snapshot()
		c.JSON(200, gin.H{"plans": plans})
	})

	r.GET("/agents", func(c *gin.Context) {
		_, states := store.snapshot()
		c.JSON(200, gin.H{"agents": states})
	})

	r.GET("/agents/:id", func(c *gin.Context) {
		_, states := store.snapshot()
		for _, st := range states {
			if st.AgentID == c.Param("id") {
				c.JSON(200, st)
				return
			}
		}
		c.JSON(404, gin.H{"error": "no managed_state observed for this agent in this process"})
	})

	return r
}
