package dashboard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/letta-ai/letta-sync/internal/models"
	"github.com/letta-ai/letta-sync/internal/reconcile/plan"
)

func TestRouter_HealthzReportsOK(t *testing.T) {
	store := NewStore(10)
	router := Router(store)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRouter_PlansListsRecordedPlansNewestFirst(t *testing.T) {
	store := NewStore(10)
	store.RecordPlan(plan.Plan{ID: "plan-1", AgentID: "agent-1"}, time.Unix(1, 0))
	store.RecordPlan(plan.Plan{ID: "plan-2", AgentID: "agent-1"}, time.Unix(2, 0))

	req := httptest.NewRequest(http.MethodGet, "/plans", nil)
	rec := httptest.NewRecorder()
	Router(store).ServeHTTP(rec, req)

	var body struct {
		Plans []PlanRecord `json:"plans"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal error = %v", err)
	}
	if len(body.Plans) != 2 {
		t.Fatalf("len(Plans) = %d, want 2", len(body.Plans))
	}
	if body.Plans[0].Plan.ID != "plan-2" {
		t.Errorf("Plans[0].Plan.ID = %q, want plan-2 (newest first)", body.Plans[0].Plan.ID)
	}
}

func TestRouter_AgentByIDReturns404WhenUnseen(t *testing.T) {
	store := NewStore(10)
	req := httptest.NewRequest(http.MethodGet, "/agents/unknown", nil)
	rec := httptest.NewRecorder()
	Router(store).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestRouter_AgentByIDReturnsRecordedState(t *testing.T) {
	store := NewStore(10)
	store.RecordState("agent-1", models.ManagedState{ReconcilerVersion: "abc1234"}, time.Unix(1, 0))

	req := httptest.NewRequest(http.MethodGet, "/agents/agent-1", nil)
	rec := httptest.NewRecorder()
	Router(store).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
