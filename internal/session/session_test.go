package session

import (
	"testing"
	"time"

	"github.com/mwenda/kazi/internal/pipeline"
	"github.com/mwenda/kazi/internal/usage"
)

func statusResult(output string) *pipeline.Result {
	return &pipeline.Result{
		Kind: pipeline.KindStatus,
		Steps: []pipeline.StepResult{
			{Name: "monitor", Prompt: "p1", Output: "m"},
			{Name: "reviewer", Prompt: "p2", Output: output},
		},
		FinishedAt: time.Now().UTC(),
	}
}

func TestPublishStatus_OverwritesLatestKeepsLedger(t *testing.T) {
	s := New()
	s.Ledger().Record("Progress Monitoring", 10, usage.Cost(10))
	s.Ledger().Record("Quality Review", 12, usage.Cost(12))
	s.PublishStatus(pipeline.StatusInput{Status: "first"}, statusResult("FIRST"))

	s.Ledger().Record("Progress Monitoring", 8, usage.Cost(8))
	s.Ledger().Record("Quality Review", 9, usage.Cost(9))
	s.PublishStatus(pipeline.StatusInput{Status: "second"}, statusResult("SECOND"))

	res, ok := s.Result(pipeline.KindStatus)
	if !ok {
		t.Fatal("expected a status result")
	}
	if res.Output() != "SECOND" {
		t.Errorf("latest output = %q, want SECOND", res.Output())
	}
	// The ledger keeps records from both runs.
	if s.Ledger().Len() != 4 {
		t.Errorf("ledger length = %d, want 4", s.Ledger().Len())
	}
}

func TestResult_AbsentKind(t *testing.T) {
	s := New()
	if _, ok := s.Result(pipeline.KindPlan); ok {
		t.Error("expected no plan result in a fresh session")
	}
}

func TestPlanText(t *testing.T) {
	s := New()
	if s.PlanText() != "" {
		t.Errorf("fresh session PlanText = %q, want empty", s.PlanText())
	}
	s.PublishPlan(pipeline.ProjectInput{Description: "d", Team: "t"}, &pipeline.Result{
		Kind:  pipeline.KindPlan,
		Steps: []pipeline.StepResult{{Name: "planner", Output: "PLAN_TEXT"}},
	})
	if s.PlanText() != "PLAN_TEXT" {
		t.Errorf("PlanText = %q, want PLAN_TEXT", s.PlanText())
	}
}

func TestReset_DiscardsEverything(t *testing.T) {
	s := New()
	oldID := s.ID()
	s.Ledger().Record("Project Planning", 10, usage.Cost(10))
	s.PublishPlan(pipeline.ProjectInput{Description: "d", Team: "t"}, &pipeline.Result{Kind: pipeline.KindPlan})

	s.Reset()

	if s.ID() == oldID {
		t.Error("reset must assign a new session ID")
	}
	if s.Ledger().Len() != 0 {
		t.Error("reset must discard the ledger")
	}
	if _, ok := s.Result(pipeline.KindPlan); ok {
		t.Error("reset must discard results")
	}
}

func TestSnapshot_FrozenAtAssemblyTime(t *testing.T) {
	s := New()
	s.Ledger().Record("Project Planning", 10, usage.Cost(10))
	s.PublishPlan(pipeline.ProjectInput{Description: "d", Team: "t"}, &pipeline.Result{Kind: pipeline.KindPlan})

	snap := s.Snapshot()

	// Records appended after the snapshot are invisible to it.
	s.Ledger().Record("Task Allocation", 99, usage.Cost(99))

	if len(snap.History) != 1 {
		t.Errorf("snapshot history length = %d, want 1", len(snap.History))
	}
	if snap.Totals.Tokens != 10 {
		t.Errorf("snapshot totals = %d, want 10", snap.Totals.Tokens)
	}
	if snap.Project == nil || snap.Project.Description != "d" {
		t.Errorf("snapshot project = %+v", snap.Project)
	}
}
