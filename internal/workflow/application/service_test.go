package application

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	telemetry "gridflow/internal/telemetry/domain"
	workflow "gridflow/internal/workflow/domain"
	"gridflow/internal/workflow/infrastructure/memory"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestService(t *testing.T) (*Service, *memory.WorkflowRepository, *memory.ExecutionRepository) {
	t.Helper()
	workflows := memory.NewWorkflowRepository()
	executions := memory.NewExecutionRepository()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	service, err := NewService(workflows, executions, WithClock(clock))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return service, workflows, executions
}

func telemetryWith(metrics map[string]telemetry.MetricValue) telemetry.TelemetryData {
	return telemetry.TelemetryData{
		ID:             "t-1",
		DeviceID:       "device-1",
		OrganizationID: "org-1",
		Timestamp:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Metrics:        metrics,
	}
}

func twoNodeWorkflow(status workflow.Status) workflow.Workflow {
	return workflow.Workflow{
		ID:             "wf-1",
		Name:           "two step",
		OrganizationID: "org-1",
		Status:         status,
		Nodes: []workflow.Node{
			{ID: "start", Type: workflow.NodeStart, Name: "Start"},
			{ID: "end", Type: workflow.NodeEnd, Name: "End"},
		},
		Edges: []workflow.Edge{
			{ID: "e1", SourceID: "start", TargetID: "end", Type: workflow.EdgeDefault},
		},
	}
}

func branchingWorkflow() workflow.Workflow {
	return workflow.Workflow{
		ID:             "wf-2",
		Name:           "branching",
		OrganizationID: "org-1",
		Status:         workflow.StatusActive,
		Nodes: []workflow.Node{
			{ID: "start", Type: workflow.NodeStart, Name: "Start"},
			{ID: "check", Type: workflow.NodeDecision, Name: "Check", Config: map[string]any{
				"conditions": "temperature > 25",
			}},
			{ID: "hot", Type: workflow.NodeTask, Name: "Hot path"},
			{ID: "cold", Type: workflow.NodeTask, Name: "Cold path"},
			{ID: "end", Type: workflow.NodeEnd, Name: "End"},
		},
		Edges: []workflow.Edge{
			{ID: "e1", SourceID: "start", TargetID: "check", Type: workflow.EdgeDefault},
			{ID: "e2", SourceID: "check", TargetID: "hot", Type: workflow.EdgeConditionalTrue},
			{ID: "e3", SourceID: "check", TargetID: "cold", Type: workflow.EdgeConditionalFalse},
			{ID: "e4", SourceID: "hot", TargetID: "end", Type: workflow.EdgeDefault},
			{ID: "e5", SourceID: "cold", TargetID: "end", Type: workflow.EdgeDefault},
		},
	}
}

func TestCreateWorkflow(t *testing.T) {
	service, workflows, _ := newTestService(t)
	draft := twoNodeWorkflow(workflow.StatusDraft)

	created, err := service.CreateWorkflow(context.Background(), draft.Name, draft.OrganizationID, draft.Nodes, draft.Edges)
	if err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}
	if created.Status != workflow.StatusDraft {
		t.Fatalf("expected DRAFT, got %s", created.Status)
	}
	if created.ID == "" {
		t.Fatal("expected a generated workflow id")
	}

	stored, err := workflows.Get(context.Background(), "org-1", created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Name != draft.Name {
		t.Fatalf("stored name %q", stored.Name)
	}
}

func TestCreateWorkflow_InvalidGraph(t *testing.T) {
	service, _, _ := newTestService(t)

	nodes := []workflow.Node{{ID: "end", Type: workflow.NodeEnd, Name: "End"}}
	_, err := service.CreateWorkflow(context.Background(), "broken", "org-1", nodes, nil)
	var defErr *workflow.DefinitionError
	if !errors.As(err, &defErr) {
		t.Fatalf("expected DefinitionError, got %v", err)
	}
}

func TestLifecycleTransitions(t *testing.T) {
	service, workflows, _ := newTestService(t)
	ctx := context.Background()
	draft := twoNodeWorkflow(workflow.StatusDraft)
	if err := workflows.Save(ctx, &draft); err != nil {
		t.Fatalf("Save: %v", err)
	}

	active, err := service.Activate(ctx, "org-1", draft.ID)
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if active.Status != workflow.StatusActive {
		t.Fatalf("expected ACTIVE, got %s", active.Status)
	}

	archived, err := service.Archive(ctx, "org-1", draft.ID)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if archived.Status != workflow.StatusArchived {
		t.Fatalf("expected ARCHIVED, got %s", archived.Status)
	}

	if _, err := service.Activate(ctx, "org-1", draft.ID); !errors.Is(err, workflow.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition from ARCHIVED, got %v", err)
	}
}

func TestValidateConnection(t *testing.T) {
	service, _, _ := newTestService(t)
	start := workflow.Node{ID: "start", Type: workflow.NodeStart}
	task := workflow.Node{ID: "task", Type: workflow.NodeTask}
	decision := workflow.Node{ID: "check", Type: workflow.NodeDecision}
	end := workflow.Node{ID: "end", Type: workflow.NodeEnd}

	cases := []struct {
		name     string
		source   workflow.Node
		target   workflow.Node
		edgeType workflow.EdgeType
		valid    bool
	}{
		{"default task to end", task, end, workflow.EdgeDefault, true},
		{"start to task", start, task, workflow.EdgeDefault, true},
		{"end has no outgoing", end, task, workflow.EdgeDefault, false},
		{"start has no incoming", task, start, workflow.EdgeDefault, false},
		{"end to start doubly invalid", end, start, workflow.EdgeDefault, false},
		{"conditional from decision", decision, task, workflow.EdgeConditionalTrue, true},
		{"conditional from task", task, end, workflow.EdgeConditionalTrue, false},
		{"default from decision", decision, task, workflow.EdgeDefault, false},
		{"unknown edge type", task, end, workflow.EdgeType("WEIRD"), false},
	}
	for _, tc := range cases {
		result := service.ValidateConnection(tc.source, tc.target, tc.edgeType)
		if result.Valid != tc.valid {
			t.Fatalf("%s: Valid = %v, errors %v", tc.name, result.Valid, result.Errors)
		}
	}
}

func TestValidateExecutionReadiness(t *testing.T) {
	service, _, _ := newTestService(t)

	ready := service.ValidateExecutionReadiness(branchingWorkflow())
	if !ready.Ready {
		t.Fatalf("expected ready, issues %v", ready.Issues)
	}

	unconfigured := branchingWorkflow()
	unconfigured.Nodes[1].Config = nil
	result := service.ValidateExecutionReadiness(unconfigured)
	if result.Ready {
		t.Fatal("expected not ready")
	}
	found := false
	for _, issue := range result.Issues {
		if strings.Contains(issue, "check") && strings.Contains(issue, "no conditions configured") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an issue naming the node, got %v", result.Issues)
	}
}

func TestExecuteWorkflow_StartToEnd(t *testing.T) {
	service, _, executions := newTestService(t)

	execution, err := service.ExecuteWorkflow(context.Background(), twoNodeWorkflow(workflow.StatusActive), telemetryWith(map[string]telemetry.MetricValue{"temperature": telemetry.Number(1)}))
	if err != nil {
		t.Fatalf("ExecuteWorkflow: %v", err)
	}
	if execution.Status != workflow.ExecutionCompleted {
		t.Fatalf("expected COMPLETED, got %s", execution.Status)
	}
	if execution.CurrentNodeID != "end" {
		t.Fatalf("expected to stop at end, got %s", execution.CurrentNodeID)
	}

	saved, err := executions.ListByWorkflow(context.Background(), "wf-1")
	if err != nil {
		t.Fatalf("ListByWorkflow: %v", err)
	}
	if len(saved) != 1 {
		t.Fatalf("expected 1 persisted execution, got %d", len(saved))
	}
}

func TestExecuteWorkflow_DecisionBranches(t *testing.T) {
	service, _, _ := newTestService(t)

	hot, err := service.ExecuteWorkflow(context.Background(), branchingWorkflow(), telemetryWith(map[string]telemetry.MetricValue{"temperature": telemetry.Number(30)}))
	if err != nil {
		t.Fatalf("ExecuteWorkflow hot: %v", err)
	}
	if hot.CurrentNodeID != "hot" {
		t.Fatalf("expected hot, got %s", hot.CurrentNodeID)
	}
	if result, ok := hot.Context[workflow.ConditionResultKey("check")].(bool); !ok || !result {
		t.Fatalf("expected recorded true decision, got %v", hot.Context)
	}

	cold, err := service.ExecuteWorkflow(context.Background(), branchingWorkflow(), telemetryWith(map[string]telemetry.MetricValue{"temperature": telemetry.Number(20)}))
	if err != nil {
		t.Fatalf("ExecuteWorkflow cold: %v", err)
	}
	if cold.CurrentNodeID != "cold" {
		t.Fatalf("expected cold, got %s", cold.CurrentNodeID)
	}
	if result, ok := cold.Context[workflow.ConditionResultKey("check")].(bool); !ok || result {
		t.Fatalf("expected recorded false decision, got %v", cold.Context)
	}
}

func TestExecuteWorkflow_Idempotence(t *testing.T) {
	service, _, _ := newTestService(t)
	data := telemetryWith(map[string]telemetry.MetricValue{"temperature": telemetry.Number(30)})

	first, err := service.ExecuteWorkflow(context.Background(), branchingWorkflow(), data)
	if err != nil {
		t.Fatalf("first ExecuteWorkflow: %v", err)
	}
	second, err := service.ExecuteWorkflow(context.Background(), branchingWorkflow(), data)
	if err != nil {
		t.Fatalf("second ExecuteWorkflow: %v", err)
	}

	if first.ID == second.ID {
		t.Fatal("expected distinct execution identities")
	}
	if first.Status != second.Status || first.CurrentNodeID != second.CurrentNodeID {
		t.Fatalf("expected identical outcomes: %v vs %v", first, second)
	}
	if !reflect.DeepEqual(first.Context, second.Context) {
		t.Fatalf("expected identical context, got %v vs %v", first.Context, second.Context)
	}
}

func TestExecuteWorkflow_NotActive(t *testing.T) {
	service, _, executions := newTestService(t)

	execution, err := service.ExecuteWorkflow(context.Background(), twoNodeWorkflow(workflow.StatusDraft), telemetryWith(map[string]telemetry.MetricValue{"temperature": telemetry.Number(1)}))
	if !errors.Is(err, workflow.ErrWorkflowNotActive) {
		t.Fatalf("expected ErrWorkflowNotActive, got %v", err)
	}
	if execution != nil {
		t.Fatal("expected no execution record")
	}
	saved, _ := executions.ListByWorkflow(context.Background(), "wf-1")
	if len(saved) != 0 {
		t.Fatalf("expected nothing persisted, got %d", len(saved))
	}
}

func TestExecuteWorkflow_DanglingEdgeFails(t *testing.T) {
	service, _, executions := newTestService(t)

	// Corrupt graph that skipped validation: the START node has no
	// outgoing edge.
	w := twoNodeWorkflow(workflow.StatusActive)
	w.Edges = nil

	execution, err := service.ExecuteWorkflow(context.Background(), w, telemetryWith(map[string]telemetry.MetricValue{"temperature": telemetry.Number(1)}))
	var travErr *workflow.TraversalError
	if !errors.As(err, &travErr) {
		t.Fatalf("expected TraversalError, got %v", err)
	}
	if execution == nil || execution.Status != workflow.ExecutionFailed {
		t.Fatalf("expected FAILED execution alongside the error, got %v", execution)
	}

	saved, _ := executions.ListByWorkflow(context.Background(), "wf-1")
	if len(saved) != 1 || saved[0].Status != workflow.ExecutionFailed {
		t.Fatalf("expected the FAILED execution persisted, got %v", saved)
	}
}

func TestExecuteWorkflow_ConditionFailureRecordsPartialContext(t *testing.T) {
	service, _, _ := newTestService(t)

	execution, err := service.ExecuteWorkflow(context.Background(), branchingWorkflow(), telemetryWith(map[string]telemetry.MetricValue{"humidity": telemetry.Number(50)}))
	if err == nil {
		t.Fatal("expected a condition evaluation error")
	}
	if execution == nil || execution.Status != workflow.ExecutionFailed {
		t.Fatalf("expected FAILED execution, got %v", execution)
	}
}

func TestExecuteByID(t *testing.T) {
	service, workflows, _ := newTestService(t)
	ctx := context.Background()
	w := branchingWorkflow()
	if err := workflows.Save(ctx, &w); err != nil {
		t.Fatalf("Save: %v", err)
	}

	execution, err := service.ExecuteByID(ctx, "org-1", w.ID, telemetryWith(map[string]telemetry.MetricValue{"temperature": telemetry.Number(30)}))
	if err != nil {
		t.Fatalf("ExecuteByID: %v", err)
	}
	if execution.CurrentNodeID != "hot" {
		t.Fatalf("expected hot, got %s", execution.CurrentNodeID)
	}

	if _, err := service.ExecuteByID(ctx, "org-1", "missing", telemetryWith(nil)); !errors.Is(err, workflow.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
