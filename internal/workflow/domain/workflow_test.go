package workflow

import (
	"errors"
	"strings"
	"testing"
)

func validWorkflow() Workflow {
	return Workflow{
		ID:             "wf-1",
		Name:           "two step",
		OrganizationID: "org-1",
		Status:         StatusDraft,
		Nodes: []Node{
			{ID: "start", Type: NodeStart, Name: "Start"},
			{ID: "end", Type: NodeEnd, Name: "End"},
		},
		Edges: []Edge{
			{ID: "e1", SourceID: "start", TargetID: "end", Type: EdgeDefault},
		},
	}
}

func decisionWorkflow() Workflow {
	return Workflow{
		ID:             "wf-2",
		Name:           "branching",
		OrganizationID: "org-1",
		Status:         StatusDraft,
		Nodes: []Node{
			{ID: "start", Type: NodeStart, Name: "Start"},
			{ID: "check", Type: NodeDecision, Name: "Check", Config: map[string]any{
				"conditions": "temperature > 25",
			}},
			{ID: "hot", Type: NodeTask, Name: "Hot path"},
			{ID: "cold", Type: NodeTask, Name: "Cold path"},
			{ID: "end", Type: NodeEnd, Name: "End"},
		},
		Edges: []Edge{
			{ID: "e1", SourceID: "start", TargetID: "check", Type: EdgeDefault},
			{ID: "e2", SourceID: "check", TargetID: "hot", Type: EdgeConditionalTrue},
			{ID: "e3", SourceID: "check", TargetID: "cold", Type: EdgeConditionalFalse},
			{ID: "e4", SourceID: "hot", TargetID: "end", Type: EdgeDefault},
			{ID: "e5", SourceID: "cold", TargetID: "end", Type: EdgeDefault},
		},
	}
}

func issuesOf(t *testing.T, err error) []string {
	t.Helper()
	var defErr *DefinitionError
	if !errors.As(err, &defErr) {
		t.Fatalf("expected DefinitionError, got %v", err)
	}
	return defErr.Issues
}

func hasIssue(issues []string, fragment string) bool {
	for _, issue := range issues {
		if strings.Contains(issue, fragment) {
			return true
		}
	}
	return false
}

func TestValidate_WellFormed(t *testing.T) {
	if err := validWorkflow().Validate(); err != nil {
		t.Fatalf("expected valid workflow, got %v", err)
	}
	if err := decisionWorkflow().Validate(); err != nil {
		t.Fatalf("expected valid decision workflow, got %v", err)
	}
}

func TestValidate_StartNodeCount(t *testing.T) {
	w := validWorkflow()
	w.Nodes = append(w.Nodes, Node{ID: "start2", Type: NodeStart, Name: "Another"})
	w.Edges = append(w.Edges, Edge{ID: "e2", SourceID: "start2", TargetID: "end", Type: EdgeDefault})
	issues := issuesOf(t, w.Validate())
	if !hasIssue(issues, "START") {
		t.Fatalf("expected a START issue, got %v", issues)
	}

	w = validWorkflow()
	w.Nodes = w.Nodes[1:]
	w.Edges = nil
	issues = issuesOf(t, w.Validate())
	if !hasIssue(issues, "START") {
		t.Fatalf("expected a START issue, got %v", issues)
	}
}

func TestValidate_EdgeEndpointRules(t *testing.T) {
	w := validWorkflow()
	w.Edges = append(w.Edges, Edge{ID: "e2", SourceID: "end", TargetID: "start", Type: EdgeDefault})
	issues := issuesOf(t, w.Validate())
	if !hasIssue(issues, "cannot have outgoing") {
		t.Fatalf("expected an END outgoing issue, got %v", issues)
	}
	if !hasIssue(issues, "cannot have incoming") {
		t.Fatalf("expected a START incoming issue, got %v", issues)
	}
}

func TestValidate_EdgeReferences(t *testing.T) {
	w := validWorkflow()
	w.Edges = append(w.Edges, Edge{ID: "e2", SourceID: "start", TargetID: "ghost", Type: EdgeDefault})
	issues := issuesOf(t, w.Validate())
	if !hasIssue(issues, "ghost") {
		t.Fatalf("expected an issue naming the missing node, got %v", issues)
	}
}

func TestValidate_DecisionBranches(t *testing.T) {
	w := decisionWorkflow()
	w.Edges = w.Edges[:2] // drop the FALSE branch and downstream edges
	w.Nodes = w.Nodes[:3]
	issues := issuesOf(t, w.Validate())
	if !hasIssue(issues, "CONDITIONAL_FALSE") {
		t.Fatalf("expected a CONDITIONAL_FALSE issue, got %v", issues)
	}
}

func TestValidate_ConditionalEdgeSource(t *testing.T) {
	w := validWorkflow()
	w.Nodes = append(w.Nodes, Node{ID: "task", Type: NodeTask, Name: "Task"})
	w.Edges = append(w.Edges,
		Edge{ID: "e2", SourceID: "start", TargetID: "task", Type: EdgeDefault},
		Edge{ID: "e3", SourceID: "task", TargetID: "end", Type: EdgeConditionalTrue},
	)
	issues := issuesOf(t, w.Validate())
	if !hasIssue(issues, "DECISION") {
		t.Fatalf("expected a conditional-edge issue, got %v", issues)
	}
}

func TestValidate_Unreachable(t *testing.T) {
	w := validWorkflow()
	w.Nodes = append(w.Nodes, Node{ID: "island", Type: NodeTask, Name: "Island"})
	issues := issuesOf(t, w.Validate())
	if !hasIssue(issues, "island") {
		t.Fatalf("expected an unreachable issue for island, got %v", issues)
	}
}

func TestValidate_Cycle(t *testing.T) {
	w := Workflow{
		ID:             "wf-3",
		Name:           "looping",
		OrganizationID: "org-1",
		Status:         StatusDraft,
		Nodes: []Node{
			{ID: "start", Type: NodeStart, Name: "Start"},
			{ID: "a", Type: NodeTask, Name: "A"},
			{ID: "b", Type: NodeTask, Name: "B"},
		},
		Edges: []Edge{
			{ID: "e1", SourceID: "start", TargetID: "a", Type: EdgeDefault},
			{ID: "e2", SourceID: "a", TargetID: "b", Type: EdgeDefault},
			{ID: "e3", SourceID: "b", TargetID: "a", Type: EdgeDefault},
		},
	}
	issues := issuesOf(t, w.Validate())
	if !hasIssue(issues, "cycle") {
		t.Fatalf("expected a cycle issue, got %v", issues)
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusDraft, StatusActive, true},
		{StatusActive, StatusArchived, true},
		{StatusDraft, StatusArchived, false},
		{StatusActive, StatusDraft, false},
		{StatusArchived, StatusActive, false},
		{StatusArchived, StatusDraft, false},
	}
	for _, tc := range cases {
		w := Workflow{Status: tc.from}
		if got := w.CanTransition(tc.to); got != tc.want {
			t.Fatalf("CanTransition(%s -> %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestIndex_Outgoing(t *testing.T) {
	w := decisionWorkflow()
	ix := NewIndex(w)

	if edges := ix.Outgoing("check", EdgeConditionalTrue); len(edges) != 1 || edges[0].TargetID != "hot" {
		t.Fatalf("unexpected TRUE edges: %v", edges)
	}
	if edges := ix.OutgoingAll("check"); len(edges) != 2 {
		t.Fatalf("expected 2 outgoing edges, got %d", len(edges))
	}
	if _, ok := ix.Node("ghost"); ok {
		t.Fatal("expected ghost lookup to miss")
	}
}
