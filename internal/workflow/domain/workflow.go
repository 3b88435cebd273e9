package workflow

import (
	"context"
	"fmt"
	"time"
)

// Status is the workflow lifecycle state.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusActive   Status = "ACTIVE"
	StatusArchived Status = "ARCHIVED"
)

// NodeType classifies workflow nodes.
type NodeType string

const (
	NodeStart    NodeType = "START"
	NodeTask     NodeType = "TASK"
	NodeDecision NodeType = "DECISION"
	NodeEnd      NodeType = "END"
)

// EdgeType classifies workflow edges.
type EdgeType string

const (
	EdgeDefault          EdgeType = "DEFAULT"
	EdgeConditionalTrue  EdgeType = "CONDITIONAL_TRUE"
	EdgeConditionalFalse EdgeType = "CONDITIONAL_FALSE"
)

// Node is a typed workflow node. Config is a free-form map; DECISION nodes
// carry their condition under the "conditions" key.
type Node struct {
	ID     string
	Type   NodeType
	Name   string
	Config map[string]any
}

// Conditions returns the decision condition configured on the node.
func (n Node) Conditions() (any, bool) {
	value, ok := n.Config["conditions"]
	if !ok || value == nil {
		return nil, false
	}
	return value, true
}

// Edge is a typed connection between two nodes of the same workflow.
type Edge struct {
	ID       string
	SourceID string
	TargetID string
	Type     EdgeType
}

// Workflow is a directed graph of typed nodes owned by one organization.
// Expected shape between START and the terminal nodes is a DAG; Validate
// rejects cycles.
type Workflow struct {
	ID             string
	Name           string
	OrganizationID string
	Status         Status
	Nodes          []Node
	Edges          []Edge
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// StartNode returns the START node when exactly one exists.
func (w Workflow) StartNode() (Node, bool) {
	var start Node
	found := false
	for _, node := range w.Nodes {
		if node.Type != NodeStart {
			continue
		}
		if found {
			return Node{}, false
		}
		start = node
		found = true
	}
	return start, found
}

// Validate checks the structural invariants of the graph. All violations
// found are collected into a single DefinitionError.
func (w Workflow) Validate() error {
	var issues []string

	if w.Name == "" {
		issues = append(issues, "workflow name is required")
	}
	if w.OrganizationID == "" {
		issues = append(issues, "organization id is required")
	}

	nodes := make(map[string]Node, len(w.Nodes))
	for _, node := range w.Nodes {
		if node.ID == "" {
			issues = append(issues, "node with empty id")
			continue
		}
		if _, dup := nodes[node.ID]; dup {
			issues = append(issues, fmt.Sprintf("duplicate node id %s", node.ID))
			continue
		}
		nodes[node.ID] = node
	}

	startCount := 0
	for _, node := range w.Nodes {
		switch node.Type {
		case NodeStart:
			startCount++
		case NodeTask, NodeDecision, NodeEnd:
		default:
			issues = append(issues, fmt.Sprintf("node %s has unknown type %q", node.ID, node.Type))
		}
	}
	if startCount != 1 {
		issues = append(issues, fmt.Sprintf("workflow must have exactly one START node, found %d", startCount))
	}

	incoming := make(map[string]int)
	outgoing := make(map[string][]Edge)
	for _, edge := range w.Edges {
		source, okSource := nodes[edge.SourceID]
		target, okTarget := nodes[edge.TargetID]
		if !okSource {
			issues = append(issues, fmt.Sprintf("edge %s references unknown source node %s", edge.ID, edge.SourceID))
		}
		if !okTarget {
			issues = append(issues, fmt.Sprintf("edge %s references unknown target node %s", edge.ID, edge.TargetID))
		}
		if !okSource || !okTarget {
			continue
		}
		incoming[edge.TargetID]++
		outgoing[edge.SourceID] = append(outgoing[edge.SourceID], edge)

		if source.Type == NodeEnd {
			issues = append(issues, fmt.Sprintf("end node %s cannot have outgoing edges", source.ID))
		}
		if target.Type == NodeStart {
			issues = append(issues, fmt.Sprintf("start node %s cannot have incoming edges", target.ID))
		}
		switch edge.Type {
		case EdgeConditionalTrue, EdgeConditionalFalse:
			if source.Type != NodeDecision {
				issues = append(issues, fmt.Sprintf("conditional edge %s must originate from a DECISION node", edge.ID))
			}
		case EdgeDefault:
			if source.Type == NodeDecision {
				issues = append(issues, fmt.Sprintf("decision node %s cannot have DEFAULT outgoing edges", source.ID))
			}
		default:
			issues = append(issues, fmt.Sprintf("edge %s has unknown type %q", edge.ID, edge.Type))
		}
	}

	for _, node := range w.Nodes {
		if node.Type != NodeDecision {
			continue
		}
		trueEdges, falseEdges := 0, 0
		for _, edge := range outgoing[node.ID] {
			switch edge.Type {
			case EdgeConditionalTrue:
				trueEdges++
			case EdgeConditionalFalse:
				falseEdges++
			}
		}
		if trueEdges != 1 || falseEdges != 1 {
			issues = append(issues, fmt.Sprintf(
				"decision node %s must have exactly one CONDITIONAL_TRUE and one CONDITIONAL_FALSE edge, found %d/%d",
				node.ID, trueEdges, falseEdges))
		}
	}

	if start, ok := w.StartNode(); ok {
		unreached := unreachableFrom(start.ID, nodes, outgoing)
		for _, id := range unreached {
			issues = append(issues, fmt.Sprintf("node %s is not reachable from the START node", id))
		}
		if hasCycle(nodes, outgoing) {
			issues = append(issues, "workflow graph contains a cycle")
		}
	}

	if len(issues) > 0 {
		return &DefinitionError{Issues: issues}
	}
	return nil
}

// CanTransition reports whether the status change is allowed: DRAFT→ACTIVE,
// ACTIVE→ARCHIVED. ARCHIVED is terminal.
func (w Workflow) CanTransition(next Status) bool {
	switch w.Status {
	case StatusDraft:
		return next == StatusActive
	case StatusActive:
		return next == StatusArchived
	default:
		return false
	}
}

func unreachableFrom(startID string, nodes map[string]Node, outgoing map[string][]Edge) []string {
	visited := map[string]bool{startID: true}
	queue := []string{startID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, edge := range outgoing[current] {
			if visited[edge.TargetID] {
				continue
			}
			visited[edge.TargetID] = true
			queue = append(queue, edge.TargetID)
		}
	}
	var unreached []string
	for _, node := range sortedNodeIDs(nodes) {
		if !visited[node] {
			unreached = append(unreached, node)
		}
	}
	return unreached
}

func hasCycle(nodes map[string]Node, outgoing map[string][]Edge) bool {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[string]int, len(nodes))
	var visit func(id string) bool
	visit = func(id string) bool {
		state[id] = inStack
		for _, edge := range outgoing[id] {
			switch state[edge.TargetID] {
			case inStack:
				return true
			case unvisited:
				if visit(edge.TargetID) {
					return true
				}
			}
		}
		state[id] = done
		return false
	}
	for id := range nodes {
		if state[id] == unvisited && visit(id) {
			return true
		}
	}
	return false
}

func sortedNodeIDs(nodes map[string]Node) []string {
	ids := make([]string, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	// Insertion sort keeps validation output deterministic without pulling
	// in sort for a handful of ids.
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
	return ids
}

// Index is an adjacency view of a workflow keyed by node id.
type Index struct {
	nodes    map[string]Node
	outgoing map[string][]Edge
}

// NewIndex builds the adjacency index for a workflow.
func NewIndex(w Workflow) Index {
	ix := Index{
		nodes:    make(map[string]Node, len(w.Nodes)),
		outgoing: make(map[string][]Edge, len(w.Nodes)),
	}
	for _, node := range w.Nodes {
		ix.nodes[node.ID] = node
	}
	for _, edge := range w.Edges {
		ix.outgoing[edge.SourceID] = append(ix.outgoing[edge.SourceID], edge)
	}
	return ix
}

// Node looks up a node by id.
func (ix Index) Node(id string) (Node, bool) {
	node, ok := ix.nodes[id]
	return node, ok
}

// Outgoing returns the outgoing edges of the given type from a node.
func (ix Index) Outgoing(id string, edgeType EdgeType) []Edge {
	var result []Edge
	for _, edge := range ix.outgoing[id] {
		if edge.Type == edgeType {
			result = append(result, edge)
		}
	}
	return result
}

// OutgoingAll returns every outgoing edge from a node.
func (ix Index) OutgoingAll(id string) []Edge {
	return ix.outgoing[id]
}

// Repository is the graph-store port.
type Repository interface {
	Get(ctx context.Context, organizationID, id string) (*Workflow, error)
	Save(ctx context.Context, w *Workflow) error
	UpdateStatus(ctx context.Context, id string, status Status, updatedAt time.Time) error
}
