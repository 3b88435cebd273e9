package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gridflow/internal/condition"
	"gridflow/internal/observability/metrics"
	telemetry "gridflow/internal/telemetry/domain"
	workflow "gridflow/internal/workflow/domain"
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Service validates workflow graphs and executes workflows against telemetry
// snapshots. It holds no mutable state; every execution operates on the
// immutable workflow and telemetry values passed in, so concurrent calls are
// safe.
type Service struct {
	workflows  workflow.Repository
	executions workflow.ExecutionRepository
	evaluator  condition.Evaluator
	clock      Clock
}

// ServiceOption customizes the workflow service.
type ServiceOption func(*Service)

// WithClock assigns a clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewService constructs a workflow service.
func NewService(workflows workflow.Repository, executions workflow.ExecutionRepository, opts ...ServiceOption) (*Service, error) {
	if workflows == nil {
		return nil, errors.New("workflow service: nil workflow repository")
	}
	if executions == nil {
		return nil, errors.New("workflow service: nil execution repository")
	}
	service := &Service{
		workflows:  workflows,
		executions: executions,
		evaluator:  condition.NewEvaluator(),
		clock:      systemClock{},
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// CreateWorkflow constructs, validates and persists a DRAFT workflow.
func (s *Service) CreateWorkflow(ctx context.Context, name, organizationID string, nodes []workflow.Node, edges []workflow.Edge) (*workflow.Workflow, error) {
	now := s.clock.Now().UTC()
	w := &workflow.Workflow{
		ID:             uuid.NewString(),
		Name:           name,
		OrganizationID: organizationID,
		Status:         workflow.StatusDraft,
		Nodes:          nodes,
		Edges:          edges,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if err := s.workflows.Save(ctx, w); err != nil {
		return nil, fmt.Errorf("workflow service: save: %w", err)
	}
	return w, nil
}

// Activate transitions a DRAFT workflow to ACTIVE.
func (s *Service) Activate(ctx context.Context, organizationID, id string) (*workflow.Workflow, error) {
	return s.transition(ctx, organizationID, id, workflow.StatusActive)
}

// Archive transitions an ACTIVE workflow to ARCHIVED. Archived workflows are
// terminal and immutable.
func (s *Service) Archive(ctx context.Context, organizationID, id string) (*workflow.Workflow, error) {
	return s.transition(ctx, organizationID, id, workflow.StatusArchived)
}

func (s *Service) transition(ctx context.Context, organizationID, id string, next workflow.Status) (*workflow.Workflow, error) {
	w, err := s.workflows.Get(ctx, organizationID, id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, workflow.ErrNotFound
	}
	if !w.CanTransition(next) {
		return nil, fmt.Errorf("%w: %s to %s", workflow.ErrInvalidTransition, w.Status, next)
	}
	now := s.clock.Now().UTC()
	if err := s.workflows.UpdateStatus(ctx, id, next, now); err != nil {
		return nil, err
	}
	w.Status = next
	w.UpdatedAt = now
	return w, nil
}

// ConnectionResult is the outcome of a connection rule check.
type ConnectionResult struct {
	Valid  bool
	Errors []string
}

// ValidateConnection checks whether an edge of the given type may connect
// source to target.
func (s *Service) ValidateConnection(source, target workflow.Node, edgeType workflow.EdgeType) ConnectionResult {
	var errs []string
	if source.Type == workflow.NodeEnd {
		errs = append(errs, "End nodes cannot have outgoing connections")
	}
	if target.Type == workflow.NodeStart {
		errs = append(errs, "Start nodes cannot have incoming connections")
	}
	switch edgeType {
	case workflow.EdgeConditionalTrue, workflow.EdgeConditionalFalse:
		if source.Type != workflow.NodeDecision {
			errs = append(errs, "Conditional edges must originate from a decision node")
		}
	case workflow.EdgeDefault:
		if source.Type == workflow.NodeDecision {
			errs = append(errs, "Decision nodes must branch with conditional edges, not default edges")
		}
	default:
		errs = append(errs, fmt.Sprintf("Unknown edge type %q", edgeType))
	}
	return ConnectionResult{Valid: len(errs) == 0, Errors: errs}
}

// ReadinessResult is the outcome of an execution-readiness check.
type ReadinessResult struct {
	Ready  bool
	Issues []string
}

// ValidateExecutionReadiness collects every reason the workflow could not be
// executed: decision nodes without conditions or complete branches, and
// non-END nodes without an outgoing edge.
func (s *Service) ValidateExecutionReadiness(w workflow.Workflow) ReadinessResult {
	ix := workflow.NewIndex(w)
	var issues []string
	for _, node := range w.Nodes {
		if node.Type == workflow.NodeDecision {
			if _, ok := node.Conditions(); !ok {
				issues = append(issues, fmt.Sprintf("decision node %s has no conditions configured", node.ID))
			}
			if len(ix.Outgoing(node.ID, workflow.EdgeConditionalTrue)) != 1 {
				issues = append(issues, fmt.Sprintf("decision node %s must have exactly one CONDITIONAL_TRUE edge", node.ID))
			}
			if len(ix.Outgoing(node.ID, workflow.EdgeConditionalFalse)) != 1 {
				issues = append(issues, fmt.Sprintf("decision node %s must have exactly one CONDITIONAL_FALSE edge", node.ID))
			}
		}
		if node.Type != workflow.NodeEnd && len(ix.OutgoingAll(node.ID)) == 0 {
			issues = append(issues, fmt.Sprintf("node %s has no outgoing edges", node.ID))
		}
	}
	return ReadinessResult{Ready: len(issues) == 0, Issues: issues}
}

// ExecuteWorkflow traverses the workflow once against one telemetry
// snapshot. Traversal starts at the START node, follows DEFAULT edges,
// evaluates the configured condition at DECISION nodes to pick the TRUE or
// FALSE branch, and stops on arrival at the first TASK or END node.
//
// A workflow that is not ACTIVE returns ErrWorkflowNotActive and no
// execution record. Traversal failures (dangling edge, condition evaluation
// error) return the persisted FAILED execution together with the triggering
// error; callers should check the execution status rather than rely on the
// error alone.
func (s *Service) ExecuteWorkflow(ctx context.Context, w workflow.Workflow, data telemetry.TelemetryData) (*workflow.Execution, error) {
	started := s.clock.Now()
	execution, err := s.execute(ctx, w, data)
	if execution != nil {
		if saveErr := s.executions.Save(ctx, execution); saveErr != nil && err == nil {
			err = fmt.Errorf("workflow service: save execution: %w", saveErr)
		}
		metrics.ObserveWorkflowExecution(string(execution.Status), s.clock.Now().Sub(started))
	}
	return execution, err
}

func (s *Service) execute(ctx context.Context, w workflow.Workflow, data telemetry.TelemetryData) (*workflow.Execution, error) {
	if w.Status != workflow.StatusActive {
		return nil, fmt.Errorf("%w: workflow %s is %s", workflow.ErrWorkflowNotActive, w.ID, w.Status)
	}
	start, ok := w.StartNode()
	if !ok {
		return nil, &workflow.DefinitionError{Issues: []string{"workflow must have exactly one START node"}}
	}

	execution := &workflow.Execution{
		ID:            uuid.NewString(),
		WorkflowID:    w.ID,
		Status:        workflow.ExecutionRunning,
		CurrentNodeID: start.ID,
		Context:       map[string]any{},
		CreatedAt:     s.clock.Now().UTC(),
	}

	ix := workflow.NewIndex(w)
	current := start

	// Valid graphs are acyclic, so a path can visit each node at most once.
	// The budget turns a corrupt stored graph into a FAILED execution
	// instead of an unbounded loop.
	for steps := 0; steps <= len(w.Nodes); steps++ {
		if err := ctx.Err(); err != nil {
			return s.fail(execution, err)
		}
		if current.Type == workflow.NodeEnd || current.Type == workflow.NodeTask {
			execution.Status = workflow.ExecutionCompleted
			execution.CurrentNodeID = current.ID
			return execution, nil
		}

		next, err := s.advance(ix, current, data, execution)
		if err != nil {
			return s.fail(execution, err)
		}
		execution.CurrentNodeID = next.ID
		current = next
	}
	return s.fail(execution, &workflow.TraversalError{NodeID: current.ID, Reason: "traversal exceeded node count, graph is cyclic"})
}

func (s *Service) advance(ix workflow.Index, current workflow.Node, data telemetry.TelemetryData, execution *workflow.Execution) (workflow.Node, error) {
	var edgeType workflow.EdgeType
	switch current.Type {
	case workflow.NodeDecision:
		raw, ok := current.Conditions()
		if !ok {
			return workflow.Node{}, &workflow.TraversalError{NodeID: current.ID, Reason: "decision node has no conditions configured"}
		}
		result, err := s.evaluator.Evaluate(raw, data)
		if err != nil {
			return workflow.Node{}, err
		}
		execution.Context[workflow.ConditionResultKey(current.ID)] = result
		if result {
			edgeType = workflow.EdgeConditionalTrue
		} else {
			edgeType = workflow.EdgeConditionalFalse
		}
	default:
		edgeType = workflow.EdgeDefault
	}

	edges := ix.Outgoing(current.ID, edgeType)
	if len(edges) != 1 {
		return workflow.Node{}, &workflow.TraversalError{
			NodeID: current.ID,
			Reason: fmt.Sprintf("expected exactly one outgoing %s edge, found %d", edgeType, len(edges)),
		}
	}
	next, ok := ix.Node(edges[0].TargetID)
	if !ok {
		return workflow.Node{}, &workflow.TraversalError{NodeID: current.ID, Reason: "edge targets unknown node " + edges[0].TargetID}
	}
	return next, nil
}

func (s *Service) fail(execution *workflow.Execution, err error) (*workflow.Execution, error) {
	execution.Status = workflow.ExecutionFailed
	return execution, err
}

// ExecuteByID loads a workflow through the graph-store port and executes it.
// Used by the threshold trigger coordinator.
func (s *Service) ExecuteByID(ctx context.Context, organizationID, workflowID string, data telemetry.TelemetryData) (*workflow.Execution, error) {
	w, err := s.workflows.Get(ctx, organizationID, workflowID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, workflow.ErrNotFound
	}
	return s.ExecuteWorkflow(ctx, *w, data)
}
