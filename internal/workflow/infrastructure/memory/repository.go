// Package memory implements the workflow ports in memory for tests and
// demos.
package memory

import (
	"context"
	"sync"
	"time"

	workflow "gridflow/internal/workflow/domain"
)

// WorkflowRepository keeps workflows by id.
type WorkflowRepository struct {
	mu   sync.RWMutex
	data map[string]workflow.Workflow
}

// NewWorkflowRepository constructs a repository.
func NewWorkflowRepository() *WorkflowRepository {
	return &WorkflowRepository{data: make(map[string]workflow.Workflow)}
}

// Get loads a workflow scoped to an organization.
func (r *WorkflowRepository) Get(ctx context.Context, organizationID, id string) (*workflow.Workflow, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.data[id]
	if !ok || w.OrganizationID != organizationID {
		return nil, workflow.ErrNotFound
	}
	copied := w
	return &copied, nil
}

// Save stores a workflow.
func (r *WorkflowRepository) Save(ctx context.Context, w *workflow.Workflow) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[w.ID] = *w
	return nil
}

// UpdateStatus patches a workflow's status.
func (r *WorkflowRepository) UpdateStatus(ctx context.Context, id string, status workflow.Status, updatedAt time.Time) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.data[id]
	if !ok {
		return workflow.ErrNotFound
	}
	w.Status = status
	w.UpdatedAt = updatedAt
	r.data[id] = w
	return nil
}

// ExecutionRepository keeps execution records in save order.
type ExecutionRepository struct {
	mu   sync.RWMutex
	data []workflow.Execution
}

// NewExecutionRepository constructs a repository.
func NewExecutionRepository() *ExecutionRepository {
	return &ExecutionRepository{}
}

// Save appends an execution record.
func (r *ExecutionRepository) Save(ctx context.Context, execution *workflow.Execution) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = append(r.data, *execution)
	return nil
}

// ListByWorkflow returns executions for a workflow in save order.
func (r *ExecutionRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]workflow.Execution, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var executions []workflow.Execution
	for _, execution := range r.data {
		if execution.WorkflowID == workflowID {
			executions = append(executions, execution)
		}
	}
	return executions, nil
}
