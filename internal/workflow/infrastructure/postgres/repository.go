// Package postgres implements the workflow graph store on workflows,
// workflow_nodes, workflow_edges and workflow_executions tables.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	workflow "gridflow/internal/workflow/domain"
)

// WorkflowRepository loads and saves workflow graphs.
type WorkflowRepository struct {
	db *sql.DB
}

// NewWorkflowRepository constructs a repository.
func NewWorkflowRepository(db *sql.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

// Get loads a workflow with its nodes and edges.
func (r *WorkflowRepository) Get(ctx context.Context, organizationID, id string) (*workflow.Workflow, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("workflow repo: nil db")
	}
	if organizationID == "" || id == "" {
		return nil, errors.New("workflow repo: invalid query")
	}

	row := r.db.QueryRowContext(ctx, `
SELECT id, name, organization_id, status, created_at, updated_at
FROM workflows
WHERE organization_id = $1 AND id = $2
LIMIT 1`, organizationID, id)

	var w workflow.Workflow
	var status string
	if err := row.Scan(&w.ID, &w.Name, &w.OrganizationID, &status, &w.CreatedAt, &w.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, workflow.ErrNotFound
		}
		return nil, err
	}
	w.Status = workflow.Status(status)
	w.CreatedAt = w.CreatedAt.UTC()
	w.UpdatedAt = w.UpdatedAt.UTC()

	nodes, err := r.loadNodes(ctx, id)
	if err != nil {
		return nil, err
	}
	edges, err := r.loadEdges(ctx, id)
	if err != nil {
		return nil, err
	}
	w.Nodes = nodes
	w.Edges = edges
	return &w, nil
}

func (r *WorkflowRepository) loadNodes(ctx context.Context, workflowID string) ([]workflow.Node, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, node_type, name, config
FROM workflow_nodes
WHERE workflow_id = $1
ORDER BY position ASC`, workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []workflow.Node
	for rows.Next() {
		var (
			node     workflow.Node
			nodeType string
			config   []byte
		)
		if err := rows.Scan(&node.ID, &nodeType, &node.Name, &config); err != nil {
			return nil, err
		}
		node.Type = workflow.NodeType(nodeType)
		if len(config) > 0 {
			if err := json.Unmarshal(config, &node.Config); err != nil {
				return nil, fmt.Errorf("workflow repo: node %s config: %w", node.ID, err)
			}
		}
		nodes = append(nodes, node)
	}
	return nodes, rows.Err()
}

func (r *WorkflowRepository) loadEdges(ctx context.Context, workflowID string) ([]workflow.Edge, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, source_id, target_id, edge_type
FROM workflow_edges
WHERE workflow_id = $1
ORDER BY id ASC`, workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []workflow.Edge
	for rows.Next() {
		var (
			edge     workflow.Edge
			edgeType string
		)
		if err := rows.Scan(&edge.ID, &edge.SourceID, &edge.TargetID, &edgeType); err != nil {
			return nil, err
		}
		edge.Type = workflow.EdgeType(edgeType)
		edges = append(edges, edge)
	}
	return edges, rows.Err()
}

// Save writes the workflow and replaces its nodes and edges in one
// transaction.
func (r *WorkflowRepository) Save(ctx context.Context, w *workflow.Workflow) error {
	if r == nil || r.db == nil {
		return errors.New("workflow repo: nil db")
	}
	if w == nil {
		return errors.New("workflow repo: nil workflow")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO workflows (id, name, organization_id, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	status = EXCLUDED.status,
	updated_at = EXCLUDED.updated_at`,
		w.ID, w.Name, w.OrganizationID, string(w.Status), w.CreatedAt.UTC(), w.UpdatedAt.UTC())
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM workflow_nodes WHERE workflow_id = $1`, w.ID); err != nil {
		_ = tx.Rollback()
		return err
	}
	for i, node := range w.Nodes {
		var config []byte
		if node.Config != nil {
			config, err = json.Marshal(node.Config)
			if err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("workflow repo: node %s config: %w", node.ID, err)
			}
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO workflow_nodes (workflow_id, id, node_type, name, config, position)
VALUES ($1, $2, $3, $4, $5, $6)`,
			w.ID, node.ID, string(node.Type), node.Name, config, i)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM workflow_edges WHERE workflow_id = $1`, w.ID); err != nil {
		_ = tx.Rollback()
		return err
	}
	for _, edge := range w.Edges {
		_, err = tx.ExecContext(ctx, `
INSERT INTO workflow_edges (workflow_id, id, source_id, target_id, edge_type)
VALUES ($1, $2, $3, $4, $5)`,
			w.ID, edge.ID, edge.SourceID, edge.TargetID, string(edge.Type))
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// UpdateStatus patches a workflow's status.
func (r *WorkflowRepository) UpdateStatus(ctx context.Context, id string, status workflow.Status, updatedAt time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("workflow repo: nil db")
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE workflows SET status = $2, updated_at = $3 WHERE id = $1`,
		id, string(status), updatedAt.UTC())
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return workflow.ErrNotFound
	}
	return nil
}

// ExecutionRepository persists workflow execution records.
type ExecutionRepository struct {
	db *sql.DB
}

// NewExecutionRepository constructs a repository.
func NewExecutionRepository(db *sql.DB) *ExecutionRepository {
	return &ExecutionRepository{db: db}
}

// Save inserts an execution record.
func (r *ExecutionRepository) Save(ctx context.Context, execution *workflow.Execution) error {
	if r == nil || r.db == nil {
		return errors.New("execution repo: nil db")
	}
	if execution == nil {
		return errors.New("execution repo: nil execution")
	}
	contextData, err := json.Marshal(execution.Context)
	if err != nil {
		return fmt.Errorf("execution repo: context: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO workflow_executions (id, workflow_id, status, current_node_id, context, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		execution.ID, execution.WorkflowID, string(execution.Status),
		execution.CurrentNodeID, contextData, execution.CreatedAt.UTC())
	return err
}

// ListByWorkflow returns executions for a workflow, newest first.
func (r *ExecutionRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]workflow.Execution, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("execution repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, workflow_id, status, current_node_id, context, created_at
FROM workflow_executions
WHERE workflow_id = $1
ORDER BY created_at DESC`, workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var executions []workflow.Execution
	for rows.Next() {
		var (
			execution   workflow.Execution
			status      string
			contextData []byte
		)
		if err := rows.Scan(&execution.ID, &execution.WorkflowID, &status,
			&execution.CurrentNodeID, &contextData, &execution.CreatedAt); err != nil {
			return nil, err
		}
		execution.Status = workflow.ExecutionStatus(status)
		execution.CreatedAt = execution.CreatedAt.UTC()
		if len(contextData) > 0 {
			if err := json.Unmarshal(contextData, &execution.Context); err != nil {
				return nil, fmt.Errorf("execution repo: execution %s context: %w", execution.ID, err)
			}
		}
		executions = append(executions, execution)
	}
	return executions, rows.Err()
}
