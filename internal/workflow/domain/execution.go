package workflow

import (
	"context"
	"time"
)

// ExecutionStatus is the outcome state of one execution call.
type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "RUNNING"
	ExecutionCompleted ExecutionStatus = "COMPLETED"
	ExecutionFailed    ExecutionStatus = "FAILED"
)

// conditionResultKeyPrefix keys decision outcomes in execution context data.
const conditionResultKeyPrefix = "condition_result_"

// ConditionResultKey returns the context-data key recording the boolean
// result of a decision node.
func ConditionResultKey(nodeID string) string {
	return conditionResultKeyPrefix + nodeID
}

// Execution records one traversal of a workflow against one telemetry
// snapshot. It is not mutated after the service returns it.
type Execution struct {
	ID            string
	WorkflowID    string
	Status        ExecutionStatus
	CurrentNodeID string
	Context       map[string]any
	CreatedAt     time.Time
}

// ExecutionRepository persists execution records.
type ExecutionRepository interface {
	Save(ctx context.Context, execution *Execution) error
	ListByWorkflow(ctx context.Context, workflowID string) ([]Execution, error)
}
