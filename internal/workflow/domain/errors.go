package workflow

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when a workflow does not exist.
	ErrNotFound = errors.New("workflow: not found")

	// ErrWorkflowNotActive is returned when execution is requested for a
	// workflow that is not in ACTIVE status.
	ErrWorkflowNotActive = errors.New("workflow: not active")

	// ErrInvalidTransition is returned for a disallowed status change.
	ErrInvalidTransition = errors.New("workflow: invalid status transition")
)

// DefinitionError reports structural violations in a workflow graph. It
// carries every violation found, not only the first.
type DefinitionError struct {
	Issues []string
}

func (e *DefinitionError) Error() string {
	return "workflow: invalid definition: " + strings.Join(e.Issues, "; ")
}

// TraversalError reports a failure while walking an execution path, such as
// a dangling edge. It indicates the stored graph should have failed
// validation.
type TraversalError struct {
	NodeID string
	Reason string
}

func (e *TraversalError) Error() string {
	return "workflow: traversal failed at node " + e.NodeID + ": " + e.Reason
}
