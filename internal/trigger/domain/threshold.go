package trigger

import (
	"context"
	"errors"
	"time"

	"gridflow/internal/condition"
)

// Threshold is a standing rule that starts a workflow when a telemetry
// metric crosses a configured comparison. Read-only during evaluation.
type Threshold struct {
	ID             string
	OrganizationID string
	WorkflowID     string
	MetricField    string
	Operator       condition.Operator
	Value          any
	Description    string
	CreatedAt      time.Time
}

// Validate checks threshold invariants.
func (t Threshold) Validate() error {
	if t.ID == "" {
		return errors.New("threshold: empty id")
	}
	if t.OrganizationID == "" {
		return errors.New("threshold: empty organization id")
	}
	if t.WorkflowID == "" {
		return errors.New("threshold: empty workflow id")
	}
	if t.MetricField == "" {
		return errors.New("threshold: empty metric field")
	}
	if !t.Operator.Valid() {
		return errors.New("threshold: invalid operator")
	}
	return nil
}

// Condition builds the leaf condition this threshold evaluates.
func (t Threshold) Condition() condition.Leaf {
	return condition.Leaf{Field: t.MetricField, Operator: t.Operator, Value: t.Value}
}

// Repository is the optional durable threshold registry, read at startup to
// hydrate the coordinator's in-memory index.
type Repository interface {
	Save(ctx context.Context, threshold *Threshold) error
	ListAll(ctx context.Context) ([]Threshold, error)
}
