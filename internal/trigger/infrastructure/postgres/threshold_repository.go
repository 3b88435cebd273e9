// Package postgres implements the durable threshold registry.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"gridflow/internal/condition"
	trigger "gridflow/internal/trigger/domain"
)

// ThresholdRepository stores telemetry thresholds.
type ThresholdRepository struct {
	db *sql.DB
}

// NewThresholdRepository constructs a repository.
func NewThresholdRepository(db *sql.DB) *ThresholdRepository {
	return &ThresholdRepository{db: db}
}

// Save upserts a threshold by id.
func (r *ThresholdRepository) Save(ctx context.Context, threshold *trigger.Threshold) error {
	if r == nil || r.db == nil {
		return errors.New("threshold repo: nil db")
	}
	if threshold == nil {
		return errors.New("threshold repo: nil threshold")
	}
	value, err := json.Marshal(threshold.Value)
	if err != nil {
		return fmt.Errorf("threshold repo: value: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO telemetry_thresholds (id, organization_id, workflow_id, metric_field, operator, value, description, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
	organization_id = EXCLUDED.organization_id,
	workflow_id = EXCLUDED.workflow_id,
	metric_field = EXCLUDED.metric_field,
	operator = EXCLUDED.operator,
	value = EXCLUDED.value,
	description = EXCLUDED.description`,
		threshold.ID, threshold.OrganizationID, threshold.WorkflowID, threshold.MetricField,
		string(threshold.Operator), value, threshold.Description, threshold.CreatedAt.UTC())
	return err
}

// ListAll returns every stored threshold.
func (r *ThresholdRepository) ListAll(ctx context.Context) ([]trigger.Threshold, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("threshold repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, organization_id, workflow_id, metric_field, operator, value, description, created_at
FROM telemetry_thresholds
ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var thresholds []trigger.Threshold
	for rows.Next() {
		var (
			threshold trigger.Threshold
			operator  string
			value     []byte
		)
		if err := rows.Scan(&threshold.ID, &threshold.OrganizationID, &threshold.WorkflowID,
			&threshold.MetricField, &operator, &value, &threshold.Description, &threshold.CreatedAt); err != nil {
			return nil, err
		}
		threshold.Operator = condition.Operator(operator)
		threshold.CreatedAt = threshold.CreatedAt.UTC()
		if len(value) > 0 {
			if err := json.Unmarshal(value, &threshold.Value); err != nil {
				return nil, fmt.Errorf("threshold repo: threshold %s value: %w", threshold.ID, err)
			}
		}
		thresholds = append(thresholds, threshold)
	}
	return thresholds, rows.Err()
}
