// Package memory implements the telemetry ports in memory for tests and
// demos.
package memory

import (
	"context"
	"sync"

	telemetry "gridflow/internal/telemetry/domain"
)

// TelemetryRepository keeps records in insertion order.
type TelemetryRepository struct {
	mu      sync.RWMutex
	records []telemetry.TelemetryData
}

// NewTelemetryRepository constructs a repository.
func NewTelemetryRepository() *TelemetryRepository {
	return &TelemetryRepository{}
}

// Insert appends a batch of records.
func (r *TelemetryRepository) Insert(ctx context.Context, records []telemetry.TelemetryData) error {
	_ = ctx
	for _, record := range records {
		if err := record.Validate(); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, records...)
	return nil
}

// Query returns records matching organization and time range.
func (r *TelemetryRepository) Query(ctx context.Context, q telemetry.Query) ([]telemetry.TelemetryData, error) {
	_ = ctx
	if err := q.Validate(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matched []telemetry.TelemetryData
	for _, record := range r.records {
		if record.OrganizationID != q.OrganizationID {
			continue
		}
		if !q.Range.Contains(record.Timestamp) {
			continue
		}
		matched = append(matched, record)
	}
	return matched, nil
}

// Len reports the stored record count.
func (r *TelemetryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
