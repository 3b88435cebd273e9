package telemetry

import (
	"context"
	"errors"
	"time"
)

// Location is a WGS84 point.
type Location struct {
	Latitude  float64
	Longitude float64
}

// TelemetryData is one ingested device record. It is immutable once
// constructed; engine components only read it.
type TelemetryData struct {
	ID             string
	DeviceID       string
	OrganizationID string
	Timestamp      time.Time
	Metrics        map[string]MetricValue
	Location       *Location
}

// Metric looks up a metric by name.
func (t TelemetryData) Metric(name string) (MetricValue, bool) {
	value, ok := t.Metrics[name]
	return value, ok
}

// Validate checks record invariants.
func (t TelemetryData) Validate() error {
	if t.DeviceID == "" {
		return errors.New("telemetry: empty device id")
	}
	if t.OrganizationID == "" {
		return errors.New("telemetry: empty organization id")
	}
	if t.Timestamp.IsZero() {
		return errors.New("telemetry: zero timestamp")
	}
	if len(t.Metrics) == 0 {
		return errors.New("telemetry: no metrics")
	}
	return nil
}

// TimeRange is a half-open interval [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// IsZero reports whether neither bound is set.
func (r TimeRange) IsZero() bool { return r.Start.IsZero() && r.End.IsZero() }

// Contains reports whether ts falls inside the range. Zero bounds are open.
func (r TimeRange) Contains(ts time.Time) bool {
	if !r.Start.IsZero() && ts.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && !ts.Before(r.End) {
		return false
	}
	return true
}

// Query selects telemetry for analysis. Constructed per request, not
// persisted.
type Query struct {
	OrganizationID string
	Range          TimeRange
	Metrics        []string
	Center         *Location
	RadiusKm       float64
}

// Validate checks query invariants.
func (q Query) Validate() error {
	if q.OrganizationID == "" {
		return errors.New("telemetry query: empty organization id")
	}
	if !q.Range.Start.IsZero() && !q.Range.End.IsZero() && q.Range.End.Before(q.Range.Start) {
		return errors.New("telemetry query: end before start")
	}
	if q.RadiusKm < 0 {
		return errors.New("telemetry query: negative radius")
	}
	return nil
}

// Repository persists telemetry records.
type Repository interface {
	Insert(ctx context.Context, records []TelemetryData) error
}

// Querier loads the finite set of records matching a query.
type Querier interface {
	Query(ctx context.Context, q Query) ([]TelemetryData, error)
}
