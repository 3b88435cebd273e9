// Package postgres implements the telemetry ports on a telemetry_data table
// with JSONB metrics.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	telemetry "gridflow/internal/telemetry/domain"
)

// TelemetryRepository stores and queries telemetry records.
type TelemetryRepository struct {
	db *sql.DB
}

// NewTelemetryRepository constructs a repository.
func NewTelemetryRepository(db *sql.DB) *TelemetryRepository {
	return &TelemetryRepository{db: db}
}

// Insert writes a batch of records.
func (r *TelemetryRepository) Insert(ctx context.Context, records []telemetry.TelemetryData) error {
	if r == nil || r.db == nil {
		return errors.New("telemetry repo: nil db")
	}
	if len(records) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, record := range records {
		if err := record.Validate(); err != nil {
			_ = tx.Rollback()
			return err
		}
		payload, err := json.Marshal(record.Metrics)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		var lat, lon sql.NullFloat64
		if record.Location != nil {
			lat = sql.NullFloat64{Float64: record.Location.Latitude, Valid: true}
			lon = sql.NullFloat64{Float64: record.Location.Longitude, Valid: true}
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO telemetry_data (id, device_id, organization_id, ts, metrics, latitude, longitude)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			record.ID, record.DeviceID, record.OrganizationID, record.Timestamp.UTC(),
			payload, lat, lon)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Query loads the records matching a query. Spatial filtering is left to the
// caller; only organization and time range are pushed into SQL.
func (r *TelemetryRepository) Query(ctx context.Context, q telemetry.Query) ([]telemetry.TelemetryData, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("telemetry repo: nil db")
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var (
		where = []string{"organization_id = $1"}
		args  = []any{q.OrganizationID}
	)
	if !q.Range.Start.IsZero() {
		args = append(args, q.Range.Start.UTC())
		where = append(where, fmt.Sprintf("ts >= $%d", len(args)))
	}
	if !q.Range.End.IsZero() {
		args = append(args, q.Range.End.UTC())
		where = append(where, fmt.Sprintf("ts < $%d", len(args)))
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id, device_id, organization_id, ts, metrics, latitude, longitude
FROM telemetry_data
WHERE `+strings.Join(where, " AND ")+`
ORDER BY ts ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []telemetry.TelemetryData
	for rows.Next() {
		var (
			record   telemetry.TelemetryData
			payload  []byte
			lat, lon sql.NullFloat64
		)
		if err := rows.Scan(&record.ID, &record.DeviceID, &record.OrganizationID,
			&record.Timestamp, &payload, &lat, &lon); err != nil {
			return nil, err
		}
		record.Timestamp = record.Timestamp.UTC()
		if err := json.Unmarshal(payload, &record.Metrics); err != nil {
			return nil, fmt.Errorf("telemetry repo: record %s metrics: %w", record.ID, err)
		}
		if lat.Valid && lon.Valid {
			record.Location = &telemetry.Location{Latitude: lat.Float64, Longitude: lon.Float64}
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
