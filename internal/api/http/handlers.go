// Package apihttp holds small cross-context HTTP handlers.
package apihttp

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"gridflow/internal/auth"
	"gridflow/internal/condition"
	spatialapp "gridflow/internal/spatial/application"
	telemetry "gridflow/internal/telemetry/domain"
)

const timeLayout = time.RFC3339

// ConditionValidateHandler validates authoring-time condition definitions.
type ConditionValidateHandler struct {
	evaluator condition.Evaluator
}

// NewConditionValidateHandler constructs a handler.
func NewConditionValidateHandler() *ConditionValidateHandler {
	return &ConditionValidateHandler{evaluator: condition.NewEvaluator()}
}

// ServeHTTP handles POST /api/v1/conditions/validate with the raw condition
// as the request body.
func (h *ConditionValidateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var raw any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	result := h.evaluator.Validate(raw)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"valid":  result.Valid,
		"errors": result.Errors,
	})
}

// SpatialHandler serves spatial analyses.
type SpatialHandler struct {
	analyzer *spatialapp.Analyzer
}

// NewSpatialHandler constructs a handler.
func NewSpatialHandler(analyzer *spatialapp.Analyzer) (*SpatialHandler, error) {
	if analyzer == nil {
		return nil, errors.New("spatial handler: nil analyzer")
	}
	return &SpatialHandler{analyzer: analyzer}, nil
}

// ServeHTTP handles GET /api/v1/analytics/spatial?lat=&lon=&radius_km=&from=&to=.
func (h *SpatialHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	organizationID := auth.OrganizationIDFromContext(r.Context())
	if organizationID == "" {
		organizationID = r.URL.Query().Get("organization_id")
	}
	if organizationID == "" {
		http.Error(w, "organization_id is required", http.StatusBadRequest)
		return
	}

	lat, err := parseFloatQuery(r, "lat")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	lon, err := parseFloatQuery(r, "lon")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	radius, err := parseFloatQuery(r, "radius_km")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	from, err := parseTimeQuery(r, "from")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	to, err := parseTimeQuery(r, "to")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	query := telemetry.Query{
		OrganizationID: organizationID,
		Range:          telemetry.TimeRange{Start: from, End: to},
		Center:         &telemetry.Location{Latitude: lat, Longitude: lon},
		RadiusKm:       radius,
	}
	result, err := h.analyzer.AnalyzeSpatialTelemetry(r.Context(), query)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

// HealthzHandler reports service liveness and database reachability.
type HealthzHandler struct {
	db *sql.DB
}

// NewHealthzHandler constructs a handler. A nil db reports "ok" without a
// database check.
func NewHealthzHandler(db *sql.DB) *HealthzHandler {
	return &HealthzHandler{db: db}
}

// ServeHTTP handles GET /healthz.
func (h *HealthzHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if h != nil && h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func parseTimeQuery(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}, errors.New(name + " must be RFC3339")
	}
	return ts, nil
}

func parseFloatQuery(r *http.Request, name string) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, errors.New(name + " is required")
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.New(name + " must be a number")
	}
	return value, nil
}
