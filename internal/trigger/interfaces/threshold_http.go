package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"gridflow/internal/auth"
	"gridflow/internal/condition"
	triggerapp "gridflow/internal/trigger/application"
	trigger "gridflow/internal/trigger/domain"
)

// ThresholdHandler registers and lists telemetry thresholds.
type ThresholdHandler struct {
	coordinator *triggerapp.Coordinator
}

// NewThresholdHandler constructs a handler.
func NewThresholdHandler(coordinator *triggerapp.Coordinator) (*ThresholdHandler, error) {
	if coordinator == nil {
		return nil, errors.New("threshold handler: nil coordinator")
	}
	return &ThresholdHandler{coordinator: coordinator}, nil
}

type thresholdRequest struct {
	ID          string `json:"id"`
	WorkflowID  string `json:"workflow_id"`
	Field       string `json:"field"`
	Operator    string `json:"operator"`
	Value       any    `json:"value"`
	Description string `json:"description"`
}

// ServeHTTP handles /api/v1/thresholds.
func (h *ThresholdHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	organizationID := auth.OrganizationIDFromContext(r.Context())
	if organizationID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	switch r.Method {
	case http.MethodPost:
		var req thresholdRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		threshold := trigger.Threshold{
			ID:             req.ID,
			OrganizationID: organizationID,
			WorkflowID:     req.WorkflowID,
			MetricField:    req.Field,
			Operator:       condition.Operator(req.Operator),
			Value:          req.Value,
			Description:    req.Description,
			CreatedAt:      time.Now().UTC(),
		}
		if threshold.ID == "" {
			threshold.ID = uuid.NewString()
		}
		if err := h.coordinator.RegisterThreshold(r.Context(), threshold); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(threshold)
	case http.MethodGet:
		thresholds := h.coordinator.Thresholds(organizationID)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(thresholds)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
