// Package ingest handles telemetry ingestion over HTTP.
package ingest

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"gridflow/internal/eventing"
	"gridflow/internal/observability/metrics"
	telemetry "gridflow/internal/telemetry/domain"
)

// Handler ingests device telemetry records.
type Handler struct {
	repo   telemetry.Repository
	bus    *eventing.InMemoryEventBus
	logger *log.Logger
}

// NewHandler constructs an ingest handler.
func NewHandler(repo telemetry.Repository, bus *eventing.InMemoryEventBus, logger *log.Logger) (*Handler, error) {
	if repo == nil {
		return nil, errors.New("telemetry ingest: nil repository")
	}
	if bus == nil {
		return nil, errors.New("telemetry ingest: nil bus")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{repo: repo, bus: bus, logger: logger}, nil
}

type ingestRequest struct {
	ID             string                           `json:"id"`
	DeviceID       string                           `json:"device_id"`
	OrganizationID string                           `json:"organization_id"`
	Timestamp      time.Time                        `json:"timestamp"`
	Metrics        map[string]telemetry.MetricValue `json:"metrics"`
	Location       *ingestLocation                  `json:"location"`
}

type ingestLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (r ingestRequest) toTelemetry() (telemetry.TelemetryData, error) {
	data := telemetry.TelemetryData{
		ID:             r.ID,
		DeviceID:       r.DeviceID,
		OrganizationID: r.OrganizationID,
		Timestamp:      r.Timestamp,
		Metrics:        r.Metrics,
	}
	if data.ID == "" {
		data.ID = uuid.NewString()
	}
	if data.Timestamp.IsZero() {
		data.Timestamp = time.Now().UTC()
	}
	if r.Location != nil {
		data.Location = &telemetry.Location{
			Latitude:  r.Location.Latitude,
			Longitude: r.Location.Longitude,
		}
	}
	if err := data.Validate(); err != nil {
		return telemetry.TelemetryData{}, err
	}
	return data, nil
}

// ServeHTTP handles POST /ingest/telemetry with one record per request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	started := time.Now()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.fail(w, started, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req ingestRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.logger.Printf("telemetry ingest: decode: %v", err)
		h.fail(w, started, "invalid json", http.StatusBadRequest)
		return
	}
	data, err := req.toTelemetry()
	if err != nil {
		h.logger.Printf("telemetry ingest: invalid payload: %v", err)
		h.fail(w, started, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.repo.Insert(r.Context(), []telemetry.TelemetryData{data}); err != nil {
		h.logger.Printf("telemetry ingest: insert: %v", err)
		h.fail(w, started, "insert error", http.StatusInternalServerError)
		return
	}
	if err := h.bus.PublishTelemetryReceived(r.Context(), eventing.TelemetryReceived{Data: data}); err != nil {
		// The record is stored; trigger evaluation is best-effort.
		h.logger.Printf("telemetry ingest: publish: %v", err)
	}

	metrics.ObserveIngest(metrics.ResultSuccess, time.Since(started))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{"id": data.ID})
}

func (h *Handler) fail(w http.ResponseWriter, started time.Time, message string, code int) {
	metrics.ObserveIngest(metrics.ResultError, time.Since(started))
	http.Error(w, message, code)
}
