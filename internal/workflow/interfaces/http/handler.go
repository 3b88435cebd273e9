// Package http provides workflow HTTP endpoints.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"gridflow/internal/auth"
	telemetry "gridflow/internal/telemetry/domain"
	workflowapp "gridflow/internal/workflow/application"
	workflow "gridflow/internal/workflow/domain"
)

// Handler provides workflow HTTP endpoints.
type Handler struct {
	service    *workflowapp.Service
	executions workflow.ExecutionRepository
}

// NewHandler constructs a handler.
func NewHandler(service *workflowapp.Service, executions workflow.ExecutionRepository) (*Handler, error) {
	if service == nil {
		return nil, errors.New("workflow handler: nil service")
	}
	return &Handler{service: service, executions: executions}, nil
}

// ServeHTTP handles /api/v1/workflows and subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/workflows":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleCreate(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/workflows/"):
		h.handleAction(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type createRequest struct {
	Name  string         `json:"name"`
	Nodes []nodePayload  `json:"nodes"`
	Edges []workflowEdge `json:"edges"`
}

type nodePayload struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Name   string         `json:"name"`
	Config map[string]any `json:"config"`
}

type workflowEdge struct {
	ID       string `json:"id"`
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
	Type     string `json:"type"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	organizationID := auth.OrganizationIDFromContext(r.Context())
	if organizationID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	nodes := make([]workflow.Node, 0, len(req.Nodes))
	for _, node := range req.Nodes {
		nodes = append(nodes, workflow.Node{
			ID:     node.ID,
			Type:   workflow.NodeType(node.Type),
			Name:   node.Name,
			Config: node.Config,
		})
	}
	edges := make([]workflow.Edge, 0, len(req.Edges))
	for _, edge := range req.Edges {
		edges = append(edges, workflow.Edge{
			ID:       edge.ID,
			SourceID: edge.SourceID,
			TargetID: edge.TargetID,
			Type:     workflow.EdgeType(edge.Type),
		})
	}

	created, err := h.service.CreateWorkflow(r.Context(), req.Name, organizationID, nodes, edges)
	if err != nil {
		var defErr *workflow.DefinitionError
		if errors.As(err, &defErr) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnprocessableEntity)
			_ = json.NewEncoder(w).Encode(map[string]any{"issues": defErr.Issues})
			return
		}
		http.Error(w, "create workflow error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(created)
}

func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request) {
	organizationID := auth.OrganizationIDFromContext(r.Context())
	if organizationID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/workflows/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	id, action := parts[0], parts[1]

	switch {
	case action == "activate" && r.Method == http.MethodPost:
		h.respondTransition(w, r, organizationID, id, h.service.Activate)
	case action == "archive" && r.Method == http.MethodPost:
		h.respondTransition(w, r, organizationID, id, h.service.Archive)
	case action == "execute" && r.Method == http.MethodPost:
		h.handleExecute(w, r, organizationID, id)
	case action == "executions" && r.Method == http.MethodGet:
		h.handleListExecutions(w, r, id)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type transitionFunc func(ctx context.Context, organizationID, id string) (*workflow.Workflow, error)

func (h *Handler) respondTransition(w http.ResponseWriter, r *http.Request, organizationID, id string, transition transitionFunc) {
	updated, err := transition(r.Context(), organizationID, id)
	if err != nil {
		switch {
		case errors.Is(err, workflow.ErrNotFound):
			http.Error(w, "workflow not found", http.StatusNotFound)
		case errors.Is(err, workflow.ErrInvalidTransition):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			http.Error(w, "transition error", http.StatusInternalServerError)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(updated)
}

type executeRequest struct {
	Telemetry struct {
		ID        string                           `json:"id"`
		DeviceID  string                           `json:"device_id"`
		Timestamp time.Time                        `json:"timestamp"`
		Metrics   map[string]telemetry.MetricValue `json:"metrics"`
	} `json:"telemetry"`
}

func (h *Handler) handleExecute(w http.ResponseWriter, r *http.Request, organizationID, id string) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	data := telemetry.TelemetryData{
		ID:             req.Telemetry.ID,
		DeviceID:       req.Telemetry.DeviceID,
		OrganizationID: organizationID,
		Timestamp:      req.Telemetry.Timestamp,
		Metrics:        req.Telemetry.Metrics,
	}
	if data.Timestamp.IsZero() {
		data.Timestamp = time.Now().UTC()
	}

	execution, err := h.service.ExecuteByID(r.Context(), organizationID, id, data)
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		http.Error(w, "workflow not found", http.StatusNotFound)
		return
	case errors.Is(err, workflow.ErrWorkflowNotActive):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil && execution == nil:
		http.Error(w, "execute error", http.StatusInternalServerError)
		return
	}

	// FAILED executions are a normal response; the failure detail rides
	// in-band next to the execution record.
	response := map[string]any{"execution": execution}
	if err != nil {
		response["error"] = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

func (h *Handler) handleListExecutions(w http.ResponseWriter, r *http.Request, workflowID string) {
	if h.executions == nil {
		http.Error(w, "executions unavailable", http.StatusServiceUnavailable)
		return
	}
	executions, err := h.executions.ListByWorkflow(r.Context(), workflowID)
	if err != nil {
		http.Error(w, "list executions error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(executions)
}
