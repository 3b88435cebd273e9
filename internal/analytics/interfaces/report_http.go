// Package interfaces exposes the analytics engine over HTTP and as report
// documents.
package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	analyticsapp "gridflow/internal/analytics/application"
	"gridflow/internal/auth"
	"gridflow/internal/observability/metrics"
	telemetry "gridflow/internal/telemetry/domain"
)

const timeLayout = time.RFC3339

// ReportHandler serves telemetry analysis reports.
type ReportHandler struct {
	engine *analyticsapp.Engine
}

// NewReportHandler constructs a report handler.
func NewReportHandler(engine *analyticsapp.Engine) (*ReportHandler, error) {
	if engine == nil {
		return nil, errors.New("analytics handler: nil engine")
	}
	return &ReportHandler{engine: engine}, nil
}

// ServeHTTP handles GET /api/v1/analytics/report?from=&to=&metrics=&format=.
func (h *ReportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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
		Metrics:        metricsQuery(r),
	}

	analysis, err := h.engine.AnalyzeTelemetry(r.Context(), query)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	format := r.URL.Query().Get("format")
	switch format {
	case "", "json":
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(analysis); err != nil {
			metrics.IncReportExport("json", metrics.ResultError)
			return
		}
		metrics.IncReportExport("json", metrics.ResultSuccess)
	case "xlsx":
		document, err := BuildAnalysisXLSX(analysis)
		if err != nil {
			metrics.IncReportExport("xlsx", metrics.ResultError)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="analysis.xlsx"`)
		_, _ = w.Write(document)
		metrics.IncReportExport("xlsx", metrics.ResultSuccess)
	case "pdf":
		document, err := BuildAnalysisPDF(analysis)
		if err != nil {
			metrics.IncReportExport("pdf", metrics.ResultError)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="analysis.pdf"`)
		_, _ = w.Write(document)
		metrics.IncReportExport("pdf", metrics.ResultSuccess)
	default:
		http.Error(w, "unsupported format: "+format, http.StatusBadRequest)
	}
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

func metricsQuery(r *http.Request) []string {
	var names []string
	for _, raw := range r.URL.Query()["metrics"] {
		if raw != "" {
			names = append(names, raw)
		}
	}
	return names
}
