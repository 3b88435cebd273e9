package ingest

import (
	"context"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"gridflow/internal/eventing"
	telemetrymem "gridflow/internal/telemetry/infrastructure/memory"
)

func newTestHandler(t *testing.T) (*Handler, *telemetrymem.TelemetryRepository, *eventing.InMemoryEventBus) {
	t.Helper()
	repo := telemetrymem.NewTelemetryRepository()
	bus := eventing.NewInMemoryEventBus()
	logger := log.New(os.Stderr, "test ", log.LstdFlags)
	handler, err := NewHandler(repo, bus, logger)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	return handler, repo, bus
}

func TestServeHTTP_StoresAndPublishes(t *testing.T) {
	handler, repo, bus := newTestHandler(t)

	var published []eventing.TelemetryReceived
	bus.SubscribeTelemetryReceived(func(ctx context.Context, e eventing.TelemetryReceived) error {
		published = append(published, e)
		return nil
	})

	body := `{
		"device_id": "device-1",
		"organization_id": "org-1",
		"timestamp": "2026-03-01T12:00:00Z",
		"metrics": {"temperature": 25.5, "status": "active"},
		"location": {"latitude": 52.0, "longitude": 13.0}
	}`
	req := httptest.NewRequest(http.MethodPost, "/ingest/telemetry", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if repo.Len() != 1 {
		t.Fatalf("expected 1 stored record, got %d", repo.Len())
	}
	if len(published) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(published))
	}
	data := published[0].Data
	if data.DeviceID != "device-1" || data.ID == "" {
		t.Fatalf("unexpected published record: %+v", data)
	}
	if value, ok := data.Metrics["temperature"]; !ok {
		t.Fatal("expected temperature metric")
	} else if number, ok := value.Number(); !ok || number != 25.5 {
		t.Fatalf("expected numeric 25.5, got %+v", value)
	}
	if data.Location == nil || data.Location.Latitude != 52.0 {
		t.Fatalf("expected location carried through, got %+v", data.Location)
	}
}

func TestServeHTTP_RejectsInvalidPayload(t *testing.T) {
	handler, repo, _ := newTestHandler(t)

	cases := []struct {
		name string
		body string
	}{
		{"bad json", `{not json`},
		{"missing device", `{"organization_id": "org-1", "metrics": {"a": 1}}`},
		{"missing metrics", `{"device_id": "device-1", "organization_id": "org-1"}`},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/ingest/telemetry", strings.NewReader(tc.body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", tc.name, rec.Code)
		}
	}
	if repo.Len() != 0 {
		t.Fatalf("expected nothing stored, got %d", repo.Len())
	}
}

func TestServeHTTP_MethodNotAllowed(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/ingest/telemetry", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
