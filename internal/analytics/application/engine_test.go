package application

import (
	"context"
	"errors"
	"log"
	"math"
	"os"
	"testing"
	"time"

	analytics "gridflow/internal/analytics/domain"
	telemetry "gridflow/internal/telemetry/domain"
)

type stubQuerier struct {
	records []telemetry.TelemetryData
	err     error
	got     telemetry.Query
}

func (s *stubQuerier) Query(ctx context.Context, q telemetry.Query) ([]telemetry.TelemetryData, error) {
	s.got = q
	return s.records, s.err
}

type fakeClock struct{ now time.Time }

func (f fakeClock) Now() time.Time { return f.now }

func testLogger() *log.Logger {
	return log.New(os.Stderr, "test ", log.LstdFlags)
}

var windowStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sample(device string, minute int, metrics map[string]telemetry.MetricValue) telemetry.TelemetryData {
	return telemetry.TelemetryData{
		ID:             device + "-" + time.Duration(minute).String(),
		DeviceID:       device,
		OrganizationID: "org-1",
		Timestamp:      windowStart.Add(time.Duration(minute) * time.Minute),
		Metrics:        metrics,
	}
}

func newTestEngine(t *testing.T, querier telemetry.Querier, opts ...EngineOption) *Engine {
	t.Helper()
	opts = append(opts, WithClock(fakeClock{now: windowStart.Add(time.Hour)}))
	engine, err := NewEngine(querier, testLogger(), opts...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engine
}

func TestAnalyzeTelemetry_EmptySet(t *testing.T) {
	engine := newTestEngine(t, &stubQuerier{})

	analysis, err := engine.AnalyzeTelemetry(context.Background(), telemetry.Query{OrganizationID: "org-1"})
	if err != nil {
		t.Fatalf("AnalyzeTelemetry: %v", err)
	}
	if analysis.Metrics == nil || analysis.Anomalies == nil || analysis.Trends == nil {
		t.Fatal("expected initialized empty slices")
	}
	if len(analysis.Metrics) != 0 || len(analysis.Anomalies) != 0 || len(analysis.Trends) != 0 {
		t.Fatalf("expected empty analysis, got %+v", analysis)
	}
	if analysis.Overall.Records != 0 || analysis.Overall.Devices != 0 {
		t.Fatalf("expected zero overall counts, got %+v", analysis.Overall)
	}
}

func TestAnalyzeTelemetry_InvalidQuery(t *testing.T) {
	engine := newTestEngine(t, &stubQuerier{})

	if _, err := engine.AnalyzeTelemetry(context.Background(), telemetry.Query{}); err == nil {
		t.Fatal("expected error for missing organization id")
	}
}

func TestAnalyzeTelemetry_QuerierError(t *testing.T) {
	engine := newTestEngine(t, &stubQuerier{err: errors.New("store down")})

	if _, err := engine.AnalyzeTelemetry(context.Background(), telemetry.Query{OrganizationID: "org-1"}); err == nil {
		t.Fatal("expected querier error to propagate")
	}
}

func TestAnalyzeTelemetry_Statistics(t *testing.T) {
	// Population stddev of 2, 4, 4, 4, 5, 5, 7, 9 is exactly 2.
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	records := make([]telemetry.TelemetryData, 0, len(values))
	for i, v := range values {
		records = append(records, sample("device-1", i, map[string]telemetry.MetricValue{
			"power":  telemetry.Number(v),
			"status": telemetry.String("ok"), // non-numeric, must be ignored
		}))
	}
	engine := newTestEngine(t, &stubQuerier{records: records})

	analysis, err := engine.AnalyzeTelemetry(context.Background(), telemetry.Query{OrganizationID: "org-1"})
	if err != nil {
		t.Fatalf("AnalyzeTelemetry: %v", err)
	}
	if len(analysis.Metrics) != 1 {
		t.Fatalf("expected stats for power only, got %v", analysis.Metrics)
	}
	stats := analysis.Metrics[0]
	if stats.Metric != "power" || stats.Count != 8 {
		t.Fatalf("unexpected stats header: %+v", stats)
	}
	if stats.Min != 2 || stats.Max != 9 {
		t.Fatalf("unexpected min/max: %+v", stats)
	}
	if math.Abs(stats.Mean-5) > 1e-9 || math.Abs(stats.StdDev-2) > 1e-9 {
		t.Fatalf("unexpected mean/stddev: %+v", stats)
	}
	if analysis.Overall.Records != 8 || analysis.Overall.Devices != 1 {
		t.Fatalf("unexpected overall: %+v", analysis.Overall)
	}
}

func TestAnalyzeTelemetry_MetricFilter(t *testing.T) {
	records := []telemetry.TelemetryData{
		sample("device-1", 0, map[string]telemetry.MetricValue{
			"power":   telemetry.Number(10),
			"voltage": telemetry.Number(230),
		}),
	}
	engine := newTestEngine(t, &stubQuerier{records: records})

	analysis, err := engine.AnalyzeTelemetry(context.Background(), telemetry.Query{
		OrganizationID: "org-1",
		Metrics:        []string{"voltage"},
	})
	if err != nil {
		t.Fatalf("AnalyzeTelemetry: %v", err)
	}
	if len(analysis.Metrics) != 1 || analysis.Metrics[0].Metric != "voltage" {
		t.Fatalf("expected voltage only, got %v", analysis.Metrics)
	}
}

func TestAnalyzeTelemetry_Anomalies(t *testing.T) {
	// Ten steady readings and one outlier. The outlier sits sqrt(10) ~ 3.16
	// population stddevs from the mean, past the default threshold of 3.
	records := make([]telemetry.TelemetryData, 0, 11)
	for i := 0; i < 10; i++ {
		records = append(records, sample("device-1", i, map[string]telemetry.MetricValue{
			"power": telemetry.Number(10),
		}))
	}
	records = append(records, sample("device-2", 10, map[string]telemetry.MetricValue{
		"power": telemetry.Number(120),
	}))
	engine := newTestEngine(t, &stubQuerier{records: records})

	analysis, err := engine.AnalyzeTelemetry(context.Background(), telemetry.Query{OrganizationID: "org-1"})
	if err != nil {
		t.Fatalf("AnalyzeTelemetry: %v", err)
	}
	if len(analysis.Anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %v", analysis.Anomalies)
	}
	anomaly := analysis.Anomalies[0]
	if anomaly.Metric != "power" || anomaly.DeviceID != "device-2" || anomaly.Value != 120 {
		t.Fatalf("unexpected anomaly: %+v", anomaly)
	}
	if anomaly.Deviations <= 3 {
		t.Fatalf("expected deviation beyond threshold, got %v", anomaly.Deviations)
	}
}

func TestAnalyzeTelemetry_NoAnomaliesOnFlatSeries(t *testing.T) {
	records := []telemetry.TelemetryData{
		sample("device-1", 0, map[string]telemetry.MetricValue{"power": telemetry.Number(10)}),
		sample("device-1", 1, map[string]telemetry.MetricValue{"power": telemetry.Number(10)}),
	}
	engine := newTestEngine(t, &stubQuerier{records: records})

	analysis, err := engine.AnalyzeTelemetry(context.Background(), telemetry.Query{OrganizationID: "org-1"})
	if err != nil {
		t.Fatalf("AnalyzeTelemetry: %v", err)
	}
	if len(analysis.Anomalies) != 0 {
		t.Fatalf("expected no anomalies on zero stddev, got %v", analysis.Anomalies)
	}
}

func TestAnalyzeTelemetry_Trends(t *testing.T) {
	window := telemetry.TimeRange{Start: windowStart, End: windowStart.Add(10 * time.Minute)}
	var records []telemetry.TelemetryData
	for i := 0; i < 4; i++ {
		records = append(records, sample("device-1", i, map[string]telemetry.MetricValue{
			"power":     telemetry.Number(10),
			"frequency": telemetry.Number(50),
		}))
	}
	for i := 6; i < 10; i++ {
		records = append(records, sample("device-1", i, map[string]telemetry.MetricValue{
			"power":     telemetry.Number(20),
			"frequency": telemetry.Number(50.1),
		}))
	}
	engine := newTestEngine(t, &stubQuerier{records: records})

	analysis, err := engine.AnalyzeTelemetry(context.Background(), telemetry.Query{
		OrganizationID: "org-1",
		Range:          window,
	})
	if err != nil {
		t.Fatalf("AnalyzeTelemetry: %v", err)
	}
	trends := map[string]analytics.MetricTrend{}
	for _, trend := range analysis.Trends {
		trends[trend.Metric] = trend
	}

	power, ok := trends["power"]
	if !ok || power.Direction != analytics.TrendIncreasing {
		t.Fatalf("expected increasing power trend, got %+v", trends)
	}
	if math.Abs(power.ChangeRatio-1.0) > 1e-9 {
		t.Fatalf("expected change ratio 1.0, got %v", power.ChangeRatio)
	}

	frequency, ok := trends["frequency"]
	if !ok || frequency.Direction != analytics.TrendStable {
		t.Fatalf("expected stable frequency trend, got %+v", trends)
	}
}

func TestAnalyzeTelemetry_SingleSampleHasNoTrend(t *testing.T) {
	records := []telemetry.TelemetryData{
		sample("device-1", 0, map[string]telemetry.MetricValue{"power": telemetry.Number(10)}),
	}
	engine := newTestEngine(t, &stubQuerier{records: records})

	analysis, err := engine.AnalyzeTelemetry(context.Background(), telemetry.Query{OrganizationID: "org-1"})
	if err != nil {
		t.Fatalf("AnalyzeTelemetry: %v", err)
	}
	if len(analysis.Trends) != 0 {
		t.Fatalf("expected no trend for a single sample, got %v", analysis.Trends)
	}
}
