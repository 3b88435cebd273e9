package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	analytics "gridflow/internal/analytics/domain"
	"gridflow/internal/observability/metrics"
	telemetry "gridflow/internal/telemetry/domain"
)

const (
	defaultAnomalyThreshold = 3.0
	defaultTrendTolerance   = 0.05
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Engine computes statistics, anomalies and trends over telemetry matching a
// query. Retrieval is delegated to the time-series querier port; the engine
// itself is CPU-bound and safe for concurrent use.
type Engine struct {
	querier telemetry.Querier
	logger  *log.Logger
	clock   Clock

	anomalyThreshold float64
	trendTolerance   float64
}

// EngineOption customizes the engine.
type EngineOption func(*Engine)

// WithAnomalyThreshold sets how many standard deviations from the mean a
// value must lie to be flagged anomalous.
func WithAnomalyThreshold(stddevs float64) EngineOption {
	return func(e *Engine) {
		if stddevs > 0 {
			e.anomalyThreshold = stddevs
		}
	}
}

// WithTrendTolerance sets the relative half-to-half change below which a
// metric is classified STABLE.
func WithTrendTolerance(tolerance float64) EngineOption {
	return func(e *Engine) {
		if tolerance > 0 {
			e.trendTolerance = tolerance
		}
	}
}

// WithClock assigns a clock.
func WithClock(clock Clock) EngineOption {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// NewEngine constructs an analytics engine.
func NewEngine(querier telemetry.Querier, logger *log.Logger, opts ...EngineOption) (*Engine, error) {
	if querier == nil {
		return nil, errors.New("analytics: nil querier")
	}
	if logger == nil {
		logger = log.Default()
	}
	engine := &Engine{
		querier:          querier,
		logger:           logger,
		clock:            systemClock{},
		anomalyThreshold: defaultAnomalyThreshold,
		trendTolerance:   defaultTrendTolerance,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine, nil
}

// AnalyzeTelemetry runs the full analysis for a query. An empty matching set
// yields a well-formed empty analysis, never an error.
func (e *Engine) AnalyzeTelemetry(ctx context.Context, query telemetry.Query) (*analytics.Analysis, error) {
	started := time.Now()
	analysis, err := e.analyze(ctx, query)
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.ObserveAnalysis("telemetry", result, time.Since(started))
	return analysis, err
}

func (e *Engine) analyze(ctx context.Context, query telemetry.Query) (*analytics.Analysis, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	records, err := e.querier.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("analytics: query telemetry: %w", err)
	}

	analysis := &analytics.Analysis{
		OrganizationID: query.OrganizationID,
		AnalyzedAt:     e.clock.Now().UTC(),
		Metrics:        []analytics.MetricStatistics{},
		Anomalies:      []analytics.Anomaly{},
		Trends:         []analytics.MetricTrend{},
		Overall: analytics.OverallStatistics{
			Records: len(records),
			Devices: countDevices(records),
			Range:   query.Range,
		},
	}
	if len(records) == 0 {
		return analysis, nil
	}

	samplesByMetric := collectSamples(records, query.Metrics)
	names := make([]string, 0, len(samplesByMetric))
	for name := range samplesByMetric {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		samples := samplesByMetric[name]
		stats := analytics.Summarize(name, samples)
		analysis.Metrics = append(analysis.Metrics, stats)
		analysis.Anomalies = append(analysis.Anomalies, e.detectAnomalies(name, samples, stats)...)
		if trend, ok := e.detectTrend(name, samples, query.Range); ok {
			analysis.Trends = append(analysis.Trends, trend)
		}
	}
	return analysis, nil
}

// collectSamples extracts numeric observations per metric. When the query
// names no metrics, every numeric metric present in the records is analyzed.
func collectSamples(records []telemetry.TelemetryData, requested []string) map[string][]analytics.Sample {
	wanted := make(map[string]bool, len(requested))
	for _, name := range requested {
		wanted[name] = true
	}

	samples := make(map[string][]analytics.Sample)
	for _, record := range records {
		for name, value := range record.Metrics {
			if len(wanted) > 0 && !wanted[name] {
				continue
			}
			number, ok := value.Number()
			if !ok {
				continue
			}
			samples[name] = append(samples[name], analytics.Sample{
				DeviceID:  record.DeviceID,
				Timestamp: record.Timestamp,
				Value:     number,
			})
		}
	}
	for name := range samples {
		list := samples[name]
		sort.Slice(list, func(i, j int) bool { return list[i].Timestamp.Before(list[j].Timestamp) })
		samples[name] = list
	}
	return samples
}

func (e *Engine) detectAnomalies(metric string, samples []analytics.Sample, stats analytics.MetricStatistics) []analytics.Anomaly {
	if stats.StdDev == 0 {
		return nil
	}
	var anomalies []analytics.Anomaly
	for _, s := range samples {
		deviations := math.Abs(s.Value-stats.Mean) / stats.StdDev
		if deviations > e.anomalyThreshold {
			anomalies = append(anomalies, analytics.Anomaly{
				Metric:     metric,
				DeviceID:   s.DeviceID,
				Timestamp:  s.Timestamp,
				Value:      s.Value,
				Deviations: deviations,
			})
		}
	}
	return anomalies
}

// detectTrend compares the first and second half of the window. Metrics with
// an empty half carry no trend.
func (e *Engine) detectTrend(metric string, samples []analytics.Sample, window telemetry.TimeRange) (analytics.MetricTrend, bool) {
	if len(samples) < 2 {
		return analytics.MetricTrend{}, false
	}

	midpoint := windowMidpoint(samples, window)
	var first, second []analytics.Sample
	for _, s := range samples {
		if s.Timestamp.Before(midpoint) {
			first = append(first, s)
		} else {
			second = append(second, s)
		}
	}
	if len(first) == 0 || len(second) == 0 {
		return analytics.MetricTrend{}, false
	}

	firstMean := analytics.Mean(first)
	secondMean := analytics.Mean(second)
	trend := analytics.MetricTrend{
		Metric:         metric,
		FirstHalfMean:  firstMean,
		SecondHalfMean: secondMean,
	}
	switch {
	case firstMean == 0:
		trend.ChangeRatio = math.Abs(secondMean)
	default:
		trend.ChangeRatio = math.Abs(secondMean-firstMean) / math.Abs(firstMean)
	}
	switch {
	case trend.ChangeRatio < e.trendTolerance:
		trend.Direction = analytics.TrendStable
	case secondMean > firstMean:
		trend.Direction = analytics.TrendIncreasing
	default:
		trend.Direction = analytics.TrendDecreasing
	}
	return trend, true
}

// windowMidpoint uses the query range when both bounds are set, otherwise
// the observed sample span.
func windowMidpoint(samples []analytics.Sample, window telemetry.TimeRange) time.Time {
	start, end := window.Start, window.End
	if start.IsZero() || end.IsZero() {
		start = samples[0].Timestamp
		end = samples[len(samples)-1].Timestamp
	}
	return start.Add(end.Sub(start) / 2)
}

func countDevices(records []telemetry.TelemetryData) int {
	devices := make(map[string]struct{}, len(records))
	for _, record := range records {
		devices[record.DeviceID] = struct{}{}
	}
	return len(devices)
}
