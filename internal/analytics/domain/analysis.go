// Package analytics holds the statistical analysis model for telemetry.
package analytics

import (
	"math"
	"time"

	telemetry "gridflow/internal/telemetry/domain"
)

// Trend classifies how a metric moved across the query window.
type Trend string

const (
	TrendIncreasing Trend = "INCREASING"
	TrendDecreasing Trend = "DECREASING"
	TrendStable     Trend = "STABLE"
)

// MetricStatistics summarizes one metric over the matching records.
type MetricStatistics struct {
	Metric string
	Count  int
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
}

// Anomaly is a single value lying further from the metric mean than the
// configured number of standard deviations.
type Anomaly struct {
	Metric     string
	DeviceID   string
	Timestamp  time.Time
	Value      float64
	Deviations float64
}

// MetricTrend compares first-half and second-half means of the window.
type MetricTrend struct {
	Metric         string
	Direction      Trend
	FirstHalfMean  float64
	SecondHalfMean float64
	ChangeRatio    float64
}

// OverallStatistics describes the matching record set as a whole.
type OverallStatistics struct {
	Records int
	Devices int
	Range   telemetry.TimeRange
}

// Analysis is the full result of one analyzeTelemetry call. Produced once,
// never mutated.
type Analysis struct {
	OrganizationID string
	AnalyzedAt     time.Time
	Metrics        []MetricStatistics
	Anomalies      []Anomaly
	Trends         []MetricTrend
	Overall        OverallStatistics
}

// Sample is one numeric observation of a metric.
type Sample struct {
	DeviceID  string
	Timestamp time.Time
	Value     float64
}

// Mean returns the arithmetic mean of the sample values, zero for an empty
// slice.
func Mean(samples []Sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range samples {
		sum += s.Value
	}
	return sum / float64(len(samples))
}

// StdDev returns the population standard deviation around mean, zero for
// fewer than two samples.
func StdDev(samples []Sample, mean float64) float64 {
	if len(samples) < 2 {
		return 0
	}
	sumSq := 0.0
	for _, s := range samples {
		d := s.Value - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(samples)))
}

// Summarize computes the per-metric statistics for a sample set.
func Summarize(metric string, samples []Sample) MetricStatistics {
	stats := MetricStatistics{Metric: metric, Count: len(samples)}
	if len(samples) == 0 {
		return stats
	}
	stats.Min = samples[0].Value
	stats.Max = samples[0].Value
	for _, s := range samples[1:] {
		if s.Value < stats.Min {
			stats.Min = s.Value
		}
		if s.Value > stats.Max {
			stats.Max = s.Value
		}
	}
	stats.Mean = Mean(samples)
	stats.StdDev = StdDev(samples, stats.Mean)
	return stats
}
