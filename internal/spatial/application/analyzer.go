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
	spatial "gridflow/internal/spatial/domain"
	telemetry "gridflow/internal/telemetry/domain"
)

const (
	defaultClusterDistanceKm = 1.0
	defaultHotspotPercentile = 0.9
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// AnomalySource cross-references anomalies for cluster anomaly rates. The
// analytics engine satisfies it.
type AnomalySource interface {
	AnalyzeTelemetry(ctx context.Context, query telemetry.Query) (*analytics.Analysis, error)
}

// Analyzer performs geospatial analysis of telemetry around a center point.
// Retrieval is delegated to the time-series querier port; the analyzer itself
// is CPU-bound and safe for concurrent use.
type Analyzer struct {
	querier   telemetry.Querier
	anomalies AnomalySource
	logger    *log.Logger
	clock     Clock

	clusterDistanceKm float64
	hotspotPercentile float64
}

// AnalyzerOption customizes the analyzer.
type AnalyzerOption func(*Analyzer)

// WithAnomalySource wires an anomaly source for cluster anomaly rates.
func WithAnomalySource(source AnomalySource) AnalyzerOption {
	return func(a *Analyzer) { a.anomalies = source }
}

// WithClusterDistance sets the intra-cluster distance in kilometers.
func WithClusterDistance(km float64) AnalyzerOption {
	return func(a *Analyzer) {
		if km > 0 {
			a.clusterDistanceKm = km
		}
	}
}

// WithHotspotPercentile sets the percentile of member count or anomaly rate a
// cluster must reach to be flagged a hotspot.
func WithHotspotPercentile(p float64) AnalyzerOption {
	return func(a *Analyzer) {
		if p > 0 && p <= 1 {
			a.hotspotPercentile = p
		}
	}
}

// WithClock assigns a clock.
func WithClock(clock Clock) AnalyzerOption {
	return func(a *Analyzer) {
		if clock != nil {
			a.clock = clock
		}
	}
}

// NewAnalyzer constructs a spatial analyzer.
func NewAnalyzer(querier telemetry.Querier, logger *log.Logger, opts ...AnalyzerOption) (*Analyzer, error) {
	if querier == nil {
		return nil, errors.New("spatial: nil querier")
	}
	if logger == nil {
		logger = log.Default()
	}
	analyzer := &Analyzer{
		querier:           querier,
		logger:            logger,
		clock:             systemClock{},
		clusterDistanceKm: defaultClusterDistanceKm,
		hotspotPercentile: defaultHotspotPercentile,
	}
	for _, opt := range opts {
		opt(analyzer)
	}
	return analyzer, nil
}

// AnalyzeSpatialTelemetry analyzes telemetry within the query radius around
// the query center. A radius excluding all points yields an empty result,
// never an error.
func (a *Analyzer) AnalyzeSpatialTelemetry(ctx context.Context, query telemetry.Query) (*spatial.Result, error) {
	started := time.Now()
	result, err := a.analyze(ctx, query)
	outcome := metrics.ResultSuccess
	if err != nil {
		outcome = metrics.ResultError
	}
	metrics.ObserveAnalysis("spatial", outcome, time.Since(started))
	return result, err
}

func (a *Analyzer) analyze(ctx context.Context, query telemetry.Query) (*spatial.Result, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	if query.Center == nil {
		return nil, errors.New("spatial: query has no center")
	}
	if query.RadiusKm <= 0 {
		return nil, errors.New("spatial: query has no radius")
	}

	records, err := a.querier.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("spatial: query telemetry: %w", err)
	}

	result := &spatial.Result{
		OrganizationID: query.OrganizationID,
		Center:         *query.Center,
		RadiusKm:       query.RadiusKm,
		AnalyzedAt:     a.clock.Now().UTC(),
		Clusters:       []spatial.Cluster{},
		Hotspots:       []spatial.Hotspot{},
		Distribution:   []spatial.DistributionBucket{},
		Proximity:      []spatial.Proximity{},
	}

	points := withinRadius(records, *query.Center, query.RadiusKm)
	if len(points) == 0 {
		return result, nil
	}

	anomalous := a.anomalousObservations(ctx, query)
	result.Clusters = a.buildClusters(points, anomalous)
	result.Hotspots = a.flagHotspots(result.Clusters)
	result.Distribution = distribution(points, *query.Center, query.RadiusKm)
	result.Proximity, result.MeanNearestKm = nearestNeighbors(points)
	return result, nil
}

// withinRadius keeps located records inside the great-circle radius. Records
// without a location never participate in spatial analysis.
func withinRadius(records []telemetry.TelemetryData, center telemetry.Location, radiusKm float64) []spatial.Point {
	var points []spatial.Point
	for _, record := range records {
		if record.Location == nil {
			continue
		}
		if spatial.HaversineKm(center, *record.Location) > radiusKm {
			continue
		}
		points = append(points, spatial.Point{
			DeviceID:  record.DeviceID,
			Timestamp: record.Timestamp,
			Location:  *record.Location,
		})
	}
	return points
}

type observationKey struct {
	deviceID  string
	timestamp time.Time
}

// anomalousObservations cross-references the analytics engine when wired.
// Failures degrade to zero anomaly rates rather than failing the analysis.
func (a *Analyzer) anomalousObservations(ctx context.Context, query telemetry.Query) map[observationKey]bool {
	if a.anomalies == nil {
		return nil
	}
	analysis, err := a.anomalies.AnalyzeTelemetry(ctx, query)
	if err != nil {
		a.logger.Printf("spatial: anomaly cross-reference: %v", err)
		return nil
	}
	anomalous := make(map[observationKey]bool, len(analysis.Anomalies))
	for _, anomaly := range analysis.Anomalies {
		anomalous[observationKey{deviceID: anomaly.DeviceID, timestamp: anomaly.Timestamp}] = true
	}
	return anomalous
}

func (a *Analyzer) buildClusters(points []spatial.Point, anomalous map[observationKey]bool) []spatial.Cluster {
	groups := spatial.ClusterPoints(points, a.clusterDistanceKm)
	clusters := make([]spatial.Cluster, 0, len(groups))
	for i, group := range groups {
		cluster := spatial.Cluster{
			ID:       i + 1,
			Centroid: spatial.Centroid(group),
			Members:  len(group),
		}
		devices := make(map[string]struct{}, len(group))
		flagged := 0
		for _, point := range group {
			devices[point.DeviceID] = struct{}{}
			if anomalous[observationKey{deviceID: point.DeviceID, timestamp: point.Timestamp}] {
				flagged++
			}
		}
		for device := range devices {
			cluster.Devices = append(cluster.Devices, device)
		}
		sort.Strings(cluster.Devices)
		if len(group) > 0 {
			cluster.AnomalyRate = float64(flagged) / float64(len(group))
		}
		clusters = append(clusters, cluster)
	}
	return clusters
}

// flagHotspots marks clusters whose member count or anomaly rate reaches the
// configured percentile of all clusters.
func (a *Analyzer) flagHotspots(clusters []spatial.Cluster) []spatial.Hotspot {
	if len(clusters) == 0 {
		return []spatial.Hotspot{}
	}
	counts := make([]float64, len(clusters))
	rates := make([]float64, len(clusters))
	for i, cluster := range clusters {
		counts[i] = float64(cluster.Members)
		rates[i] = cluster.AnomalyRate
	}
	countCutoff := spatial.Percentile(counts, a.hotspotPercentile)
	rateCutoff := spatial.Percentile(rates, a.hotspotPercentile)

	hotspots := []spatial.Hotspot{}
	for _, cluster := range clusters {
		byCount := float64(cluster.Members) >= countCutoff
		byRate := rateCutoff > 0 && cluster.AnomalyRate >= rateCutoff
		if !byCount && !byRate {
			continue
		}
		hotspots = append(hotspots, spatial.Hotspot{
			ClusterID:   cluster.ID,
			Centroid:    cluster.Centroid,
			Members:     cluster.Members,
			AnomalyRate: cluster.AnomalyRate,
		})
	}
	return hotspots
}

var quadrants = []string{"NE", "NW", "SE", "SW"}

// distribution buckets points into the four quadrants around the center and
// reports density per square kilometer of each quarter disc.
func distribution(points []spatial.Point, center telemetry.Location, radiusKm float64) []spatial.DistributionBucket {
	counts := make(map[string]int, 4)
	for _, point := range points {
		north := point.Location.Latitude >= center.Latitude
		east := point.Location.Longitude >= center.Longitude
		switch {
		case north && east:
			counts["NE"]++
		case north && !east:
			counts["NW"]++
		case !north && east:
			counts["SE"]++
		default:
			counts["SW"]++
		}
	}

	quarterArea := math.Pi * radiusKm * radiusKm / 4
	buckets := make([]spatial.DistributionBucket, 0, 4)
	for _, quadrant := range quadrants {
		bucket := spatial.DistributionBucket{Quadrant: quadrant, Points: counts[quadrant]}
		if quarterArea > 0 {
			bucket.DensityPerKm2 = float64(counts[quadrant]) / quarterArea
		}
		buckets = append(buckets, bucket)
	}
	return buckets
}

// nearestNeighbors computes, per device, the distance to the closest other
// device using each device's most recent point.
func nearestNeighbors(points []spatial.Point) ([]spatial.Proximity, float64) {
	latest := make(map[string]spatial.Point)
	for _, point := range points {
		current, ok := latest[point.DeviceID]
		if !ok || point.Timestamp.After(current.Timestamp) {
			latest[point.DeviceID] = point
		}
	}
	if len(latest) < 2 {
		return []spatial.Proximity{}, 0
	}

	devices := make([]string, 0, len(latest))
	for device := range latest {
		devices = append(devices, device)
	}
	sort.Strings(devices)

	proximity := make([]spatial.Proximity, 0, len(devices))
	total := 0.0
	for _, device := range devices {
		origin := latest[device]
		nearest := ""
		nearestKm := math.MaxFloat64
		for _, other := range devices {
			if other == device {
				continue
			}
			distance := spatial.HaversineKm(origin.Location, latest[other].Location)
			if distance < nearestKm {
				nearestKm = distance
				nearest = other
			}
		}
		proximity = append(proximity, spatial.Proximity{
			DeviceID:        device,
			NearestDeviceID: nearest,
			DistanceKm:      nearestKm,
		})
		total += nearestKm
	}
	return proximity, total / float64(len(proximity))
}
