// Package spatial holds the geospatial analysis model for telemetry.
package spatial

import (
	"math"
	"sort"
	"time"

	telemetry "gridflow/internal/telemetry/domain"
)

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between two points in
// kilometers.
func HaversineKm(a, b telemetry.Location) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Point is one located telemetry observation.
type Point struct {
	DeviceID  string
	Timestamp time.Time
	Location  telemetry.Location
}

// Cluster is a density group of mutually nearby points.
type Cluster struct {
	ID          int
	Centroid    telemetry.Location
	Members     int
	Devices     []string
	AnomalyRate float64
}

// Hotspot is a cluster with elevated activity or anomaly density relative to
// its peers.
type Hotspot struct {
	ClusterID   int
	Centroid    telemetry.Location
	Members     int
	AnomalyRate float64
}

// DistributionBucket is the point density of one quadrant around the query
// center.
type DistributionBucket struct {
	Quadrant      string
	Points        int
	DensityPerKm2 float64
}

// Proximity is the nearest-neighbor distance for one device.
type Proximity struct {
	DeviceID        string
	NearestDeviceID string
	DistanceKm      float64
}

// Result is the full output of one spatial analysis. Produced once, never
// mutated.
type Result struct {
	OrganizationID string
	Center         telemetry.Location
	RadiusKm       float64
	AnalyzedAt     time.Time
	Clusters       []Cluster
	Hotspots       []Hotspot
	Distribution   []DistributionBucket
	Proximity      []Proximity
	MeanNearestKm  float64
}

// ClusterPoints groups points so that any two points within maxDistanceKm of
// each other share a cluster (single-linkage over the distance graph).
// Cluster ids are assigned in first-seen point order.
func ClusterPoints(points []Point, maxDistanceKm float64) [][]Point {
	if len(points) == 0 {
		return nil
	}
	assigned := make([]bool, len(points))
	var clusters [][]Point
	for i := range points {
		if assigned[i] {
			continue
		}
		group := []int{i}
		assigned[i] = true
		for cursor := 0; cursor < len(group); cursor++ {
			current := group[cursor]
			for j := range points {
				if assigned[j] {
					continue
				}
				if HaversineKm(points[current].Location, points[j].Location) <= maxDistanceKm {
					assigned[j] = true
					group = append(group, j)
				}
			}
		}
		members := make([]Point, len(group))
		for k, idx := range group {
			members[k] = points[idx]
		}
		clusters = append(clusters, members)
	}
	return clusters
}

// Centroid returns the arithmetic mean location of the points.
func Centroid(points []Point) telemetry.Location {
	if len(points) == 0 {
		return telemetry.Location{}
	}
	var lat, lon float64
	for _, p := range points {
		lat += p.Location.Latitude
		lon += p.Location.Longitude
	}
	n := float64(len(points))
	return telemetry.Location{Latitude: lat / n, Longitude: lon / n}
}

// Percentile returns the value at rank p (0..1] of the sorted sample, zero
// for an empty sample.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
