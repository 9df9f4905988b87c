// Package geofence decides whether a GPS sample proves proximity to a class
// location. Pure functions; no I/O; deterministic given inputs.
package geofence

import (
	"math"
	"time"

	"github.com/noah-isme/sma-sync-agent/internal/models"
)

// earthRadiusMeters is the spherical Earth model radius.
const earthRadiusMeters = 6371000.0

// Config holds the gate thresholds.
type Config struct {
	MinAccuracyMeters   float64
	MaxLocationAge      time.Duration
	DefaultRadiusMeters float64
}

// DefaultConfig returns the production gate thresholds.
func DefaultConfig() Config {
	return Config{
		MinAccuracyMeters:   50,
		MaxLocationAge:      60 * time.Second,
		DefaultRadiusMeters: 500,
	}
}

// Coordinate is a latitude/longitude pair in degrees.
type Coordinate struct {
	Latitude  float64
	Longitude float64
}

// Distance returns the great-circle distance in meters between two
// coordinates using the haversine formula.
func Distance(a, b Coordinate) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon

	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Validate applies the gates in order: configured target, accuracy,
// freshness, proximity. The first failing gate short-circuits. A distance
// exactly equal to the radius is inside the fence.
func Validate(sample models.LocationSample, loc *models.ClassLocation, now time.Time, cfg Config) models.GeofenceResult {
	result := models.GeofenceResult{Sample: sample}

	if loc == nil {
		result.Reason = models.ReasonNoLocationConfigured
		return result
	}

	if sample.AccuracyMeters <= 0 || sample.AccuracyMeters > cfg.MinAccuracyMeters {
		result.Reason = models.ReasonLowAccuracy
		return result
	}

	age := now.UnixMilli() - sample.CapturedAt
	if sample.CapturedAt <= 0 || age > cfg.MaxLocationAge.Milliseconds() {
		result.Reason = models.ReasonStale
		return result
	}

	distance := Distance(
		Coordinate{Latitude: sample.Latitude, Longitude: sample.Longitude},
		Coordinate{Latitude: loc.Latitude, Longitude: loc.Longitude},
	)
	result.DistanceMeters = distance

	radius := cfg.DefaultRadiusMeters
	if loc.RadiusMeters != nil && *loc.RadiusMeters > 0 {
		radius = *loc.RadiusMeters
	}
	if distance > radius {
		result.Reason = models.ReasonTooFar
		return result
	}

	result.Valid = true
	result.Reason = models.ReasonOK
	return result
}
