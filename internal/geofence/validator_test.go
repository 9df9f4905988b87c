package geofence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-sync-agent/internal/models"
)

var schoolYard = models.ClassLocation{
	ID:        "loc-1",
	Name:      "Main Yard",
	Latitude:  -6.200000,
	Longitude: 106.816666,
}

func freshSample(now time.Time, lat, lon, accuracy float64) models.LocationSample {
	return models.LocationSample{
		Latitude:       lat,
		Longitude:      lon,
		AccuracyMeters: accuracy,
		CapturedAt:     now.Add(-5 * time.Second).UnixMilli(),
	}
}

func TestDistanceSymmetry(t *testing.T) {
	pairs := [][2]Coordinate{
		{{Latitude: -6.2, Longitude: 106.816666}, {Latitude: -6.1751, Longitude: 106.8272}},
		{{Latitude: 0, Longitude: 0}, {Latitude: 0, Longitude: 1}},
		{{Latitude: 51.5007, Longitude: -0.1246}, {Latitude: 48.8584, Longitude: 2.2945}},
		{{Latitude: -33.8688, Longitude: 151.2093}, {Latitude: 35.6764, Longitude: 139.6500}},
	}
	for _, pair := range pairs {
		assert.Equal(t, Distance(pair[0], pair[1]), Distance(pair[1], pair[0]))
	}
}

func TestDistanceIdentity(t *testing.T) {
	p := Coordinate{Latitude: -6.2, Longitude: 106.816666}
	assert.Zero(t, Distance(p, p))
}

func TestDistanceTriangleInequality(t *testing.T) {
	a := Coordinate{Latitude: -6.2, Longitude: 106.81}
	b := Coordinate{Latitude: -6.21, Longitude: 106.83}
	c := Coordinate{Latitude: -6.19, Longitude: 106.85}
	assert.LessOrEqual(t, Distance(a, c), Distance(a, b)+Distance(b, c)+1e-9)
}

func TestDistanceKnownValue(t *testing.T) {
	// One degree of longitude on the equator on a 6371 km sphere.
	d := Distance(Coordinate{Latitude: 0, Longitude: 0}, Coordinate{Latitude: 0, Longitude: 1})
	assert.InDelta(t, 111194.9, d, 1.0)
}

func TestValidateAccepts(t *testing.T) {
	now := time.Now()
	sample := freshSample(now, schoolYard.Latitude+0.0009, schoolYard.Longitude, 20)

	result := Validate(sample, &schoolYard, now, DefaultConfig())

	require.True(t, result.Valid)
	assert.Equal(t, models.ReasonOK, result.Reason)
	assert.InDelta(t, 100, result.DistanceMeters, 5)
	assert.Equal(t, sample, result.Sample)
}

func TestValidateLowAccuracy(t *testing.T) {
	now := time.Now()
	sample := freshSample(now, schoolYard.Latitude, schoolYard.Longitude, 80)

	result := Validate(sample, &schoolYard, now, DefaultConfig())

	assert.False(t, result.Valid)
	assert.Equal(t, models.ReasonLowAccuracy, result.Reason)
}

func TestValidateMissingAccuracyFailsAccuracyGate(t *testing.T) {
	now := time.Now()
	sample := freshSample(now, schoolYard.Latitude, schoolYard.Longitude, 0)

	result := Validate(sample, &schoolYard, now, DefaultConfig())

	assert.Equal(t, models.ReasonLowAccuracy, result.Reason)
}

func TestValidateStale(t *testing.T) {
	now := time.Now()
	sample := models.LocationSample{
		Latitude:       schoolYard.Latitude,
		Longitude:      schoolYard.Longitude,
		AccuracyMeters: 20,
		CapturedAt:     now.Add(-2 * time.Minute).UnixMilli(),
	}

	result := Validate(sample, &schoolYard, now, DefaultConfig())

	assert.False(t, result.Valid)
	assert.Equal(t, models.ReasonStale, result.Reason)
}

func TestValidateTooFar(t *testing.T) {
	now := time.Now()
	sample := freshSample(now, schoolYard.Latitude+0.1, schoolYard.Longitude, 20)

	result := Validate(sample, &schoolYard, now, DefaultConfig())

	assert.False(t, result.Valid)
	assert.Equal(t, models.ReasonTooFar, result.Reason)
	assert.Greater(t, result.DistanceMeters, 500.0)
}

func TestValidateNoLocationConfigured(t *testing.T) {
	now := time.Now()
	sample := freshSample(now, schoolYard.Latitude, schoolYard.Longitude, 20)

	result := Validate(sample, nil, now, DefaultConfig())

	assert.False(t, result.Valid)
	assert.Equal(t, models.ReasonNoLocationConfigured, result.Reason)
}

// A sample that is both stale and far away must fail the freshness gate:
// accuracy and freshness are checked before proximity.
func TestValidateGateOrdering(t *testing.T) {
	now := time.Now()
	sample := models.LocationSample{
		Latitude:       schoolYard.Latitude + 0.09, // ~10 km away
		Longitude:      schoolYard.Longitude,
		AccuracyMeters: 30,
		CapturedAt:     now.Add(-120 * time.Second).UnixMilli(),
	}

	result := Validate(sample, &schoolYard, now, DefaultConfig())

	assert.Equal(t, models.ReasonStale, result.Reason)
}

// A distance exactly on the radius is inside the fence.
func TestValidateInclusiveRadiusBoundary(t *testing.T) {
	now := time.Now()
	sample := freshSample(now, schoolYard.Latitude+0.0045, schoolYard.Longitude, 20)

	exact := Distance(
		Coordinate{Latitude: sample.Latitude, Longitude: sample.Longitude},
		Coordinate{Latitude: schoolYard.Latitude, Longitude: schoolYard.Longitude},
	)
	loc := schoolYard
	loc.RadiusMeters = &exact

	result := Validate(sample, &loc, now, DefaultConfig())

	require.True(t, result.Valid)
	assert.Equal(t, exact, result.DistanceMeters)
}

func TestValidateClassRadiusOverride(t *testing.T) {
	now := time.Now()
	sample := freshSample(now, schoolYard.Latitude+0.0018, schoolYard.Longitude, 20) // ~200 m

	narrow := 100.0
	loc := schoolYard
	loc.RadiusMeters = &narrow

	result := Validate(sample, &loc, now, DefaultConfig())

	assert.Equal(t, models.ReasonTooFar, result.Reason)
}
