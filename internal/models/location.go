package models

// LocationSample is a single GPS fix. Ephemeral; produced fresh per
// validation attempt and never persisted on its own.
type LocationSample struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	AccuracyMeters float64 `json:"accuracy_meters"`
	CapturedAt     int64   `json:"captured_at"`
}

// ClassLocation is the geofence target for a group. RadiusMeters of nil
// means the configured default radius applies.
type ClassLocation struct {
	ID           string   `json:"id" db:"id"`
	Name         string   `json:"name" db:"name"`
	Latitude     float64  `json:"latitude" db:"latitude"`
	Longitude    float64  `json:"longitude" db:"longitude"`
	RadiusMeters *float64 `json:"radius_meters,omitempty" db:"radius_meters"`
}

// GeofenceReason classifies a validation outcome.
type GeofenceReason string

const (
	ReasonOK                   GeofenceReason = "OK"
	ReasonLowAccuracy          GeofenceReason = "LOW_ACCURACY"
	ReasonStale                GeofenceReason = "STALE"
	ReasonTooFar               GeofenceReason = "TOO_FAR"
	ReasonNoLocationConfigured GeofenceReason = "NO_LOCATION_CONFIGURED"
)

// GeofenceResult is produced once per validation call and attached to the
// attendance record for audit.
type GeofenceResult struct {
	Valid          bool           `json:"valid"`
	DistanceMeters float64        `json:"distance_meters"`
	Reason         GeofenceReason `json:"reason"`
	Sample         LocationSample `json:"sample"`
}
