package models

import "strings"

// AttendanceStatus enumerates per-student marks.
type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "PRESENT"
	StatusLate    AttendanceStatus = "LATE"
	StatusAbsent  AttendanceStatus = "ABSENT"
)

// Valid reports whether the status is one of the known values.
func (s AttendanceStatus) Valid() bool {
	switch AttendanceStatus(strings.ToUpper(string(s))) {
	case StatusPresent, StatusLate, StatusAbsent:
		return true
	}
	return false
}

// StudentMark is one student's entry in a submission.
type StudentMark struct {
	Status   AttendanceStatus `json:"status"`
	MarkedAt string           `json:"marked_at,omitempty"`
}

// AttendanceRecord is the durable unit of a submission. The ID is generated
// client-side before the first delivery attempt and doubles as the dedup key
// at the remote store, so redelivery never creates a duplicate. Immutable
// after creation except for SyncedAt, set once the remote write succeeds.
type AttendanceRecord struct {
	ID               string                 `json:"id"`
	GroupID          string                 `json:"group_id"`
	TeacherID        string                 `json:"teacher_id"`
	Date             string                 `json:"date"`
	Marks            map[string]StudentMark `json:"marks"`
	CountPresent     int                    `json:"count_present"`
	CountLate        int                    `json:"count_late"`
	CountAbsent      int                    `json:"count_absent"`
	Geofence         *GeofenceResult        `json:"geofence,omitempty"`
	SubmittedOffline bool                   `json:"submitted_offline"`
	SyncedAt         int64                  `json:"synced_at,omitempty"`
}

// Tally recomputes the per-status counters from the marks map.
func (r *AttendanceRecord) Tally() {
	r.CountPresent, r.CountLate, r.CountAbsent = 0, 0, 0
	for _, mark := range r.Marks {
		switch AttendanceStatus(strings.ToUpper(string(mark.Status))) {
		case StatusPresent:
			r.CountPresent++
		case StatusLate:
			r.CountLate++
		case StatusAbsent:
			r.CountAbsent++
		}
	}
}

// SubmitResult is returned to the attendance screen after a submission.
type SubmitResult struct {
	Success  bool   `json:"success"`
	RecordID string `json:"record_id,omitempty"`
	Offline  bool   `json:"offline"`
	Reason   string `json:"reason,omitempty"`
}

// AuditEntry records one completed sync for later inspection. Written
// fire-and-forget; never blocks the primary outcome.
type AuditEntry struct {
	RecordKind     string `json:"record_kind"`
	RecordID       string `json:"record_id"`
	EnqueuedAt     int64  `json:"enqueued_at"`
	SyncedAt       int64  `json:"synced_at"`
	QueuedDuration int64  `json:"queued_duration_ms"`
	Success        bool   `json:"success"`
}
