package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-sync-agent/internal/connectivity"
	"github.com/noah-isme/sma-sync-agent/internal/geofence"
	"github.com/noah-isme/sma-sync-agent/internal/location"
	"github.com/noah-isme/sma-sync-agent/internal/models"
	"github.com/noah-isme/sma-sync-agent/internal/queue"
	"github.com/noah-isme/sma-sync-agent/internal/remote"
	appErrors "github.com/noah-isme/sma-sync-agent/pkg/errors"
)

// KindAttendance is the queue item kind for attendance records.
const KindAttendance = "attendance"

// LocationResolver looks up geofence reference data.
type LocationResolver interface {
	FindByGroup(ctx context.Context, groupID string) (*models.ClassLocation, error)
	FindByID(ctx context.Context, id string) (*models.ClassLocation, error)
}

// SubmissionConfig tunes the orchestration pipeline.
type SubmissionConfig struct {
	Geofence          geofence.Config
	DefaultLocationID string
	AcquireTimeout    time.Duration
	HighAccuracy      bool
}

// SubmissionService is the single entry point that turns a "submit
// attendance for group G" request into a durable outcome, hiding the
// online/offline branch from callers.
type SubmissionService struct {
	locations LocationResolver
	provider  location.Provider
	monitor   connectivity.Monitor
	remote    remote.Store
	queue     *queue.Queue
	audit     *AuditService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       SubmissionConfig

	now         func() time.Time
	unsubscribe func()
}

// NewSubmissionService wires the orchestrator: it registers the attendance
// sync callback on the queue and subscribes to connectivity transitions so
// a reconnect drains pending items automatically.
func NewSubmissionService(
	locations LocationResolver,
	provider location.Provider,
	monitor connectivity.Monitor,
	store remote.Store,
	q *queue.Queue,
	audit *AuditService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg SubmissionConfig,
) *SubmissionService {
	if provider == nil {
		provider = location.Unavailable()
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = 15 * time.Second
	}

	svc := &SubmissionService{
		locations: locations,
		provider:  provider,
		monitor:   monitor,
		remote:    store,
		queue:     q,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}

	svc.validator.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		return models.AttendanceStatus(fl.Field().String()).Valid()
	})

	q.RegisterCallback(KindAttendance, svc.syncAttendance)

	svc.unsubscribe = monitor.Subscribe(func(online bool) {
		if online && svc.queue.PendingCount() > 0 {
			go svc.queue.Drain(context.Background())
		}
	})

	return svc
}

// Close detaches the connectivity subscription.
func (s *SubmissionService) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// MarkInput is one student's entry in a submit payload.
type MarkInput struct {
	Status   string `json:"status" validate:"required,attendance_status"`
	MarkedAt string `json:"marked_at"`
}

// SubmitRequest is the attendance screen's payload. The device reports its
// GPS fix alongside the marks; when absent the wired provider is asked.
type SubmitRequest struct {
	GroupID string                 `json:"group_id" validate:"required"`
	Date    string                 `json:"date"`
	Marks   map[string]MarkInput   `json:"marks" validate:"required,min=1,dive"`
	Sample  *models.LocationSample `json:"location"`
}

// Submit validates proximity and delivers the record, directly when online
// or through the durable queue otherwise. Exactly one of {direct write,
// enqueue} happens per valid submission; zero per failed validation.
func (s *SubmissionService) Submit(ctx context.Context, req SubmitRequest, claims *models.JWTClaims) (*models.SubmitResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}

	loc, err := s.resolveLocation(ctx, req.GroupID)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		// A configuration error is not retryable by waiting for
		// connectivity, so nothing is queued.
		s.recordRejection(models.ReasonNoLocationConfigured)
		return nil, appErrors.ErrNoLocationConfigured
	}

	sample, err := s.acquireSample(ctx, req.Sample)
	if err != nil {
		return nil, err
	}

	result := geofence.Validate(sample, loc, s.now(), s.cfg.Geofence)
	if !result.Valid {
		s.recordRejection(result.Reason)
		s.logger.Info("geofence rejected submission",
			zap.String("group_id", req.GroupID),
			zap.String("reason", string(result.Reason)),
			zap.Float64("distance_m", result.DistanceMeters))
		return nil, reasonError(result.Reason)
	}

	record := s.buildRecord(req, claims, result)

	if s.monitor.IsOnline() {
		record.SyncedAt = s.now().UnixMilli()
		writeErr := s.remote.Write(ctx, recordPath(record.ID), record)
		if writeErr == nil {
			if s.metrics != nil {
				s.metrics.RecordSubmission("direct")
				s.metrics.RecordDelivery("success")
			}
			if s.audit != nil {
				s.audit.Record(models.AuditEntry{
					RecordKind: KindAttendance,
					RecordID:   record.ID,
					EnqueuedAt: record.SyncedAt,
					SyncedAt:   record.SyncedAt,
					Success:    true,
				})
			}
			s.logger.Info("attendance synced directly",
				zap.String("record_id", record.ID),
				zap.String("group_id", record.GroupID))
			return &models.SubmitResult{Success: true, RecordID: record.ID}, nil
		}
		// Do not lose the record on a flaky write; hand it to the queue.
		s.logger.Warn("direct write failed, queueing",
			zap.String("record_id", record.ID), zap.Error(writeErr))
	}

	record.SubmittedOffline = true
	record.SyncedAt = 0
	payload, err := json.Marshal(record)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "encode attendance record")
	}
	if _, err := s.queue.Enqueue(KindAttendance, record.ID, payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "persist offline submission")
	}
	if s.metrics != nil {
		s.metrics.RecordSubmission("queued")
	}
	s.logger.Info("attendance queued for sync",
		zap.String("record_id", record.ID),
		zap.String("group_id", record.GroupID))
	return &models.SubmitResult{Success: true, RecordID: record.ID, Offline: true}, nil
}

// QueueStatus reports the queue badge counters.
func (s *SubmissionService) QueueStatus() models.QueueStatus {
	return s.queue.Status()
}

// PendingCount reports items awaiting delivery.
func (s *SubmissionService) PendingCount() int {
	return s.queue.PendingCount()
}

// RetryFailed resets abandoned items and kicks a drain.
func (s *SubmissionService) RetryFailed() int {
	return s.queue.RetryFailed()
}

func (s *SubmissionService) resolveLocation(ctx context.Context, groupID string) (*models.ClassLocation, error) {
	loc, err := s.locations.FindByGroup(ctx, groupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "resolve class location")
	}
	if loc != nil || s.cfg.DefaultLocationID == "" {
		return loc, nil
	}

	loc, err = s.locations.FindByID(ctx, s.cfg.DefaultLocationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "resolve default location")
	}
	return loc, nil
}

func (s *SubmissionService) acquireSample(ctx context.Context, reported *models.LocationSample) (models.LocationSample, error) {
	provider := s.provider
	if reported != nil {
		provider = location.FromSample(*reported)
	}

	acquireCtx, cancel := context.WithTimeout(ctx, s.cfg.AcquireTimeout)
	defer cancel()

	sample, err := provider.Current(acquireCtx, location.Options{
		Timeout:      s.cfg.AcquireTimeout,
		HighAccuracy: s.cfg.HighAccuracy,
	})
	if err != nil {
		if appErr := appErrors.FromError(err); appErr.Code == appErrors.ErrLocationUnavailable.Code {
			return models.LocationSample{}, appErr
		}
		return models.LocationSample{}, appErrors.Wrap(err, appErrors.ErrLocationUnavailable.Code,
			appErrors.ErrLocationUnavailable.Status, appErrors.ErrLocationUnavailable.Message)
	}
	return sample, nil
}

func (s *SubmissionService) buildRecord(req SubmitRequest, claims *models.JWTClaims, result models.GeofenceResult) models.AttendanceRecord {
	date := req.Date
	if date == "" {
		date = s.now().Format("2006-01-02")
	}

	marks := make(map[string]models.StudentMark, len(req.Marks))
	for studentID, mark := range req.Marks {
		marks[studentID] = models.StudentMark{
			Status:   models.AttendanceStatus(strings.ToUpper(mark.Status)),
			MarkedAt: mark.MarkedAt,
		}
	}

	teacherID := ""
	if claims != nil {
		teacherID = claims.UserID
	}

	record := models.AttendanceRecord{
		ID:        newRecordID(s.now()),
		GroupID:   req.GroupID,
		TeacherID: teacherID,
		Date:      date,
		Marks:     marks,
		Geofence:  &result,
	}
	record.Tally()
	return record
}

// syncAttendance is the queue callback: an idempotent remote write keyed by
// the record id, followed by a fire-and-forget audit entry.
func (s *SubmissionService) syncAttendance(ctx context.Context, item models.QueueItem) error {
	var record models.AttendanceRecord
	if err := json.Unmarshal(item.Payload, &record); err != nil {
		return fmt.Errorf("decode queued attendance %s: %w", item.ID, err)
	}

	record.SyncedAt = s.now().UnixMilli()
	if err := s.remote.Write(ctx, recordPath(record.ID), record); err != nil {
		if s.metrics != nil {
			s.metrics.RecordDelivery("retry")
		}
		return fmt.Errorf("sync attendance %s: %w", record.ID, err)
	}

	if s.metrics != nil {
		s.metrics.RecordDelivery("success")
	}
	if s.audit != nil {
		s.audit.Record(models.AuditEntry{
			RecordKind:     item.Kind,
			RecordID:       record.ID,
			EnqueuedAt:     item.CreatedAt,
			SyncedAt:       record.SyncedAt,
			QueuedDuration: record.SyncedAt - item.CreatedAt,
			Success:        true,
		})
	}
	return nil
}

func (s *SubmissionService) recordRejection(reason models.GeofenceReason) {
	if s.metrics != nil {
		s.metrics.RecordSubmission("rejected")
		s.metrics.RecordGeofenceRejection(reason)
	}
}

func reasonError(reason models.GeofenceReason) error {
	switch reason {
	case models.ReasonLowAccuracy:
		return appErrors.ErrLowAccuracy
	case models.ReasonStale:
		return appErrors.ErrStale
	case models.ReasonTooFar:
		return appErrors.ErrTooFar
	case models.ReasonNoLocationConfigured:
		return appErrors.ErrNoLocationConfigured
	}
	return appErrors.ErrInternal
}

func recordPath(id string) string {
	return "attendance/" + id
}

// newRecordID builds the client-assigned idempotency key: a type-prefixed
// timestamp plus a random suffix.
func newRecordID(now time.Time) string {
	return fmt.Sprintf("att-%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}
