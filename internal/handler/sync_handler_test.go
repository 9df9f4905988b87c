package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-sync-agent/internal/middleware"
	"github.com/noah-isme/sma-sync-agent/internal/models"
	"github.com/noah-isme/sma-sync-agent/internal/service"
	appErrors "github.com/noah-isme/sma-sync-agent/pkg/errors"
	"github.com/noah-isme/sma-sync-agent/pkg/response"
)

type syncServiceStub struct {
	status models.QueueStatus
	reset  int
}

func (s *syncServiceStub) QueueStatus() models.QueueStatus { return s.status }
func (s *syncServiceStub) PendingCount() int               { return s.status.Pending }
func (s *syncServiceStub) RetryFailed() int                { return s.reset }

type submissionServiceStub struct {
	result *models.SubmitResult
	err    error
	gotReq service.SubmitRequest
}

func (s *submissionServiceStub) Submit(ctx context.Context, req service.SubmitRequest, claims *models.JWTClaims) (*models.SubmitResult, error) {
	s.gotReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func authedContext(w *httptest.ResponseRecorder, method, target string, body string) (*gin.Context, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	c, engine := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher})
	return c, engine
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

func TestSyncHandlerStatus(t *testing.T) {
	stub := &syncServiceStub{status: models.QueueStatus{Total: 3, Pending: 2, Failed: 1}}
	h := NewSyncHandler(stub)

	w := httptest.NewRecorder()
	c, _ := authedContext(w, http.MethodGet, "/sync/status", "")
	h.Status(c)

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.EqualValues(t, 3, data["total"])
	assert.EqualValues(t, 2, data["pending"])
	assert.EqualValues(t, 1, data["failed"])
}

func TestSyncHandlerPending(t *testing.T) {
	stub := &syncServiceStub{status: models.QueueStatus{Pending: 4}}
	h := NewSyncHandler(stub)

	w := httptest.NewRecorder()
	c, _ := authedContext(w, http.MethodGet, "/sync/pending", "")
	h.Pending(c)

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.EqualValues(t, 4, data["count"])
}

func TestSyncHandlerRetry(t *testing.T) {
	stub := &syncServiceStub{reset: 2}
	h := NewSyncHandler(stub)

	w := httptest.NewRecorder()
	c, _ := authedContext(w, http.MethodPost, "/sync/retry", "")
	h.Retry(c)

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.EqualValues(t, 2, data["reset"])
}

func TestSyncHandlerRequiresAuth(t *testing.T) {
	h := NewSyncHandler(&syncServiceStub{})

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/sync/status", nil)
	h.Status(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAttendanceHandlerSubmit(t *testing.T) {
	stub := &submissionServiceStub{result: &models.SubmitResult{Success: true, RecordID: "att-1", Offline: true}}
	h := NewAttendanceHandler(stub)

	body := `{"group_id":"grp-1","marks":{"stu-1":{"status":"PRESENT"}},"location":{"latitude":-6.2,"longitude":106.81,"accuracy_meters":20,"captured_at":1700000000000}}`
	w := httptest.NewRecorder()
	c, _ := authedContext(w, http.MethodPost, "/attendance/submit", body)
	h.Submit(c)

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, true, data["success"])
	assert.Equal(t, true, data["offline"])
	assert.Equal(t, "att-1", data["record_id"])

	assert.Equal(t, "grp-1", stub.gotReq.GroupID)
	require.NotNil(t, stub.gotReq.Sample)
	assert.Equal(t, 20.0, stub.gotReq.Sample.AccuracyMeters)
}

func TestAttendanceHandlerSubmitRejected(t *testing.T) {
	stub := &submissionServiceStub{err: appErrors.ErrTooFar}
	h := NewAttendanceHandler(stub)

	body := `{"group_id":"grp-1","marks":{"stu-1":{"status":"PRESENT"}}}`
	w := httptest.NewRecorder()
	c, _ := authedContext(w, http.MethodPost, "/attendance/submit", body)
	h.Submit(c)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "TOO_FAR", envelope.Error.Code)
}

func TestAttendanceHandlerBadBody(t *testing.T) {
	h := NewAttendanceHandler(&submissionServiceStub{})

	w := httptest.NewRecorder()
	c, _ := authedContext(w, http.MethodPost, "/attendance/submit", "{not-json")
	h.Submit(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
