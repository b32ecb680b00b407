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

	"github.com/saveyours/booking-api/internal/dto"
	"github.com/saveyours/booking-api/internal/middleware"
	"github.com/saveyours/booking-api/internal/models"
	"github.com/saveyours/booking-api/internal/service"
	appErrors "github.com/saveyours/booking-api/pkg/errors"
)

type fakeSessionSrv struct {
	sessions  []models.SessionDetail
	cacheHit  bool
	detail    *models.SessionDetail
	err       error
	classID   string
	page      int
	pageSize  int
	created   dto.CreateSessionRequest
	cancelled string
}

func (f *fakeSessionSrv) ListPublic(_ context.Context, classID string, page, pageSize int) ([]models.SessionDetail, *models.Pagination, bool, error) {
	f.classID, f.page, f.pageSize = classID, page, pageSize
	return f.sessions, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: len(f.sessions)}, f.cacheHit, f.err
}

func (f *fakeSessionSrv) List(context.Context, dto.SessionQuery) ([]models.SessionDetail, *models.Pagination, error) {
	return f.sessions, nil, f.err
}

func (f *fakeSessionSrv) Get(context.Context, string) (*models.SessionDetail, error) {
	return f.detail, f.err
}

func (f *fakeSessionSrv) Create(_ context.Context, req dto.CreateSessionRequest) (*models.SessionDetail, error) {
	f.created = req
	return f.detail, f.err
}

func (f *fakeSessionSrv) Update(context.Context, string, dto.UpdateSessionRequest) (*models.SessionDetail, error) {
	return f.detail, f.err
}

func (f *fakeSessionSrv) Cancel(_ context.Context, id string) (*dto.CancelSessionResponse, error) {
	f.cancelled = id
	return &dto.CancelSessionResponse{SessionID: id, EnrollmentsCancelled: 2}, f.err
}

type fakeRosterExporter struct {
	format string
}

func (f *fakeRosterExporter) SessionRoster(_ context.Context, _ string, format string) (*service.ExportResult, error) {
	f.format = format
	return &service.ExportResult{Filename: "roster-20261024-s1.csv", ContentType: "text/csv", Body: []byte("Name,Email\n")}, nil
}

func TestSessionHandlerListPublicReportsCacheHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeSessionSrv{
		sessions: []models.SessionDetail{{Session: models.Session{ID: "s1", MaxCapacity: 10}}},
		cacheHit: true,
	}
	handler := NewSessionHandler(srv, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/sessions?class_id=c1&page=2&page_size=5", nil)
	middleware.WithResponseMeta()(c)
	handler.ListPublic(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "c1", srv.classID)
	assert.Equal(t, 2, srv.page)
	assert.Equal(t, 5, srv.pageSize)

	var body struct {
		Data []models.SessionDetail `json:"data"`
		Meta map[string]any         `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Data, 1)
	assert.Equal(t, true, body.Meta["cache_hit"])
}

func TestSessionHandlerGetPublicHidesCancelled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeSessionSrv{detail: &models.SessionDetail{Session: models.Session{ID: "s1", Status: models.SessionStatusCancelled}}}
	handler := NewSessionHandler(srv, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/sessions/s1", nil)
	c.Params = gin.Params{{Key: "id", Value: "s1"}}
	handler.GetPublic(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionHandlerCreateRejectsMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewSessionHandler(&fakeSessionSrv{}, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/admin/sessions", strings.NewReader("{"))
	c.Request.Header.Set("Content-Type", "application/json")
	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionHandlerUpdateCapacityConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeSessionSrv{err: appErrors.Clone(appErrors.ErrConflict, "capacity below booked seats")}
	handler := NewSessionHandler(srv, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPatch, "/admin/sessions/s1", strings.NewReader(`{"max_capacity":1}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "s1"}}
	handler.Update(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSessionHandlerCancel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeSessionSrv{}
	handler := NewSessionHandler(srv, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/admin/sessions/s1/cancel", nil)
	c.Params = gin.Params{{Key: "id", Value: "s1"}}
	handler.Cancel(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "s1", srv.cancelled)
	assert.Contains(t, rec.Body.String(), `"enrollments_cancelled":2`)
}

func TestSessionHandlerRosterDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	exporter := &fakeRosterExporter{}
	handler := NewSessionHandler(&fakeSessionSrv{}, exporter)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/admin/sessions/s1/roster", nil)
	c.Params = gin.Params{{Key: "id", Value: "s1"}}
	handler.Roster(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "csv", exporter.format)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "roster-20261024-s1.csv")
}
